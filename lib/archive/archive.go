package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"palmstat-backend/lib/timezone"

	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/archive")

// Store puts a file on the remote archive.
type Store interface {
	Upload(ctx context.Context, remotePath string, r io.Reader) error
}

// Compress zips path into a file next to it with the extension replaced
// by .zip. The archive holds a single entry named after the source file.
func Compress(path string) (string, error) {
	base := filepath.Base(path)
	zipPath := filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))+".zip")

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(zipPath)
	if err != nil {
		return "", err
	}

	zw := zip.NewWriter(out)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     base,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err == nil {
		_, err = io.Copy(entry, src)
	}
	if err == nil {
		err = zw.Close()
	}
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	return zipPath, nil
}

// RemoteName is <baseDir>/<tag>/<YYYYMMDD>_<file name>, dated in Malaysian
// time.
func RemoteName(baseDir, tag, localPath string, now time.Time) string {
	name := fmt.Sprintf("%s_%s", timezone.DatePrefix(now), filepath.Base(localPath))
	return path.Join(filepath.ToSlash(baseDir), tag, name)
}

type Archiver struct {
	store   Store
	baseDir string
	now     func() time.Time
}

// NewArchiver returns an archiver uploading to store. A nil store only
// compresses and cleans up, nothing leaves the machine.
func NewArchiver(store Store, baseDir string) Archiver {
	return Archiver{store: store, baseDir: baseDir, now: time.Now}
}

// Archive compresses localPath and uploads it under tag. It returns the
// remote path, or "" when uploads are disabled. The zip file is removed
// whether or not the upload succeeds, localPath is left alone.
func (a Archiver) Archive(ctx context.Context, localPath, tag string) (string, error) {
	ctx, span := tracer.Start(ctx, "Archive")
	defer span.End()

	zipPath, err := Compress(localPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer os.Remove(zipPath)

	if a.store == nil {
		slog.DebugContext(ctx, "archive upload disabled", "file", zipPath)
		return "", nil
	}

	remote := RemoteName(a.baseDir, tag, zipPath, a.now())
	span.SetAttributes(attribute.String("remote", remote))

	f, err := os.Open(zipPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer f.Close()

	err = a.store.Upload(ctx, remote, f)
	if err != nil {
		err = fmt.Errorf("upload %s: %w", remote, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	slog.InfoContext(ctx, "archived extract", "remote", remote)
	return remote, nil
}
