package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

type FtpConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	BaseDir  string `json:"base_dir"`
	Disabled bool   `json:"disabled"`
}

func (c FtpConfig) Enabled() bool {
	return !c.Disabled && c.Host != ""
}

// FtpStore uploads over a fresh FTP connection per file. Transfers use
// passive mode.
type FtpStore struct {
	config  FtpConfig
	timeout time.Duration
}

func NewFtpStore(config FtpConfig) FtpStore {
	if config.Port == 0 {
		config.Port = 21
	}
	return FtpStore{config: config, timeout: 30 * time.Second}
}

func (s FtpStore) Upload(ctx context.Context, remotePath string, r io.Reader) error {
	conn, err := ftp.Dial(
		fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.timeout),
	)
	if err != nil {
		return err
	}
	defer conn.Quit()

	err = conn.Login(s.config.Username, s.config.Password)
	if err != nil {
		return err
	}

	err = makeDirs(conn, path.Dir(remotePath))
	if err != nil {
		return err
	}
	return conn.Stor(remotePath, r)
}

// dirPrefixes returns every ancestor of dir including itself, outermost
// first: "a/b/c" gives "a", "a/b", "a/b/c".
func dirPrefixes(dir string) []string {
	dir = path.Clean(dir)
	if dir == "." || dir == "/" {
		return nil
	}
	absolute := strings.HasPrefix(dir, "/")
	parts := strings.Split(strings.TrimPrefix(dir, "/"), "/")

	out := make([]string, len(parts))
	for i := range parts {
		p := strings.Join(parts[:i+1], "/")
		if absolute {
			p = "/" + p
		}
		out[i] = p
	}
	return out
}

// makeDirs creates every missing directory on the way to dir.
func makeDirs(conn *ftp.ServerConn, dir string) error {
	start, err := conn.CurrentDir()
	if err != nil {
		return err
	}
	for _, p := range dirPrefixes(dir) {
		if conn.ChangeDir(p) == nil {
			err = conn.ChangeDir(start)
			if err != nil {
				return err
			}
			continue
		}
		err = conn.MakeDir(p)
		if err != nil {
			return fmt.Errorf("mkdir %s: %w", p, err)
		}
	}
	return nil
}
