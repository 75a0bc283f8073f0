package restyutil

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactForm(t *testing.T) {
	redacted, err := url.ParseQuery(RedactForm("username=kf&password=secret&return="))
	require.NoError(t, err)
	require.Equal(t, "kf", redacted.Get("username"))
	require.Equal(t, "<redacted>", redacted.Get("password"))

	require.Equal(t, "a=1&b=2", RedactForm("a=1&b=2"))
	require.Equal(t, "", RedactForm(""))
}

func TestFormatHeaders(t *testing.T) {
	require.Equal(t, "", formatHeaders(http.Header{}))
	require.Equal(t, "Accept: text/html", formatHeaders(http.Header{"Accept": {"text/html"}}))
	require.Equal(
		t,
		"Accept: text/html\nCookie: <redacted>\nX-Page: 1\nX-Page: 2",
		formatHeaders(http.Header{
			"X-Page": {"1", "2"},
			"Cookie": {"ASP.NET_SessionId=abc"},
			"Accept": {"text/html"},
		}),
	)
}

func TestSensitiveHeader(t *testing.T) {
	require.True(t, SensitiveHeader("set-cookie"))
	require.True(t, SensitiveHeader("Authorization"))
	require.False(t, SensitiveHeader("Content-Type"))
}

func TestFilesystemOutputPrunesOldRuns(t *testing.T) {
	dir := t.TempDir()
	for _, run := range []string{"20240101T000000", "20240102T000000", "20240103T000000", "notes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, run), 0777))
	}

	out, err := NewFilesystemOutput(dir, 2)
	require.NoError(t, err)
	out.Write("1", "GET / HTTP/1.1")

	contents, err := os.ReadFile(filepath.Join(out.Dir(), "1.http"))
	require.NoError(t, err)
	require.Equal(t, "GET / HTTP/1.1", string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"20240103T000000", filepath.Base(out.Dir()), "notes"}, names)
}
