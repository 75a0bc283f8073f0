package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// credentials come from the environment
		mpob: { username: "collector", timeout_seconds: 45 },
		database: { driver: "postgres", dsn: "postgres://localhost/warehouse", merge_mode: "staging" },
		ftp: { host: "ftp.internal", port: 21, base_dir: "/data" },
		concurrency: 2,
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{ ftp: { disabled: true } }`), 0600)
	require.NoError(t, err)

	t.Setenv("MPOB_PASSWORD", "hunter2")
	t.Setenv("PALMSTAT_DB_DSN", "postgres://db/warehouse")

	cfg, err := loadConfig("config.json5")
	require.NoError(t, err)
	require.Equal(t, "collector", cfg.Mpob.Username)
	require.Equal(t, "hunter2", cfg.Mpob.Password)
	require.Equal(t, float64(45), cfg.Mpob.Timeout().Seconds())
	require.Equal(t, "postgres://db/warehouse", cfg.Database.Dsn)
	require.Equal(t, "staging", cfg.Database.MergeMode)
	require.False(t, cfg.Ftp.Enabled())
	require.Equal(t, 2, cfg.Concurrency)
	require.Equal(t, defaultSchedule, cfg.Schedule)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MPOB_USERNAME", "collector")

	cfg, err := loadConfig("config.json5")
	require.NoError(t, err)
	require.Equal(t, "collector", cfg.Mpob.Username)
	require.Equal(t, "<dev_state>/palmstat.db", cfg.Database.Dsn)
}
