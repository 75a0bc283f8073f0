package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string   `json:"name"`
	Port    int      `json:"port"`
	Enabled bool     `json:"enabled"`
	Tags    []string `json:"tags"`
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// comments are allowed
		name: "default",
		port: 21,
		tags: ["a"],
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{port: 2121}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "default", cfg.Name)
	require.Equal(t, 2121, cfg.Port)
	require.Equal(t, []string{"a"}, cfg.Tags)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestLoadEnvAndOverlay(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	err := os.WriteFile(envFile, []byte("PALMSTAT_TEST_SECRET=from-dotenv\n"), 0600)
	require.NoError(t, err)
	t.Setenv("PALMSTAT_TEST_SECRET", "")
	os.Unsetenv("PALMSTAT_TEST_SECRET")

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))

	value := "from-config"
	Overlay(&value, "PALMSTAT_TEST_SECRET")
	require.Equal(t, "from-dotenv", value)

	unchanged := "kept"
	Overlay(&unchanged, "PALMSTAT_TEST_UNSET_VARIABLE")
	require.Equal(t, "kept", unchanged)
}

func TestReadRecursivelyFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "services", "mpob")
	require.NoError(t, os.MkdirAll(nested, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(root, "telemetry.json5"), []byte(`{name: "root"}`), 0600))
	t.Chdir(nested)

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "root", cfg.Name)

	_, err = ReadRecursively[testConfig]("absent.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{enabled: true}`), 0600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
}
