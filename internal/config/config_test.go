package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range envKeys {
		t.Setenv(EnvVar(key), "")
		require.NoError(t, os.Unsetenv(EnvVar(key)))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.Equal(t, "https://dummy-chat-server.tribechat.com/api", cfg.API.BaseURL)
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
	require.Equal(t, BackendFile, cfg.Storage.Backend)
	require.Equal(t, filepath.Join(dir, "data", "tribe"), cfg.Storage.Path)
	require.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	require.Equal(t, 25, cfg.Sync.PageSize)
	require.Equal(t, ThemeDefault, cfg.TUI.Theme)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config", "tribe", "config.yaml"), `
api:
  base_url: https://file.example.com/api
  timeout: 3s
storage:
  backend: sqlite
  path: ~/chat-data
sync:
  poll_interval: 2s
logging:
  level: debug
`)
	writeFile(t, filepath.Join(dir, ".env"), "TRIBE_SYNC_POLL_INTERVAL=7s\nTRIBE_TUI_SELF_ID=from-dotenv\n")
	t.Setenv("TRIBE_API_BASE_URL", "https://env.example.com/api")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=warn"}))

	loader := NewLoader()
	require.NoError(t, loader.BindFlag("logging.level", flags.Lookup("log-level")))
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, BackendSQLite, cfg.Storage.Backend)
	require.Equal(t, filepath.Join(dir, "chat-data"), cfg.Storage.Path)
	require.Equal(t, 7*time.Second, cfg.Sync.PollInterval)
	require.Equal(t, "from-dotenv", cfg.TUI.SelfID)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, filepath.Join(dir, "config", "tribe", "config.yaml"), loader.ConfigFileUsed())
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)
	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown backend":  "storage:\n  backend: redis\n",
		"bad url":          "api:\n  base_url: not a url\n",
		"tiny poll":        "sync:\n  poll_interval: 10ms\n",
		"bad theme":        "tui:\n  theme: neon\n",
		"bad metrics addr": "metrics:\n  addr: localhost\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "config.yaml")
			writeFile(t, path, content)
			_, err := LoadFromFile(path)
			require.Error(t, err)
			require.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestValidateMessagesNameKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "redis"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage.backend must be one of memory, file, sqlite, badger, bolt")

	cfg = DefaultConfig()
	cfg.Storage.Path = ""
	require.ErrorContains(t, cfg.Validate(), "storage.path is required")

	cfg.Storage.Backend = BackendMemory
	require.NoError(t, cfg.Validate())
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "out", "config.yaml")

	cfg := DefaultConfig()
	cfg.Sync.PollInterval = 9 * time.Second
	cfg.Metrics.Addr = ":9102"
	require.NoError(t, cfg.WriteFile(path, false))
	require.Error(t, cfg.WriteFile(path, false))
	require.NoError(t, cfg.WriteFile(path, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Equal(t, "9s", doc["sync"]["poll_interval"])

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestEnvVar(t *testing.T) {
	require.Equal(t, "TRIBE_API_BASE_URL", EnvVar("api.base_url"))
}
