package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Server.URL)
	assert.Equal(t, 30, cfg.Server.Timeout)
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 800*time.Millisecond, cfg.SettleDelay())
	assert.Equal(t, 70, cfg.Level)
	assert.Equal(t, ".", cfg.Download.Dir)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join("/state", "convertctl", "history.db"), cfg.History.DBPath)
	assert.Equal(t, "*/5 * * * *", cfg.Watch.CronExpr)
	assert.Equal(t, "compress", cfg.Watch.Action)
	assert.Equal(t, language.English, cfg.HintLanguage())
}

func TestNewFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("CONVERTCTL_SERVER_URL", "https://convert.example")
	t.Setenv("CONVERTCTL_TIMEOUT", "5")
	t.Setenv("CONVERTCTL_POLL_INTERVAL_MS", "250")
	t.Setenv("CONVERTCTL_HISTORY", "false")
	t.Setenv("CONVERTCTL_WATCH_DIRS", " /in/a, ,/in/b ")
	t.Setenv("CONVERTCTL_WATCH_ACTION", "convert")
	t.Setenv("CONVERTCTL_WATCH_TO", "webp")
	t.Setenv("CONVERTCTL_LEVEL", "40")
	t.Setenv("CONVERTCTL_HINT_LANG", "id")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://convert.example", cfg.API().BaseURL)
	assert.Equal(t, 5, cfg.API().Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, []string{"/in/a", "/in/b"}, cfg.Watch.Dirs)
	assert.Equal(t, "convert", cfg.Watch.Action)
	assert.Equal(t, 40, cfg.Level)
	assert.Equal(t, language.Indonesian, cfg.HintLanguage())
}

func TestNewFromEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CONVERTCTL_TIMEOUT", "soon")
	t.Setenv("CONVERTCTL_HISTORY", "maybe")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Server.Timeout)
	assert.True(t, cfg.History.Enabled)
}

func TestNewFromEnv_OptionsWin(t *testing.T) {
	t.Setenv("CONVERTCTL_SERVER_URL", "https://env.example")

	cfg, err := NewFromEnv(WithServerURL("http://flag.example:8080"), WithHintLang("id"))
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example:8080", cfg.Server.URL)
	assert.Equal(t, "id", cfg.HintLang)

	cfg, err = NewFromEnv(WithServerURL("  "))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.Server.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"relative url", map[string]string{"CONVERTCTL_SERVER_URL": "localhost:5000"}, "server url"},
		{"ftp url", map[string]string{"CONVERTCTL_SERVER_URL": "ftp://files.example"}, "server url"},
		{"level too high", map[string]string{"CONVERTCTL_LEVEL": "95"}, "level"},
		{"negative level", map[string]string{"CONVERTCTL_LEVEL": "-1"}, "level"},
		{"bad cron", map[string]string{"CONVERTCTL_WATCH_CRON": "every minute"}, "cron"},
		{"bad action", map[string]string{"CONVERTCTL_WATCH_ACTION": "shrink"}, "action"},
		{"convert without target", map[string]string{"CONVERTCTL_WATCH_ACTION": "convert"}, "target format"},
		{"bad language", map[string]string{"CONVERTCTL_HINT_LANG": "not a language"}, "hint_lang"},
		{"bad log level", map[string]string{"CONVERTCTL_LOG_LEVEL": "loud"}, "log_level"},
		{"zero poll interval", map[string]string{"CONVERTCTL_POLL_INTERVAL_MS": "0"}, "interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLevelZeroIsValid(t *testing.T) {
	t.Setenv("CONVERTCTL_LEVEL", "0")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: https://file.example
  timeout: 12
poll:
  settle_delay_ms: 0
download:
  dir: ~/results
history:
  enabled: false
watch:
  dirs: [~/inbox, "", /srv/drop]
  exclude: [.git]
  cron: "0 * * * *"
level: 55
`), 0o644))
	t.Setenv("CONVERTCTL_TIMEOUT", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://file.example", cfg.Server.URL)
	assert.Equal(t, 9, cfg.Server.Timeout)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay())
	assert.Equal(t, filepath.Join(dir, "results"), cfg.Download.Dir)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, []string{filepath.Join(dir, "inbox"), "/srv/drop"}, cfg.Watch.Dirs)
	assert.Equal(t, []string{".git"}, cfg.Watch.Exclude)
	assert.Equal(t, "0 * * * *", cfg.Watch.CronExpr)
	assert.Equal(t, 55, cfg.Level)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 1000, cfg.Poll.IntervalMS)
	assert.Equal(t, "compress", cfg.Watch.Action)
}

func TestLoad_FileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unterminated"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.Server.URL = "https://written.example"
	cfg.Watch.Dirs = []string{"/srv/inbox"}
	cfg.Level = 20
	require.NoError(t, WriteFile(path, cfg))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://written.example", got.Server.URL)
	assert.Equal(t, []string{"/srv/inbox"}, got.Watch.Dirs)
	assert.Equal(t, 20, got.Level)

	cfg.Level = 91
	require.Error(t, WriteFile(path, cfg))
}

func TestUserConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err := UserConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "convertctl", "config.yaml"), path)
}
