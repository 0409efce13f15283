package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/pkg/log"
)

// Config holds all client configuration.
//
// Values are resolved in this order, later sources winning:
// built-in defaults, the YAML config file, environment variables, options.
//
// Environment Variables:
// Server:
// - CONVERTCTL_SERVER_URL: Backend base URL (default: http://localhost:5000)
// - CONVERTCTL_TIMEOUT: Request timeout in seconds (default: 30)
// - CONVERTCTL_UPLOAD_TIMEOUT: Upload timeout in seconds (default: 600)
//
// Polling:
// - CONVERTCTL_POLL_INTERVAL_MS: Status poll interval (default: 1000)
// - CONVERTCTL_SETTLE_DELAY_MS: Pause on "Complete" before download (default: 800)
//
// Results:
// - CONVERTCTL_DOWNLOAD_DIR: Where results are saved (default: .)
// - CONVERTCTL_OPEN_BROWSER: Open the download URL instead of saving (default: false)
// - CONVERTCTL_HISTORY: Record submissions locally (default: true)
// - CONVERTCTL_HISTORY_DB: SQLite history path (default: state dir)
//
// Watch:
// - CONVERTCTL_WATCH_DIRS: Comma separated inbox directories
// - CONVERTCTL_WATCH_CRON: Scan schedule (default: */5 * * * *)
// - CONVERTCTL_WATCH_ACTION: compress or convert (default: compress)
// - CONVERTCTL_WATCH_TO: Target format for convert
//
// Misc:
// - CONVERTCTL_LEVEL: Compression level 0-90 (default: 70)
// - CONVERTCTL_HINT_LANG: Hint language (default: en)
// - CONVERTCTL_LOG_LEVEL: debug, info, warn, error (default: warn)
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Poll     PollConfig     `json:"poll" yaml:"poll"`
	Download DownloadConfig `json:"download" yaml:"download"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Watch    WatchConfig    `json:"watch" yaml:"watch"`

	Level    int    `json:"level" yaml:"level"`
	HintLang string `json:"hint_lang" yaml:"hint_lang"`
	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

type ServerConfig struct {
	URL           string `json:"url" yaml:"url"`
	Timeout       int    `json:"timeout" yaml:"timeout"`
	UploadTimeout int    `json:"upload_timeout" yaml:"upload_timeout"`
}

type PollConfig struct {
	IntervalMS    int `json:"interval_ms" yaml:"interval_ms"`
	SettleDelayMS int `json:"settle_delay_ms" yaml:"settle_delay_ms"`
}

type DownloadConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	OpenBrowser bool   `json:"open_browser" yaml:"open_browser"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"db_path" yaml:"db_path"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Dirs     []string `json:"dirs" yaml:"dirs"`
	Exclude  []string `json:"exclude" yaml:"exclude"`
	CronExpr string   `json:"cron" yaml:"cron"`
	Action   string   `json:"action" yaml:"action"`
	ToFormat string   `json:"to" yaml:"to"`

	// MinAgeSeconds skips files modified more recently, which may still be written.
	MinAgeSeconds int `json:"min_age_seconds" yaml:"min_age_seconds"`
	// MaxLookbackHours bounds how far back the first scan reaches.
	MaxLookbackHours int `json:"max_lookback_hours" yaml:"max_lookback_hours"`
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithServerURL(u string) Option {
	return func(c *Config) {
		if strings.TrimSpace(u) != "" {
			c.Server.URL = strings.TrimSpace(u)
		}
	}
}

func WithHintLang(lang string) Option {
	return func(c *Config) {
		if strings.TrimSpace(lang) != "" {
			c.HintLang = strings.TrimSpace(lang)
		}
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) {
		if strings.TrimSpace(level) != "" {
			c.LogLevel = strings.TrimSpace(level)
		}
	}
}

// WithLogFile sends log output to path instead of stderr.
func WithLogFile(path string) Option {
	return func(c *Config) {
		if strings.TrimSpace(path) != "" {
			c.LogFile = strings.TrimSpace(path)
		}
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:           "http://localhost:5000",
			Timeout:       30,
			UploadTimeout: 600,
		},
		Poll: PollConfig{
			IntervalMS:    1000,
			SettleDelayMS: 800,
		},
		Download: DownloadConfig{
			Dir: ".",
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  defaultHistoryPath(),
		},
		Watch: WatchConfig{
			CronExpr:         "*/5 * * * *",
			Action:           string(formats.ActionCompress),
			MinAgeSeconds:    2,
			MaxLookbackHours: 24,
		},
		Level:    70,
		HintLang: "en",
		LogLevel: "warn",
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	return Load("", opts...)
}

// Load reads the YAML file at path, when set, on top of the defaults and
// then applies the environment and opts.
func Load(path string, opts ...Option) (*Config, error) {
	config := Default()

	if path != "" {
		if err := mergeFile(config, path); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

func applyEnv(c *Config) {
	c.Server.URL = getEnvString("CONVERTCTL_SERVER_URL", c.Server.URL)
	c.Server.Timeout = getEnvInt("CONVERTCTL_TIMEOUT", c.Server.Timeout)
	c.Server.UploadTimeout = getEnvInt("CONVERTCTL_UPLOAD_TIMEOUT", c.Server.UploadTimeout)

	c.Poll.IntervalMS = getEnvInt("CONVERTCTL_POLL_INTERVAL_MS", c.Poll.IntervalMS)
	c.Poll.SettleDelayMS = getEnvInt("CONVERTCTL_SETTLE_DELAY_MS", c.Poll.SettleDelayMS)

	c.Download.Dir = getEnvString("CONVERTCTL_DOWNLOAD_DIR", c.Download.Dir)
	c.Download.OpenBrowser = getEnvBool("CONVERTCTL_OPEN_BROWSER", c.Download.OpenBrowser)

	c.History.Enabled = getEnvBool("CONVERTCTL_HISTORY", c.History.Enabled)
	c.History.DBPath = getEnvString("CONVERTCTL_HISTORY_DB", c.History.DBPath)

	c.Watch.Dirs = getEnvList("CONVERTCTL_WATCH_DIRS", c.Watch.Dirs)
	c.Watch.CronExpr = getEnvString("CONVERTCTL_WATCH_CRON", c.Watch.CronExpr)
	c.Watch.Action = getEnvString("CONVERTCTL_WATCH_ACTION", c.Watch.Action)
	c.Watch.ToFormat = getEnvString("CONVERTCTL_WATCH_TO", c.Watch.ToFormat)

	c.Level = getEnvInt("CONVERTCTL_LEVEL", c.Level)
	c.HintLang = getEnvString("CONVERTCTL_HINT_LANG", c.HintLang)
	c.LogLevel = getEnvString("CONVERTCTL_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnvString("CONVERTCTL_LOG_FILE", c.LogFile)
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server url must be an absolute http(s) URL, got %q", c.Server.URL)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Server.UploadTimeout <= 0 {
		return fmt.Errorf("upload_timeout must be positive")
	}
	if c.Poll.IntervalMS <= 0 {
		return fmt.Errorf("poll interval_ms must be positive")
	}
	if c.Poll.SettleDelayMS < 0 {
		return fmt.Errorf("settle_delay_ms must not be negative")
	}
	if c.Level < 0 || c.Level > 90 {
		return fmt.Errorf("level must be between 0 and 90, got %d", c.Level)
	}
	if _, err := language.Parse(c.HintLang); err != nil {
		return fmt.Errorf("invalid hint_lang: %w", err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if _, err := cron.ParseStandard(c.Watch.CronExpr); err != nil {
		return fmt.Errorf("invalid watch cron: %w", err)
	}
	action, err := formats.ParseAction(c.Watch.Action)
	if err != nil {
		return fmt.Errorf("invalid watch action: %w", err)
	}
	if action == formats.ActionConvert && strings.TrimSpace(c.Watch.ToFormat) == "" {
		return fmt.Errorf("watch action convert requires a target format")
	}
	if c.Watch.MinAgeSeconds < 0 || c.Watch.MaxLookbackHours < 0 {
		return fmt.Errorf("watch min_age_seconds and max_lookback_hours must not be negative")
	}
	return nil
}

// API returns the backend client configuration.
func (c *Config) API() *api.Config {
	return &api.Config{
		BaseURL:       c.Server.URL,
		Timeout:       c.Server.Timeout,
		UploadTimeout: c.Server.UploadTimeout,
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Poll.SettleDelayMS) * time.Millisecond
}

func (c *Config) HintLanguage() language.Tag {
	return formats.MatchLanguage(language.Make(c.HintLang))
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid %s value %q", key, value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
		log.Warn("Ignoring invalid %s value %q", key, value)
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
