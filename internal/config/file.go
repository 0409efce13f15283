package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Server struct {
		URL           *string `yaml:"url"`
		Timeout       *int    `yaml:"timeout"`
		UploadTimeout *int    `yaml:"upload_timeout"`
	} `yaml:"server"`
	Poll struct {
		IntervalMS    *int `yaml:"interval_ms"`
		SettleDelayMS *int `yaml:"settle_delay_ms"`
	} `yaml:"poll"`
	Download struct {
		Dir         *string `yaml:"dir"`
		OpenBrowser *bool   `yaml:"open_browser"`
	} `yaml:"download"`
	History struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	} `yaml:"history"`
	Watch struct {
		Dirs             *[]string `yaml:"dirs"`
		Exclude          *[]string `yaml:"exclude"`
		CronExpr         *string   `yaml:"cron"`
		Action           *string   `yaml:"action"`
		ToFormat         *string   `yaml:"to"`
		MinAgeSeconds    *int      `yaml:"min_age_seconds"`
		MaxLookbackHours *int      `yaml:"max_lookback_hours"`
	} `yaml:"watch"`
	Level    *int    `yaml:"level"`
	HintLang *string `yaml:"hint_lang"`
	LogLevel *string `yaml:"log_level"`
	LogFile  *string `yaml:"log_file"`
}

// mergeFile overlays the keys present in the YAML file at path.
func mergeFile(cfg *Config, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Server.URL, fc.Server.URL)
	setInt(&cfg.Server.Timeout, fc.Server.Timeout)
	setInt(&cfg.Server.UploadTimeout, fc.Server.UploadTimeout)

	setInt(&cfg.Poll.IntervalMS, fc.Poll.IntervalMS)
	setInt(&cfg.Poll.SettleDelayMS, fc.Poll.SettleDelayMS)

	if fc.Download.Dir != nil {
		dir, err := ExpandPath(*fc.Download.Dir)
		if err != nil {
			return err
		}
		cfg.Download.Dir = dir
	}
	if fc.Download.OpenBrowser != nil {
		cfg.Download.OpenBrowser = *fc.Download.OpenBrowser
	}

	if fc.History.Enabled != nil {
		cfg.History.Enabled = *fc.History.Enabled
	}
	if fc.History.DBPath != nil {
		dbPath, err := ExpandPath(*fc.History.DBPath)
		if err != nil {
			return err
		}
		cfg.History.DBPath = dbPath
	}

	if fc.Watch.Dirs != nil {
		cfg.Watch.Dirs = make([]string, 0, len(*fc.Watch.Dirs))
		for _, dir := range *fc.Watch.Dirs {
			expanded, err := ExpandPath(dir)
			if err != nil {
				return err
			}
			if expanded != "" {
				cfg.Watch.Dirs = append(cfg.Watch.Dirs, expanded)
			}
		}
	}
	if fc.Watch.Exclude != nil {
		cfg.Watch.Exclude = append([]string{}, *fc.Watch.Exclude...)
	}
	setString(&cfg.Watch.CronExpr, fc.Watch.CronExpr)
	setString(&cfg.Watch.Action, fc.Watch.Action)
	setString(&cfg.Watch.ToFormat, fc.Watch.ToFormat)
	setInt(&cfg.Watch.MinAgeSeconds, fc.Watch.MinAgeSeconds)
	setInt(&cfg.Watch.MaxLookbackHours, fc.Watch.MaxLookbackHours)

	setInt(&cfg.Level, fc.Level)
	setString(&cfg.HintLang, fc.HintLang)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// WriteFile validates cfg and writes it as YAML, replacing path atomically.
func WriteFile(path string, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// UserConfigPath is the per-user config file location.
func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "convertctl", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "convertctl", "config.yaml"), nil
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "convertctl")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./.convertctl-state"
	}
	return filepath.Join(home, ".local", "state", "convertctl")
}

func defaultHistoryPath() string {
	return filepath.Join(defaultStateDir(), "history.db")
}

// ExpandPath expands environment variables and a leading ~.
func ExpandPath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(strings.TrimSpace(raw))
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
	}

	return filepath.Clean(expanded), nil
}
