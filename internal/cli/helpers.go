package cli

import (
	"context"
	"encoding/json"
	"os/signal"
	"strings"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/internal/config"
	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/internal/output"
	"github.com/MimeLyc/convertctl/internal/persistence"
	"github.com/MimeLyc/convertctl/pkg/log"
)

// loadConfig resolves configuration from the config file, the environment
// and the global flags, and configures logging to match.
func loadConfig(app *AppContext) (*config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(app.Opts.ConfigPath),
		config.WithServerURL(app.Opts.ServerURL),
		config.WithHintLang(app.Opts.Lang),
		config.WithLogLevel(app.Opts.LogLevel),
		config.WithLogFile(app.Opts.LogFile),
	)
	if err != nil {
		return nil, withExitCode(exitcode.InvalidConfig, err)
	}

	level := log.ParseLevel(cfg.LogLevel)
	switch {
	case app.Opts.Verbose:
		level = log.LevelDebug
	case app.Opts.Quiet:
		level = log.LevelError
	}
	if err := setupLogging(app, cfg.LogFile, level); err != nil {
		return nil, withExitCode(exitcode.InvalidConfig, err)
	}
	return cfg, nil
}

func setupLogging(app *AppContext, logFile string, level log.LogLevel) error {
	app.closeLog()
	if logFile == "" {
		log.SetLogger(log.NewLoggerTo(app.IO.ErrOut, level))
		return nil
	}

	path, err := config.ExpandPath(logFile)
	if err != nil {
		return err
	}
	fileLogger, err := log.NewFileLogger(path, level)
	if err != nil {
		return err
	}
	app.logFile = fileLogger
	log.SetLogger(fileLogger.Logger)
	return nil
}

func newClient(cfg *config.Config) (*api.Client, error) {
	client, err := api.NewClient(cfg.API())
	if err != nil {
		return nil, withExitCode(exitcode.InvalidConfig, err)
	}
	return client, nil
}

func newAdvisor(cfg *config.Config) *formats.Advisor {
	return formats.NewAdvisor(formats.WithLanguage(cfg.HintLanguage()))
}

func newEmitter(app *AppContext) output.EventEmitter {
	if app.Opts.JSON {
		return output.NewJSONEmitter(app.IO.Out)
	}
	return output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
}

func newStyler(app *AppContext) output.Styler {
	return output.NewStyler(app.IO.Out, !app.Opts.NoColor && !app.Opts.JSON && output.SupportsInPlaceUpdates(app.IO.Out))
}

// openHistory returns the history store, or nil when history is disabled.
// The jobs.Store is an untyped nil in that case.
func openHistory(cfg *config.Config) (*persistence.SQLiteStore, jobs.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil, nil
	}
	store, err := persistence.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		return nil, nil, withExitCode(exitcode.InvalidConfig, err)
	}
	return store, store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), interruptSignals()...)
}

// writeJSON prints v as one line of JSON.
func writeJSON(app *AppContext, v any) error {
	return json.NewEncoder(app.IO.Out).Encode(v)
}
