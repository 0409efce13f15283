package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/convertctl/internal/config"
	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/internal/inbox"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/internal/output"
	"github.com/MimeLyc/convertctl/internal/service"
	"github.com/MimeLyc/convertctl/internal/session"
	"github.com/MimeLyc/convertctl/pkg/log"
)

type watchOptions struct {
	cronExpr string
	action   string
	toFormat string
	level    int
	once     bool
	results  resultOptions

	// cronFixed is set when --cron was given; config reloads keep it.
	cronFixed bool
}

func newWatchCommand(app *AppContext) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Submit new files from inbox directories on a schedule",
		Long: "watch scans the given directories (or watch.dirs from the config) on a cron " +
			"schedule and submits every new file the format rules allow, one at a time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			opts = watchFromConfig(cmd, cfg, opts)
			dirs := args
			if len(dirs) == 0 {
				dirs = cfg.Watch.Dirs
			}
			if len(dirs) == 0 {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("no inbox directories given"))
			}
			if _, err := cron.ParseStandard(opts.cronExpr); err != nil {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("invalid --cron: %w", err))
			}
			action, err := formats.ParseAction(opts.action)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			if opts.level < 0 || opts.level > session.MaxLevel {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("--level must be between 0 and %d", session.MaxLevel))
			}

			ctx, stop := signalContext()
			defer stop()
			return runWatch(ctx, app, cfg, dirs, action, opts)
		},
	}

	cmd.Flags().StringVar(&opts.cronExpr, "cron", "", "Scan schedule (standard 5-field cron)")
	cmd.Flags().StringVarP(&opts.action, "action", "a", "", "compress or convert")
	cmd.Flags().StringVarP(&opts.toFormat, "to", "t", "", "Target format for convert")
	cmd.Flags().IntVarP(&opts.level, "level", "l", 0, "Compression level (0-90)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Scan once, wait for the submissions and exit")
	addResultFlags(cmd, &opts.results)
	return cmd
}

func watchFromConfig(cmd *cobra.Command, cfg *config.Config, opts watchOptions) watchOptions {
	flags := cmd.Flags()
	opts.cronFixed = flags.Changed("cron")
	if !opts.cronFixed {
		opts.cronExpr = cfg.Watch.CronExpr
	}
	if !flags.Changed("action") {
		opts.action = cfg.Watch.Action
	}
	if !flags.Changed("to") {
		opts.toFormat = cfg.Watch.ToFormat
	}
	if !flags.Changed("level") {
		opts.level = cfg.Level
	}
	opts.results = resultsFromConfig(cmd, cfg, opts.results)
	return opts
}

func runWatch(ctx context.Context, app *AppContext, cfg *config.Config, dirs []string, action formats.Action, opts watchOptions) error {
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	emitter := newEmitter(app)
	sub := newSubmitter(app, cfg, client, emitter, opts.results)

	history, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	lookback := time.Duration(cfg.Watch.MaxLookbackHours) * time.Hour
	since := time.Now().Add(-lookback)
	if !opts.once {
		since, err = service.InitialSince(opts.cronExpr, time.Now(), lookback)
		if err != nil {
			return withExitCode(exitcode.InvalidConfig, err)
		}
	}

	sources := make([]inbox.SourceConfig, 0, len(dirs))
	for _, dir := range dirs {
		sources = append(sources, inbox.SourceConfig{Path: dir})
	}
	exclude := append([]string{}, cfg.Watch.Exclude...)
	if !opts.results.open {
		exclude = append(exclude, opts.results.outDir)
	}
	scanner := inbox.NewScanner(sources, newAdvisor(cfg), action, opts.toFormat,
		inbox.WithSince(since),
		inbox.WithMinAge(time.Duration(cfg.Watch.MinAgeSeconds)*time.Second),
		inbox.WithExclude(exclude...),
	)

	queue := jobs.NewQueue(store)
	// Submissions left over from an interrupted run are resumed first.
	queued := unfinishedJobs(queue.List())
	if len(queued) > 0 {
		log.Info("Resuming %d unfinished submissions", len(queued))
	}
	queue.Start(sub.execute)
	defer queue.Stop()

	cronEngine := cron.New()
	svc := service.NewWatchService(scanner, queue, cronEngine, opts.cronExpr, opts.level,
		service.WithObserver(func(c inbox.Candidate, job *jobs.SubmissionJob, created bool) {
			switch {
			case job == nil:
				_ = emitter.Emit(output.NewEvent(output.LevelInfo, output.EventFileSkipped,
					fmt.Sprintf("Skipping %s: %s", filepath.Base(c.Path), c.Reason)).
					WithDetail("path", c.Path))
			case created && opts.once:
				queued = append(queued, job.ID)
			}
		}),
		service.WithReporter(func(report service.ScanReport, err error) {
			emitScanReport(emitter, report, err)
		}),
	)

	for _, src := range scanner.Sources() {
		log.Info("Watching %s (%s), files since %s", src.Path, src.ID, since.Format(time.RFC3339))
	}

	if opts.once {
		report, scanErr := svc.RunOnce(ctx)
		emitScanReport(emitter, report, scanErr)

		failed := 0
		for _, id := range queued {
			job, err := queue.Wait(ctx, id)
			if err != nil {
				return withExitCode(exitcode.Interrupted, err)
			}
			if job.Status == jobs.StatusFailed {
				failed++
			}
		}
		return watchResult(len(queued), failed, scanErr)
	}

	if err := svc.Schedule(ctx); err != nil {
		return withExitCode(exitcode.InvalidConfig, err)
	}
	cronEngine.Start()
	defer cronEngine.Stop()

	if next, err := svc.NextRun(time.Now()); err == nil {
		log.Info("Next inbox scan at %s", next.Format(time.RFC3339))
	}

	reload := make(chan os.Signal, 1)
	if sigs := reloadSignals(); len(sigs) > 0 {
		signal.Notify(reload, sigs...)
		defer signal.Stop(reload)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping watch")
			return nil
		case <-reload:
			if err := reloadSchedule(app, svc, opts); err != nil {
				log.Warn("Config reload failed, keeping schedule %q: %v", svc.CronExpr(), err)
			}
		}
	}
}

func unfinishedJobs(list []*jobs.SubmissionJob) []string {
	var ids []string
	for _, job := range list {
		if job.Status == jobs.StatusPending || job.Status == jobs.StatusRunning {
			ids = append(ids, job.ID)
		}
	}
	return ids
}

// reloadSchedule re-reads the configuration and applies a changed watch.cron.
func reloadSchedule(app *AppContext, svc *service.WatchService, opts watchOptions) error {
	if opts.cronFixed {
		log.Info("Schedule set by --cron, ignoring config reload")
		return nil
	}
	cfg, err := loadConfig(app)
	if err != nil {
		return err
	}
	if cfg.Watch.CronExpr == svc.CronExpr() {
		return nil
	}
	if err := svc.Reschedule(cfg.Watch.CronExpr); err != nil {
		return err
	}
	if next, err := svc.NextRun(time.Now()); err == nil {
		log.Info("Rescheduled inbox scans to %q, next at %s", cfg.Watch.CronExpr, next.Format(time.RFC3339))
	}
	return nil
}

func emitScanReport(emitter output.EventEmitter, report service.ScanReport, err error) {
	level := output.LevelInfo
	if err != nil {
		level = output.LevelWarn
	}
	message := fmt.Sprintf("Inbox scan: %d found, %d queued, %d already queued, %d skipped",
		report.Found, report.Enqueued, report.Duplicates, report.Skipped)
	if err != nil {
		message += fmt.Sprintf(" (%v)", err)
	}
	_ = emitter.Emit(output.NewEvent(level, output.EventWatchScan, message).
		WithDetail("found", report.Found).
		WithDetail("enqueued", report.Enqueued).
		WithDetail("duplicates", report.Duplicates).
		WithDetail("skipped", report.Skipped))
}

func watchResult(total, failed int, scanErr error) error {
	switch {
	case failed > 0 && failed == total:
		return &ExitError{Code: exitcode.JobFailed, Err: fmt.Errorf("all %d submissions failed", total)}
	case failed > 0:
		return &ExitError{
			Code: exitcode.PartialSuccess,
			Err:  fmt.Errorf("%d of %d submissions failed", failed, total),
		}
	case scanErr != nil:
		return &ExitError{Code: exitcode.PartialSuccess, Err: fmt.Errorf("inbox scan incomplete: %w", scanErr)}
	default:
		return nil
	}
}
