package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/internal/config"
	"github.com/MimeLyc/convertctl/internal/download"
	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/internal/output"
	"github.com/MimeLyc/convertctl/internal/session"
)

const cliSource = "cli"

type submitKind struct {
	action formats.Action
	use    string
	short  string
}

var (
	submitCompress = submitKind{
		action: formats.ActionCompress,
		use:    "compress <file>",
		short:  "Compress a file and save the result",
	}
	submitConvert = submitKind{
		action: formats.ActionConvert,
		use:    "convert <file>",
		short:  "Convert a file to another format and save the result",
	}
)

type resultOptions struct {
	outDir string
	open   bool
}

func newSubmitCommand(app *AppContext, kind submitKind) *cobra.Command {
	var level int
	var toFormat string
	var results resultOptions

	cmd := &cobra.Command{
		Use:   kind.use,
		Short: kind.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("level") {
				level = cfg.Level
			}
			if level < 0 || level > session.MaxLevel {
				return withExitCode(exitcode.InvalidUsage,
					fmt.Errorf("--level must be between 0 and %d", session.MaxLevel))
			}
			results = resultsFromConfig(cmd, cfg, results)

			ctx, stop := signalContext()
			defer stop()

			return runSubmission(ctx, app, cfg, jobs.Payload{
				FilePath: args[0],
				Action:   string(kind.action),
				ToFormat: toFormat,
				Level:    level,
			}, results)
		},
	}

	if kind.action == formats.ActionCompress {
		cmd.Flags().IntVarP(&level, "level", "l", session.DefaultLevel, "Compression level (0-90)")
	} else {
		cmd.Flags().StringVarP(&toFormat, "to", "t", "", "Target format (defaults to the first offered target)")
	}
	addResultFlags(cmd, &results)
	return cmd
}

func addResultFlags(cmd *cobra.Command, results *resultOptions) {
	cmd.Flags().StringVarP(&results.outDir, "out", "o", "", "Directory for downloaded results")
	cmd.Flags().BoolVar(&results.open, "open", false, "Open the download link in the browser instead of saving")
}

func resultsFromConfig(cmd *cobra.Command, cfg *config.Config, results resultOptions) resultOptions {
	if !cmd.Flags().Changed("out") {
		results.outDir = cfg.Download.Dir
	}
	if !cmd.Flags().Changed("open") {
		results.open = cfg.Download.OpenBrowser
	}
	return results
}

// runSubmission pushes one file through the queue so that it is recorded in
// the history like watched files.
func runSubmission(ctx context.Context, app *AppContext, cfg *config.Config, payload jobs.Payload, results resultOptions) error {
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	emitter := newEmitter(app)
	sub := newSubmitter(app, cfg, client, emitter, results)

	advice := sub.ctrl.Select(payload.FilePath, formats.Action(payload.Action))
	if !sub.view.TriggerEnabled() {
		hint := advice.CompressHint
		if payload.Action == string(formats.ActionConvert) {
			hint = advice.ConvertHint
		}
		return withExitCode(exitcode.InvalidUsage,
			fmt.Errorf("cannot %s %s: %s", payload.Action, filepath.Base(payload.FilePath), hint.Text))
	}

	info, err := os.Stat(payload.FilePath)
	if err != nil {
		return withExitCode(exitcode.InvalidUsage, err)
	}
	if abs, err := filepath.Abs(payload.FilePath); err == nil {
		payload.FilePath = abs
	}

	history, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	queue := jobs.NewQueue(store, jobs.WithoutResume())
	job, _ := queue.Enqueue(jobs.EnqueueRequest{
		Source:    cliSource,
		DedupeKey: jobs.DedupeKey(payload.FilePath, info.Size(), info.ModTime(), payload.Action, payload.ToFormat),
		Payload:   payload,
	})

	var runErr error
	queue.Start(func(_ context.Context, queued *jobs.SubmissionJob) (jobs.Result, error) {
		res, err := sub.execute(ctx, queued)
		runErr = err
		return res, err
	})
	defer queue.Stop()

	// The executor runs on ctx, so this returns once an interrupt has
	// been recorded as a failed submission.
	if _, err := queue.Wait(context.Background(), job.ID); err != nil {
		return err
	}
	return reportable(runErr)
}

// submitter runs queued submissions through a controller.
type submitter struct {
	ctrl    *session.Controller
	view    *output.ProgressView
	saver   *download.Saver
	emitter output.EventEmitter
}

func newSubmitter(app *AppContext, cfg *config.Config, client *api.Client, emitter output.EventEmitter, results resultOptions) *submitter {
	view := output.NewProgressView(app.IO.ErrOut, emitter, output.ViewOptions{
		JSON:        app.Opts.JSON,
		Quiet:       app.Opts.Quiet,
		Interactive: output.SupportsInPlaceUpdates(app.IO.ErrOut),
	})

	sub := &submitter{view: view, emitter: emitter}

	var nav session.Navigator
	if results.open {
		nav = download.NewBrowser()
	} else {
		sub.saver = download.NewSaver(client, results.outDir)
		sub.saver.OnSaved(func(saved download.Saved) {
			_ = emitter.Emit(output.NewEvent(output.LevelInfo, output.EventDownloadSaved,
				fmt.Sprintf("Saved %s (%s)", saved.Path, humanize.Bytes(uint64(saved.Bytes)))).
				WithJob(saved.JobID).
				WithDetail("path", saved.Path).
				WithDetail("bytes", saved.Bytes))
		})
		nav = sub.saver
	}

	sub.ctrl = session.NewController(client, newAdvisor(cfg),
		session.WithView(view),
		session.WithNavigator(nav),
		session.WithPollInterval(cfg.PollInterval()),
		session.WithSettleDelay(cfg.SettleDelay()),
	)
	return sub
}

func (s *submitter) execute(ctx context.Context, job *jobs.SubmissionJob) (jobs.Result, error) {
	payload := job.Payload
	action := formats.Action(payload.Action)
	if s.saver != nil {
		target, err := s.ctrl.Advisor().AdviseFile(payload.FilePath).Check(action, payload.ToFormat)
		if err != nil {
			target = payload.ToFormat
		}
		s.saver.Expect(payload.FilePath, target)
	}

	remoteID, err := s.ctrl.Submit(ctx, session.SubmitRequest{
		Path:     payload.FilePath,
		Action:   action,
		ToFormat: payload.ToFormat,
		Level:    payload.Level,
	})
	if err != nil {
		if session.IsErrorType(err, session.ErrValidation) {
			return jobs.Result{}, fmt.Errorf("%w: %w", jobs.ErrSkipped, err)
		}
		return jobs.Result{}, err
	}

	_ = s.emitter.Emit(output.NewEvent(output.LevelInfo, output.EventSubmissionStarted,
		fmt.Sprintf("Submitted %s for %s as job %s", filepath.Base(payload.FilePath), action, remoteID)).
		WithJob(remoteID).
		WithDetail("file", payload.FilePath).
		WithDetail("action", payload.Action))

	outcome, err := s.ctrl.Wait(ctx)
	res := jobs.Result{RemoteJobID: outcome.JobID, BackendStatus: outcome.Status}
	if s.saver != nil {
		if saved, ok := s.saver.Lookup(outcome.JobID); ok {
			res.OutputPath = saved.Path
		}
	}
	s.emitOutcome(outcome)
	return res, err
}

func (s *submitter) emitOutcome(outcome session.Outcome) {
	var event output.Event
	switch outcome.Result {
	case session.ResultCompleted:
		event = output.NewEvent(output.LevelInfo, output.EventJobCompleted,
			fmt.Sprintf("Job %s completed", outcome.JobID)).
			WithDetail("download_url", outcome.DownloadURL)
	case session.ResultErrored, session.ResultCancelled:
		event = output.NewEvent(output.LevelError, output.EventJobFailed,
			fmt.Sprintf("Job %s ended with status %q", outcome.JobID, outcome.Status))
	case session.ResultAborted:
		event = output.NewEvent(output.LevelWarn, output.EventJobFailed,
			fmt.Sprintf("Stopped following job %s; the server may still finish it", outcome.JobID))
	default:
		return
	}
	_ = s.emitter.Emit(event.WithJob(outcome.JobID).WithDetail("result", string(outcome.Result)))
}

// reportable marks errors whose message has already been shown as an event.
func reportable(err error) error {
	if err == nil {
		return nil
	}
	if session.IsErrorType(err, session.ErrUpload) || session.IsErrorType(err, session.ErrJobTerminal) {
		return &ExitError{Code: mapExitCode(err), Err: err, Reported: true}
	}
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: exitcode.Interrupted, Err: err, Reported: true}
	}
	return err
}
