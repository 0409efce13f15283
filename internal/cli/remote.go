package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/convertctl/internal/download"
	"github.com/MimeLyc/convertctl/internal/output"
	"github.com/MimeLyc/convertctl/internal/persistence"
	"github.com/MimeLyc/convertctl/internal/session"
	"github.com/MimeLyc/convertctl/pkg/log"
)

type statusReport struct {
	JobID    string   `json:"job_id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
}

func newStatusCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show the backend status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			state, err := client.JobStatus(ctx, args[0])
			if err != nil {
				return err
			}
			if app.Opts.JSON {
				return writeJSON(app, statusReport{JobID: args[0], Status: state.Status, Progress: state.Progress})
			}

			fmt.Fprintf(app.IO.Out, "job:      %s\n", args[0])
			fmt.Fprintf(app.IO.Out, "status:   %s\n", state.Status)
			if state.Progress != nil {
				_, percent := session.Display(*state.Progress)
				fmt.Fprintf(app.IO.Out, "progress: %d%%\n", percent)
			}
			return nil
		},
	}
}

func newDownloadCommand(app *AppContext) *cobra.Command {
	var results resultOptions

	cmd := &cobra.Command{
		Use:   "download <job_id>",
		Short: "Fetch the result of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			results = resultsFromConfig(cmd, cfg, results)
			jobID := args[0]

			ctx, stop := signalContext()
			defer stop()

			if results.open {
				return download.NewBrowser().Navigate(ctx, jobID, client.DownloadURL(jobID))
			}

			history, _, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if history != nil {
				defer history.Close()
			}

			saver := download.NewSaver(client, results.outDir)
			if history != nil {
				if job, ok, err := history.FindByRemoteID(ctx, jobID); err == nil && ok {
					saver.Expect(job.Payload.FilePath, job.Payload.ToFormat)
				}
			}

			saved, err := saver.Save(ctx, jobID)
			if err != nil {
				return err
			}
			recordDownload(ctx, history, saved)

			return newEmitter(app).Emit(output.NewEvent(output.LevelInfo, output.EventDownloadSaved,
				fmt.Sprintf("Saved %s", saved.Path)).
				WithJob(jobID).
				WithDetail("path", saved.Path).
				WithDetail("bytes", saved.Bytes))
		},
	}

	addResultFlags(cmd, &results)
	return cmd
}

// recordDownload stores the output path on the submission that created jobID.
func recordDownload(ctx context.Context, history *persistence.SQLiteStore, saved download.Saved) {
	if history == nil {
		return
	}
	job, ok, err := history.FindByRemoteID(ctx, saved.JobID)
	if err != nil || !ok {
		return
	}
	job.OutputPath = saved.Path
	if err := history.UpsertJob(ctx, job); err != nil {
		log.Warn("Failed to record download of job %s: %v", saved.JobID, err)
	}
}

func newHealthCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			if err := client.Health(ctx); err != nil {
				return err
			}
			if app.Opts.JSON {
				return writeJSON(app, map[string]string{"server": client.BaseURL(), "status": "ok"})
			}
			fmt.Fprintf(app.IO.Out, "%s: ok\n", client.BaseURL())
			return nil
		},
	}
}
