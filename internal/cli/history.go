package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/internal/persistence"
)

func newHistoryCommand(app *AppContext) *cobra.Command {
	var filter persistence.HistoryFilter
	var status string
	var stats bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				filter.Status = jobs.Status(strings.ToLower(status))
				switch filter.Status {
				case jobs.StatusPending, jobs.StatusRunning, jobs.StatusSuccess, jobs.StatusFailed, jobs.StatusSkipped:
				default:
					return withExitCode(exitcode.InvalidUsage, fmt.Errorf("unknown status %q", status))
				}
			}
			if filter.Action != "" {
				if _, err := formats.ParseAction(filter.Action); err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
			}

			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return withExitCode(exitcode.InvalidConfig, fmt.Errorf("history is disabled"))
			}
			history, _, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer history.Close()

			ctx := context.Background()
			if stats {
				counts, err := history.CountByStatus(ctx)
				if err != nil {
					return err
				}
				return printHistoryStats(app, counts)
			}

			submissions, err := history.ListRecent(ctx, filter)
			if err != nil {
				return err
			}
			if app.Opts.JSON {
				for _, job := range submissions {
					if err := writeJSON(app, job); err != nil {
						return err
					}
				}
				return nil
			}
			printHistory(app, submissions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of submissions to show")
	cmd.Flags().StringVar(&status, "status", "", "Only show submissions with this status")
	cmd.Flags().StringVar(&filter.Action, "action", "", "Only show compress or convert submissions")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show counts per status instead")
	return cmd
}

func printHistory(app *AppContext, submissions []*jobs.SubmissionJob) {
	if len(submissions) == 0 {
		fmt.Fprintln(app.IO.Out, "no submissions recorded")
		return
	}

	rows := make([][]string, 0, len(submissions))
	for _, job := range submissions {
		action := job.Payload.Action
		if job.Payload.ToFormat != "" {
			action += " -> " + formats.Label(job.Payload.ToFormat)
		}
		result := job.OutputPath
		if job.Error != "" {
			result = job.Error
		}
		rows = append(rows, []string{
			job.ID,
			humanize.Time(job.CreatedAt),
			filepath.Base(job.Payload.FilePath),
			action,
			string(job.Status),
			job.RemoteJobID,
			result,
		})
	}

	styler := newStyler(app)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "WHEN", "FILE", "ACTION", "STATUS", "JOB", "RESULT").
		Rows(rows...)
	fmt.Fprintln(app.IO.Out, styler.Table(t))
}

func printHistoryStats(app *AppContext, counts map[jobs.Status]int) error {
	if app.Opts.JSON {
		return writeJSON(app, counts)
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(app.IO.Out, "%-8s %s\n", status, humanize.Comma(int64(counts[jobs.Status(status)])))
	}
	return nil
}
