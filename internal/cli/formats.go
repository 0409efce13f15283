package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/internal/output"
)

type formatsReport struct {
	File   string         `json:"file"`
	Advice formats.Advice `json:"advice"`
	// Allowed is only set when an action was requested.
	Allowed *bool `json:"allowed,omitempty"`
}

func newFormatsCommand(app *AppContext) *cobra.Command {
	var actionFlag string

	cmd := &cobra.Command{
		Use:   "formats <file>...",
		Short: "Show the conversion targets and compression support for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var action formats.Action
			if actionFlag != "" {
				parsed, err := formats.ParseAction(actionFlag)
				if err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
				action = parsed
			}

			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			advisor := newAdvisor(cfg)
			styler := newStyler(app)

			blocked := 0
			for _, name := range args {
				advice := advisor.AdviseFile(name)
				report := formatsReport{File: name, Advice: advice}
				if action != "" {
					allowed := advice.Allows(action)
					report.Allowed = &allowed
					if !allowed {
						blocked++
					}
				}

				if app.Opts.JSON {
					if err := writeJSON(app, report); err != nil {
						return err
					}
					continue
				}
				printAdvice(app, styler, report)
			}

			if blocked > 0 {
				err := fmt.Errorf("%d of %d files cannot be submitted for %s", blocked, len(args), action)
				if blocked == len(args) {
					return withExitCode(exitcode.InvalidUsage, err)
				}
				return withExitCode(exitcode.PartialSuccess, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&actionFlag, "action", "a", "", "Check a single action (compress or convert)")
	return cmd
}

func printAdvice(app *AppContext, styler output.Styler, report formatsReport) {
	advice := report.Advice
	ext := advice.Extension
	if ext == "" {
		ext = "none"
	}

	fmt.Fprintf(app.IO.Out, "%s (.%s, %s)\n", styler.Title(filepath.Base(report.File)), ext, advice.Category)
	fmt.Fprintf(app.IO.Out, "  convert:  %s\n", styler.Targets(advice.Labels()))
	fmt.Fprintf(app.IO.Out, "            %s\n", styler.Hint(advice.ConvertHint))

	compress := "no"
	if advice.CompressSupported {
		compress = "yes"
	}
	fmt.Fprintf(app.IO.Out, "  compress: %s\n", compress)
	fmt.Fprintf(app.IO.Out, "            %s\n", styler.Hint(advice.CompressHint))
}
