package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/convertctl/internal/exitcode"
)

func Execute(build BuildInfo, streams IOStreams) int {
	if wd, err := os.Getwd(); err == nil {
		if envErr := loadDotEnvFiles(wd); envErr != nil {
			fmt.Fprintln(streams.ErrOut, "WARN:", envErr)
		}
	}

	return execute(&AppContext{Build: build, IO: streams}, nil)
}

// execute runs the command tree with args, or os.Args when args is nil.
func execute(app *AppContext, args []string) int {
	defer app.closeLog()

	root := newRootCommand(app)
	if args != nil {
		root.SetArgs(args)
	}

	if err := root.Execute(); err != nil {
		if !isReported(err) {
			message, hint := describeError(err)
			fmt.Fprintln(app.IO.ErrOut, "ERROR:", message)
			if hint != "" {
				fmt.Fprintln(app.IO.ErrOut, "HINT:", hint)
			}
		}
		return mapExitCode(err)
	}
	return exitcode.Success
}

func newRootCommand(app *AppContext) *cobra.Command {
	showVersion := false

	root := &cobra.Command{
		Use:   "convertctl",
		Short: "Compress and convert files with a conversion server",
		Long: "convertctl uploads files to a compression/conversion backend, follows the job " +
			"until it finishes and fetches the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(app)
				return nil
			}
			return cmd.Help()
		},
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.SetOut(app.IO.Out)
	root.SetErr(app.IO.ErrOut)

	defaultConfigPath := os.Getenv("CONVERTCTL_CONFIG")
	root.PersistentFlags().StringVarP(&app.Opts.ConfigPath, "config", "c", defaultConfigPath, "Path to config file")
	root.PersistentFlags().StringVarP(&app.Opts.ServerURL, "server", "s", "", "Backend base URL")
	root.PersistentFlags().StringVar(&app.Opts.Lang, "lang", "", "Hint language (en, id)")
	root.PersistentFlags().BoolVar(&app.Opts.JSON, "json", false, "Emit newline-delimited JSON events")
	root.PersistentFlags().BoolVarP(&app.Opts.Quiet, "quiet", "q", false, "Reduce output to errors and results")
	root.PersistentFlags().BoolVarP(&app.Opts.Verbose, "verbose", "v", false, "Increase diagnostic output")
	root.PersistentFlags().BoolVar(&app.Opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().StringVar(&app.Opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&app.Opts.LogFile, "log-file", "", "Append logs to this file instead of stderr")
	root.Flags().BoolVar(&showVersion, "version", false, "Print version info")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitcode.InvalidUsage, err)
	})

	root.AddCommand(newFormatsCommand(app))
	root.AddCommand(newSubmitCommand(app, submitCompress))
	root.AddCommand(newSubmitCommand(app, submitConvert))
	root.AddCommand(newStatusCommand(app))
	root.AddCommand(newDownloadCommand(app))
	root.AddCommand(newHealthCommand(app))
	root.AddCommand(newHistoryCommand(app))
	root.AddCommand(newWatchCommand(app))
	root.AddCommand(newConfigCommand(app))
	root.AddCommand(newVersionCommand(app))

	return root
}

func printVersion(app *AppContext) {
	version := app.Build.Version
	if version == "" {
		version = "dev"
	}
	commit := app.Build.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := app.Build.Date
	if date == "" {
		date = "unknown"
	}

	fmt.Fprintf(app.IO.Out, "convertctl version %s\ncommit: %s\nbuild_date: %s\n", version, commit, date)
}
