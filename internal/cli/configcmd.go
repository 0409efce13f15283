package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/convertctl/internal/config"
	"github.com/MimeLyc/convertctl/internal/exitcode"
)

func newConfigCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(newConfigShowCommand(app))
	cmd.AddCommand(newConfigInitCommand(app))
	return cmd
}

func newConfigShowCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			if app.Opts.JSON {
				return writeJSON(app, cfg)
			}
			payload, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = app.IO.Out.Write(payload)
			return err
		},
	}
}

func newConfigInitCommand(app *AppContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the current settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.Opts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				userPath, err := config.UserConfigPath()
				if err != nil {
					return withExitCode(exitcode.InvalidConfig, err)
				}
				path = userPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("%s already exists (use --force to replace it)", path))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			// The file being created must not be read as an input.
			app.Opts.ConfigPath = ""
			cfg, err := loadConfig(app)
			if err != nil {
				return err
			}
			if err := config.WriteFile(path, cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			fmt.Fprintf(app.IO.Out, "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing file")
	return cmd
}
