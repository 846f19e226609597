package command

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// NewRootCommand builds the mailqueue command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	var (
		format   string
		envFiles []string
	)

	root := &cobra.Command{
		Use:   "mailqueue",
		Short: "Durable outbound mail queue",
		Long: `mailqueue spools outgoing mail and delivers it later through a real
transport (Postmark, an S3 pickup bucket or a local directory).

Queue backend, limits and delivery are configured through environment
variables, optionally read from .env files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			app.format = f

			if app.configured {
				return nil
			}
			if err := config.LoadEnv(envFiles...); err != nil {
				return err
			}
			var cfg Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			app.Config = cfg
			// stdout carries command output
			app.Logger = logger.New(append(logger.FromConfig(cfg.Log), logger.WithOutput(cmd.ErrOrStderr()))...)
			app.configured = true
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.Close()
		},
	}

	root.PersistentFlags().StringVarP(&format, "format", "o", string(FormatText), "output format: text, json or yaml")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "additional .env files to load")

	root.AddCommand(
		newListCommand(app),
		newFlushCommand(app),
		newRecoverCommand(app),
		newSendCommand(app),
		newDeleteCommand(app),
		newRunCommand(app),
	)
	return root
}

// Execute runs the command line with configuration read from the environment.
func Execute(ctx context.Context) error {
	app := &App{}
	defer app.Close()
	return NewRootCommand(app).ExecuteContext(ctx)
}
