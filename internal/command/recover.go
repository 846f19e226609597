package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

type recoverResult struct {
	Timeout   string `json:"timeout" yaml:"timeout"`
	Recovered int    `json:"recovered" yaml:"recovered"`
}

func newRecoverCommand(app *App) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Return stale in-flight mails to the queue",
		Long: `Recover re-queues mails that have been in flight for at least --timeout,
for example because the process sending them crashed. Their failure
records are cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			spool, err := app.spool(ctx)
			if err != nil {
				return err
			}
			recoverable, ok := spool.(mailqueue.RecoverableTransport)
			if !ok {
				return ErrNotRecoverable
			}

			if !cmd.Flags().Changed("timeout") {
				timeout = app.Config.Queue.RecoverTimeout
			}
			if timeout == 0 {
				timeout = mailqueue.DefaultRecoverTimeout
			}

			before, err := countInFlight(cmd, spool)
			if err != nil {
				return err
			}
			if err := recoverable.Recover(ctx, timeout); err != nil {
				return err
			}
			after, err := countInFlight(cmd, spool)
			if err != nil {
				return err
			}

			res := recoverResult{Timeout: timeout.String(), Recovered: max(before-after, 0)}
			if app.format != FormatText {
				return encode(cmd.OutOrStdout(), app.format, res)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Recovered %d %s in flight for at least %s.\n",
				res.Recovered, plural(res.Recovered, "mail", "mails"), res.Timeout)
			return err
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", mailqueue.DefaultRecoverTimeout, "minimum age of an in-flight mail")
	return cmd
}

func countInFlight(cmd *cobra.Command, spool mailqueue.QueueableTransport) (int, error) {
	items, err := spool.Queue().Items(cmd.Context())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range items {
		if item.State == mailqueue.StateSending || item.State == mailqueue.StateFailed {
			n++
		}
	}
	return n, nil
}
