package command

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep flushing the queue until interrupted",
		Long: `Run starts a worker that flushes the queue every MAILQUEUE_FLUSH_INTERVAL
and, for backends that support it, recovers stale in-flight mails every
MAILQUEUE_RECOVER_INTERVAL. It stops on SIGINT or SIGTERM after the
mail being sent, if any, has been handed over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			spool, err := app.spool(ctx)
			if err != nil {
				return err
			}
			real, err := app.realTransport(ctx)
			if err != nil {
				return err
			}

			opts := append(app.Config.Queue.WorkerOptions(), mailqueue.WithWorkerLogger(app.log()))
			if app.healthcheck != nil {
				opts = append(opts, mailqueue.WithHealthcheck(app.healthcheck))
			}
			worker, err := mailqueue.NewWorker(spool, real, opts...)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(worker.Run(ctx))
			if err := g.Wait(); err != nil {
				return err
			}

			app.log().Info("shutdown complete", slog.Int64("sent", worker.Sent()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sent %d %s.\n", worker.Sent(), plural(int(worker.Sent()), "mail", "mails"))
			return err
		},
	}
}
