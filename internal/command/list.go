package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

const defaultWatchInterval = 5 * time.Second

func newListCommand(app *App) *cobra.Command {
	var (
		strict   bool
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all mails in the queue",
		Long: `List prints every queued, in-flight and failed mail with its state,
date, subject and recipients.

Use --strict in health checks: the command fails when any mail is in the
failed state. Use --watch to refresh the list until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			spool, err := app.spool(ctx)
			if err != nil {
				return err
			}

			if watch {
				return watchQueue(ctx, cmd.OutOrStdout(), app.format, spool.Queue(), interval)
			}

			items, err := spool.Queue().Items(ctx)
			if err != nil {
				return err
			}
			hasFailures, err := renderQueue(cmd.OutOrStdout(), app.format, items)
			if err != nil {
				return err
			}
			if strict && hasFailures {
				return ErrFailuresInQueue
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&strict, "strict", "s", false, "exit with a failure status when any mail failed")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh the list until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "refresh interval for --watch")
	return cmd
}

// watchQueue re-renders the queue every interval until ctx is done.
func watchQueue(ctx context.Context, w io.Writer, f Format, q *mailqueue.Queue, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		items, err := q.Items(ctx)
		if err != nil {
			return err
		}
		if _, err := renderQueue(w, f, items); err != nil {
			return err
		}
		if f == FormatText {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("List is refreshed every %s. Exit with Ctrl+C.", interval)))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
