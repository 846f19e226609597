package command

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

type flushResult struct {
	Sent      int    `json:"sent" yaml:"sent"`
	Remaining int    `json:"remaining" yaml:"remaining"`
	Result    string `json:"result,omitempty" yaml:"result,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newFlushCommand(app *App) *cobra.Command {
	var (
		limit     int
		timeLimit time.Duration
	)

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Send queued mails through the real transport",
		Long: `Flush delivers queued mails in queue order. Delivery stops at the first
transport error; the failing mail keeps its failure record and stays in the
queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("limit") && limit < 1 {
				return ErrInvalidLimit
			}

			spool, err := app.spool(ctx)
			if err != nil {
				return err
			}

			queued, err := spool.Queue().Count(ctx)
			if err != nil {
				return err
			}
			if queued == 0 {
				return printFlushResult(out, app.format, flushResult{Result: "No mails are currently in queue."})
			}

			real, err := app.realTransport(ctx)
			if err != nil {
				return err
			}

			var opts []mailqueue.FlushOption
			if limit > 0 {
				opts = append(opts, mailqueue.WithFlushMessageLimit(limit))
			}
			if timeLimit > 0 {
				opts = append(opts, mailqueue.WithFlushTimeLimit(timeLimit))
			}

			sent, flushErr := spool.FlushQueue(ctx, real, opts...)
			remaining, err := spool.Queue().Count(ctx)
			if err != nil {
				return err
			}

			res := flushResult{Sent: sent, Remaining: remaining}
			if flushErr != nil {
				res.Error = flushErr.Error()
			}
			if err := printFlushResult(out, app.format, res); err != nil {
				return err
			}
			return flushErr
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of mails to send")
	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "stop sending once this much time has passed")
	return cmd
}

func printFlushResult(w io.Writer, f Format, res flushResult) error {
	if f != FormatText {
		return encode(w, f, res)
	}

	switch {
	case res.Result != "":
		_, err := fmt.Fprintln(w, res.Result)
		return err
	case res.Remaining > 0:
		_, err := fmt.Fprintf(w, "Successfully sent %d %s, %d %s still enqueued.\n",
			res.Sent, plural(res.Sent, "mail", "mails"),
			res.Remaining, plural(res.Remaining, "mail is", "mails are"))
		return err
	default:
		_, err := fmt.Fprintf(w, "Successfully flushed mail queue (sent %d %s).\n",
			res.Sent, plural(res.Sent, "mail", "mails"))
		return err
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
