package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

type sendResult struct {
	ID    string          `json:"id" yaml:"id"`
	State mailqueue.State `json:"state" yaml:"state"`
	Error string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func newSendCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "send <id>",
		Short: "Send a single queued mail through the real transport",
		Long: `Send claims one mail and hands it to the real transport. A mail that is
no longer in the queue was delivered by someone else and is reported as
already sent. A mail another consumer holds is left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			spool, err := app.spool(ctx)
			if err != nil {
				return err
			}

			res := sendResult{ID: args[0], State: mailqueue.StateAlreadySent}
			item, ok, err := spool.Queue().Get(ctx, args[0])
			if err != nil {
				return err
			}

			var sendErr error
			if ok {
				real, err := app.realTransport(ctx)
				if err != nil {
					return err
				}

				var sent bool
				sent, sendErr = spool.Dequeue(ctx, item, real)
				switch {
				case sendErr != nil:
					res.State = mailqueue.StateFailed
					res.Error = sendErr.Error()
				case sent:
					res.State = mailqueue.StateSent
				default:
					if res.State, err = currentState(cmd, spool, item.ID); err != nil {
						return err
					}
				}
			}

			if err := printSendResult(cmd, app.format, res); err != nil {
				return err
			}
			return sendErr
		},
	}
}

// currentState reports where a mail that could not be claimed is now.
func currentState(cmd *cobra.Command, spool mailqueue.QueueableTransport, id string) (mailqueue.State, error) {
	item, ok, err := spool.Queue().Get(cmd.Context(), id)
	if err != nil {
		return "", err
	}
	if !ok {
		return mailqueue.StateAlreadySent, nil
	}
	return item.State, nil
}

func printSendResult(cmd *cobra.Command, f Format, res sendResult) error {
	w := cmd.OutOrStdout()
	if f != FormatText {
		return encode(w, f, res)
	}

	var err error
	switch res.State {
	case mailqueue.StateSent:
		_, err = fmt.Fprintf(w, "%s Sent %s.\n", badge(res.State), res.ID)
	case mailqueue.StateAlreadySent:
		_, err = fmt.Fprintf(w, "%s Mail %s is not in queue, it was already sent.\n", badge(res.State), res.ID)
	case mailqueue.StateFailed:
		_, err = fmt.Fprintf(w, "%s Sending %s failed: %s\n", badge(res.State), res.ID, res.Error)
	default:
		_, err = fmt.Fprintf(w, "%s Mail %s is held by another consumer.\n", badge(res.State), res.ID)
	}
	return err
}
