package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

type deleteResult struct {
	ID      string `json:"id" yaml:"id"`
	Deleted bool   `json:"deleted" yaml:"deleted"`
}

func newDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a mail from the queue without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			spool, err := app.spool(ctx)
			if err != nil {
				return err
			}

			res := deleteResult{ID: args[0]}
			item, ok, err := spool.Queue().Get(ctx, args[0])
			if err != nil {
				return err
			}
			if ok {
				if res.Deleted, err = spool.Delete(ctx, item); err != nil {
					return err
				}
			}

			if app.format != FormatText {
				return encode(cmd.OutOrStdout(), app.format, res)
			}
			if res.Deleted {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", res.ID)
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Mail %s is not in queue.\n", res.ID)
			}
			return err
		},
	}
}
