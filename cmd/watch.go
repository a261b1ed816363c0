package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var stop bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Register the Gmail watch on the newsletter label",
		Long: `Ask Gmail to publish a Pub/Sub notification to GMAIL_TOPIC_NAME
whenever a message with TARGET_LABEL_NAME arrives. Gmail expires watches
after seven days; the serve command renews them automatically.

With --stop all push notifications for the mailbox are stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.cfg.ValidateMailbox(); err != nil {
				return err
			}
			if err := a.withGmail(ctx); err != nil {
				return err
			}

			if stop {
				if err := a.gmail.StopWatch(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Gmail watch stopped")
				return nil
			}

			if err := a.cfg.ValidateWatch(); err != nil {
				return err
			}
			labelID, err := a.gmail.LabelID(ctx, a.cfg.LabelName)
			if err != nil {
				return err
			}
			res, err := a.gmail.Watch(ctx, labelID, a.cfg.TopicFullName())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching label %q (%s) on %s\n", a.cfg.LabelName, labelID, a.cfg.TopicFullName())
			fmt.Fprintf(out, "History ID: %d\n", res.HistoryID)
			fmt.Fprintf(out, "Expires:    %s\n", res.Expiration.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&stop, "stop", false, "Stop push notifications instead of registering them")

	return cmd
}
