package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/newsletterpost/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List processed newsletter messages",
		Long: `List the newest entries of the processed-message ledger. Only the
sqlite store persists across runs; with STORE_TYPE=memory the list is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			st, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			a.store = st

			records, err := st.List(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")

	return cmd
}

func printRecords(w io.Writer, records []store.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No processed messages")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROCESSED\tMESSAGE\tSTATUS\tPOST\tDETAIL")
	for _, rec := range records {
		detail := rec.ArticleURL
		if rec.Error != "" {
			detail = rec.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.ProcessedAt.Local().Format(time.DateTime),
			rec.MessageID,
			rec.Status,
			rec.PostID,
			detail,
		)
	}
	return tw.Flush()
}
