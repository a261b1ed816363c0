package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/newsletterpost/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the newest newsletter once",
		Long: `Run the pipeline once against the newest message with the configured
label: extract the Top News, generate the post and publish it to LinkedIn.

With --dry-run the post is generated and printed but not published, and the
processed-message ledger is neither read nor written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if dryRun {
				a.cfg.DryRun = true
			}
			if err := a.withPipeline(ctx); err != nil {
				return err
			}

			trig := pipeline.Trigger{Source: "cli", Force: force}
			var res *pipeline.Result
			if a.cfg.DryRun {
				res, err = a.pipeline.DryRun(ctx, trig)
			} else {
				res, err = a.pipeline.Run(ctx, trig)
			}
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate and print the post without publishing it")
	cmd.Flags().BoolVar(&force, "force", false, "Process the message even if it was already handled")

	return cmd
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Run:     %s\n", res.RunID)
	if res.MessageID != "" {
		fmt.Fprintf(w, "Message: %s\n", res.MessageID)
	}
	if res.Title != "" {
		fmt.Fprintf(w, "Title:   %s\n", res.Title)
	}
	if res.ArticleURL != "" {
		fmt.Fprintf(w, "Article: %s\n", res.ArticleURL)
	}
	if res.ImageURL != "" {
		fmt.Fprintf(w, "Image:   %s\n", res.ImageURL)
	}
	fmt.Fprintf(w, "Status:  %s\n", res.Status)
	if res.Reason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", res.Reason)
	}
	if res.PostID != "" {
		fmt.Fprintf(w, "Post ID: %s\n", res.PostID)
	}
	if res.Post != "" {
		fmt.Fprintf(w, "\n%s\n", res.Post)
	}
}
