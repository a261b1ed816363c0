package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var debugMode bool

// rootCmd represents the base command for the newsletterpost application
var rootCmd = &cobra.Command{
	Use:   "newsletterpost",
	Short: "Turns the Top News of a newsletter into a LinkedIn post",
	Long: `newsletterpost watches a Gmail label for newsletters. For every new
newsletter it extracts the "Top News" article, rewrites it into a LinkedIn
post with an LLM and publishes the post together with the newsletter image.

It can run as:
  - A webhook server receiving Gmail Pub/Sub push notifications (default)
  - A one-shot CLI run against the newest newsletter`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "newsletterpost version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())
}
