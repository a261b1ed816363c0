// Package cmd implements the command-line interface for newsletterpost.
//
// This package provides the following commands:
//   - serve: Start the webhook server that receives Gmail push notifications
//   - run: Process the newest newsletter once, optionally as a dry run
//   - watch: Register (or stop) the Gmail watch on the newsletter label
//   - auth: Authorize Gmail access and store the token file
//   - history: List processed newsletter messages
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
