// Package cli implements the impromptu command line: serve, chat and version.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and the metrics resource.
func SetVersion(v string) {
	version = v
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "impromptu",
		Short: "Turns one natural-language request into a calendar event",
		Long: `impromptu is a calendar assistant. A language model plans the request,
asks the server for the current time and creates the event in Google Calendar
(or an ICS directory) without a back-and-forth with the user.

It can run as:
  - An HTTP service exposing POST /api/chat (serve)
  - A one-shot command printing the event list as JSON (chat)`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "impromptu version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
