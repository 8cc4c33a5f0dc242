// Package cli implements the zmail command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// configPath is the --config persistent flag value.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "zmail",
	Short: "zmail - LLM-powered inbox triage",
	Long: `zmail processes a bounded batch of unread email once per invocation:
it fetches candidates from the configured mail provider, classifies each
message against an ordered rule set using a language model, and executes
one terminal action per message (reply, skip, forward, label). Processed
messages are marked provider-side so repeated runs never touch them twice.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zmail %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(),
		"path to the configuration file",
	)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
