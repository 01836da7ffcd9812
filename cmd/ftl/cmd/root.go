// Package cmd implements the ftl command-line tool: project setup,
// credential storage, running a coding task in a sandbox, and the
// interactive review shell.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/credentials"
)

var rootCmd = &cobra.Command{
	Use:   "ftl",
	Short: "FTL: zero-trust control plane for AI coding agents",
	Long: `FTL runs AI coding agents inside an isolated sandbox, proxying their
network access so they never see your real API keys, and presents their
changes as a reviewable diff before anything touches your project.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := credentials.LoadFTLCredentials()
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
