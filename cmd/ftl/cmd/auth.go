package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/credentials"
)

var authCmd = &cobra.Command{
	Use:   "auth KEY VALUE",
	Short: "Save an FTL credential",
	Long: `Stores KEY=VALUE in ~/.ftl/credentials, used to authenticate FTL's own
infrastructure (the coding agent's vendor CLI, the tester model, Bedrock
guardrails) — not the project's own shadowed secrets, which live in .env.

Examples:
  ftl auth ANTHROPIC_API_KEY sk-ant-...
  ftl auth AWS_BEARER_TOKEN_BEDROCK ABSK...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := credentials.SaveFTLCredential(key, value); err != nil {
			return err
		}
		fmt.Printf("Saved %s to ~/.ftl/credentials\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
