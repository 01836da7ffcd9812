package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/config"
)

var (
	initAgent  string
	initTester string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize FTL in the current project",
	Long:  `Creates .ftlconfig in the current directory with the agent and tester defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if existing, err := config.FindProjectConfig(""); err == nil && existing != "" {
			fmt.Println(".ftlconfig already exists.")
			return nil
		}
		path, err := config.Init("", initAgent, initTester)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initAgent, "agent", "", "agent to use (default: global config or claude-code)")
	initCmd.Flags().StringVar(&initTester, "tester", "", "tester model to use (default: global config)")
}
