package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/config"
	"github.com/vvennela/ftl/internal/orchestrator"
)

var codeCmd = &cobra.Command{
	Use:   "code TASK",
	Short: "Run a coding task in an isolated sandbox",
	Long:  `Example: ftl code "add input validation to the signup form"`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := args[0]

		projectPath, err := config.FindProjectConfig("")
		if err != nil {
			return err
		}
		if projectPath == "" {
			fmt.Println("No .ftlconfig found. Run 'ftl init' first.")
			os.Exit(1)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		env, err := newSessionEnv(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		session, err := orchestrator.New(env.newOrchestratorConfig(cfg, projectDirOf(projectPath)))
		if err != nil {
			return err
		}

		ctx := context.Background()
		result, err := session.Start(ctx, task)
		if err != nil {
			return err
		}
		fmt.Printf("Agent exited with code %d\n", result.AgentExit)
		if result.RanTester {
			fmt.Printf("Tester exited with code %d\n", result.TesterExit)
		}

		return runReviewLoop(ctx, session)
	},
}

func init() {
	rootCmd.AddCommand(codeCmd)
}
