package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/config"
	"github.com/vvennela/ftl/internal/credentials"
	"github.com/vvennela/ftl/internal/sandbox"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "One-command setup: choose agent + tester model, pull sandbox image, save API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup()
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

type agentChoice struct {
	num   string
	label string
	key   string
}

var agentChoices = []agentChoice{
	{"1", "Claude Code  (Anthropic, recommended)", "claude-code"},
	{"2", "Codex        (OpenAI)", "codex"},
	{"3", "Aider        (open-source)", "aider"},
	{"4", "Kiro         (AWS)", "kiro"},
}

type testerChoice struct {
	num   string
	label string
	model string
}

var testerChoices = []testerChoice{
	{"1", "Anthropic API — claude-haiku  (uses ANTHROPIC_API_KEY)", "claude-haiku-4-5-20251001"},
	{"2", "AWS Bedrock   — claude-sonnet (uses AWS credentials)", "bedrock/us.anthropic.claude-sonnet-4-6"},
	{"3", "Skip test generation", ""},
}

func runSetup() error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Checking Docker...")
	docker, err := sandbox.NewClient()
	if err != nil {
		fmt.Println("Docker not found. Install Docker Desktop and try again.")
		fmt.Println("  https://docs.docker.com/get-docker/")
		os.Exit(1)
	}
	if !dockerDaemonUp(ctx, docker) {
		fmt.Println("Docker is installed but not running. Start Docker Desktop and try again.")
		os.Exit(1)
	}
	fmt.Println("  Docker is running.")

	fmt.Println()
	imageExists := docker.ImageExists(ctx)

	var chosenAgent string
	reconfigure := true
	if imageExists {
		reconfigure = promptYesNo(reader, "  ftl-sandbox image already exists. Reconfigure?", false)
	}

	if !reconfigure {
		fmt.Println("  Skipping image setup.")
	} else {
		fmt.Println()
		fmt.Println("Which agent do you want to use?")
		for _, c := range agentChoices {
			fmt.Printf("  %s. %s\n", c.num, c.label)
		}
		fmt.Println()
		choice := promptString(reader, "  Choice", "1")
		chosenAgent = matchAgent(choice).key

		fmt.Println()
		fmt.Printf("  Pulling ftl-sandbox image for %s...\n", chosenAgent)
		if err := docker.PullOrBuildImage(ctx, dockerfilePathForAgent(chosenAgent)); err != nil {
			fmt.Printf("  Image setup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("  Ready.")
		if err := config.SaveGlobal(map[string]any{"agent": chosenAgent}); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println("Which model for test generation?")
	for _, c := range testerChoices {
		fmt.Printf("  %s. %s\n", c.num, c.label)
	}
	fmt.Println()
	testerChoiceInput := promptString(reader, "  Choice", "1")
	tester := matchTester(testerChoiceInput)
	if err := config.SaveGlobal(map[string]any{"tester": tester.model}); err != nil {
		return err
	}
	fmt.Printf("  Tester: %s\n", tester.label)

	if chosenAgent == "kiro" {
		fmt.Println()
		fmt.Println("Kiro authentication")
		fmt.Println("  Kiro uses browser-based login. After your first `ftl code` run,")
		fmt.Println("  authenticate with:")
		fmt.Println("  docker exec -it $(docker ps -qf ancestor=ftl-sandbox:latest) kiro-cli login")
		fmt.Println("  Credentials persist in the container until it is removed.")
	}

	fmt.Println()
	if apiKeyConfigured() {
		fmt.Println("  ANTHROPIC_API_KEY already configured.")
	} else {
		fmt.Println("Anthropic API key")
		fmt.Println("  Get one at https://console.anthropic.com")
		key := promptString(reader, "  ANTHROPIC_API_KEY", "")
		if key != "" {
			if err := credentials.SaveFTLCredential("ANTHROPIC_API_KEY", key); err != nil {
				return err
			}
			fmt.Println("  Saved to ~/.ftl/credentials")
		} else {
			fmt.Println("  Skipped. Set later: ftl auth ANTHROPIC_API_KEY sk-ant-...")
		}
	}

	fmt.Println()
	fmt.Println("Setup complete.")
	fmt.Println("  Next: cd your-project && ftl init && ftl code 'your task'")
	return nil
}

func dockerDaemonUp(ctx context.Context, c *sandbox.Client) bool {
	result, err := c.Run(ctx, "info")
	return err == nil && result.ExitCode == 0
}

func matchAgent(choice string) agentChoice {
	for _, c := range agentChoices {
		if c.num == choice {
			return c
		}
	}
	return agentChoices[0]
}

func matchTester(choice string) testerChoice {
	for _, c := range testerChoices {
		if c.num == choice {
			return c
		}
	}
	return testerChoices[0]
}

// dockerfilePathForAgent returns "" for claude-code, which ships in the
// base sandbox image; other agents layer onto it when a local build is
// needed (registry pulls satisfy most installs without this).
func dockerfilePathForAgent(agent string) string {
	if agent == "claude-code" {
		return ""
	}
	path, err := os.Executable()
	if err != nil {
		return ""
	}
	return path + ".dockerfile." + agent
}

func apiKeyConfigured() bool {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return true
	}
	creds, err := credentials.LoadFTLCredentials()
	if err != nil {
		return false
	}
	return creds["ANTHROPIC_API_KEY"] != ""
}

func promptString(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func promptYesNo(reader *bufio.Reader, label string, def bool) bool {
	suffix := "y/N"
	if def {
		suffix = "Y/n"
	}
	fmt.Printf("%s (%s) ", label, suffix)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return def
	}
	return line == "y" || line == "yes"
}
