package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/awsprovision"
	"github.com/vvennela/ftl/internal/config"
)

var configAWS bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure FTL settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !configAWS {
			fmt.Println("Usage: ftl config --aws")
			return nil
		}
		return configureAWS()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configAWS, "aws", false, "configure FTL to use AWS for snapshots, tracing, secrets, and guardrails")
}

// configureAWS provisions the project's S3 snapshot bucket, CloudWatch log
// group, and Bedrock guardrail, then records them in .ftlconfig.
func configureAWS() error {
	ctx := context.Background()

	fmt.Println("Configuring FTL for AWS...")
	identity, err := awsprovision.DiscoverIdentity(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Account: %s  Region: %s\n", identity.AccountID, identity.Region)

	configPath, err := config.FindProjectConfig("")
	if err != nil {
		return err
	}
	if configPath == "" {
		fmt.Println("No .ftlconfig found. Run 'ftl init' first.")
		os.Exit(1)
	}
	projectName := filepath.Base(filepath.Dir(configPath))

	bucket := fmt.Sprintf("ftl-%s-%s", identity.AccountID, identity.Region)
	fmt.Printf("  S3 bucket: %s\n", bucket)
	if err := awsprovision.EnsureBucket(ctx, identity.Region, bucket); err != nil {
		fmt.Printf("    Warning: %v\n", err)
	} else {
		fmt.Println("    Ready.")
	}

	logGroup := fmt.Sprintf("/ftl/%s", projectName)
	fmt.Printf("  CloudWatch log group: %s\n", logGroup)
	if err := awsprovision.EnsureLogGroup(ctx, identity.Region, logGroup); err != nil {
		fmt.Printf("    Warning: %v\n", err)
	} else {
		fmt.Println("    Ready.")
	}

	guardrailName := fmt.Sprintf("ftl-%s", projectName)
	fmt.Printf("  Bedrock Guardrail: %s\n", guardrailName)
	guardrail, err := awsprovision.EnsureGuardrail(ctx, identity.Region, guardrailName)
	if err != nil {
		fmt.Printf("    Warning: %v\n", err)
	} else {
		fmt.Printf("    Ready (id=%s, version=%s).\n", guardrail.ID, guardrail.Version)
	}

	fmt.Print("  Secrets Manager prefix (leave blank to skip): ")
	reader := bufio.NewReader(os.Stdin)
	prefix, _ := reader.ReadString('\n')
	prefix = strings.TrimSpace(prefix)

	updates := map[string]any{
		"snapshot_backend":    "s3",
		"s3_bucket":           bucket,
		"cloudwatch_log_group": logGroup,
	}
	if guardrail.ID != "" {
		updates["guardrail_id"] = guardrail.ID
		updates["guardrail_version"] = guardrail.Version
		updates["guardrail_region"] = identity.Region
	}
	if prefix != "" {
		updates["secrets_manager_prefix"] = prefix
	}

	if err := config.UpdateProjectConfig(configPath, updates); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Done. .ftlconfig updated.")
	fmt.Printf("  %s\n", configPath)
	return nil
}
