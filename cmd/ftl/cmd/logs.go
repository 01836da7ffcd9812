package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/config"
	"github.com/vvennela/ftl/internal/orchestrator"
)

var (
	logsLimit int
	logsAll   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show session audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogs()
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "number of log entries to show")
	logsCmd.Flags().BoolVar(&logsAll, "all", false, "show logs for all projects")
}

func runLogs() error {
	path, err := orchestrator.DefaultAuditLogPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No logs yet. Run a task first.")
		return nil
	}

	var projectFilter string
	if !logsAll {
		if configPath, err := config.FindProjectConfig(""); err == nil && configPath != "" {
			projectFilter = projectDirOf(configPath)
		}
	}

	events, err := orchestrator.Tail(path, 0)
	if err != nil {
		return err
	}

	var filtered []orchestrator.AuditEvent
	for _, e := range events {
		if projectFilter != "" && e.ProjectPath != projectFilter {
			continue
		}
		filtered = append(filtered, e)
	}

	if len(filtered) == 0 {
		fmt.Println("No logs found.")
		return nil
	}
	if logsLimit > 0 && len(filtered) > logsLimit {
		filtered = filtered[len(filtered)-logsLimit:]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tPROJECT\tEXIT\tDETAIL")
	for _, e := range filtered {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.Timestamp.Local().Format("01-02 15:04"), e.Type, e.ProjectPath, e.ExitCode, e.Detail)
	}
	w.Flush()
	return nil
}
