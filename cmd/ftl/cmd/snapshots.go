package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vvennela/ftl/internal/config"
	"github.com/vvennela/ftl/internal/snapshot"
)

var snapshotsAll bool

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List and manage project snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshotsList()
	},
}

var (
	cleanLastN       int
	cleanAll         bool
	cleanProjectOnly bool
	cleanYes         bool
)

var snapshotsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete snapshots",
	Long:  `Delete snapshots. Use --last N or --all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshotsClean()
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsCleanCmd)
	snapshotsCmd.Flags().BoolVar(&snapshotsAll, "all", false, "show snapshots for all projects")

	snapshotsCleanCmd.Flags().IntVar(&cleanLastN, "last", 0, "delete the N most recent snapshots")
	snapshotsCleanCmd.Flags().BoolVar(&cleanAll, "all", false, "delete all snapshots")
	snapshotsCleanCmd.Flags().BoolVar(&cleanProjectOnly, "project-only", false, "limit to snapshots from the current project")
	snapshotsCleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "skip confirmation prompt")
}

// openSnapshotStore builds a snapshot store from the project config if
// one is found, or local defaults otherwise — `ftl snapshots` works even
// outside a configured project as long as --all is given.
func openSnapshotStore() (snapshot.Store, string, error) {
	home, err := ftlHome()
	if err != nil {
		return nil, "", err
	}

	configPath, err := config.FindProjectConfig("")
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}

	store, err := buildSnapshotStore(cfg, home)
	if err != nil {
		return nil, "", err
	}
	return store, configPath, nil
}

func sortedSnapshots(store snapshot.Store, projectFilter string) ([]snapshot.Info, error) {
	snaps, err := store.List(projectFilter)
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.Before(snaps[j].CreatedAt) })
	return snaps, nil
}

func runSnapshotsList() error {
	store, configPath, err := openSnapshotStore()
	if err != nil {
		return err
	}

	if !snapshotsAll && configPath == "" {
		fmt.Println("No .ftlconfig found. Use --all or run 'ftl init'.")
		os.Exit(1)
	}

	projectFilter := ""
	if !snapshotsAll && configPath != "" {
		projectFilter = projectDirOf(configPath)
	}

	snaps, err := sortedSnapshots(store, projectFilter)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tCREATED")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.ProjectPath, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func runSnapshotsClean() error {
	if cleanLastN == 0 && !cleanAll {
		fmt.Println("Specify --last N or --all.")
		os.Exit(1)
	}

	store, configPath, err := openSnapshotStore()
	if err != nil {
		return err
	}

	projectFilter := ""
	if cleanProjectOnly && configPath != "" {
		projectFilter = projectDirOf(configPath)
	}

	all, err := sortedSnapshots(store, projectFilter)
	if err != nil {
		return err
	}

	var targets []snapshot.Info
	if cleanAll {
		targets = all
	} else if cleanLastN > 0 && cleanLastN < len(all) {
		targets = all[len(all)-cleanLastN:]
	} else {
		targets = all
	}

	if len(targets) == 0 {
		fmt.Println("No snapshots to delete.")
		return nil
	}

	fmt.Printf("About to delete %d snapshot(s):\n", len(targets))
	for _, s := range targets {
		fmt.Printf("  %s  %s  %s\n", s.ID, s.ProjectPath, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	if !cleanYes {
		fmt.Print("\nDelete these snapshots? (y/n) > ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		confirm := strings.ToLower(strings.TrimSpace(line))
		if confirm != "y" && confirm != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	for _, s := range targets {
		if err := store.Delete(s.ID); err != nil {
			fmt.Printf("  Failed to delete %s: %v\n", s.ID, err)
			continue
		}
		fmt.Printf("  Deleted %s\n", s.ID)
	}
	fmt.Printf("Done. %d snapshot(s) removed.\n", len(targets))
	return nil
}
