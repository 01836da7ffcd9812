package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvennela/ftl/internal/config"
	"github.com/vvennela/ftl/internal/diffengine"
	"github.com/vvennela/ftl/internal/orchestrator"
)

func projectDirOf(configPath string) string {
	return filepath.Dir(configPath)
}

// runShell is the no-verb interactive FTL shell: type a task to start a
// session, then test/diff/merge/reject it before typing the next one.
func runShell() error {
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

	fmt.Println("FTL Shell")
	fmt.Printf("Agent: %s | Tester: %s\n", cfg.Agent, cfg.Tester)
	fmt.Println("Type a task to start. Commands: test, diff, merge, reject, list, restore <id>, exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	var session *orchestrator.Session

	prompt := func() string {
		if session != nil && session.State() == orchestrator.StateReviewing {
			return "ftl[active]> "
		}
		return "ftl> "
	}

	for {
		fmt.Print(prompt())
		if !scanner.Scan() {
			if session != nil && session.State() == orchestrator.StateReviewing {
				session.Reject(ctx)
			}
			fmt.Println("\nGoodbye.")
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			if session != nil && session.State() == orchestrator.StateReviewing {
				session.Reject(ctx)
			}
			fmt.Println("Goodbye.")
			return nil
		}

		if handled, err := handleSnapshotCommand(input, env, projectPath); handled {
			if err != nil {
				fmt.Println(err)
			}
			continue
		}

		if session != nil && session.State() == orchestrator.StateReviewing {
			if done, err := handleReviewCommand(ctx, session, input); done {
				if err != nil {
					fmt.Println(err)
				}
				if err == nil {
					session = nil
				}
				continue
			} else if err != nil {
				fmt.Println(err)
				continue
			}
		}

		// Anything else is a task: start a new session, or follow up on an
		// active one.
		oc := env.newOrchestratorConfig(cfg, projectDirOf(projectPath))
		if session == nil {
			session, err = orchestrator.New(oc)
			if err != nil {
				fmt.Println(err)
				continue
			}
			result, err := session.Start(ctx, input)
			if err != nil {
				fmt.Println(err)
				session = nil
				continue
			}
			printTurnResult(result)
		} else {
			result, err := session.Followup(ctx, input)
			if err != nil {
				fmt.Println(err)
				continue
			}
			printTurnResult(result)
		}
	}
}

func printTurnResult(result *orchestrator.TurnResult) {
	fmt.Printf("Agent exited with code %d\n", result.AgentExit)
	if result.RanTester {
		fmt.Printf("Tester exited with code %d\n", result.TesterExit)
	}
}

// runReviewLoop drives the same test/diff/merge/reject commands as the
// shell, for `ftl code`'s single-task non-interactive entry point.
func runReviewLoop(ctx context.Context, session *orchestrator.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Commands: test, diff, merge, reject, exit")

	for {
		fmt.Print("ftl[active]> ")
		if !scanner.Scan() {
			return session.Reject(ctx)
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return session.Reject(ctx)
		}

		done, err := handleReviewCommand(ctx, session, input)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if done {
			return nil
		}

		result, err := session.Followup(ctx, input)
		if err != nil {
			fmt.Println(err)
			continue
		}
		printTurnResult(result)
	}
}

// handleReviewCommand handles the commands valid while a session is in
// StateReviewing. done=true means the session has ended (merged or
// rejected) and the caller should stop looping.
func handleReviewCommand(ctx context.Context, session *orchestrator.Session, input string) (done bool, err error) {
	switch input {
	case "test":
		result, err := session.Followup(ctx, "Run this project's test suite and report failures.")
		if err != nil {
			return false, err
		}
		printTurnResult(result)
		return false, nil

	case "diff":
		changes, err := session.Diff(ctx)
		if err != nil {
			return false, err
		}
		if len(changes) == 0 {
			fmt.Println("No changes.")
			return false, nil
		}
		fmt.Print(diffengine.Render(changes))
		return false, nil

	case "merge", "done":
		if err := session.Merge(ctx); err != nil {
			var lintErr *orchestrator.LintBlockedError
			var guardErr *orchestrator.GuardrailBlockedError
			if errors.As(err, &lintErr) {
				fmt.Println("Merge blocked: possible credential leak in diff.")
				for _, f := range lintErr.Findings {
					fmt.Printf("  %s:%d [%s] %s\n", f.Path, f.Line, f.Rule, f.Text)
				}
				return false, nil
			}
			if errors.As(err, &guardErr) {
				fmt.Printf("Merge blocked by guardrail: %v\n", guardErr.Reasons)
				return false, nil
			}
			return false, err
		}
		fmt.Println("Merged.")
		return true, nil

	case "reject":
		if err := session.Reject(ctx); err != nil {
			return false, err
		}
		fmt.Println("Rejected.")
		return true, nil
	}

	return false, nil
}

// handleSnapshotCommand handles the snapshot commands that don't require
// an active session: list, list all, restore <id>.
func handleSnapshotCommand(input string, env *sessionEnv, projectConfigPath string) (handled bool, err error) {
	switch {
	case input == "list":
		return true, listSnapshots(env, projectDirOf(projectConfigPath))
	case input == "list all":
		return true, listSnapshots(env, "")
	case strings.HasPrefix(input, "restore "):
		id := strings.TrimSpace(strings.TrimPrefix(input, "restore "))
		fmt.Printf("Restore snapshot %s? Are you sure? (y/n) > ", id)
		var confirm string
		fmt.Scanln(&confirm)
		confirm = strings.ToLower(strings.TrimSpace(confirm))
		if confirm != "y" && confirm != "yes" {
			fmt.Println("Cancelled.")
			return true, nil
		}
		if err := env.store.Restore(id, projectDirOf(projectConfigPath)); err != nil {
			return true, err
		}
		fmt.Println("Restored.")
		return true, nil
	}
	return false, nil
}

func listSnapshots(env *sessionEnv, projectFilter string) error {
	snaps, err := env.store.List(projectFilter)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots.")
		return nil
	}
	for _, s := range snaps {
		fmt.Printf("  %s  %s  %s\n", s.ID, s.ProjectPath, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
