package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"
	"github.com/shoaldb/shoal/internal/migrate"
)

// statusCmd shows the state of every known changeset version.
func statusCmd() *cobra.Command {
	var jsonOutput, watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied/pending changesets",
		Example: `  # One-shot status
  shoal status

  # Re-render whenever the store file changes (sqlite only)
  shoal status --watch

  # Machine-readable output; exits 1 when anything is pending
  shoal status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, db, cfg, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			render := func() (pending int, err error) {
				statuses, err := runner.Status(ctx)
				if err != nil {
					return 0, err
				}
				if jsonOutput {
					return printStatusJSON(statuses)
				}
				return printStatusTable(statuses)
			}

			pending, err := render()
			if err != nil {
				return err
			}

			if watch {
				if err := watchStore(ctx, cfg.StoreURL, func() {
					fmt.Println()
					if _, err := render(); err != nil {
						fmt.Fprint(os.Stderr, shoalcli.FormatError(err))
					}
				}); err != nil {
					return err
				}
				return nil
			}

			if jsonOutput && pending > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON for CI")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch the store file and re-render on change")
	return cmd
}

func printStatusTable(statuses []migrate.Status) (int, error) {
	if len(statuses) == 0 {
		fmt.Println("No changesets found.")
		return 0, nil
	}

	var applied, pending, missing int
	table := shoalcli.NewTable("VERSION", "NAME", "STATE", "APPLIED AT")
	for _, s := range statuses {
		var badge string
		switch s.State {
		case migrate.StateApplied:
			badge = shoalcli.RenderAppliedBadge()
			applied++
		case migrate.StateMissing:
			badge = shoalcli.RenderMissingBadge()
			missing++
		default:
			badge = shoalcli.RenderPendingBadge()
			pending++
		}
		appliedAt := ""
		if s.AppliedAt != nil {
			appliedAt = s.AppliedAt.Format(TimeDisplay)
		}
		table.AddRow(fmt.Sprintf("%d", s.Version), s.Name, badge, appliedAt)
	}

	summary := shoalcli.Success(fmt.Sprintf("%d applied", applied))
	if pending > 0 {
		summary += "  " + shoalcli.Warning(fmt.Sprintf("%d pending", pending))
	}
	if missing > 0 {
		summary += "  " + shoalcli.Error(fmt.Sprintf("%d missing", missing))
	}
	fmt.Printf("%s\n\n", summary)
	fmt.Print(table.String())
	return pending, nil
}

func printStatusJSON(statuses []migrate.Status) (int, error) {
	pending := 0
	list := make([]map[string]any, len(statuses))
	for i, s := range statuses {
		m := map[string]any{
			"version":    s.Version,
			"name":       s.Name,
			"state":      s.State.String(),
			"applied_at": nil,
		}
		if s.AppliedAt != nil {
			m["applied_at"] = s.AppliedAt.Format(TimeJSON)
		}
		if s.State == migrate.StatePending {
			pending++
		}
		list[i] = m
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	err := enc.Encode(map[string]any{
		"pending":    pending,
		"changesets": list,
	})
	return pending, err
}

// watchStore re-runs fn when the store file changes. Events are debounced
// because sqlite writes produce bursts of them.
func watchStore(ctx context.Context, url string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(url); err != nil {
		return fmt.Errorf("cannot watch %q (watching needs a local store file): %w", url, err)
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(250*time.Millisecond, fn)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, shoalcli.Warning("watch error: "+err.Error()))
		}
	}
}
