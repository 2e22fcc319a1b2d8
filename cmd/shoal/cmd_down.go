package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"
)

// downCmd reverts applied changesets, newest first.
func downCmd() *cobra.Command {
	var to int64

	cmd := &cobra.Command{
		Use:   "down [steps]",
		Short: "Revert changesets (default: 1 step)",
		Long: `Revert applied changesets in reverse version order.

Each revert runs the changeset's backward transformation and deletes its
ledger entry in one transaction. Reverting requires the changeset to
still exist in the repository; a ledger entry without a matching
changeset is reported as an error.`,
		Example: `  # Revert the newest changeset
  shoal down

  # Revert the three newest
  shoal down 3

  # Revert everything newer than a version (it stays applied)
  shoal down --to 1660000400`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid steps %q; expected a positive integer", args[0])
				}
				steps = n
			}

			runner, db, _, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			before, err := db.AppliedVersions(ctx)
			if err != nil {
				return err
			}
			if len(before) == 0 {
				fmt.Println(shoalcli.Success("Nothing to revert; ledger is empty."))
				return nil
			}

			start := time.Now()
			if to > 0 {
				err = runner.DownTo(ctx, to)
			} else {
				err = runner.Down(ctx, steps)
			}
			if err != nil {
				return err
			}

			after, err := db.AppliedVersions(ctx)
			if err != nil {
				return err
			}
			fmt.Println(shoalcli.RenderSuccessPanel(
				"Changesets reverted",
				fmt.Sprintf("Reverted %d changeset(s) in %s", len(before)-len(after), time.Since(start).Round(time.Millisecond)),
			))
			return nil
		},
	}

	cmd.Flags().Int64Var(&to, "to", 0, "Revert everything newer than this version")
	return cmd
}
