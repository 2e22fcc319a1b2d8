package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"
	"github.com/shoaldb/shoal/internal/migrate"
)

// upCmd applies pending changesets.
func upCmd() *cobra.Command {
	var to int64

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending changesets",
		Long: `Apply pending changesets in version order.

Each changeset runs in its own store transaction together with its ledger
entry: either both land or neither does. Already-applied changesets are
skipped, so re-running a fully applied sequence is a no-op.`,
		Example: `  # Apply everything pending
  shoal up

  # Apply up to and including a version
  shoal up --to 1660000400`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, db, _, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := runner.Status(ctx)
			if err != nil {
				return err
			}
			pending := 0
			for _, s := range statuses {
				if s.State == migrate.StatePending && (to == 0 || s.Version <= to) {
					pending++
				}
			}
			if pending == 0 {
				fmt.Println(shoalcli.Success("Nothing to apply; store is up to date."))
				return nil
			}

			start := time.Now()
			if to > 0 {
				err = runner.UpTo(ctx, to)
			} else {
				err = runner.Up(ctx)
			}
			if err != nil {
				return err
			}

			fmt.Println(shoalcli.RenderSuccessPanel(
				"Changesets applied",
				fmt.Sprintf("Applied %d changeset(s) in %s", pending, time.Since(start).Round(time.Millisecond)),
			))
			return nil
		},
	}

	cmd.Flags().Int64Var(&to, "to", 0, "Apply up to and including this version")
	return cmd
}
