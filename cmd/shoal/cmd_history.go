package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"
)

// historyCmd shows applied changesets from the ledger, newest first.
func historyCmd() *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show applied changesets from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.AppliedVersions(ctx)
			if err != nil {
				return err
			}

			// Newest first.
			for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
				entries[i], entries[j] = entries[j], entries[i]
			}
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}

			if jsonOutput {
				list := make([]map[string]any, len(entries))
				for i, e := range entries {
					list[i] = map[string]any{
						"version":    e.Version,
						"name":       e.Name,
						"applied_at": e.AppliedAt.Format(TimeJSON),
					}
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"count":      len(entries),
					"changesets": list,
				})
			}

			if len(entries) == 0 {
				fmt.Println("No changesets have been applied.")
				return nil
			}

			fmt.Printf("%s\n\n", shoalcli.Dim(fmt.Sprintf("%d changeset(s) applied", len(entries))))
			table := shoalcli.NewTable("VERSION", "NAME", "APPLIED AT")
			for _, e := range entries {
				table.AddRow(
					fmt.Sprintf("%d", e.Version),
					e.Name,
					e.AppliedAt.Format(TimeDisplay),
				)
			}
			fmt.Print(table.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit to N changesets")
	return cmd
}
