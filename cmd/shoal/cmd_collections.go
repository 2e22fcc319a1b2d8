package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"
)

// collectionsCmd lists the live collections in the store.
func collectionsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List live collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			all, err := db.Collections(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}

			if len(all) == 0 {
				fmt.Println("No collections in the store.")
				return nil
			}

			table := shoalcli.NewTable("ID", "NAME", "FIELDS", "INDEXES")
			for _, c := range all {
				table.AddRow(
					shoalcli.Dim(c.ID),
					shoalcli.Highlight(c.Name),
					fmt.Sprintf("%d", len(c.Fields)),
					fmt.Sprintf("%d", len(c.Indexes)),
				)
			}
			fmt.Print(table.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
