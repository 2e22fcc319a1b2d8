package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"
)

// verifyCmd cross-checks the ledger against the changeset repository and
// prints the merkle fingerprint of the applied sequence.
func verifyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Cross-check the ledger against the changeset repository",
		Long: `Verify that the store's ledger and this repository agree.

The command computes a merkle root over the applied sequence; two stores
with the same root applied the same changesets in the same order. Applied
versions without a registered changeset, and out-of-order ledger entries,
fail verification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, db, _, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := runner.Verify(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"ok":           v.OK(),
					"root":         v.Root,
					"applied":      v.Applied,
					"unapplied":    v.Unapplied,
					"unknown":      v.Unknown,
					"out_of_order": v.OutOfOrder,
				}); err != nil {
					return err
				}
				if !v.OK() {
					os.Exit(1)
				}
				return nil
			}

			if v.OK() {
				content := shoalcli.KeyValue("root", v.Root) + "\n" +
					shoalcli.KeyValue("applied", fmt.Sprintf("%d", v.Applied))
				if len(v.Unapplied) > 0 {
					content += "\n" + shoalcli.KeyValue("unapplied", formatVersions(v.Unapplied))
				}
				fmt.Println(shoalcli.RenderSuccessPanel("Ledger verified", content))
				return nil
			}

			var problems []string
			if len(v.Unknown) > 0 {
				problems = append(problems, "applied versions missing from the repository: "+formatVersions(v.Unknown))
			}
			if len(v.OutOfOrder) > 0 {
				problems = append(problems, "ledger entries out of order: "+formatVersions(v.OutOfOrder))
			}
			fmt.Println(shoalcli.RenderErrorPanel("Ledger diverged", strings.Join(problems, "\n")))
			os.Exit(1)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func formatVersions(versions []int64) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
