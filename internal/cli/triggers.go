package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/fallback"
)

var triggersJSON bool

// triggersCmd represents the triggers command
var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "List the built-in fallback triggers",
	Long: `List the deterministic fallback heuristics evaluated on every note,
in evaluation order. These run without any rule catalog or external service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes := fallback.New().Catalog()
		out := cmd.OutOrStdout()

		if triggersJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRISK\tCHECK\tNAME")
		for _, n := range nodes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.RiskLevel, n.Predicate.Kind, n.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintln(out)
			for _, n := range nodes {
				fmt.Fprintf(out, "%s\n  action:  %s\n  default: %s\n  prompt:  %s\n\n",
					n.ID, n.FallbackAction, n.AuditSafeDefault, n.ImprovementPrompt)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggersCmd)
	triggersCmd.Flags().BoolVar(&triggersJSON, "json", false, "print the catalog as JSON")
}
