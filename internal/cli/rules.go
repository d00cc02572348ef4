package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/rules"
)

var listRules bool

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule catalogs",
	Long: `Inspect the rule catalogs (rubrics) configured under rules.paths,
or validate catalog files before deploying them.

Catalogs may be YAML, TOML or JSON. Rules that fail validation are
rejected individually; the rest of the catalog still loads.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded rubrics",
	Long: `Load every configured catalog and print each rubric with its rule
count. With --rules, also print every accepted rule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := rules.NewStore(cfg.Rules.Paths, cfg.Rules.DefaultRubric, newLogger(cfg))
		snap, loadErr := store.Reload()

		out := cmd.OutOrStdout()
		for _, name := range snap.Names() {
			cat, _ := snap.Catalog(name)
			marker := " "
			if name == snap.Default() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s (version %s): %d rules", marker, cat.Name, orDash(cat.Version), cat.Len())
			if len(cat.Rejected) > 0 {
				fmt.Fprintf(out, ", %d rejected", len(cat.Rejected))
			}
			fmt.Fprintf(out, "  [%s]\n", cat.Source)
			if listRules {
				printRules(out, cat)
			}
		}
		if len(snap.Names()) == 0 {
			fmt.Fprintln(out, "No rubrics loaded")
		}

		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "\n⚠ catalog load degraded: %v\n", loadErr)
		}
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate catalog files",
	Long: `Validate parses each catalog file (default: the configured rules.paths)
and reports rejected rules. It exits non-zero when any file fails to load
or any rule is rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths = cfg.Rules.Paths
		}
		if len(paths) == 0 {
			return fmt.Errorf("no catalog files to validate")
		}

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range paths {
			cat, err := rules.Load(path, quiet)
			if cat == nil {
				failed++
				fmt.Fprintf(out, "✗ %s: %v\n", path, err)
				continue
			}
			if len(cat.Rejected) > 0 {
				failed++
				fmt.Fprintf(out, "✗ %s: %d rules accepted, %d rejected\n", path, cat.Len(), len(cat.Rejected))
				for _, r := range cat.Rejected {
					fmt.Fprintf(out, "    #%d %s: %s\n", r.Position, orDash(r.URI), r.Reason)
				}
				continue
			}
			fmt.Fprintf(out, "✓ %s: rubric %q, %d rules\n", path, cat.Name, cat.Len())
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d catalogs invalid", failed, len(paths))
		}
		return nil
	},
}

func printRules(w io.Writer, cat *rules.Catalog) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range cat.Rules() {
		fmt.Fprintf(tw, "    %s\t%s\t%s/%s\t%s\n",
			r.URI, orDash(string(r.Discipline)), r.Severity, r.StrictSeverity, r.IssueTitle)
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)

	rulesListCmd.Flags().BoolVar(&listRules, "rules", false, "print every rule")
}
