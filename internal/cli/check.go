package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/guideline"
	"github.com/ppiankov/chartrisk/internal/llm"
	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/rules"
)

var checkTimeout time.Duration

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check catalogs and collaborators before analyzing",
	Long: `Load the rule catalogs and guideline corpus and probe the narrative
provider, reporting what an analysis would run with.

Exits non-zero when no catalog loads; optional collaborators that are
unavailable are reported as warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()
		return runChecks(ctx, cfg, cmd.OutOrStdout(), newLogger(cfg))
	},
}

func runChecks(ctx context.Context, cfg *model.Config, w io.Writer, log *slog.Logger) error {
	store := rules.NewStore(cfg.Rules.Paths, cfg.Rules.DefaultRubric, log)
	snap, loadErr := store.Reload()

	names := snap.Names()
	switch {
	case len(names) == 0:
		fmt.Fprintf(w, "✗ Catalogs: none loaded from %d path(s)\n", len(cfg.Rules.Paths))
	case snap.Degraded:
		fmt.Fprintf(w, "⚠ Catalogs: %d loaded with errors (default %s)\n", len(names), orDash(snap.Default()))
	default:
		fmt.Fprintf(w, "✓ Catalogs: %d loaded (default %s)\n", len(names), orDash(snap.Default()))
	}
	for _, e := range snap.Errors {
		fmt.Fprintf(w, "    %v\n", e)
	}

	if cfg.Guidelines.Path == "" {
		fmt.Fprintln(w, "⚠ Guidelines: no corpus configured")
	} else if corpus, err := guideline.LoadCorpus(cfg.Guidelines.Path); err != nil {
		fmt.Fprintf(w, "⚠ Guidelines: %v\n", err)
	} else {
		fmt.Fprintf(w, "✓ Guidelines: %s (%d passages)\n", corpus.Name, corpus.Len())
	}

	if cfg.NER.Endpoint == "" {
		fmt.Fprintln(w, "✓ NER: catalog lexicon")
	} else {
		fmt.Fprintf(w, "✓ NER: %s\n", cfg.NER.Endpoint)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	switch {
	case err != nil:
		fmt.Fprintf(w, "⚠ Narrative: %v\n", err)
	case provider == nil:
		fmt.Fprintln(w, "⚠ Narrative: no provider configured")
	case provider.IsAvailable(ctx):
		fmt.Fprintf(w, "✓ Narrative: %s available\n", provider.Name())
	default:
		fmt.Fprintf(w, "⚠ Narrative: %s unreachable\n", provider.Name())
	}

	if len(names) == 0 {
		if loadErr != nil {
			return fmt.Errorf("no catalogs loaded: %w", loadErr)
		}
		return fmt.Errorf("no catalogs loaded")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 15*time.Second, "Timeout for collaborator probes")
}
