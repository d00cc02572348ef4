package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/api"
	"github.com/ppiankov/chartrisk/internal/rules"
)

var (
	serveAddr  string
	watchRules bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve exposes the analysis pipeline over HTTP:

  POST /api/analyze   analyze a note (JSON body, or raw text/markdown/html)
  GET  /api/rubrics   list loaded rubrics
  GET  /health        liveness probe
  GET  /metrics       Prometheus metrics (server.enable_metrics)

With --watch (or rules.watch), catalog files are reloaded when they change.

Example:
  chartrisk serve --addr :8085 --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&watchRules, "watch", false, "reload rule catalogs when they change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("watch") {
		cfg.Rules.Watch = watchRules
	}
	log := newLogger(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defaults, err := a.request()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Rules.Watch {
		debounce := time.Duration(cfg.Rules.DebounceMillis) * time.Millisecond
		go func() {
			err := a.store.Watch(ctx, debounce, func(snap *rules.Snapshot, err error) {
				a.metrics.CatalogReload(snap != nil && snap.Degraded, err)
			})
			if err != nil {
				log.Error("Catalog watcher stopped", "error", err)
			}
		}()
	}

	srv := api.NewServer(a.orchestrator, a.store, a.metrics, log, cfg.Server, api.Defaults{
		Mode:       defaults.Mode,
		Discipline: defaults.Discipline,
		Strict:     defaults.Strict,
		Sections:   defaults.Sections,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", "error", err)
		}
	}()

	log.Info("Starting chartrisk API", "addr", cfg.Server.Addr, "metrics", cfg.Server.EnableMetrics, "watch", cfg.Rules.Watch)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
