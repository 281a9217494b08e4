// Package main provides the RAG Grid server binary.
// The server exposes the experiment grid over HTTP: selections, batched
// evaluation scheduling, aggregates, and a server-sent event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raggrid/rag-grid/internal/bus"
	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/config"
	"github.com/raggrid/rag-grid/internal/engine"
	"github.com/raggrid/rag-grid/internal/metrics"
	"github.com/raggrid/rag-grid/internal/pkg/logger"
	"github.com/raggrid/rag-grid/internal/scoring"
	"github.com/raggrid/rag-grid/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rag-grid-server",
		Short: "RAG Grid Server - experiment matrix evaluation engine",
		Long: `RAG Grid Server evaluates retrieval-pipeline configurations across a
combinatorial experiment matrix and serves the results over HTTP.

The server exposes:
  - REST API on :8080 (configurable) for grid state, toggles, and aggregates
  - Server-sent events on /v1/events for live updates
  - Prometheus-format metrics on /metrics

Examples:
  rag-grid-server                          # Start with defaults
  rag-grid-server --port 9090              # Custom HTTP port
  rag-grid-server --scoring-url http://host:6006
  rag-grid-server --catalog dims.yaml      # Custom dimension catalog`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().IntP("port", "p", 0, "HTTP server port")
	rootCmd.Flags().String("host", "", "server host")
	rootCmd.Flags().String("scoring-url", "", "scoring service URL (overrides config)")
	rootCmd.Flags().String("catalog", "", "dimension catalog YAML path (overrides config)")
	rootCmd.Flags().String("bus", "", "event bus type (memory, kafka)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rag-grid-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override file and environment.
	if cmd.Flags().Changed("port") {
		appCfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		appCfg.Host, _ = cmd.Flags().GetString("host")
	}
	if u, _ := cmd.Flags().GetString("scoring-url"); u != "" {
		appCfg.Scoring.URL = u
	}
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		appCfg.CatalogPath = p
	}
	if b, _ := cmd.Flags().GetString("bus"); b != "" {
		appCfg.Bus.Type = b
	}

	logLevel := appCfg.Log.Level
	if verbose {
		logLevel = "debug"
	}
	log := logger.New(logLevel, appCfg.Log.Format)

	log.Info("starting RAG Grid server",
		"version", version,
		"port", appCfg.Port,
		"scoring_url", appCfg.Scoring.URL,
	)

	// Dimension catalog: file if given, built-in default otherwise.
	var cat *catalog.Catalog
	if appCfg.CatalogPath != "" {
		cat, err = catalog.Load(appCfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		log.Info("loaded catalog", "path", appCfg.CatalogPath, "dimensions", len(cat.Dimensions))
	} else {
		cat = catalog.Default()
		log.Info("using built-in default catalog", "dimensions", len(cat.Dimensions))
	}

	met := metrics.New()

	eventBus, err := bus.New(appCfg.Bus, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	log.Info("initialized event bus", "type", appCfg.Bus.Type)

	recordStore, err := engine.NewRecordStore(appCfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}
	defer func() { _ = recordStore.Close() }()
	log.Info("initialized record store", "type", appCfg.Store.Type)

	// "local" runs the in-process collaborator, useful without a
	// scoring backend.
	var collab scoring.Collaborator
	if appCfg.Scoring.URL == "local" {
		collab = scoring.NewLocal()
		log.Info("using local scoring collaborator")
	} else {
		collab = scoring.NewClient(scoring.Config{
			BaseURL: appCfg.Scoring.URL,
			Timeout: scoringTimeout(appCfg),
		})
	}

	eng, err := engine.New(cat, appCfg.Engine, appCfg.Scoring.Workers, engine.Deps{
		Collaborator: collab,
		Store:        recordStore,
		Bus:          eventBus,
		Metrics:      met,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// Scheduler runs for the life of the process.
	engCtx, engCancel := context.WithCancel(context.Background())
	defer engCancel()
	engDone := make(chan struct{})
	go func() {
		defer close(engDone)
		if err := eng.Run(engCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "error", err)
		}
	}()

	srvCfg := server.DefaultConfig()
	srvCfg.Host = appCfg.Host
	srvCfg.Port = appCfg.Port
	srvCfg.Version = version
	srvCfg.RateLimit = appCfg.Security.RateLimit
	srv := server.New(srvCfg, eng, eventBus, met, log)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("server stop error", "error", err)
	}

	engCancel()
	select {
	case <-engDone:
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not drain before timeout")
	}

	log.Info("server stopped")
	return nil
}

// scoringTimeout converts the configured timeout, defaulting when unset.
func scoringTimeout(cfg *config.Config) time.Duration {
	if cfg.Scoring.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(cfg.Scoring.TimeoutSeconds) * time.Second
}
