// Sentinel - Ensemble fraud decisions for every transaction.
// Copyright (c) 2025 SageNet
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/darthVad3r/SageNet-Sentinel/internal/api"
	"github.com/darthVad3r/SageNet-Sentinel/internal/bus"
	"github.com/darthVad3r/SageNet-Sentinel/internal/cache"
	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
	"github.com/darthVad3r/SageNet-Sentinel/internal/orchestrator"
	"github.com/darthVad3r/SageNet-Sentinel/internal/repository"
	"github.com/darthVad3r/SageNet-Sentinel/internal/scoring"
	"github.com/darthVad3r/SageNet-Sentinel/internal/velocity"
	"github.com/darthVad3r/SageNet-Sentinel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SENTINEL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting sentinel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("SENTINEL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Velocity Service
	velocitySvc := velocity.New(repo, cacheImpl)
	slog.Info("velocity service initialized")

	// Initialize the built-in heuristic provider
	heuristics, err := scoring.NewHeuristicProvider("heuristic-v1", 100)
	if err != nil {
		slog.Error("failed to initialize heuristic provider", "error", err)
		os.Exit(1)
	}
	defer heuristics.Close()

	if err := loadSignalsFromDatabase(ctx, repo, heuristics); err != nil {
		slog.Error("failed to load heuristic signals", "error", err)
		os.Exit(1)
	}
	slog.Info("heuristic provider initialized", "signal_count", heuristics.SignalCount())

	// Assemble the provider pool: the heuristic provider plus any remote
	// scoring services configured via environment.
	providers := []domain.ScoringProvider{heuristics}
	providers = append(providers, remoteProvidersFromEnv()...)

	// Initialize the decision orchestrator
	orch := orchestrator.New(providers, &cfg.Ensemble)

	if err := cfg.Ensemble.Validate(orch.SourceIDs()); err != nil {
		slog.Error("invalid ensemble configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("orchestrator initialized",
		"providers", orch.SourceIDs(),
		"fraud_threshold", cfg.Ensemble.FraudThreshold,
		"disagreement_threshold", cfg.Ensemble.DisagreementThreshold,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("SENTINEL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, orch, velocitySvc)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("SENTINEL_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, orch, heuristics, velocitySvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("sentinel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("sentinel shutdown complete")
}

// GlobalTenantID is used for signals that apply to all tenants.
const GlobalTenantID = "*"

// loadSignalsFromDatabase loads heuristic signals from the database.
// With an empty database the built-in default signals are used; they can
// be replaced at any time via POST /heuristics + POST /heuristics/reload.
func loadSignalsFromDatabase(ctx context.Context, repo domain.Repository, provider *scoring.HeuristicProvider) error {
	dbSignals, err := repo.ListHeuristicConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list signals from database", "error", err)
		dbSignals = nil
	}

	if len(dbSignals) > 0 {
		slog.Info("loading signals from database", "count", len(dbSignals))
		return provider.LoadSignals(dbSignals)
	}

	slog.Info("no signals in database - loading built-in defaults")
	return provider.LoadSignals(scoring.DefaultSignals())
}

// remoteProvidersFromEnv parses SENTINEL_REMOTE_PROVIDERS, a comma-separated
// list of sourceID=endpoint pairs, into remote scoring providers.
// SENTINEL_REMOTE_API_KEY, when set, is sent to every remote provider.
func remoteProvidersFromEnv() []domain.ScoringProvider {
	raw := os.Getenv("SENTINEL_REMOTE_PROVIDERS")
	if raw == "" {
		return nil
	}

	apiKey := os.Getenv("SENTINEL_REMOTE_API_KEY")

	var providers []domain.ScoringProvider
	for _, pair := range strings.Split(raw, ",") {
		sourceID, endpoint, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || sourceID == "" || endpoint == "" {
			slog.Warn("skipping malformed remote provider entry", "entry", pair)
			continue
		}

		var opts []scoring.RemoteOption
		if apiKey != "" {
			opts = append(opts, scoring.WithAPIKey(apiKey))
		}

		providers = append(providers, scoring.NewRemoteProvider(sourceID, endpoint, opts...))
		slog.Info("remote provider registered", "source_id", sourceID, "endpoint", endpoint)
	}

	return providers
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🛡  SENTINEL                  ║")
	fmt.Println("  ║       Ensemble Fraud Decision Engine      ║")
	fmt.Println("  ║      Every score, one clear answer.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /decide             - Score a transaction")
	fmt.Println("    GET  /decisions/{id}     - Get decision by ID")
	fmt.Println("    GET  /transactions/{id}  - Get transaction by ID")
	fmt.Println("    GET  /providers          - List scoring providers")
	fmt.Println("    GET  /heuristics         - List heuristic signals")
	fmt.Println("    POST /heuristics         - Create a heuristic signal")
	fmt.Println("    POST /heuristics/reload  - Hot-reload signals from database")
	fmt.Println("    GET  /health             - Health check")
	fmt.Println()
}
