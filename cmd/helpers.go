package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/config"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/db"
	"github.com/ziadkadry99/shoptalk/internal/engine"
	"github.com/ziadkadry99/shoptalk/internal/flows"
	"github.com/ziadkadry99/shoptalk/internal/grounding"
	"github.com/ziadkadry99/shoptalk/internal/intent"
	"github.com/ziadkadry99/shoptalk/internal/kb"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/payments"
	"github.com/ziadkadry99/shoptalk/internal/routing"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
	"github.com/ziadkadry99/shoptalk/internal/usage"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `shoptalk init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from config. Everything goes to
// stderr so stdout stays free for command output (and MCP protocol frames).
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// openDatabase opens the SQLite database under the config's data dir,
// creating the directory on first run.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}
	return db.Open(filepath.Join(cfg.DataDir, "shoptalk.db"))
}

// openKnowledgeBase opens the chromem-backed knowledge base and loads any
// persisted collections from disk.
func openKnowledgeBase(cfg *config.Config) (*kb.Store, error) {
	store, err := kb.NewStore(filepath.Join(cfg.DataDir, "kb"), cfg.EmbeddingModel, nil)
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	return store, nil
}

// runtime bundles everything a long-running command needs.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB

	engine        *engine.Engine
	health        *llm.HealthTracker
	conversations *conversation.Store
	usage         *usage.Store
	tenants       *tenant.Store
}

func (rt *runtime) Close() {
	rt.db.Close()
}

// buildRuntime wires the full engine stack: stores, provider registry,
// failover client, grounding sources, and the engine itself.
func buildRuntime(events engine.EventSink) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	conversations := conversation.NewStore(database)
	ledger := conversation.NewLedger(database)
	usageStore := usage.NewStore(database)
	tenantStore := tenant.NewStore(database)
	catalogStore := catalog.NewStore(database)
	orderStore := flows.NewOrderStore(database)
	bookingStore := flows.NewBookingStore(database)
	tenantCache := tenant.NewCache(tenantStore)

	// One client per provider type named anywhere in the routing config.
	refs := make([]llm.ModelRef, 0, 8)
	refs = append(refs,
		cfg.Routing.LargeContext, cfg.Routing.Cheap,
		cfg.Routing.Premium, cfg.Routing.Balanced, cfg.Extractor)
	refs = append(refs, cfg.Routing.Candidates...)
	registry := llm.BuildRegistry(refs, cfg.RateLimitRPM)

	extractorProvider, ok := registry[cfg.Extractor.Provider]
	if !ok {
		return nil, fmt.Errorf("extractor provider %q unavailable: check %s",
			cfg.Extractor.Provider, config.APIKeyEnvVar(config.ProviderType(cfg.Extractor.Provider)))
	}

	health := llm.NewHealthTracker(
		cfg.Health.WindowSize, cfg.Health.MinSamples, cfg.Health.FailureThreshold)
	client := llm.NewFailoverClient(registry, health, cfg.AttemptTimeout(), logger)

	sources := []grounding.Source{grounding.NewCatalogSource(catalogStore)}
	kbStore, err := openKnowledgeBase(cfg)
	if err != nil {
		logger.Warn("knowledge base unavailable, document grounding disabled", "error", err)
	} else {
		sources = append(sources, grounding.NewDocumentSource(kbStore))
	}
	sources = append(sources, grounding.NewExternalSource(func(tenantID string) string {
		snap, err := tenantCache.Get(context.Background(), tenantID)
		if err != nil {
			return ""
		}
		return snap.ExternalLookupURL
	}, http.DefaultClient))

	eng := engine.New(engine.Deps{
		Store:     conversations,
		Ledger:    ledger,
		Tenants:   tenantCache,
		Extractor: intent.NewLLMExtractor(extractorProvider, cfg.Extractor.Model),
		Grounding: grounding.NewEngine(sources, cfg.SourceBudget(), logger),
		Scorer:    routing.NewScorer(cfg.Routing.ComplexKeywords, cfg.Routing.LargeContextTokens),
		Router:    routing.NewRouter(cfg.Routing),
		Client:    client,
		Catalog:   catalogStore,
		Orders:    orderStore,
		Bookings:  bookingStore,
		Payments:  payments.NewStubGateway(),
		Usage:     usageStore,
		Events:    events,
		Logger:    logger,
	})

	return &runtime{
		cfg:           cfg,
		logger:        logger,
		db:            database,
		engine:        eng,
		health:        health,
		conversations: conversations,
		usage:         usageStore,
		tenants:       tenantStore,
	}, nil
}
