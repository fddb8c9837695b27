// Command chatmode runs the multi-agent conversation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/config"
	"github.com/groxaxo/chatmode/embedding"
	"github.com/groxaxo/chatmode/internal/cache"
	"github.com/groxaxo/chatmode/internal/database"
	"github.com/groxaxo/chatmode/internal/metrics"
	"github.com/groxaxo/chatmode/internal/server"
	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/memory"
	"github.com/groxaxo/chatmode/orchestrator"
	"github.com/groxaxo/chatmode/speech"
	"github.com/groxaxo/chatmode/store"
	"github.com/groxaxo/chatmode/tools"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.NewLoader().
		WithConfigPath(*configPath).
		WithValidator((*config.Config).Validate).
		Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Database and persistence.
	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	pool, err := database.NewPoolManager(db, database.PoolConfig{
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		HealthCheckInterval: 30 * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("database pool: %w", err)
	}
	defer pool.Close()

	st, err := store.New(pool.DB(), logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := bootstrapAdmin(ctx, st, cfg, logger); err != nil {
		return err
	}

	// Audio cache: Redis when configured, in-process otherwise.
	var audioCache speech.Cache = speech.NewMemoryCache()
	var redisMgr *cache.Manager
	if cfg.Redis.Addr != "" {
		redisCfg := cache.DefaultConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisMgr, err = cache.NewManager(ctx, redisCfg, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisMgr.Close()
		audioCache = redisMgr
	}

	// Speech synthesis.
	var synth *speech.Synthesizer
	if cfg.Speech.Enabled {
		tts := speech.NewOpenAIProvider(speech.OpenAIConfig{
			APIKey:  cfg.Speech.APIKey,
			BaseURL: cfg.Speech.BaseURL,
		})
		synth = speech.NewSynthesizer(tts, audioCache, speech.SynthesizerConfig{
			ArtifactTTL: cfg.Speech.ArtifactTTL,
			URLPrefix:   cfg.Speech.URLPrefix,
		}, logger)
	}

	// Chat providers.
	factory := llm.NewFactory()
	factory.Register(llm.NewOpenAIProvider(llm.OpenAIConfig{
		Name:    cfg.LLM.DefaultProvider,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, logger))
	for _, p := range cfg.LLM.Providers {
		factory.Register(llm.NewOpenAIProvider(llm.OpenAIConfig{
			Name:    p.Name,
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Timeout: p.Timeout,
		}, logger))
	}

	// Memory index.
	embedder := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	})
	memIndex := memory.NewIndex(embedder, memory.NewInMemoryStore(logger), logger)

	// Tools.
	registry := tools.NewRegistry(logger)
	if err := tools.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	collector := metrics.NewCollector()

	orch := orchestrator.New(cfg.Orchestrator.ToOrchestrator(), st, factory,
		memIndex, synth, registry, collector, logger)
	defer orch.Stop()

	// HTTP surface.
	router := buildRouter(routerDeps{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		orch:      orch,
		synth:     synth,
		collector: collector,
		pool:      pool,
		redis:     redisMgr,
	})

	srv := server.NewManager(router, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("chatmode started",
		zap.String("version", version),
		zap.Int("port", cfg.Server.HTTPPort),
		zap.Bool("speech", cfg.Speech.Enabled),
		zap.Bool("redis", cfg.Redis.Addr != ""))

	srv.WaitForShutdown()
	orch.Stop()
	orch.WaitTTS()
	return nil
}

// bootstrapAdmin creates the first admin account when the user table is
// empty and bootstrap credentials are configured.
func bootstrapAdmin(ctx context.Context, st *store.Store, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Auth.BootstrapUser == "" || cfg.Auth.BootstrapPassword == "" {
		return nil
	}
	count, err := st.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := st.CreateUser(ctx, cfg.Auth.BootstrapUser, cfg.Auth.BootstrapPassword, "admin"); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", zap.String("username", cfg.Auth.BootstrapUser))
	return nil
}
