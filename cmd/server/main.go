package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/api"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/api/middleware"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/config"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/events"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/handlers"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/observer"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Upload store: Postgres when configured, SQLite otherwise
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer dataStore.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	bound, err := cfg.MaxCost()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid rental cost bound")
	}

	gw := ipfs.NewGateway(cfg.IPFSGateway)
	fetcher, err := ipfs.NewMetadataFetcher(gw, 1024, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("metadata cache init failed")
	}

	deps := handlers.Deps{
		Metadata: fetcher,
		Guard:    pricing.NewGuard(bound),
		Region:   cfg.Network,
	}

	if cfg.PinataAPIKey != "" && cfg.PinataSecretKey != "" {
		deps.Pinner = ipfs.NewPinataClient(cfg.PinataAPIURL, cfg.PinataAPIKey, cfg.PinataSecretKey, gw, logger)
	} else {
		logger.Warn().Msg("PINATA_API_KEY/PINATA_SECRET_KEY not set, uploads disabled")
	}
	if cfg.APIKey == "" {
		logger.Warn().Msg("GATEWAY_API_KEY not set, every upload will be rejected")
	}

	// Ledger and directory
	if cfg.LedgerConfigured() {
		if !common.IsHexAddress(cfg.RegistryAddress) {
			logger.Fatal().Str("address", cfg.RegistryAddress).Msg("invalid AGENT_REGISTRY_ADDRESS")
		}
		client, err := ledger.Dial(ctx, cfg.RPCURL, common.HexToAddress(cfg.RegistryAddress), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("ledger connection failed")
		}
		deps.Ledger = client

		var opts []observer.DirectoryOption
		if redisStore != nil {
			opts = append(opts, observer.WithSink(redisStore))
		}
		directory := observer.NewDirectory(client, cfg.PollInterval, logger, opts...)
		if redisStore != nil {
			if snap, err := redisStore.LoadSnapshot(ctx); err != nil {
				logger.Warn().Err(err).Msg("could not load cached directory")
			} else if snap != nil {
				directory.Seed(snap)
				logger.Info().Int("agents", len(snap.Listings)).Msg("directory seeded from cache")
			}
		}
		deps.Directory = directory

		go func() {
			if err := directory.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("directory stopped")
			}
		}()

		// Settlements published by CLI sessions refresh the directory early
		if cfg.NATSURL != "" {
			nc, err := events.Connect(cfg.NATSURL, "market-gateway", logger)
			if err != nil {
				logger.Warn().Err(err).Msg("settlement events disabled")
			} else {
				defer nc.Close()
				err := events.Subscribe(ctx, nc, logger, func(e events.SettledEvent) {
					logger.Debug().Str("action", e.Action).Uint64("agent", e.AgentID).Msg("settlement observed")
					directory.Trigger()
				})
				if err != nil {
					logger.Warn().Err(err).Msg("settlement events disabled")
				}
			}
		}

		logger.Info().
			Str("rpc", cfg.RPCURL).
			Str("registry", cfg.RegistryAddress).
			Dur("poll_interval", cfg.PollInterval).
			Msg("ledger configured")
	} else {
		logger.Warn().Msg("AGENT_REGISTRY_ADDRESS not set, agent directory disabled")
	}

	h := handlers.NewHandler(dataStore, redisStore, deps, logger)

	// Create router
	router := api.NewRouter(logger, h, redisStore, api.Options{
		APIKey: cfg.APIKey,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting marketplace gateway")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
