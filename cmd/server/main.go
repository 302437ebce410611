package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/config"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/engine"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/match"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/repository"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting OpenTCG match server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize database
	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		pool, err = repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		stats := pool.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
	}

	cards, err := initCatalog(ctx, cfg.Catalog, pool, logger)
	if err != nil {
		logger.Fatal("failed to initialize card catalog", zap.Error(err))
	}

	var repo match.Repository
	if pool != nil {
		pgRepo := repository.NewPostgresMatchRepository(pool, logger)
		if err := pgRepo.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate matches table", zap.Error(err))
		}
		repo = pgRepo
		logger.Info("match repository initialized", zap.String("backend", "postgres"))
	} else {
		repo = repository.NewMemoryMatchRepository(logger)
		logger.Info("match repository initialized", zap.String("backend", "memory"))
	}

	rulesCfg := cfg.Rules.Engine()
	bus := rules.NewEventBus()
	executor := engine.NewExecutor(cards, rulesCfg, logger)
	logger.Info("rules engine initialized",
		zap.Int("prize_count", rulesCfg.PrizeCount),
		zap.Int("bench_size", rulesCfg.BenchSize),
		zap.Bool("legacy_text_effects", rulesCfg.LegacyTextEffects),
	)

	archive := match.NewReplayArchive(cfg.Replay.Directory, logger)
	if !archive.Enabled() {
		logger.Warn("replay directory not configured; finished matches are not archived")
	}
	matchService := match.NewService(repo, executor, cards, archive, logger).WithEventBus(bus)

	hub := server.NewHub(cfg.Server.WebSocket, logger)
	hub.Attach(bus)
	go hub.Run(ctx)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.RegisterMatchServer(grpcServer, server.NewMatchServer(matchService, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	wsServer := server.NewWebSocketServer(cfg.Server.WebSocket, hub)
	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if wsErr := wsServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("OpenTCG match server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	cancel()

	logger.Info("OpenTCG match server stopped")
}

// initCatalog builds the card catalog named by cfg.Source behind the lookup cache.
func initCatalog(ctx context.Context, cfg config.CatalogConfig, pool *pgxpool.Pool, logger *zap.Logger) (catalog.Catalog, error) {
	var backend catalog.Catalog
	switch cfg.Source {
	case "postgres":
		if _, err := pool.Exec(ctx, catalog.CreateTableSQL); err != nil {
			return nil, fmt.Errorf("failed to create card_definitions table: %w", err)
		}
		backend = catalog.NewPostgresCatalog(pool, logger)
		logger.Info("card catalog initialized", zap.String("source", "postgres"))
	default:
		mem, err := catalog.LoadYAML(cfg.Path)
		if err != nil {
			return nil, err
		}
		backend = mem
		logger.Info("card catalog initialized",
			zap.String("source", "yaml"),
			zap.String("path", cfg.Path),
			zap.Int("cards", mem.Len()),
		)
	}
	return catalog.NewCachedCatalog(backend, logger), nil
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
