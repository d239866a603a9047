package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/aevon-lab/timebucket/internal/core/config"
	"github.com/aevon-lab/timebucket/internal/core/storage"
	"github.com/aevon-lab/timebucket/internal/core/storage/postgres"
	"github.com/aevon-lab/timebucket/internal/core/storage/sqlite"
	"github.com/aevon-lab/timebucket/internal/grouping"
	"github.com/aevon-lab/timebucket/internal/ingestion"
	"github.com/aevon-lab/timebucket/internal/migrations"
	"github.com/aevon-lab/timebucket/internal/server"
)

// store is what every backend adapter provides.
type store interface {
	storage.RecordStore
	storage.PushdownStore
	DB() *sql.DB
	Close() error
}

func main() {
	configPath := flag.String("config", "timebucket.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"database", cfg.Database.Type,
		"adapter", cfg.Engine.Adapter,
		"fallback", cfg.Engine.Fallback,
		"default_time_zone", cfg.Env.Zones.Ambient().String(),
		"week_start", cfg.Env.WeekStart.String(),
		"rules", cfg.RuleLoading.Count)

	// 2. Initialize Storage
	db, err := openStore(cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3. Initialize Grouping (query API)
	aggregator := newAggregator(cfg, db)
	groupingSvc := grouping.NewService(aggregator, cfg.RuleLoading.Repository)

	// 4. Initialize Ingestion
	ingestionSvc := ingestion.NewService(db, cfg.Server.MaxBodySizeMB)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db.DB(), db.Backend(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	groupingSvc.RegisterRoutes(srv.Engine)

	// 6. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// openStore connects the configured backend. PostgreSQL is migrated before
// the adapter validates its schema.
func openStore(cfg corecfg.DatabaseConfig) (store, error) {
	switch cfg.Type {
	case "sqlite":
		adapter, err := sqlite.NewAdapter(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case "postgres":
		db, err := postgres.Open(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunMigrations(db, cfg.AutoMigrate); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		adapter, err := postgres.NewAdapter(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return adapter, nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
}

// newAggregator picks the grouping strategy named by engine.adapter.
func newAggregator(cfg *corecfg.Config, db store) grouping.Aggregator {
	engine := cfg.Engine
	memory := grouping.NewInMemoryAggregator(db, cfg.Env, engine.ScanBatchSize, engine.Workers)
	if engine.Adapter != "pushdown" {
		slog.Info("Grouping in memory", "workers", engine.Workers, "scan_batch_size", engine.ScanBatchSize)
		return memory
	}

	pushdown := grouping.NewPushdownAggregator(db, cfg.Env)
	slog.Info("Grouping pushed down to storage", "backend", db.Backend(), "fallback", engine.Fallback)
	if engine.Fallback {
		return grouping.NewFallbackAggregator(pushdown, memory)
	}
	return pushdown
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
