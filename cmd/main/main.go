package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pigeon-observer/src/admission"
	"pigeon-observer/src/aggregator"
	"pigeon-observer/src/cache"
	"pigeon-observer/src/config"
	"pigeon-observer/src/datasource"
	"pigeon-observer/src/helpers"
	"pigeon-observer/src/interfaces"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/network"
	"pigeon-observer/src/ratelimit"
	"pigeon-observer/src/server"
	"pigeon-observer/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Archive storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewAsyncPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	// The database file may be briefly locked by a previous instance on restart
	if err := helpers.RetryWithBackoff(context.Background(), 3, time.Second, db.Initialize); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Shared infrastructure: cache, rate windows, outbound HTTP
	ttlCache := cache.NewTTLCache()
	limiter := ratelimit.NewLimiter(cfg.RateLimits)
	netMgr := network.NewAsyncNetworkManager(cfg.MConfig, appLogger)

	// 3. Source chains (primary first)
	priceFetcher := datasource.NewPriceFetcher(cfg.MConfig, ttlCache, limiter,
		datasource.NewCoinGeckoSource(cfg.MConfig, netMgr),
		datasource.NewCoinMarketCapSource(cfg.MConfig, netMgr),
	)
	sightingFetcher := datasource.NewSightingFetcher(cfg.MConfig, ttlCache, limiter,
		datasource.NewSightingAPISource(cfg.MConfig, netMgr),
		datasource.NewSyntheticSightingSource(cfg.LogLevel),
	)

	// 4. Server and pipeline
	srv := server.NewObserverServer(cfg.MConfig, appLogger)
	srv.Limiter = limiter

	adm := admission.NewController(cfg.Admission.MaxConcurrent, appLogger)
	svc := aggregator.NewService(cfg, appLogger, priceFetcher, sightingFetcher, db, srv, adm)
	srv.Aggregator = svc

	// 5. Start serving
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}
	svc.Start(ctx, wg)

	appLogger.Info("%s is up on %s:%d", cfg.Name, cfg.Host, cfg.Port)

	// 6. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	wg.Wait()
	srv.Stop()
}
