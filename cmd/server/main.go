package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/perp_sim/internal/config"
	"github.com/vitos/perp_sim/internal/infrastructure/logger"
	"github.com/vitos/perp_sim/internal/infrastructure/storage"
	"github.com/vitos/perp_sim/internal/usecase"
	"github.com/vitos/perp_sim/internal/web"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Wallet
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	walletSvc := usecase.NewWalletService(store, usecase.NewRand(seed+1), log)
	if err := walletSvc.Load(ctx); err != nil {
		log.Error("Failed to load wallet", zap.Error(err))
	}

	// 5. Engine and session
	engine := usecase.NewEngine(usecase.EngineOptions{
		BookDepth:          cfg.Simulation.BookDepth,
		RebuildEvery:       cfg.Simulation.BookRebuildEvery,
		EnforceLiquidation: cfg.Simulation.EnforceLiquidation,
		StartPrices:        cfg.Simulation.StartPrices,
	}, nil)
	svc := usecase.NewTradingService(engine, store, walletSvc, log, usecase.TradingConfig{
		CandleCount: cfg.Simulation.CandleCount,
		Seed:        seed,
	})
	if err := svc.Restore(ctx); err != nil {
		log.Error("Failed to restore session", zap.Error(err))
	}
	if _, err := svc.LoadPair(ctx, cfg.Simulation.DefaultPair, cfg.Simulation.DefaultTimeframe); err != nil {
		log.Fatal("Failed to load market", zap.Error(err))
	}

	// 6. Tick loop
	go svc.Run(ctx, cfg.Simulation.TickInterval)

	// 7. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, svc, walletSvc, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
