package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ayobamihybrid/Daffy/internal/assets"
	"github.com/ayobamihybrid/Daffy/internal/config"
	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/handlers"
	"github.com/ayobamihybrid/Daffy/internal/logger"
	"github.com/ayobamihybrid/Daffy/internal/oracle"
	"github.com/ayobamihybrid/Daffy/internal/payments"
	"github.com/ayobamihybrid/Daffy/internal/raffle"
	"github.com/ayobamihybrid/Daffy/internal/registry"
	"github.com/ayobamihybrid/Daffy/internal/storage"
)

const sweepInterval = 10 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(logger.Configuration{
		LogFile:   cfg.LogFile,
		ErrorFile: cfg.ErrorFile,
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
	})
	defer logger.Sync()

	store := storage.NewSqliteStorage(cfg.DatabasePath)
	sink := events.MultiSink{events.LogSink{}, storage.NewEventSink(store)}

	assetRegistry, bank, err := buildChainAdapters(ctx, cfg)
	if err != nil {
		logger.Fatal("initializing chain adapters failed", zap.Error(err))
	}

	randomness := oracle.NewLocalOracle(cfg.OracleDelay)

	reg := registry.New(registry.Config{
		Operator:           cfg.OperatorAccount,
		Platform:           cfg.PlatformAccount,
		MaxTicketPrice:     cfg.MaxTicketPrice,
		MaxCreatorSharePct: cfg.MaxCreatorSharePct,
		PlatformFeePct:     cfg.PlatformFeePct,
		ActivationWindow:   cfg.ActivationWindow,
		Oracle: oracle.Config{
			Words:            cfg.OracleWords,
			Confirmations:    cfg.OracleConfirmations,
			CallbackGasLimit: cfg.OracleCallbackGasLimit,
		},
	}, raffle.Dependencies{
		Assets: assetRegistry,
		Oracle: randomness,
		Bank:   bank,
		Sink:   sink,
		Store:  store,
	})

	snapshots, err := store.LoadRaffles()
	if err != nil {
		logger.Fatal("loading raffle snapshots failed", zap.Error(err))
	}
	reg.Load(snapshots)

	router := gin.Default()
	httpHandler := handlers.NewHTTPHandler(reg, store)
	httpHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	// Sweeping expired raffles on a timer is an operational concern, the
	// registry only exposes the operation.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reg.SweepExpired()
			}
		}
	}()

	go func() {
		logger.Info("daffyd listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-waitForInterrupt()
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

func buildChainAdapters(ctx context.Context, cfg *config.Config) (assets.Registry, payments.Bank, error) {
	if cfg.AssetBackend == "eth" {
		assetRegistry, err := assets.NewERC721Registry(ctx, cfg.ChainRPCURL, cfg.OperatorKey)
		if err != nil {
			return nil, nil, err
		}
		bank, err := payments.NewEthBank(ctx, cfg.ChainRPCURL, cfg.OperatorKey)
		if err != nil {
			return nil, nil, err
		}
		return assetRegistry, bank, nil
	}

	return assets.NewMemoryRegistry(), payments.NewMemoryBank(), nil
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
