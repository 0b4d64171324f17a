// Copyright 2025 The Compact Protocol
//
// allocatord is the composition root for the allocation core: it loads
// configuration, connects and migrates the database, builds the
// indexer/signer clients, wires the validation and admission pipeline,
// and serves the admission and metrics HTTP surfaces until signalled to
// stop.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/the-compact/allocator-core/pkg/compact"
	"github.com/the-compact/allocator-core/pkg/config"
	"github.com/the-compact/allocator-core/pkg/database"
	"github.com/the-compact/allocator-core/pkg/eip712"
	"github.com/the-compact/allocator-core/pkg/indexer"
	"github.com/the-compact/allocator-core/pkg/metrics"
	"github.com/the-compact/allocator-core/pkg/server"
	"github.com/the-compact/allocator-core/pkg/signer"
	"github.com/the-compact/allocator-core/pkg/validator"
)

func main() {
	logger := log.New(log.Writer(), "[Allocatord] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	thresholds, err := config.LoadFinalizationThresholds(cfg.FinalizationThresholdsPath)
	if err != nil {
		logger.Fatalf("load finalization thresholds: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := database.NewClient(cfg, database.WithLogger(log.New(log.Writer(), "[Database] ", log.LstdFlags)))
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(ctx); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	repos := database.NewRepositories(dbClient)

	idx := indexer.NewHTTPClient(cfg.IndexerURL)

	oracle, err := signer.NewECDSAOracle(cfg.SignerPrivateKeyHex)
	if err != nil {
		logger.Fatalf("construct signer: %v", err)
	}

	v := validator.NewValidator(repos.Nonces, idx, repos.Compacts, thresholds, validator.RealClock{})
	hasher := eip712.NewHasher()

	reg := metrics.New()
	metricsServer := metrics.NewServer(cfg.MetricsAddr, reg, log.New(log.Writer(), "[Metrics] ", log.LstdFlags))
	go metricsServer.Start()

	service := compact.NewService(dbClient, repos.Nonces, repos.Compacts, v, hasher, oracle, reg, cfg.NonceRetryLimit)

	handlers := server.NewAdmissionHandlers(service, reg, log.New(log.Writer(), "[AdmissionAPI] ", log.LstdFlags))
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.Mux(),
	}

	go func() {
		logger.Printf("admission API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("admission server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("admission server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown: %v", err)
	}
}
