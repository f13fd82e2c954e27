package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thanhnp/coin-ledger/internal/api"
	"github.com/thanhnp/coin-ledger/internal/audit"
	"github.com/thanhnp/coin-ledger/internal/config"
	"github.com/thanhnp/coin-ledger/internal/hashing"
	"github.com/thanhnp/coin-ledger/internal/storage"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	purge := flag.Bool("purge", false, "Delete the stored block log before starting")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	logger.Info("Starting coin ledger server...")

	hp, err := hashing.New(cfg.Ledger.Hash)
	if err != nil {
		logger.WithError(err).Fatal("Invalid hash algorithm")
	}

	logger.WithField("path", cfg.Pebble.Path).Info("Opening Pebble database")
	db, err := storage.NewPebbleDB(cfg.Pebble.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open Pebble database")
	}

	repo, err := storage.Open(db, hp, cfg.Coin, logger)
	if err != nil {
		db.Close()
		logger.WithError(err).Fatal("Failed to open block log")
	}

	if *purge {
		if err := repo.Purge(); err != nil {
			db.Close()
			logger.WithError(err).Fatal("Failed to purge block log")
		}
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	genesis, err := repo.SeedGenesis(ctx, cfg.Ledger.GenesisTimestamp)
	if err != nil {
		db.Close()
		logger.WithError(err).Fatal("Failed to seed genesis block")
	}
	logger.WithField("hash", fmt.Sprintf("%x", genesis.Hash)).Info("Genesis block ready")

	var auditor *audit.Auditor
	if cfg.Audit.Enabled {
		auditor = audit.New(repo, cfg.Audit.Interval, logger)
		if err := auditor.Start(ctx); err != nil {
			logger.WithError(err).Warn("Failed to start auditor")
		}
	}

	router := api.NewRouter(repo, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	// Start HTTP server in goroutine
	go func() {
		logger.WithField("addr", addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}

	// Abandon appends still waiting after the drain
	cancel()

	if auditor != nil {
		auditor.Stop()
	}

	if err := db.Close(); err != nil {
		logger.WithError(err).Error("Error closing database")
	}

	logger.Info("Server stopped")
}
