/*
Package main is the entry point for the linechat server.

It is responsible for loading configuration, initializing the global logging
system, selecting the store backend (file or Postgres), starting the TCP
chat listener and the HTTP/WebSocket gateway, optionally starting the S3
snapshot backup service, and gracefully handling operating system interrupt
signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linechat/internal/app/chat"
	"linechat/internal/app/storage"
	"linechat/internal/app/store"
	"linechat/internal/configs"
	"linechat/internal/handler"
	"linechat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Int("http_port", cfg.HTTPPort).
		Int("persist_workers", cfg.PersistWorkers).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Select the store backend.
	var st store.Store
	if cfg.DatabaseDSN != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to initialize Postgres store")
		}
		st = pgStore
		logx.Info("Using Postgres store")
	} else {
		fileStore, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			logx.Fatal(err, "Failed to initialize file store")
		}
		st = fileStore
		logx.Info("Using file store", "data_dir", cfg.DataDir)
	}
	defer st.Close()

	chatServer := chat.NewServer(st, cfg.JWTSecret, cfg.PersistWorkers, cfg.PersistQueueSize)

	// TCP chat listener.
	go func() {
		if err := chatServer.ListenAndServe(cfg.ListenAddr); err != nil {
			logx.Fatal(err, "Chat listener failed")
		}
	}()

	// HTTP gateway with the WebSocket bridge.
	router := handler.Router(&handler.AppDeps{Server: chatServer, Config: cfg})

	gatewayAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	gateway := &http.Server{
		Addr:         gatewayAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Gateway starting on http://localhost%s", gatewayAddr))
		if err := gateway.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Gateway failed to start")
		}
	}()

	// Periodic S3 snapshot backups, when configured.
	if cfg.Backup.Enabled() {
		exporter, ok := st.(store.Exporter)
		if !ok {
			logx.Fatal(nil, "Configured store does not support snapshot export")
		}

		backup, err := storage.NewBackupService(storage.ClientConfig{
			BucketName:      cfg.Backup.BucketName,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, exporter, cfg.Backup.Interval)
		if err != nil {
			logx.Fatal(err, "Failed to initialize backup service")
		}

		go backup.Run(ctx)
	}

	// Wait for interrupt signal to gracefully shutdown with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Gateway forced to shutdown")
	}

	chatServer.Shutdown()

	logx.Info("Server gracefully stopped.")
}
