// Copyright 2026 The FleetSync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetsync/fleetsync/internal/assignment"
	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/config"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/location"
	"github.com/fleetsync/fleetsync/internal/messaging"
	"github.com/fleetsync/fleetsync/internal/observability/logger"
	"github.com/fleetsync/fleetsync/internal/observability/metrics"
	"github.com/fleetsync/fleetsync/internal/observability/tracing"
	"github.com/fleetsync/fleetsync/internal/roster"
	transportHTTP "github.com/fleetsync/fleetsync/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting fleetsync tracking core")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize key-value store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", logger.Error(err))
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("store ready", logger.Component(cfg.Store.Backend))

	// Initialize services
	feed := kvstore.NewFeed(store, cfg.Tracking.PollInterval)
	directory := roster.NewStoreDirectory(store)
	auditLogger := audit.NewSlogLogger()

	registry := assignment.NewRegistry(store, directory, auditLogger)
	channel := location.NewChannel(store, feed, directory, auditLogger)
	messages := messaging.NewService(store, directory, auditLogger)

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler and router
	handler := transportHTTP.NewHandler(registry, channel, messages)
	router := transportHTTP.NewRouter(handler, rateLimiter, cfg.Auth.JWTSecret)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the index reconciler
	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	reconciler := assignment.NewReconciler(registry, cfg.Tracking.ReconcileInterval)
	go reconciler.Run(reconcileCtx)

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopReconciler()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

// openStore selects the configured backend and returns its close function.
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		s, err := kvstore.NewRedis(ctx, kvstore.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := kvstore.NewPostgres(ctx, kvstore.PostgresConfig{
			Host:         cfg.Store.PGHost,
			Port:         cfg.Store.PGPort,
			User:         cfg.Store.PGUser,
			Password:     cfg.Store.PGPassword,
			Database:     cfg.Store.PGDatabase,
			SSLMode:      cfg.Store.PGSSLMode,
			MaxOpenConns: cfg.Store.PGMaxOpenConns,
			MaxIdleConns: cfg.Store.PGMaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "memory":
		s := kvstore.NewMemory()
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
