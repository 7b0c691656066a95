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

// Command reconcile runs a single pass of the global assignment index
// reconciler and exits. The server runs the same pass on a timer; this
// command exists for operators who need to force one after restoring a
// store backup or repairing a tenant roster.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetsync/fleetsync/internal/assignment"
	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/config"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store kvstore.Store
	switch cfg.Store.Backend {
	case "redis":
		s, err := kvstore.NewRedis(ctx, kvstore.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to connect to redis: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
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
			fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	default:
		fmt.Fprintf(os.Stderr, "Backend %q has no shared state to reconcile\n", cfg.Store.Backend)
		os.Exit(1)
	}

	registry := assignment.NewRegistry(store, roster.NewStoreDirectory(store), audit.NewSlogLogger())
	if err := registry.ReconcileGlobalIndex(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Reconcile failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Global assignment index reconciled successfully.")
}
