// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package main is the entry point for the Bancada server application.
//
// Bancada is a real-time dashboard hub for tangram assembly orders. Factory
// dashboards connect over WebSocket and stay synchronized with order state:
// order creation, admission, status progression, piece stock levels, and
// notifications all fan out to every connected client the moment they change.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Store: Open BadgerDB and seed the piece catalog on first run
//  3. Event bus: In-process Watermill bus that fans mutations out to clients
//  4. WebSocket hub: Connection registry and broadcast loop
//  5. Domain: Notification center, dashboard aggregator, order lifecycle
//  6. HTTP server: REST API, WebSocket endpoint, Prometheus metrics
//
// All long-running components run under a suture supervisor tree, so a
// crashed hub or forwarder restarts without taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (unprefixed, allowlisted: HTTP_PORT, BADGER_PATH,
//     LOG_LEVEL, CORS_ORIGINS, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes all WebSocket clients and the event bus
//   - Closes the BadgerDB store
//
// # Port 7007
//
// The default port 7007 references the seven pieces of a tangram.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bancada/bancada/internal/api"
	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/dashboard"
	"github.com/bancada/bancada/internal/events"
	"github.com/bancada/bancada/internal/lifecycle"
	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/notify"
	"github.com/bancada/bancada/internal/store"
	"github.com/bancada/bancada/internal/supervisor"
	"github.com/bancada/bancada/internal/supervisor/services"
	ws "github.com/bancada/bancada/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Bancada with supervisor tree")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("in_memory", cfg.Database.InMemory).
		Int("assembly_count", cfg.Dashboard.AssemblyCount).
		Int("assembly_size", cfg.Dashboard.AssemblySize).
		Msg("Configuration loaded")

	st, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store opened successfully")

	if err := seedCatalog(context.Background(), st); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed piece catalog")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Event bus fans out mutations from both REST handlers and WebSocket
	// commands to every connected dashboard.
	bus := events.NewBus(cfg.Events.BufferSize)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	hub := ws.NewHub()

	forwarder, err := events.NewForwarder(bus, hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event forwarder")
	}

	notifier := notify.New(st, bus, cfg.Dashboard.NotificationLimit)
	aggregator := dashboard.New(st, &cfg.Dashboard)
	manager := lifecycle.New(st, notifier, aggregator, bus, cfg.Dashboard)
	wsRouter := ws.NewRouter(manager, notifier, aggregator, bus, cfg.Dashboard)

	handler := api.NewHandler(cfg, st, manager, aggregator, notifier, hub, wsRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(forwarder)
	logging.Info().Msg("WebSocket hub and event forwarder added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
