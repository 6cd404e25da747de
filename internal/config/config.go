// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package config loads and validates the Bancada configuration via Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Events    EventsConfig    `koanf:"events"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds BadgerDB settings.
type DatabaseConfig struct {
	// Path is the Badger data directory. Empty with InMemory=true runs the
	// store fully in memory (tests, ephemeral deployments).
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// DashboardConfig holds the slot layout and stock settings of the assembly
// dashboard.
type DashboardConfig struct {
	// AssemblyCount is the number of assemblies per order.
	AssemblyCount int `koanf:"assembly_count"`

	// AssemblySize is the number of piece slots per assembly.
	AssemblySize int `koanf:"assembly_size"`

	// LowStockThreshold flags a piece as low stock when its quantity falls
	// below this value.
	LowStockThreshold int `koanf:"low_stock_threshold"`

	// NotificationLimit is the default page size for notification listings.
	NotificationLimit int `koanf:"notification_limit"`
}

// SlotCount returns the total piece slots per order.
func (d DashboardConfig) SlotCount() int {
	return d.AssemblyCount * d.AssemblySize
}

// EventsConfig holds the internal event bus settings.
type EventsConfig struct {
	// BufferSize is the per-subscriber channel buffer of the gochannel bus.
	BufferSize int `koanf:"buffer_size"`
}

// SecurityConfig holds the websocket origin policy and per-connection
// command rate limits.
type SecurityConfig struct {
	CORSOrigins []string `koanf:"cors_origins"`

	// CommandsPerSecond limits inbound websocket commands per connection.
	// Zero disables the limiter.
	CommandsPerSecond float64 `koanf:"commands_per_second"`
	CommandBurst      int     `koanf:"command_burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if c.Dashboard.AssemblyCount < 1 {
		return fmt.Errorf("dashboard.assembly_count must be positive, got %d", c.Dashboard.AssemblyCount)
	}
	if c.Dashboard.AssemblySize < 1 {
		return fmt.Errorf("dashboard.assembly_size must be positive, got %d", c.Dashboard.AssemblySize)
	}
	if c.Dashboard.LowStockThreshold < 0 {
		return fmt.Errorf("dashboard.low_stock_threshold must not be negative, got %d", c.Dashboard.LowStockThreshold)
	}
	if c.Dashboard.NotificationLimit < 1 {
		return fmt.Errorf("dashboard.notification_limit must be positive, got %d", c.Dashboard.NotificationLimit)
	}
	if c.Events.BufferSize < 1 {
		return fmt.Errorf("events.buffer_size must be positive, got %d", c.Events.BufferSize)
	}
	if c.Security.CommandsPerSecond < 0 {
		return fmt.Errorf("security.commands_per_second must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
