// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bancada/config.yaml",
	"/etc/bancada/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values. Defaults
// are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			// 7007: a tangram is seven pieces.
			Port:            7007,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:     "/data/bancada",
			InMemory: false,
		},
		Dashboard: DashboardConfig{
			AssemblyCount:     3,
			AssemblySize:      3,
			LowStockThreshold: 2,
			NotificationLimit: 10,
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			CommandsPerSecond: 20,
			CommandBurst:      40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration with layered sources (highest priority
// wins): environment variables, then an optional YAML file, then defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive through environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices for the
// known slice fields. YAML-sourced values are already slices and are left
// alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment noise cannot pollute
// the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		"badger_path":      "database.path",
		"badger_in_memory": "database.in_memory",

		"assembly_count":      "dashboard.assembly_count",
		"assembly_size":       "dashboard.assembly_size",
		"low_stock_threshold": "dashboard.low_stock_threshold",
		"notification_limit":  "dashboard.notification_limit",

		"events_buffer_size": "events.buffer_size",

		"cors_origins":        "security.cors_origins",
		"commands_per_second": "security.commands_per_second",
		"command_burst":       "security.command_burst",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
