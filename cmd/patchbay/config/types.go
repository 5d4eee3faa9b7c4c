// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fallbacks applied by the getters when a field is missing from the
// YAML file. Keeping them here means an old config keeps working after
// new fields are added.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 12400
	DefaultSampleRate   = 44100.0
	DefaultHistoryLimit = 100
	DefaultLogLevel     = "info"
)

type PatchbayConfig struct {
	// Server: where the HTTP and WebSocket API listens
	Server ServerConfig `yaml:"server"`

	// Audio: engine rate and editor history depth
	Audio AudioConfig `yaml:"audio"`

	// Storage: on-disk locations for projects and extra presets
	Storage StorageConfig `yaml:"storage"`

	// Logging: level and output shape shared by every command
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: optional OTLP trace export for the serve command
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host string `yaml:"host"` // e.g. 127.0.0.1
	Port int    `yaml:"port"` // e.g. 12400
}

type AudioConfig struct {
	SampleRate   float64 `yaml:"sample_rate"`   // e.g. 44100
	HistoryLimit int     `yaml:"history_limit"` // undo stack depth
}

type StorageConfig struct {
	ProjectDir string `yaml:"project_dir"` // BadgerDB directory, empty = in-memory
	PresetDir  string `yaml:"preset_dir"`  // watched *.json preset directory
}

type LoggingConfig struct {
	Level string `yaml:"level"`         // debug, info, warn, error
	JSON  bool   `yaml:"json"`          // JSON to stderr instead of text
	Dir   string `yaml:"dir,omitempty"` // file logging directory, empty disables
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint,omitempty"` // OTLP gRPC collector, e.g. localhost:4317
}

// GetHost returns the configured host or the default.
func (s ServerConfig) GetHost() string {
	if s.Host == "" {
		return DefaultHost
	}
	return s.Host
}

// GetPort returns the configured port or the default.
func (s ServerConfig) GetPort() int {
	if s.Port <= 0 {
		return DefaultPort
	}
	return s.Port
}

// Addr returns the host:port string the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GetHost(), s.GetPort())
}

// GetSampleRate returns the configured sample rate or the default.
func (a AudioConfig) GetSampleRate() float64 {
	if a.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return a.SampleRate
}

// GetHistoryLimit returns the configured undo depth or the default.
func (a AudioConfig) GetHistoryLimit() int {
	if a.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return a.HistoryLimit
}

// GetLevel returns the configured log level or the default.
func (l LoggingConfig) GetLevel() string {
	if l.Level == "" {
		return DefaultLogLevel
	}
	return l.Level
}

// DefaultConfig returns the configuration written on first run. Storage
// lives under ~/.patchbay next to the config file itself.
func DefaultConfig() PatchbayConfig {
	base := "."
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".patchbay")
	}
	return PatchbayConfig{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Audio: AudioConfig{
			SampleRate:   DefaultSampleRate,
			HistoryLimit: DefaultHistoryLimit,
		},
		Storage: StorageConfig{
			ProjectDir: filepath.Join(base, "projects"),
			PresetDir:  filepath.Join(base, "presets"),
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
			JSON:  false,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}
