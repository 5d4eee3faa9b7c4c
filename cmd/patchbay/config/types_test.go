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
	"strings"
	"testing"
)

// TestServerConfig_GetPort verifies default fallback.
func TestServerConfig_GetPort(t *testing.T) {
	tests := []struct {
		name     string
		config   ServerConfig
		expected int
	}{
		{
			name:     "returns configured value",
			config:   ServerConfig{Port: 9000},
			expected: 9000,
		},
		{
			name:     "returns default when zero",
			config:   ServerConfig{Port: 0},
			expected: DefaultPort,
		},
		{
			name:     "returns default when negative",
			config:   ServerConfig{Port: -1},
			expected: DefaultPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetPort(); got != tt.expected {
				t.Errorf("GetPort() = %d, want %d", got, tt.expected)
			}
		})
	}
}

// TestServerConfig_Addr verifies host and port composition.
func TestServerConfig_Addr(t *testing.T) {
	tests := []struct {
		name     string
		config   ServerConfig
		expected string
	}{
		{
			name:     "configured host and port",
			config:   ServerConfig{Host: "0.0.0.0", Port: 8080},
			expected: "0.0.0.0:8080",
		},
		{
			name:     "zero value falls back everywhere",
			config:   ServerConfig{},
			expected: "127.0.0.1:12400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Addr(); got != tt.expected {
				t.Errorf("Addr() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestAudioConfig_Getters verifies sample rate and history fallbacks.
func TestAudioConfig_Getters(t *testing.T) {
	var zero AudioConfig
	if got := zero.GetSampleRate(); got != DefaultSampleRate {
		t.Errorf("GetSampleRate() = %v, want %v", got, DefaultSampleRate)
	}
	if got := zero.GetHistoryLimit(); got != DefaultHistoryLimit {
		t.Errorf("GetHistoryLimit() = %d, want %d", got, DefaultHistoryLimit)
	}

	cfg := AudioConfig{SampleRate: 48000, HistoryLimit: 32}
	if got := cfg.GetSampleRate(); got != 48000 {
		t.Errorf("GetSampleRate() = %v, want 48000", got)
	}
	if got := cfg.GetHistoryLimit(); got != 32 {
		t.Errorf("GetHistoryLimit() = %d, want 32", got)
	}
}

// TestLoggingConfig_GetLevel verifies default fallback.
func TestLoggingConfig_GetLevel(t *testing.T) {
	if got := (LoggingConfig{}).GetLevel(); got != DefaultLogLevel {
		t.Errorf("GetLevel() = %q, want %q", got, DefaultLogLevel)
	}
	if got := (LoggingConfig{Level: "debug"}).GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want %q", got, "debug")
	}
}

// TestDefaultConfig verifies storage paths land under the config home.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.ProjectDir == "" {
		t.Error("DefaultConfig() left Storage.ProjectDir empty")
	}
	if cfg.Storage.PresetDir == "" {
		t.Error("DefaultConfig() left Storage.PresetDir empty")
	}
	if !strings.HasSuffix(cfg.Storage.ProjectDir, "projects") {
		t.Errorf("Storage.ProjectDir = %q, want a projects directory", cfg.Storage.ProjectDir)
	}
	if cfg.Telemetry.Enabled {
		t.Error("DefaultConfig() enabled telemetry; tracing must be opt-in")
	}
}
