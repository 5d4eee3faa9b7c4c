// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patchbay assembles the full service: kind registry, audio
// backend, engine adapter, event bus, graph store, project persistence,
// and preset catalog. Handlers and the CLI depend on this facade instead
// of wiring the layers themselves.
package patchbay

import (
	"fmt"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
	"github.com/AleutianAI/Patchbay/services/patchbay/observability"
	"github.com/AleutianAI/Patchbay/services/patchbay/preset"
	"github.com/AleutianAI/Patchbay/services/patchbay/project"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/synth"
)

// Version is the Patchbay service version.
const Version = "0.1.0"

// Config configures a Service. The zero value is a working in-memory
// setup: default sample rate, in-memory project store, built-in presets
// only, no metrics.
type Config struct {
	// SampleRate for the audio backend. 0 selects the backend default.
	SampleRate float64

	// HistoryLimit bounds the undo stack. 0 selects the store default.
	HistoryLimit int

	// ProjectDir is the BadgerDB directory for saved projects.
	// Empty selects an in-memory store (nothing survives the process).
	ProjectDir string

	// PresetDir is an optional directory of *.json preset snapshots.
	PresetDir string

	// Metrics, when set, has the service keep graph and engine gauges
	// current and count event fanout.
	Metrics *observability.Metrics

	Log *logging.Logger
}

// Service owns every layer of a running patchbay instance.
type Service struct {
	Registry *registry.Registry
	Backend  *synth.Engine
	Engine   *engine.Adapter
	Events   *events.Emitter
	Store    *graph.Store
	Projects *project.Store
	Presets  *preset.Catalog

	log       *logging.Logger
	metrics   *observability.Metrics
	metricSub string

	// gaugePing coalesces event-driven gauge refreshes. Store events are
	// delivered while the store lock is held, so the subscriber must not
	// read the store; the updater goroutine does it after the fact.
	gaugePing chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New assembles a service from the configuration. Call Close when done.
func New(cfg Config) (*Service, error) {
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}

	reg := registry.New()
	backend := synth.New(synth.Config{
		SampleRate: cfg.SampleRate,
		Registry:   reg,
		Log:        log,
	})
	eng := engine.NewAdapter(backend, reg, log)
	bus := events.NewEmitter()
	store := graph.New(graph.Options{
		Registry:     reg,
		Engine:       eng,
		Events:       bus,
		Log:          log,
		HistoryLimit: cfg.HistoryLimit,
	})

	pcfg := project.InMemoryConfig()
	if cfg.ProjectDir != "" {
		pcfg = project.DefaultConfig(cfg.ProjectDir)
	}
	pcfg.Logger = log
	projects, err := project.Open(pcfg)
	if err != nil {
		store.Close()
		_ = eng.Close()
		return nil, fmt.Errorf("open project store: %w", err)
	}

	presets := preset.New(preset.Options{Dir: cfg.PresetDir, Log: log})

	s := &Service{
		Registry:  reg,
		Backend:   backend,
		Engine:    eng,
		Events:    bus,
		Store:     store,
		Projects:  projects,
		Presets:   presets,
		log:       log,
		gaugePing: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	if cfg.Metrics != nil {
		s.metrics = cfg.Metrics
		s.metricSub = bus.Subscribe(s.onEvent)
		go s.gaugeLoop()
	} else {
		close(s.doneCh)
	}

	return s, nil
}

// Metrics returns the collector the service was built with, or nil when
// metrics are disabled.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// onEvent runs on the mutating goroutine with the store lock held. It only
// counts the event and pings the gauge loop.
func (s *Service) onEvent(ev *events.Event) {
	s.metrics.RecordEvent(string(ev.Type))
	select {
	case s.gaugePing <- struct{}{}:
	default:
	}
}

func (s *Service) gaugeLoop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.gaugePing:
			nodes, edges := s.Store.Counts()
			s.metrics.SetGraphSize(nodes, edges)
			s.metrics.SetLiveUnits(s.Engine.LiveCount())
			s.metrics.SetActiveBridges(s.Store.BridgeCount())
		}
	}
}

// Close tears the service down in dependency order: subscribers first,
// then the store (which owns node teardown), then the engine and the
// project database.
func (s *Service) Close() error {
	if s.metricSub != "" {
		s.Events.Unsubscribe(s.metricSub)
	}
	close(s.stopCh)
	<-s.doneCh

	s.Store.Close()
	errEngine := s.Engine.Close()
	errProjects := s.Projects.Close()

	if errEngine != nil {
		return fmt.Errorf("close engine: %w", errEngine)
	}
	if errProjects != nil {
		return fmt.Errorf("close project store: %w", errProjects)
	}
	return nil
}
