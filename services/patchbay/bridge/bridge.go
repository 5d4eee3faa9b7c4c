// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bridge carries control values from logic nodes into audio
// parameters. A bridge is a constant-signal unit patched into one parameter
// of one audio unit; logic emissions rewrite its offset, which the audio
// thread picks up on the next quantum.
//
// Bridges are shared. However many logic edges feed the same (node, param)
// pair, there is exactly one bridge, reference counted per edge, and the
// most recent write wins.
package bridge

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// Key identifies the parameter a bridge feeds.
type Key struct {
	NodeID string
	Param  string
}

type bridgeState struct {
	handle *engine.Handle
	refs   int
	value  float64
}

// Manager owns every live bridge. All methods are safe for concurrent use,
// though in practice the graph store serializes them.
type Manager struct {
	eng *engine.Adapter
	log *logging.Logger

	mu   sync.Mutex
	live map[Key]*bridgeState
}

func NewManager(eng *engine.Adapter, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		eng:  eng,
		log:  log,
		live: map[Key]*bridgeState{},
	}
}

// Ensure retains a bridge into target's param, creating and starting the
// generator on first use, and applies value as the current level. Each
// successful Ensure must be balanced by a Release.
func (m *Manager) Ensure(target *engine.Handle, param string, value float64) error {
	key := Key{NodeID: target.ID(), Param: param}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.live[key]; ok {
		b.refs++
		b.value = value
		if err := m.eng.SetParameter(b.handle, "offset", value); err != nil {
			b.refs--
			return fmt.Errorf("bridge: update %s.%s: %w", key.NodeID, key.Param, err)
		}
		return nil
	}

	h, err := m.eng.CreateUnit(registry.KindConstant, map[string]any{"offset": value})
	if err != nil {
		return fmt.Errorf("bridge: create generator for %s.%s: %w", key.NodeID, key.Param, err)
	}
	if err := m.eng.ConnectParam(h, target, param); err != nil {
		m.eng.DestroyUnit(h)
		return fmt.Errorf("bridge: patch %s.%s: %w", key.NodeID, key.Param, err)
	}
	m.live[key] = &bridgeState{handle: h, refs: 1, value: value}
	m.log.Debug("bridge created", "node", key.NodeID, "param", key.Param, "value", value)
	return nil
}

// Update rewrites the level of an existing bridge. Values arriving for a
// pair with no bridge are dropped; a logic node may still emit in the
// moment between edge removal and its own teardown.
func (m *Manager) Update(nodeID, param string, value float64) error {
	key := Key{NodeID: nodeID, Param: param}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.live[key]
	if !ok {
		return nil
	}
	b.value = value
	if err := m.eng.SetParameter(b.handle, "offset", value); err != nil {
		return fmt.Errorf("bridge: update %s.%s: %w", key.NodeID, key.Param, err)
	}
	return nil
}

// Release drops one reference. The generator is destroyed when the last
// edge feeding the pair goes away. Releasing an unknown pair is a no-op.
func (m *Manager) Release(nodeID, param string) {
	key := Key{NodeID: nodeID, Param: param}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.live[key]
	if !ok {
		return
	}
	b.refs--
	if b.refs > 0 {
		return
	}
	m.eng.DestroyUnit(b.handle)
	delete(m.live, key)
	m.log.Debug("bridge released", "node", key.NodeID, "param", key.Param)
}

// ReleaseNode tears down every bridge feeding the given node regardless of
// reference count, for node removal.
func (m *Manager) ReleaseNode(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.live {
		if key.NodeID != nodeID {
			continue
		}
		m.eng.DestroyUnit(b.handle)
		delete(m.live, key)
	}
}

// Reset destroys every bridge.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.live {
		m.eng.DestroyUnit(b.handle)
		delete(m.live, key)
	}
}

// Count reports the number of live bridges.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Refs reports the reference count for a pair, zero when absent.
func (m *Manager) Refs(nodeID, param string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.live[Key{NodeID: nodeID, Param: param}]; ok {
		return b.refs
	}
	return 0
}

// Value reports the last level written to a pair.
func (m *Manager) Value(nodeID, param string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.live[Key{NodeID: nodeID, Param: param}]; ok {
		return b.value, true
	}
	return 0, false
}
