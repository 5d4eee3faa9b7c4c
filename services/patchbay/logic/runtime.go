// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// NotifyFunc is pinged from a timer goroutine when a tick is due. The
// receiver serializes however it likes and then calls FireTimer; pings for
// nodes that no longer exist are simply dropped there.
type NotifyFunc func(nodeID string)

// Runtime hosts one Unit per logic node and routes operations to them by
// node ID.
type Runtime struct {
	reg    *registry.Registry
	log    *logging.Logger
	notify NotifyFunc

	mu    sync.Mutex
	units map[string]Unit
}

// NewRuntime builds a Runtime. notify may be nil when no timer consumer
// exists, for instance in offline rendering.
func NewRuntime(reg *registry.Registry, log *logging.Logger, notify NotifyFunc) *Runtime {
	if log == nil {
		log = logging.Default()
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Runtime{
		reg:    reg,
		log:    log,
		notify: notify,
		units:  map[string]Unit{},
	}
}

// Create builds a unit for nodeID and applies the given initial properties
// in schema order. Native kinds are refused; an invalid property tears the
// half-built unit down and registers nothing.
func (r *Runtime) Create(nodeID string, kind registry.Kind, props map[string]any) (Unit, error) {
	def, err := r.reg.Lookup(kind)
	if err != nil {
		return nil, err
	}
	if def.Native {
		return nil, &UnsupportedKindError{Kind: kind}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[nodeID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, nodeID)
	}

	var u Unit
	switch kind {
	case registry.KindSlider:
		u = newSlider(nodeID, def, r.log)
	case registry.KindButton:
		u = newButton(nodeID, def, r.log)
	case registry.KindToggle:
		u = newToggle(nodeID, def, r.log)
	case registry.KindTimer:
		u = newTimer(nodeID, def, r.log, r.notify)
	case registry.KindNoteToFreq:
		u = newNoteToFreq(nodeID, def, r.log)
	case registry.KindCompare:
		u = newCompare(nodeID, def, r.log)
	case registry.KindMath:
		u = newMath(nodeID, def, r.log)
	case registry.KindDisplay:
		u = newDisplay(nodeID, def, r.log)
	default:
		return nil, &UnsupportedKindError{Kind: kind}
	}

	for _, p := range def.Params {
		value, ok := props[p.Name]
		if !ok || value == nil {
			continue
		}
		if err := u.SetProperty(p.Name, value); err != nil {
			u.Close()
			return nil, err
		}
	}

	r.units[nodeID] = u
	r.log.Debug("logic unit created", "node", nodeID, "kind", kind)
	return u, nil
}

// Get returns the unit for nodeID, if hosted.
func (r *Runtime) Get(nodeID string) (Unit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[nodeID]
	return u, ok
}

// SetProperty routes a property write to the unit for nodeID.
func (r *Runtime) SetProperty(nodeID, name string, value any) error {
	u, ok := r.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchUnit, nodeID)
	}
	return u.SetProperty(name, value)
}

// ReceiveInput delivers a value into a unit's input port. Deliveries to
// nodes the runtime no longer hosts are dropped.
func (r *Runtime) ReceiveInput(nodeID, input string, value float64) {
	if u, ok := r.Get(nodeID); ok {
		u.ReceiveInput(input, value)
	}
}

// Connect registers a consumer on a unit's output.
func (r *Runtime) Connect(nodeID, output string, key ConnKey, target Target) error {
	u, ok := r.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchUnit, nodeID)
	}
	return u.Connect(output, key, target)
}

// Disconnect removes a consumer. Safe when the node is already gone.
func (r *Runtime) Disconnect(nodeID, output string, key ConnKey) {
	if u, ok := r.Get(nodeID); ok {
		u.Disconnect(output, key)
	}
}

// Trigger fires a unit's momentary action.
func (r *Runtime) Trigger(nodeID string) error {
	u, ok := r.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchUnit, nodeID)
	}
	u.Trigger()
	return nil
}

// FireTimer emits a tick for nodeID if it is a live timer. Pings that
// outlive their node land here and evaporate.
func (r *Runtime) FireTimer(nodeID string) {
	u, ok := r.Get(nodeID)
	if !ok {
		return
	}
	if t, isTimer := u.(*TimerUnit); isTimer {
		t.Fire()
	}
}

// Destroy closes and forgets the unit for nodeID. After it returns, the
// unit delivers nothing further. Unknown IDs are a no-op.
func (r *Runtime) Destroy(nodeID string) {
	r.mu.Lock()
	u, ok := r.units[nodeID]
	delete(r.units, nodeID)
	r.mu.Unlock()

	if ok {
		u.Close()
		r.log.Debug("logic unit destroyed", "node", nodeID)
	}
}

// Reset destroys every hosted unit.
func (r *Runtime) Reset() {
	r.mu.Lock()
	units := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		units = append(units, u)
	}
	r.units = map[string]Unit{}
	r.mu.Unlock()

	for _, u := range units {
		u.Close()
	}
}

// Count returns the number of hosted units.
func (r *Runtime) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.units)
}
