// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logic hosts the control-side node kinds: the ones that carry no
// audio and exist only to compute and push scalar values at UI speed.
//
// # Description
//
// Each logic node gets a Unit. Units propagate synchronously: a property
// write or an input delivery that changes an output value invokes the
// registered consumer targets before the call returns. Non-finite values
// never leave a unit; they are dropped at the emission gate with a warning.
//
// Threading contract: every Unit method except the timer's internal notify
// hook is called under the graph store's writer lock. The timer goroutine
// never touches consumers directly; it pings the hook it was built with and
// the owner calls back into Fire under its own lock.
package logic

import (
	"fmt"
	"math"
	"sync"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// maxEmitDepth bounds synchronous propagation through any single unit, so a
// divergent feedback loop degrades into dropped updates instead of stack
// exhaustion.
const maxEmitDepth = 64

// ConnKey identifies one consumer of a logic output: which node, and which
// of its inputs or parameters the value lands on.
type ConnKey struct {
	Consumer string
	Input    string
}

// Target receives propagated values. Deliver runs synchronously on the
// emitting goroutine.
type Target interface {
	Deliver(input string, value float64)
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(input string, value float64)

func (f TargetFunc) Deliver(input string, value float64) { f(input, value) }

// Unit is one live logic node.
type Unit interface {
	// ID returns the graph node ID the unit belongs to.
	ID() string

	// Kind returns the logic kind.
	Kind() registry.Kind

	// SetProperty validates value against the kind's schema, applies it,
	// and propagates any output change.
	SetProperty(name string, value any) error

	// ReceiveInput delivers a value into a named input port. Unknown
	// ports are ignored.
	ReceiveInput(input string, value float64)

	// Connect registers a consumer for an output. It does not push the
	// current value; callers that want an initial push read Value first.
	Connect(output string, key ConnKey, target Target) error

	// Disconnect removes a consumer. Unknown keys are ignored.
	Disconnect(output string, key ConnKey)

	// Value returns the last value emitted on output, if any.
	Value(output string) (float64, bool)

	// Trigger fires the unit's momentary action, if it has one.
	Trigger()

	// Close tears the unit down. After Close returns, no consumer is
	// invoked again on this unit's behalf.
	Close()
}

// ============================================================================
// baseUnit
// ============================================================================

// baseUnit carries the plumbing every kind shares: identity, consumers, last
// emitted values, and the emission gate.
type baseUnit struct {
	id  string
	def registry.Definition
	log *logging.Logger

	mu     sync.Mutex
	conns  map[string]map[ConnKey]Target
	vals   map[string]float64
	has    map[string]bool
	depth  int
	closed bool
}

func newBaseUnit(id string, def registry.Definition, log *logging.Logger) baseUnit {
	return baseUnit{
		id:    id,
		def:   def,
		log:   log,
		conns: map[string]map[ConnKey]Target{},
		vals:  map[string]float64{},
		has:   map[string]bool{},
	}
}

func (u *baseUnit) ID() string          { return u.id }
func (u *baseUnit) Kind() registry.Kind { return u.def.Kind }

func (u *baseUnit) Connect(output string, key ConnKey, target Target) error {
	if u.def.Output(output) == nil {
		return fmt.Errorf("%w: %s has no output %q", ErrUnknownPort, u.def.Kind, output)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	if u.conns[output] == nil {
		u.conns[output] = map[ConnKey]Target{}
	}
	u.conns[output][key] = target
	return nil
}

func (u *baseUnit) Disconnect(output string, key ConnKey) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if targets, ok := u.conns[output]; ok {
		delete(targets, key)
	}
}

func (u *baseUnit) Value(output string) (float64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.has[output] {
		return 0, false
	}
	return u.vals[output], true
}

// Trigger is a no-op for kinds without a momentary action.
func (u *baseUnit) Trigger() {}

// ReceiveInput is a no-op for kinds without inputs.
func (u *baseUnit) ReceiveInput(input string, value float64) {}

func (u *baseUnit) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.conns = nil
}

// emit records value for output and delivers it to every registered
// consumer. Non-finite values are dropped. Unless force is set, a value
// equal to the last emitted one is suppressed, which is what lets stable
// feedback loops settle.
func (u *baseUnit) emit(output string, value float64, force bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		u.log.Warn("dropped non-finite logic value",
			"node", u.id, "kind", u.def.Kind, "output", output)
		return
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	if !force && u.has[output] && u.vals[output] == value {
		u.mu.Unlock()
		return
	}
	if u.depth >= maxEmitDepth {
		u.mu.Unlock()
		u.log.Warn("logic propagation depth exceeded, dropping update",
			"node", u.id, "output", output)
		return
	}
	u.vals[output] = value
	u.has[output] = true
	u.depth++
	targets := make(map[ConnKey]Target, len(u.conns[output]))
	for key, t := range u.conns[output] {
		targets[key] = t
	}
	u.mu.Unlock()

	for key, target := range targets {
		target.Deliver(key.Input, value)
	}

	u.mu.Lock()
	u.depth--
	u.mu.Unlock()
}

// normalize runs value through the kind's schema for name.
func (u *baseUnit) normalize(name string, value any) (any, error) {
	p := u.def.Param(name)
	if p == nil {
		return nil, &registry.UnknownParamError{Kind: u.def.Kind, Param: name}
	}
	return p.Normalize(value)
}

// normalizeFloat is normalize for parameters known to be floats. The bool
// is false when value was nil, which callers treat as leave-unchanged.
func (u *baseUnit) normalizeFloat(name string, value any) (float64, bool, error) {
	norm, err := u.normalize(name, value)
	if err != nil || norm == nil {
		return 0, false, err
	}
	f, ok := norm.(float64)
	return f, ok, nil
}
