// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// ============================================================================
// Handle
// ============================================================================

// Handle is the store's grip on one native unit. The store keeps handles on
// node records and hands them back to the Adapter for every operation; the
// underlying Unit never leaves this package except through OutputUnit.
type Handle struct {
	id   string
	kind registry.Kind
	def  registry.Definition
	unit Unit

	mu        sync.Mutex
	started   bool
	destroyed bool
	shared    bool
}

// ID returns the handle's identifier, distinct from any graph node ID.
func (h *Handle) ID() string { return h.id }

// Kind returns the native kind the handle was created for.
func (h *Handle) Kind() registry.Kind { return h.kind }

// Started reports whether the unit's transport has been started.
func (h *Handle) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Destroyed reports whether the unit has been released.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// ============================================================================
// Adapter
// ============================================================================

// Adapter mediates between the graph store and a Backend. It owns unit
// lifecycle, routes parameter writes to the smoothed or the discrete path,
// and keeps destruction idempotent so teardown paths can overlap redundant
// work safely.
type Adapter struct {
	backend Backend
	reg     *registry.Registry
	log     *logging.Logger

	mu   sync.Mutex
	live map[string]*Handle
}

// NewAdapter wires an Adapter over the given backend. The registry supplies
// parameter schemas; every value reaching the backend has been normalized
// against them first.
func NewAdapter(backend Backend, reg *registry.Registry, log *logging.Logger) *Adapter {
	if log == nil {
		log = logging.Default()
	}
	return &Adapter{
		backend: backend,
		reg:     reg,
		log:     log,
		live:    map[string]*Handle{},
	}
}

// SampleRate exposes the backend sample rate.
func (a *Adapter) SampleRate() float64 { return a.backend.SampleRate() }

// Resume starts the backend transport clock.
func (a *Adapter) Resume() error { return a.backend.Resume() }

// Suspend halts the backend transport clock.
func (a *Adapter) Suspend() error { return a.backend.Suspend() }

// Close releases the backend itself. Live handles become unusable.
func (a *Adapter) Close() error { return a.backend.Close() }

// LiveCount returns the number of handles created and not yet destroyed.
// Teardown paths assert this reaches zero.
func (a *Adapter) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// ============================================================================
// Creation
// ============================================================================

// CreateUnit builds a native unit for kind and applies the given initial
// properties in schema order. Nil property values are skipped. Kinds whose
// definition marks them Transport are started exactly once, here. On any
// failure the partially built unit is disposed and nothing is registered.
//
// Kinds that acquire their resource asynchronously must go through
// CreateClipUnit or CreateCaptureUnit instead.
func (a *Adapter) CreateUnit(kind registry.Kind, props map[string]any) (*Handle, error) {
	def, err := a.reg.Lookup(kind)
	if err != nil {
		return nil, err
	}
	if !def.Native {
		return nil, fmt.Errorf("%w: %q", ErrNotNative, kind)
	}
	if def.Async {
		return nil, fmt.Errorf("%w: %q", ErrAsyncKind, kind)
	}

	if kind == registry.KindOutput {
		return a.register(newHandle(kind, def, a.backend.Destination(), true)), nil
	}

	unit, err := a.backend.CreateUnit(string(kind), a.unitOptions(def))
	if err != nil {
		return nil, &NativeResourceError{Op: "create", Kind: string(kind), Err: err}
	}

	h := newHandle(kind, def, unit, false)
	if err := a.applyInitial(h, props); err != nil {
		unit.Dispose()
		return nil, err
	}
	a.startTransportKinds(h)
	return a.register(h), nil
}

// CreateClipUnit acquires a one-shot clip player. The clip is decoded under
// ctx; cancellation aborts the acquisition with nothing registered. Playback
// starts as soon as the unit exists.
func (a *Adapter) CreateClipUnit(ctx context.Context, clipName string, props map[string]any) (*Handle, error) {
	def, err := a.reg.Lookup(registry.KindClip)
	if err != nil {
		return nil, err
	}

	unit, err := a.backend.CreateClipUnit(ctx, clipName)
	if err != nil {
		return nil, &NativeResourceError{Op: "acquire", Kind: string(registry.KindClip), Err: err}
	}

	h := newHandle(registry.KindClip, def, unit, false)
	// The clip name is constructor input, already consumed by the backend.
	if err := a.applyInitial(h, props, "clip"); err != nil {
		unit.Dispose()
		return nil, err
	}
	a.startTransportKinds(h)
	return a.register(h), nil
}

// CreateCaptureUnit acquires a live input source under ctx. The grant may
// take arbitrarily long or be refused; either way nothing is registered
// until it resolves.
func (a *Adapter) CreateCaptureUnit(ctx context.Context) (*Handle, error) {
	def, err := a.reg.Lookup(registry.KindCapture)
	if err != nil {
		return nil, err
	}

	unit, err := a.backend.CreateCaptureUnit(ctx)
	if err != nil {
		return nil, &NativeResourceError{Op: "acquire", Kind: string(registry.KindCapture), Err: err}
	}
	return a.register(newHandle(registry.KindCapture, def, unit, false)), nil
}

func newHandle(kind registry.Kind, def registry.Definition, unit Unit, shared bool) *Handle {
	return &Handle{
		id:     uuid.New().String(),
		kind:   kind,
		def:    def,
		unit:   unit,
		shared: shared,
	}
}

func (a *Adapter) register(h *Handle) *Handle {
	a.mu.Lock()
	a.live[h.id] = h
	a.mu.Unlock()
	a.log.Debug("native unit created", "kind", h.kind, "handle", h.id)
	return h
}

// unitOptions derives constructor options from the parameter schema, so a
// kind whose range widens in the registry gets a matching allocation.
func (a *Adapter) unitOptions(def registry.Definition) UnitOptions {
	opts := DefaultUnitOptions()
	if p := def.Param("delayTime"); p != nil && p.HasRange {
		opts.MaxDelaySeconds = p.Max
	}
	return opts
}

// applyInitial walks the schema in declaration order and applies any
// matching non-nil property. Unknown keys in props are ignored here; the
// store keeps them on the node record for kinds that grow parameters later.
func (a *Adapter) applyInitial(h *Handle, props map[string]any, skip ...string) error {
	if len(props) == 0 {
		return nil
	}
	for _, p := range h.def.Params {
		if contains(skip, p.Name) {
			continue
		}
		value, ok := props[p.Name]
		if !ok || value == nil {
			continue
		}
		if err := a.setParam(h, &p, value); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) startTransportKinds(h *Handle) {
	if !h.def.Transport {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.unit.Start()
	h.started = true
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// ============================================================================
// Parameters
// ============================================================================

// SetParameter normalizes value against kind's schema and routes it: rate
// parameters go through the smoothed engine path, everything else through a
// discrete attribute write. A nil value is a deliberate no-op.
func (a *Adapter) SetParameter(h *Handle, name string, value any) error {
	if value == nil {
		return nil
	}
	if err := a.guard(h, "set"); err != nil {
		return err
	}
	p := h.def.Param(name)
	if p == nil {
		return &registry.UnknownParamError{Kind: h.kind, Param: name}
	}
	return a.setParam(h, p, value)
}

func (a *Adapter) setParam(h *Handle, p *registry.ParamSpec, value any) error {
	norm, err := p.Normalize(value)
	if err != nil {
		return err
	}
	if norm == nil {
		return nil
	}

	if p.Rate && p.Type == registry.ParamFloat {
		param, ok := h.unit.Param(p.Name)
		if !ok {
			return &NativeResourceError{
				Op:   "set",
				Kind: string(h.kind),
				Err:  fmt.Errorf("rate parameter %q not exposed by unit", p.Name),
			}
		}
		param.SetValue(norm.(float64))
		return nil
	}

	if err := h.unit.SetAttribute(p.Name, norm); err != nil {
		return &NativeResourceError{Op: "set", Kind: string(h.kind), Err: err}
	}
	return nil
}

// ============================================================================
// Topology
// ============================================================================

// Connect wires src's audio output into dst's audio input.
func (a *Adapter) Connect(src, dst *Handle) error {
	if err := a.guard(src, "connect"); err != nil {
		return err
	}
	if err := a.guard(dst, "connect"); err != nil {
		return err
	}
	if err := src.unit.Connect(dst.unit); err != nil {
		return &NativeResourceError{Op: "connect", Kind: string(src.kind), Err: err}
	}
	return nil
}

// ConnectParam wires src's audio output into a named rate parameter of dst.
// The target parameter must be continuous; discrete attributes cannot be
// modulated.
func (a *Adapter) ConnectParam(src, dst *Handle, param string) error {
	if err := a.guard(src, "connect-param"); err != nil {
		return err
	}
	if err := a.guard(dst, "connect-param"); err != nil {
		return err
	}
	p := dst.def.Param(param)
	if p == nil {
		return &registry.UnknownParamError{Kind: dst.kind, Param: param}
	}
	if !p.Rate || p.Type != registry.ParamFloat {
		return &NativeResourceError{
			Op:   "connect-param",
			Kind: string(dst.kind),
			Err:  fmt.Errorf("parameter %q is not modulatable", param),
		}
	}
	if err := src.unit.ConnectParam(dst.unit, param); err != nil {
		return &NativeResourceError{Op: "connect-param", Kind: string(src.kind), Err: err}
	}
	return nil
}

// Disconnect removes the audio connection from src to dst. Safe to call
// when the connection, or either unit, is already gone.
func (a *Adapter) Disconnect(src, dst *Handle) {
	if src == nil || dst == nil || src.Destroyed() || dst.Destroyed() {
		return
	}
	src.unit.Disconnect(dst.unit)
}

// DisconnectParam removes a parameter connection with the same tolerance as
// Disconnect.
func (a *Adapter) DisconnectParam(src, dst *Handle, param string) {
	if src == nil || dst == nil || src.Destroyed() || dst.Destroyed() {
		return
	}
	src.unit.DisconnectParam(dst.unit, param)
}

// ============================================================================
// Transport and teardown
// ============================================================================

// StartTransport starts the unit's transport exactly once. A second call is
// a guarded no-op; engines reject double starts, so the flag absorbs them
// here. To replay a one-shot kind, build a fresh unit instead.
func (a *Adapter) StartTransport(h *Handle) error {
	if err := a.guard(h, "start"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	h.unit.Start()
	h.started = true
	return nil
}

// StopTransport halts the unit's transport if it is running.
func (a *Adapter) StopTransport(h *Handle) error {
	if err := a.guard(h, "stop"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil
	}
	h.unit.Stop()
	h.started = false
	return nil
}

// DestroyUnit stops transport, severs every outgoing connection, and
// releases the unit. Calling it again on the same handle does nothing. The
// shared destination is detached but never disposed.
func (a *Adapter) DestroyUnit(h *Handle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	if h.started {
		h.unit.Stop()
		h.started = false
	}
	h.unit.DisconnectAll()
	if !h.shared {
		h.unit.Dispose()
	}
	h.destroyed = true
	h.mu.Unlock()

	a.mu.Lock()
	delete(a.live, h.id)
	a.mu.Unlock()
	a.log.Debug("native unit destroyed", "kind", h.kind, "handle", h.id)
}

// OutputUnit exposes the underlying unit for callers that need to hand it to
// the backend directly, such as a render tap. The handle must still be live.
func (a *Adapter) OutputUnit(h *Handle) (Unit, error) {
	if err := a.guard(h, "output"); err != nil {
		return nil, err
	}
	return h.unit, nil
}

func (a *Adapter) guard(h *Handle, op string) error {
	if h == nil {
		return &NativeResourceError{Op: op, Err: errors.New("nil handle")}
	}
	if h.Destroyed() {
		return &NativeResourceError{Op: op, Kind: string(h.kind), Err: ErrUnitDestroyed}
	}
	return nil
}
