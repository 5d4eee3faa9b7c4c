// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry is the static catalog of node kinds the editor can place:
// which kinds exist, whether they are backed by a native audio unit or by the
// logic runtime, their input/output ports, and their parameter schemas.
//
// # Description
//
// The catalog is built once at startup and read-only afterwards. The graph
// store consults it to classify nodes and edges, the logic runtime and engine
// adapter consult it for parameter validation and defaults, and the API layer
// serves it verbatim so a UI can render palettes and property panels without
// hardcoding kind knowledge.
//
// # Thread Safety
//
// A Registry is immutable after New returns and safe for concurrent readers.
package registry

import (
	"math"
)

// Kind identifies a node type.
type Kind string

// Native kinds (backed by an engine processing unit).
const (
	KindOscillator Kind = "oscillator"
	KindGain       Kind = "gain"
	KindFilter     Kind = "filter"
	KindDelay      Kind = "delay"
	KindPanner     Kind = "panner"
	KindCompressor Kind = "compressor"
	KindConvolver  Kind = "convolver"
	KindConstant   Kind = "constant"
	KindClip       Kind = "clip"
	KindCapture    Kind = "capture"
	KindOutput     Kind = "output"
)

// Logic kinds (backed by the logic runtime).
const (
	KindSlider     Kind = "slider"
	KindButton     Kind = "button"
	KindToggle     Kind = "toggle"
	KindTimer      Kind = "timer"
	KindNoteToFreq Kind = "note-to-freq"
	KindCompare    Kind = "compare"
	KindMath       Kind = "math"
	KindDisplay    Kind = "display"
)

// Signal classifies what a port carries.
type Signal string

const (
	// SignalAudio is a continuous audio-rate stream between native units.
	SignalAudio Signal = "audio"

	// SignalControl is a discrete control-rate value emitted by logic nodes.
	SignalControl Signal = "control"
)

// ParamType is the declared value type of a parameter.
type ParamType string

const (
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamEnum   ParamType = "enum"
	ParamString ParamType = "string"
)

// Port declares a named input or output on a kind.
type Port struct {
	Name   string `json:"name"`
	Signal Signal `json:"signal"`
}

// ParamSpec declares one parameter of a kind's schema.
//
// Rate marks parameters that ride the engine's smoothed-parameter path
// (frequency, gain, delay time, ...); non-rate parameters are discrete
// attributes (waveform, loop flag, operator). Min/Max are honored only when
// HasRange is set; enum parameters list their legal Values.
type ParamSpec struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Default  any       `json:"default"`
	Min      float64   `json:"min,omitempty"`
	Max      float64   `json:"max,omitempty"`
	HasRange bool      `json:"hasRange,omitempty"`
	Values   []string  `json:"values,omitempty"`
	Rate     bool      `json:"rate,omitempty"`
}

// Definition is the full declaration of one node kind.
//
// # Fields
//
//   - Kind: the catalog key.
//   - Label: human-readable name for palettes.
//   - Native: true when the kind owns a native engine unit, false for logic.
//   - Async: unit acquisition is asynchronous (decode, permission grant).
//   - Transport: the native unit has start/stop transport semantics.
//   - OneShot: the transport may be started at most once per unit.
//   - Inputs/Outputs: declared ports, in display order.
//   - Params: parameter schema, in display order.
type Definition struct {
	Kind      Kind        `json:"kind"`
	Label     string      `json:"label"`
	Native    bool        `json:"native"`
	Async     bool        `json:"async,omitempty"`
	Transport bool        `json:"transport,omitempty"`
	OneShot   bool        `json:"oneShot,omitempty"`
	Inputs    []Port      `json:"inputs"`
	Outputs   []Port      `json:"outputs"`
	Params    []ParamSpec `json:"params"`
}

// Input returns the declared input port with the given name, or nil. The
// result is a copy; definitions are immutable.
func (d Definition) Input(name string) *Port {
	for _, p := range d.Inputs {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// Output returns the declared output port with the given name, or nil.
func (d Definition) Output(name string) *Port {
	for _, p := range d.Outputs {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// Param returns the parameter spec with the given name, or nil.
func (d Definition) Param(name string) *ParamSpec {
	for _, p := range d.Params {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// IsRateParam reports whether name is a continuous smoothed parameter of this
// kind. Rate parameters are legal edge targets for logic outputs and for
// native parameter modulation.
func (d Definition) IsRateParam(name string) bool {
	p := d.Param(name)
	return p != nil && p.Rate
}

// Registry is the immutable kind catalog.
type Registry struct {
	defs  map[Kind]Definition
	order []Kind
}

// New builds the catalog of built-in kinds.
func New() *Registry {
	r := &Registry{defs: make(map[Kind]Definition)}
	for _, d := range builtinKinds() {
		r.defs[d.Kind] = d
		r.order = append(r.order, d.Kind)
	}
	return r
}

// Lookup returns the definition for kind.
//
// # Inputs
//
//   - kind: the catalog key to resolve.
//
// # Outputs
//
//   - Definition: the kind's declaration.
//   - error: *UnknownKindError when the kind is not in the catalog.
func (r *Registry) Lookup(kind Kind) (Definition, error) {
	d, ok := r.defs[kind]
	if !ok {
		return Definition{}, &UnknownKindError{Kind: kind}
	}
	return d, nil
}

// Kinds returns every definition in stable catalog order.
func (r *Registry) Kinds() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.defs[k])
	}
	return out
}

// IsLogic reports whether kind is a registered logic kind. Unknown kinds
// report false.
func (r *Registry) IsLogic(kind Kind) bool {
	d, ok := r.defs[kind]
	return ok && !d.Native
}

// IsNative reports whether kind is a registered native kind. Unknown kinds
// report false.
func (r *Registry) IsNative(kind Kind) bool {
	d, ok := r.defs[kind]
	return ok && d.Native
}

// Defaults returns a fresh property map holding every parameter's declared
// default. The map is owned by the caller.
func (r *Registry) Defaults(kind Kind) (map[string]any, error) {
	d, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		props[p.Name] = p.Default
	}
	return props, nil
}

// ClampFloat clamps v into the spec's declared range. Specs without a range
// pass v through. NaN and infinities collapse to the default (or 0 when the
// default is not numeric) so malformed values never reach a runtime unit.
func (p ParamSpec) ClampFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if d, ok := toFloat(p.Default); ok {
			return d
		}
		return 0
	}
	if !p.HasRange {
		return v
	}
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// AllowsValue reports whether v is a member of an enum spec's legal values.
// Non-enum specs allow any string.
func (p ParamSpec) AllowsValue(v string) bool {
	if p.Type != ParamEnum {
		return true
	}
	for _, s := range p.Values {
		if s == v {
			return true
		}
	}
	return false
}

// Normalize validates v against the spec and returns the value to store and
// apply. Floats are coerced from any numeric type and clamped into the
// declared range; NaN and infinities collapse to the default. A nil value is
// passed through untouched (nil means "unset" and appliers skip it). Values
// that cannot be coerced return *InvalidPropertyError and must not be
// applied.
func (p ParamSpec) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch p.Type {
	case ParamFloat:
		f, ok := toFloat(v)
		if !ok {
			return nil, &InvalidPropertyError{Param: p.Name, Value: v, Reason: "expected a number"}
		}
		return p.ClampFloat(f), nil
	case ParamBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &InvalidPropertyError{Param: p.Name, Value: v, Reason: "expected a boolean"}
		}
		return b, nil
	case ParamEnum:
		s, ok := v.(string)
		if !ok {
			return nil, &InvalidPropertyError{Param: p.Name, Value: v, Reason: "expected a string"}
		}
		if !p.AllowsValue(s) {
			return nil, &InvalidPropertyError{Param: p.Name, Value: v, Reason: "not one of the declared values"}
		}
		return s, nil
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return nil, &InvalidPropertyError{Param: p.Name, Value: v, Reason: "expected a string"}
		}
		return s, nil
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
