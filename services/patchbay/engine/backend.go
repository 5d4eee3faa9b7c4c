// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine owns the native audio unit lifecycle. The Adapter is the
// only component that talks to a Backend; the graph store calls the Adapter
// and never sees backend units directly.
//
// # Description
//
// A Backend is the opaque audio engine: it makes processing units, exposes
// the destination mixer, and gates the transport clock. The package ships no
// backend of its own; synth provides the in-process one, and anything
// honoring these interfaces (a remote engine, a test fake) slots in
// unchanged.
package engine

import "context"

// Backend abstracts the audio engine. Process-wide: created once and shared
// by every unit the Adapter makes.
type Backend interface {
	// SampleRate returns the engine sample rate in Hz.
	SampleRate() float64

	// CreateUnit instantiates a processing unit for a native kind.
	// Constructor-time options (a delay line's maximum length) come from
	// opts; runtime parameters are applied afterwards through the unit.
	CreateUnit(kind string, opts UnitOptions) (Unit, error)

	// CreateClipUnit decodes the named clip and returns a one-shot player
	// for it. Decoding may be slow; the context cancels it. The returned
	// unit is not started.
	CreateClipUnit(ctx context.Context, clipName string) (Unit, error)

	// CreateCaptureUnit acquires a live input source. Acquisition is
	// permission-gated and may block on the grant; the context cancels it.
	CreateCaptureUnit(ctx context.Context) (Unit, error)

	// Destination returns the engine's terminal mixer. There is exactly
	// one; it is never disposed.
	Destination() Unit

	// Resume starts the transport clock.
	Resume() error

	// Suspend halts the transport clock without tearing anything down.
	Suspend() error

	// Close releases the engine. All units become unusable.
	Close() error
}

// Unit is one native processing unit.
//
// Connect/Disconnect calls are edge-level plumbing: Disconnect variants must
// be safe to call when the underlying connection no longer exists.
type Unit interface {
	// Kind returns the native kind this unit was created as.
	Kind() string

	// Param resolves a continuous rate parameter by name.
	Param(name string) (Param, bool)

	// SetAttribute assigns a discrete parameter (waveform, loop flag).
	SetAttribute(name string, value any) error

	// Connect wires this unit's audio output to dst's audio input.
	Connect(dst Unit) error

	// ConnectParam wires this unit's audio output to a named rate
	// parameter of dst (parameter modulation).
	ConnectParam(dst Unit, param string) error

	// Disconnect removes the audio connection to dst, if present.
	Disconnect(dst Unit)

	// DisconnectParam removes the parameter connection, if present.
	DisconnectParam(dst Unit, param string)

	// DisconnectAll removes every outgoing connection.
	DisconnectAll()

	// Start begins transport for source units; a no-op for others.
	Start()

	// Stop halts transport for source units; a no-op for others.
	Stop()

	// Dispose releases the unit's resources. The unit must not be used
	// afterwards.
	Dispose()
}

// Param is a continuous, smoothed engine parameter. SetValue applies the
// value immediately (no scheduled automation curve).
type Param interface {
	Name() string
	Value() float64
	SetValue(v float64)
}

// UnitOptions carries constructor-time settings for CreateUnit. Kinds that
// need a fixed allocation at construction read their field here; everything
// else ignores it.
type UnitOptions struct {
	// MaxDelaySeconds sizes a delay line's buffer. Zero means the default.
	MaxDelaySeconds float64
}

// DefaultUnitOptions returns the options the Adapter uses unless told
// otherwise. The 5 second delay ceiling matches the registry's delayTime
// range.
func DefaultUnitOptions() UnitOptions {
	return UnitOptions{MaxDelaySeconds: 5}
}
