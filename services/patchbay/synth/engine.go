// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synth is the in-process audio backend. It renders the unit graph
// in 128-frame stereo blocks using a demand-driven pull model: the
// destination asks its sources for a block, sources ask theirs, and each
// unit processes at most once per quantum. Feedback loops are legal and
// cost one block of latency.
//
// The engine runs either paced, with Resume starting a goroutine that
// renders in real time and hands blocks to an optional sink, or offline,
// where RenderFrames spins the graph as fast as it will go.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// DefaultSampleRate is used when the config does not pin a rate.
const DefaultSampleRate = 48000.0

// ErrEngineClosed is returned by operations on a closed engine.
var ErrEngineClosed = errors.New("synth: engine closed")

// ErrCaptureDenied is returned by CreateCaptureUnit when the engine was
// built with capture disabled.
var ErrCaptureDenied = errors.New("synth: capture permission denied")

// Config carries engine construction options. Zero values select the
// defaults, so synth.New(synth.Config{}) is a working engine.
type Config struct {
	SampleRate float64
	Registry   *registry.Registry
	Clips      ClipLibrary
	Log        *logging.Logger

	// DisableCapture makes CreateCaptureUnit fail with ErrCaptureDenied,
	// modeling a denied input-permission prompt.
	DisableCapture bool

	// Sink receives each rendered block while the engine is resumed.
	// Buffers are reused between blocks; copy before retaining.
	Sink func(left, right []float64)
}

// Engine implements engine.Backend over the pull graph in this package.
type Engine struct {
	sampleRate float64
	reg        *registry.Registry
	clips      ClipLibrary
	log        *logging.Logger
	dest       *unit
	captureOff bool

	mu      sync.Mutex
	gen     uint64
	running bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
	sink    func(left, right []float64)
}

var _ engine.Backend = (*Engine)(nil)

func New(cfg Config) *Engine {
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = DefaultSampleRate
	}
	reg := cfg.Registry
	if reg == nil {
		reg = registry.New()
	}
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}
	clips := cfg.Clips
	if clips == nil {
		clips = NewBuiltinLibrary(sr)
	}
	e := &Engine{
		sampleRate: sr,
		reg:        reg,
		clips:      clips,
		log:        log,
		captureOff: cfg.DisableCapture,
		sink:       cfg.Sink,
	}
	e.dest = newUnit(e, string(registry.KindOutput), destProc{})
	return e
}

func (e *Engine) SampleRate() float64 { return e.sampleRate }

func (e *Engine) Destination() engine.Unit { return e.dest }

// CreateUnit builds a synchronous unit for a native kind. Parameters are
// seeded from the registry defaults; discrete parameters become attributes.
func (e *Engine) CreateUnit(kind string, opts engine.UnitOptions) (engine.Unit, error) {
	def, err := e.reg.Lookup(registry.Kind(kind))
	if err != nil {
		return nil, err
	}
	if !def.Native {
		return nil, fmt.Errorf("synth: %s is not an audio unit", kind)
	}
	var proc processor
	switch def.Kind {
	case registry.KindOscillator:
		proc = &oscProc{}
	case registry.KindGain:
		proc = gainProc{}
	case registry.KindFilter:
		proc = &filterProc{}
	case registry.KindDelay:
		max := opts.MaxDelaySeconds
		if max <= 0 {
			max = engine.DefaultUnitOptions().MaxDelaySeconds
		}
		proc = newDelayProc(e.sampleRate, max)
	case registry.KindPanner:
		proc = pannerProc{}
	case registry.KindCompressor:
		proc = &compressorProc{}
	case registry.KindConvolver:
		proc = &convolverProc{}
	case registry.KindConstant:
		proc = constProc{}
	case registry.KindOutput:
		return e.dest, nil
	case registry.KindClip, registry.KindCapture:
		return nil, fmt.Errorf("synth: %s units require async construction", kind)
	default:
		return nil, fmt.Errorf("synth: no processor for kind %q", kind)
	}
	u := newUnit(e, kind, proc)
	e.seedParams(u, def)
	return u, nil
}

// CreateClipUnit decodes the named clip through the library and wraps it in
// a player unit.
func (e *Engine) CreateClipUnit(ctx context.Context, clipName string) (engine.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clip, err := e.clips.Load(ctx, clipName)
	if err != nil {
		return nil, fmt.Errorf("synth: load clip %q: %w", clipName, err)
	}
	def, err := e.reg.Lookup(registry.KindClip)
	if err != nil {
		return nil, err
	}
	u := newUnit(e, string(registry.KindClip), &clipProc{clip: clip})
	e.seedParams(u, def)
	u.attrs["clip"] = clipName
	return u, nil
}

// CreateCaptureUnit builds a live-input stand-in. Offline it renders
// silence; when the engine was configured with DisableCapture it fails
// with ErrCaptureDenied instead.
func (e *Engine) CreateCaptureUnit(ctx context.Context) (engine.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.captureOff {
		return nil, ErrCaptureDenied
	}
	return newUnit(e, string(registry.KindCapture), captureProc{}), nil
}

func (e *Engine) seedParams(u *unit, def registry.Definition) {
	for _, ps := range def.Params {
		if ps.Type == registry.ParamFloat && ps.Rate {
			initial := 0.0
			if v, ok := ps.Default.(float64); ok {
				initial = v
			}
			u.addParam(ps.Name, initial)
			continue
		}
		if ps.Default != nil {
			u.attrs[ps.Name] = ps.Default
		}
	}
}

// ============================================================================
// Transport
// ============================================================================

// Resume starts the paced render loop. Resuming a running engine is a
// no-op.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.running {
		return nil
	}
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.renderLoop(e.stop, e.done)
	return nil
}

// Suspend stops the render loop and waits for the in-flight block to
// finish.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	stop, done := e.stop, e.done
	e.mu.Unlock()
	close(stop)
	<-done
	return nil
}

// Close suspends and marks the engine unusable.
func (e *Engine) Close() error {
	if err := e.Suspend(); err != nil {
		return err
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) renderLoop(stop, done chan struct{}) {
	defer close(done)
	interval := time.Duration(float64(BlockSize) / e.sampleRate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l, r := e.RenderBlock()
			e.mu.Lock()
			sink := e.sink
			e.mu.Unlock()
			if sink != nil {
				sink(l, r)
			}
		}
	}
}

// SetSink replaces the block consumer. Pass nil to drop output on the
// floor.
func (e *Engine) SetSink(fn func(left, right []float64)) {
	e.mu.Lock()
	e.sink = fn
	e.mu.Unlock()
}

// RenderBlock advances the graph one quantum and returns the destination
// mix. The returned slices are reused on the next call.
func (e *Engine) RenderBlock() (left, right []float64) {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.mu.Unlock()
	return e.dest.pull(gen)
}
