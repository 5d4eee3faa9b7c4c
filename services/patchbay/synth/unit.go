// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synth

import (
	"fmt"
	"math"
	"sync"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
)

// BlockSize is the render quantum in frames. Every buffer in the graph is
// exactly this long and the whole graph advances one quantum at a time.
const BlockSize = 128

// smoothingCutoffHz sets the one-pole lag on rate parameters. Around 16 Hz
// the step response settles in ~50ms, enough to absorb zipper noise from UI
// writes without feeling sluggish.
const smoothingCutoffHz = 16.0

// processor is the DSP core of a unit: it reads u.in and the resolved
// parameter buffers and writes u.out. Implementations are only ever called
// from the render goroutine.
type processor interface {
	process(u *unit, gen uint64)
}

// starter is implemented by processors that need to reset on transport
// start, like a clip rewinding to frame zero.
type starter interface {
	onStart()
}

// paramRef identifies a modulated parameter on a destination unit.
type paramRef struct {
	dst  *unit
	name string
}

// ============================================================================
// param
// ============================================================================

// param is a continuous unit parameter with a smoothed control value and
// optional audio-rate modulation inputs. SetValue moves the target; the
// render path eases the live value toward it each sample and then adds the
// downmixed modulation signals on top.
type param struct {
	name  string
	coeff float64

	mu      sync.Mutex
	target  float64
	current float64
	mods    map[*unit]struct{}

	buf []float64
}

func newParam(name string, initial, sampleRate float64) *param {
	return &param{
		name:    name,
		coeff:   1 - math.Exp(-2*math.Pi*smoothingCutoffHz/sampleRate),
		target:  initial,
		current: initial,
		mods:    map[*unit]struct{}{},
		buf:     make([]float64, BlockSize),
	}
}

func (p *param) Name() string { return p.name }

func (p *param) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *param) SetValue(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = v
}

func (p *param) addMod(src *unit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mods[src] = struct{}{}
}

func (p *param) removeMod(src *unit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mods, src)
}

// resolve fills p.buf with per-sample values for the current quantum:
// smoothed control value plus the mono downmix of every modulation source.
func (p *param) resolve(gen uint64) []float64 {
	p.mu.Lock()
	target := p.target
	cur := p.current
	mods := make([]*unit, 0, len(p.mods))
	for src := range p.mods {
		mods = append(mods, src)
	}
	p.mu.Unlock()

	buf := p.buf
	coeff := p.coeff
	for i := range buf {
		cur += coeff * (target - cur)
		buf[i] = cur
	}

	p.mu.Lock()
	p.current = cur
	p.mu.Unlock()

	for _, src := range mods {
		l, r := src.pull(gen)
		for i := range buf {
			buf[i] += 0.5 * (l[i] + r[i])
		}
	}
	return buf
}

// ============================================================================
// unit
// ============================================================================

// unit is one node in the pull graph. Rendering is demand-driven: the
// destination pulls its sources, which pull theirs, with per-quantum
// memoization so shared sources process once. A unit re-entered while it is
// already processing (a feedback loop) serves its previous quantum instead,
// which gives loops an implicit one-block delay.
type unit struct {
	eng  *Engine
	kind string
	proc processor

	params map[string]*param

	mu        sync.Mutex
	attrs     map[string]any
	audioIns  map[*unit]struct{}
	audioOuts map[*unit]struct{}
	paramOuts map[paramRef]struct{}
	started   bool
	disposed  bool

	gen     uint64
	pulling bool
	in      [2][]float64
	out     [2][]float64
	prev    [2][]float64
}

func newUnit(eng *Engine, kind string, proc processor) *unit {
	u := &unit{
		eng:       eng,
		kind:      kind,
		proc:      proc,
		params:    map[string]*param{},
		attrs:     map[string]any{},
		audioIns:  map[*unit]struct{}{},
		audioOuts: map[*unit]struct{}{},
		paramOuts: map[paramRef]struct{}{},
	}
	for ch := 0; ch < 2; ch++ {
		u.in[ch] = make([]float64, BlockSize)
		u.out[ch] = make([]float64, BlockSize)
		u.prev[ch] = make([]float64, BlockSize)
	}
	return u
}

func (u *unit) addParam(name string, initial float64) *param {
	p := newParam(name, initial, u.eng.sampleRate)
	u.params[name] = p
	return p
}

// ============================================================================
// engine.Unit implementation
// ============================================================================

func (u *unit) Kind() string { return u.kind }

func (u *unit) Param(name string) (engine.Param, bool) {
	p, ok := u.params[name]
	return p, ok
}

func (u *unit) SetAttribute(name string, value any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.disposed {
		return fmt.Errorf("synth: %s unit disposed", u.kind)
	}
	u.attrs[name] = value
	return nil
}

func (u *unit) Connect(dst engine.Unit) error {
	d, ok := dst.(*unit)
	if !ok {
		return fmt.Errorf("synth: cannot connect to foreign unit %T", dst)
	}
	d.mu.Lock()
	d.audioIns[u] = struct{}{}
	d.mu.Unlock()

	u.mu.Lock()
	u.audioOuts[d] = struct{}{}
	u.mu.Unlock()
	return nil
}

func (u *unit) ConnectParam(dst engine.Unit, name string) error {
	d, ok := dst.(*unit)
	if !ok {
		return fmt.Errorf("synth: cannot connect to foreign unit %T", dst)
	}
	p, ok := d.params[name]
	if !ok {
		return fmt.Errorf("synth: %s has no parameter %q", d.kind, name)
	}
	p.addMod(u)

	u.mu.Lock()
	u.paramOuts[paramRef{dst: d, name: name}] = struct{}{}
	u.mu.Unlock()
	return nil
}

func (u *unit) Disconnect(dst engine.Unit) {
	d, ok := dst.(*unit)
	if !ok {
		return
	}
	d.mu.Lock()
	delete(d.audioIns, u)
	d.mu.Unlock()

	u.mu.Lock()
	delete(u.audioOuts, d)
	u.mu.Unlock()
}

func (u *unit) DisconnectParam(dst engine.Unit, name string) {
	d, ok := dst.(*unit)
	if !ok {
		return
	}
	if p, ok := d.params[name]; ok {
		p.removeMod(u)
	}
	u.mu.Lock()
	delete(u.paramOuts, paramRef{dst: d, name: name})
	u.mu.Unlock()
}

func (u *unit) DisconnectAll() {
	u.mu.Lock()
	outs := make([]*unit, 0, len(u.audioOuts))
	for d := range u.audioOuts {
		outs = append(outs, d)
	}
	prefs := make([]paramRef, 0, len(u.paramOuts))
	for ref := range u.paramOuts {
		prefs = append(prefs, ref)
	}
	u.audioOuts = map[*unit]struct{}{}
	u.paramOuts = map[paramRef]struct{}{}
	u.mu.Unlock()

	for _, d := range outs {
		d.mu.Lock()
		delete(d.audioIns, u)
		d.mu.Unlock()
	}
	for _, ref := range prefs {
		if p, ok := ref.dst.params[ref.name]; ok {
			p.removeMod(u)
		}
	}
}

func (u *unit) Start() {
	u.mu.Lock()
	u.started = true
	u.mu.Unlock()
	if s, ok := u.proc.(starter); ok {
		s.onStart()
	}
}

func (u *unit) Stop() {
	u.mu.Lock()
	u.started = false
	u.mu.Unlock()
}

func (u *unit) Dispose() {
	u.mu.Lock()
	u.disposed = true
	u.audioIns = map[*unit]struct{}{}
	for ch := 0; ch < 2; ch++ {
		clear(u.out[ch])
		clear(u.prev[ch])
	}
	u.mu.Unlock()
	u.DisconnectAll()
}

// ============================================================================
// Rendering
// ============================================================================

// pull returns this unit's output for generation gen, processing at most
// once per generation.
func (u *unit) pull(gen uint64) (left, right []float64) {
	u.mu.Lock()
	if u.disposed {
		l, r := u.out[0], u.out[1]
		u.mu.Unlock()
		return l, r
	}
	if u.gen == gen {
		l, r := u.out[0], u.out[1]
		u.mu.Unlock()
		return l, r
	}
	if u.pulling {
		l, r := u.prev[0], u.prev[1]
		u.mu.Unlock()
		return l, r
	}
	u.pulling = true
	sources := make([]*unit, 0, len(u.audioIns))
	for src := range u.audioIns {
		sources = append(sources, src)
	}
	u.mu.Unlock()

	clear(u.in[0])
	clear(u.in[1])
	for _, src := range sources {
		sl, sr := src.pull(gen)
		vecmath.AddBlockInPlace(u.in[0], sl)
		vecmath.AddBlockInPlace(u.in[1], sr)
	}

	copy(u.prev[0], u.out[0])
	copy(u.prev[1], u.out[1])

	u.proc.process(u, gen)

	u.mu.Lock()
	u.gen = gen
	u.pulling = false
	u.mu.Unlock()
	return u.out[0], u.out[1]
}

// paramBuf resolves a named parameter for this quantum. Missing names
// return nil; processors treat that as an absent feature.
func (u *unit) paramBuf(name string, gen uint64) []float64 {
	p, ok := u.params[name]
	if !ok {
		return nil
	}
	return p.resolve(gen)
}

// isStarted reports the transport gate.
func (u *unit) isStarted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.started
}

// attrFloat reads a numeric attribute with a fallback.
func (u *unit) attrFloat(name string, fallback float64) float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch v := u.attrs[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// attrString reads a string attribute with a fallback.
func (u *unit) attrString(name, fallback string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if s, ok := u.attrs[name].(string); ok {
		return s
	}
	return fallback
}

// attrBool reads a boolean attribute with a fallback.
func (u *unit) attrBool(name string, fallback bool) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if b, ok := u.attrs[name].(bool); ok {
		return b
	}
	return fallback
}
