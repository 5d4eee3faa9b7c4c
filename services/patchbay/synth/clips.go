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
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrClipNotFound reports a clip name with no file and no builtin match.
var ErrClipNotFound = errors.New("synth: clip not found")

// Clip is a decoded stereo audio asset. Samples stay at the source rate;
// playback resamples on the fly so one decode serves any engine rate.
type Clip struct {
	Name       string
	SampleRate float64
	Left       []float64
	Right      []float64
}

func (c *Clip) frames() int { return len(c.Left) }

// ClipLibrary resolves clip names to decoded audio. Loading may touch disk,
// so it takes a context.
type ClipLibrary interface {
	Load(ctx context.Context, name string) (*Clip, error)
}

// ============================================================================
// Directory-backed library
// ============================================================================

// DirLibrary decodes <dir>/<name>.wav on demand and caches the result.
// Names with no file fall through to the builtin percussion set, so a
// project stays playable on a machine without the sample folder.
type DirLibrary struct {
	dir     string
	builtin BuiltinLibrary

	mu    sync.Mutex
	cache map[string]*Clip
}

func NewDirLibrary(dir string, sampleRate float64) *DirLibrary {
	return &DirLibrary{
		dir:     dir,
		builtin: NewBuiltinLibrary(sampleRate),
		cache:   map[string]*Clip{},
	}
}

func (l *DirLibrary) Load(ctx context.Context, name string) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	if c, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	path := filepath.Join(l.dir, name+".wav")
	f, err := os.Open(path)
	if err != nil {
		return l.builtin.Load(ctx, name)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("synth: decode %s: %w", path, err)
	}
	clip := clipFromIntBuffer(name, buf)

	l.mu.Lock()
	l.cache[name] = clip
	l.mu.Unlock()
	return clip, nil
}

func clipFromIntBuffer(name string, buf *audio.IntBuffer) *Clip {
	bits := buf.SourceBitDepth
	if bits <= 0 {
		bits = 16
	}
	scale := 1 / float64(int(1)<<(bits-1))
	channels := 1
	rate := 44100
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}
	frames := len(buf.Data) / channels
	c := &Clip{
		Name:       name,
		SampleRate: float64(rate),
		Left:       make([]float64, frames),
		Right:      make([]float64, frames),
	}
	for i := 0; i < frames; i++ {
		l := float64(buf.Data[i*channels]) * scale
		r := l
		if channels > 1 {
			r = float64(buf.Data[i*channels+1]) * scale
		}
		c.Left[i] = l
		c.Right[i] = r
	}
	return c
}

// ============================================================================
// Builtin percussion set
// ============================================================================

// BuiltinLibrary synthesizes a small percussion set so the engine works out
// of the box with no assets on disk.
type BuiltinLibrary struct {
	sampleRate float64
}

func NewBuiltinLibrary(sampleRate float64) BuiltinLibrary {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return BuiltinLibrary{sampleRate: sampleRate}
}

func (b BuiltinLibrary) Load(ctx context.Context, name string) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var mono []float64
	switch name {
	case "kick":
		mono = b.synthKick()
	case "snare":
		mono = b.synthSnare()
	case "hat":
		mono = b.synthHat()
	case "click":
		mono = b.synthClick()
	default:
		return nil, fmt.Errorf("%w: %q", ErrClipNotFound, name)
	}
	right := make([]float64, len(mono))
	copy(right, mono)
	return &Clip{Name: name, SampleRate: b.sampleRate, Left: mono, Right: right}, nil
}

// synthKick is a pitched sine drop from 120 Hz to 40 Hz with a fast
// amplitude decay.
func (b BuiltinLibrary) synthKick() []float64 {
	sr := b.sampleRate
	n := int(0.4 * sr)
	out := make([]float64, n)
	phase := 0.0
	for i := range out {
		t := float64(i) / sr
		f := 40 + 80*math.Exp(-t*18)
		out[i] = math.Sin(2*math.Pi*phase) * math.Exp(-t*8)
		phase += f / sr
	}
	return out
}

// synthSnare layers a 180 Hz body under a burst of decaying noise.
func (b BuiltinLibrary) synthSnare() []float64 {
	sr := b.sampleRate
	n := int(0.25 * sr)
	out := make([]float64, n)
	rng := rand.New(rand.NewSource(7))
	for i := range out {
		t := float64(i) / sr
		noise := (rng.Float64()*2 - 1) * math.Exp(-t*20)
		body := math.Sin(2*math.Pi*180*t) * math.Exp(-t*25) * 0.5
		out[i] = noise*0.8 + body
	}
	return out
}

// synthHat is high-passed noise with a very short tail.
func (b BuiltinLibrary) synthHat() []float64 {
	sr := b.sampleRate
	n := int(0.08 * sr)
	out := make([]float64, n)
	rng := rand.New(rand.NewSource(11))
	alpha := 1 - math.Exp(-2*math.Pi*6000/sr)
	lp := 0.0
	for i := range out {
		t := float64(i) / sr
		x := rng.Float64()*2 - 1
		lp += alpha * (x - lp)
		out[i] = (x - lp) * math.Exp(-t*60)
	}
	return out
}

// synthClick is a 5ms noise tick, handy as a metronome voice.
func (b BuiltinLibrary) synthClick() []float64 {
	sr := b.sampleRate
	n := int(0.005 * sr)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	rng := rand.New(rand.NewSource(13))
	for i := range out {
		t := float64(i) / float64(n)
		out[i] = (rng.Float64()*2 - 1) * (1 - t)
	}
	return out
}

// ============================================================================
// Clip processor
// ============================================================================

// clipProc plays a decoded clip with fractional-position resampling. The
// position advances by playbackRate scaled by the source/engine rate ratio,
// so pitch follows rate the way a tape machine would. One-shot playback
// latches done at the end; Start rewinds.
type clipProc struct {
	clip *Clip
	pos  float64
	done bool
}

func (c *clipProc) onStart() {
	c.pos = 0
	c.done = false
}

func (c *clipProc) process(u *unit, gen uint64) {
	rate := u.paramBuf("playbackRate", gen)
	if !u.isStarted() || c.done || c.clip == nil || c.clip.frames() == 0 {
		clear(u.out[0])
		clear(u.out[1])
		return
	}
	loop := u.attrBool("loop", false)
	step := c.clip.SampleRate / u.eng.sampleRate
	frames := c.clip.frames()
	total := float64(frames)
	for i := 0; i < BlockSize; i++ {
		if c.done {
			u.out[0][i] = 0
			u.out[1][i] = 0
			continue
		}
		i0 := int(c.pos)
		frac := c.pos - float64(i0)
		i1 := i0 + 1
		if i1 >= frames {
			if loop {
				i1 = 0
			} else {
				i1 = i0
			}
		}
		u.out[0][i] = c.clip.Left[i0]*(1-frac) + c.clip.Left[i1]*frac
		u.out[1][i] = c.clip.Right[i0]*(1-frac) + c.clip.Right[i1]*frac

		r := rate[i]
		if r < 0 {
			r = 0
		}
		c.pos += r * step
		for c.pos >= total {
			if loop {
				c.pos -= total
			} else {
				c.done = true
				c.pos = 0
				break
			}
		}
	}
}

// Done reports whether a one-shot clip has played out.
func (c *clipProc) Done() bool { return c.done }
