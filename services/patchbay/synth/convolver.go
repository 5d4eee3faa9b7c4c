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
	"math"
	"math/rand"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// ============================================================================
// Uniform partitioned overlap-save convolution
// ============================================================================

// upols convolves a stream with a long kernel at a fixed per-block cost.
// The kernel is split into BlockSize partitions and each partition's
// spectrum is multiplied against a delayed copy of the input spectrum, so
// the FFT stays at 2*BlockSize no matter how long the impulse response is.
type upols struct {
	plan      *algofft.Plan[complex128]
	fftSize   int
	parts     int
	irSpectra [][]complex128
	history   [][]complex128
	ringIdx   int
	prevIn    []float64
	time      []complex128
	acc       []complex128
}

func newUPOLS(kernel []float64) (*upols, error) {
	fftSize := 2 * BlockSize
	parts := (len(kernel) + BlockSize - 1) / BlockSize
	if parts < 1 {
		parts = 1
	}
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, err
	}
	c := &upols{
		plan:    plan,
		fftSize: fftSize,
		parts:   parts,
		prevIn:  make([]float64, BlockSize),
		time:    make([]complex128, fftSize),
		acc:     make([]complex128, fftSize),
	}
	for p := 0; p < parts; p++ {
		for i := 0; i < fftSize; i++ {
			c.time[i] = 0
		}
		for i := 0; i < BlockSize; i++ {
			if k := p*BlockSize + i; k < len(kernel) {
				c.time[i] = complex(kernel[k], 0)
			}
		}
		spec := make([]complex128, fftSize)
		if err := plan.Forward(spec, c.time); err != nil {
			return nil, err
		}
		c.irSpectra = append(c.irSpectra, spec)
		c.history = append(c.history, make([]complex128, fftSize))
	}
	return c, nil
}

// process convolves one block. The overlap-save frame is the previous block
// followed by the current one; the first half of the inverse transform is
// circular wraparound and gets discarded.
func (c *upols) process(out, in []float64) {
	for i := 0; i < BlockSize; i++ {
		c.time[i] = complex(c.prevIn[i], 0)
		c.time[BlockSize+i] = complex(in[i], 0)
	}
	if err := c.plan.Forward(c.history[c.ringIdx], c.time); err != nil {
		clear(out)
		return
	}
	clear(c.acc)
	for p := 0; p < c.parts; p++ {
		idx := c.ringIdx - p
		if idx < 0 {
			idx += c.parts
		}
		spec := c.history[idx]
		ir := c.irSpectra[p]
		for i := range c.acc {
			c.acc[i] += spec[i] * ir[i]
		}
	}
	if err := c.plan.Inverse(c.time, c.acc); err != nil {
		clear(out)
		return
	}
	for i := 0; i < BlockSize; i++ {
		out[i] = real(c.time[BlockSize+i])
	}
	copy(c.prevIn, in)
	c.ringIdx++
	if c.ringIdx >= c.parts {
		c.ringIdx = 0
	}
}

// ============================================================================
// Synthetic impulse response
// ============================================================================

// impulseResponse builds a decaying noise tail, the classic synthetic room.
// The seed keeps each channel decorrelated but reproducible, and normalize
// scales to unit energy so reverb level does not scale with tail length.
func impulseResponse(sampleRate, seconds, decay float64, normalize bool, seed int64) []float64 {
	n := int(seconds * sampleRate)
	if n < 1 {
		n = 1
	}
	rng := rand.New(rand.NewSource(seed))
	ir := make([]float64, n)
	for i := range ir {
		t := float64(i) / float64(n)
		ir[i] = (rng.Float64()*2 - 1) * math.Pow(1-t, decay)
	}
	if normalize {
		var energy float64
		for _, v := range ir {
			energy += v * v
		}
		if energy > 0 {
			vecmath.ScaleBlock(ir, ir, 1/math.Sqrt(energy))
		}
	}
	return ir
}

// ============================================================================
// Convolver processor
// ============================================================================

// convolverProc renders a stereo reverb from a synthesized impulse
// response. The response is rebuilt lazily when its shaping attributes
// change; rebuilds are rare and happen on the render goroutine, so no
// locking beyond the attribute reads is needed.
type convolverProc struct {
	conv      [2]*upols
	built     bool
	lastDur   float64
	lastDecay float64
	lastNorm  bool
}

func (c *convolverProc) process(u *unit, _ uint64) {
	dur := clampFloat(u.attrFloat("duration", 2.0), 0.05, 10)
	dec := clampFloat(u.attrFloat("decay", 2.0), 0.1, 10)
	norm := u.attrBool("normalize", true)
	if !c.built || dur != c.lastDur || dec != c.lastDecay || norm != c.lastNorm {
		c.rebuild(u, dur, dec, norm)
	}
	if c.conv[0] == nil || c.conv[1] == nil {
		clear(u.out[0])
		clear(u.out[1])
		return
	}
	c.conv[0].process(u.out[0], u.in[0])
	c.conv[1].process(u.out[1], u.in[1])
}

func (c *convolverProc) rebuild(u *unit, dur, dec float64, norm bool) {
	c.built = true
	c.lastDur, c.lastDecay, c.lastNorm = dur, dec, norm
	for ch := 0; ch < 2; ch++ {
		kernel := impulseResponse(u.eng.sampleRate, dur, dec, norm, int64(ch)+1)
		cv, err := newUPOLS(kernel)
		if err != nil {
			u.eng.log.Error("convolver impulse response rejected", "error", err)
			c.conv[0], c.conv[1] = nil, nil
			return
		}
		c.conv[ch] = cv
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
