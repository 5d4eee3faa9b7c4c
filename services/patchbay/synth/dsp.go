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

	vecmath "github.com/cwbudde/algo-vecmath"
)

// log2of10 converts decibel figures into the log2 domain the gain computer
// works in: dB * log2of10 / 20 == log2 of the linear amplitude.
var log2of10 = math.Ln10 / math.Ln2

// ============================================================================
// Oscillator
// ============================================================================

// oscProc is a naive phase-accumulator oscillator. Frequency and detune are
// sampled per frame so audio-rate modulation (FM, vibrato) tracks exactly;
// the waveforms are not band-limited.
type oscProc struct {
	phase float64
}

func (o *oscProc) process(u *unit, gen uint64) {
	freq := u.paramBuf("frequency", gen)
	det := u.paramBuf("detune", gen)
	if !u.isStarted() {
		clear(u.out[0])
		clear(u.out[1])
		return
	}
	wave := u.attrString("waveform", "sine")
	sr := u.eng.sampleRate
	nyquist := sr / 2
	for i := 0; i < BlockSize; i++ {
		f := freq[i] * math.Exp2(det[i]/1200)
		if f > nyquist {
			f = nyquist
		} else if f < -nyquist {
			f = -nyquist
		}
		ph := o.phase
		var s float64
		switch wave {
		case "square":
			if ph < 0.5 {
				s = 1
			} else {
				s = -1
			}
		case "sawtooth":
			s = 2*ph - 1
		case "triangle":
			switch {
			case ph < 0.25:
				s = 4 * ph
			case ph < 0.75:
				s = 2 - 4*ph
			default:
				s = 4*ph - 4
			}
		default:
			s = math.Sin(2 * math.Pi * ph)
		}
		u.out[0][i] = s
		u.out[1][i] = s
		o.phase += f / sr
		o.phase -= math.Floor(o.phase)
	}
}

// ============================================================================
// Gain
// ============================================================================

type gainProc struct{}

func (gainProc) process(u *unit, gen uint64) {
	g := u.paramBuf("gain", gen)
	vecmath.MulBlock(u.out[0], u.in[0], g)
	vecmath.MulBlock(u.out[1], u.in[1], g)
}

// ============================================================================
// Biquad filter
// ============================================================================

// biquadCoeffs holds one normalized second-order section (a0 divided out).
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

// biquadState is the transposed direct form II delay line for one channel.
type biquadState struct {
	d0, d1 float64
}

func (s *biquadState) tick(c biquadCoeffs, x float64) float64 {
	y := c.b0*x + s.d0
	s.d0 = c.b1*x - c.a1*y + s.d1
	s.d1 = c.b2*x - c.a2*y
	return y
}

// filterProc runs one biquad per channel. Coefficients are redesigned at
// block rate when the controls move, using the end-of-block parameter
// values; the delay line state carries across redesigns so sweeps stay
// click-free.
type filterProc struct {
	coeffs   biquadCoeffs
	state    [2]biquadState
	designed bool
	bypass   bool
	lastType string
	lastFreq float64
	lastQ    float64
	lastGain float64
}

func (f *filterProc) process(u *unit, gen uint64) {
	freq := u.paramBuf("frequency", gen)
	qb := u.paramBuf("Q", gen)
	gb := u.paramBuf("gain", gen)
	typ := u.attrString("type", "lowpass")

	fc := freq[BlockSize-1]
	q := qb[BlockSize-1]
	g := gb[BlockSize-1]
	if !f.designed || typ != f.lastType || fc != f.lastFreq || q != f.lastQ || g != f.lastGain {
		var ok bool
		f.coeffs, ok = designBiquad(typ, u.eng.sampleRate, fc, q, g)
		f.bypass = !ok
		f.designed = true
		f.lastType, f.lastFreq, f.lastQ, f.lastGain = typ, fc, q, g
	}
	if f.bypass {
		copy(u.out[0], u.in[0])
		copy(u.out[1], u.in[1])
		return
	}
	for ch := 0; ch < 2; ch++ {
		st := &f.state[ch]
		in, out := u.in[ch], u.out[ch]
		for i := range in {
			out[i] = st.tick(f.coeffs, in[i])
		}
	}
}

// designBiquad computes RBJ cookbook coefficients for the given response
// type. Center frequencies outside (0, nyquist) cannot be realized and
// report ok=false, which the caller treats as a bypass.
func designBiquad(typ string, sr, freq, q, gainDB float64) (biquadCoeffs, bool) {
	if freq <= 0 || freq >= sr/2 {
		return biquadCoeffs{}, false
	}
	if q <= 0 {
		q = math.Sqrt2 / 2
	}
	w0 := 2 * math.Pi * freq / sr
	sinw0, cosw0 := math.Sincos(w0)
	alpha := sinw0 / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64
	switch typ {
	case "highpass":
		b0 = (1 + cosw0) / 2
		b1 = -(1 + cosw0)
		b2 = b0
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case "bandpass":
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case "notch":
		b0 = 1
		b1 = -2 * cosw0
		b2 = 1
		a0 = 1 + alpha
		a1 = b1
		a2 = 1 - alpha
	case "allpass":
		b0 = 1 - alpha
		b1 = -2 * cosw0
		b2 = 1 + alpha
		a0 = 1 + alpha
		a1 = b1
		a2 = 1 - alpha
	case "peaking":
		amp := math.Pow(10, gainDB/40)
		b0 = 1 + alpha*amp
		b1 = -2 * cosw0
		b2 = 1 - alpha*amp
		a0 = 1 + alpha/amp
		a1 = b1
		a2 = 1 - alpha/amp
	case "lowshelf":
		amp := math.Pow(10, gainDB/40)
		term := 2 * math.Sqrt(amp) * (sinw0 / 2 * math.Sqrt2)
		b0 = amp * ((amp + 1) - (amp-1)*cosw0 + term)
		b1 = 2 * amp * ((amp - 1) - (amp+1)*cosw0)
		b2 = amp * ((amp + 1) - (amp-1)*cosw0 - term)
		a0 = (amp + 1) + (amp-1)*cosw0 + term
		a1 = -2 * ((amp - 1) + (amp+1)*cosw0)
		a2 = (amp + 1) + (amp-1)*cosw0 - term
	case "highshelf":
		amp := math.Pow(10, gainDB/40)
		term := 2 * math.Sqrt(amp) * (sinw0 / 2 * math.Sqrt2)
		b0 = amp * ((amp + 1) + (amp-1)*cosw0 + term)
		b1 = -2 * amp * ((amp - 1) + (amp+1)*cosw0)
		b2 = amp * ((amp + 1) + (amp-1)*cosw0 - term)
		a0 = (amp + 1) - (amp-1)*cosw0 + term
		a1 = 2 * ((amp - 1) - (amp+1)*cosw0)
		a2 = (amp + 1) - (amp-1)*cosw0 - term
	default: // lowpass
		b1 = 1 - cosw0
		b0 = b1 / 2
		b2 = b0
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	}
	if a0 == 0 || math.IsNaN(a0) {
		return biquadCoeffs{}, false
	}
	inv := 1 / a0
	return biquadCoeffs{b0: b0 * inv, b1: b1 * inv, b2: b2 * inv, a1: a1 * inv, a2: a2 * inv}, true
}

// ============================================================================
// Delay
// ============================================================================

// delayProc is a fractional delay line with linear interpolation. The ring
// is sized from the unit's configured maximum at build time, so delayTime
// is clamped rather than reallocating mid-stream.
type delayProc struct {
	ring       [2][]float64
	w          int
	maxSamples float64
}

func newDelayProc(sampleRate, maxSeconds float64) *delayProc {
	if maxSeconds <= 0 {
		maxSeconds = 1
	}
	n := int(maxSeconds*sampleRate) + BlockSize + 2
	d := &delayProc{maxSamples: maxSeconds * sampleRate}
	d.ring[0] = make([]float64, n)
	d.ring[1] = make([]float64, n)
	return d
}

func (d *delayProc) process(u *unit, gen uint64) {
	dt := u.paramBuf("delayTime", gen)
	sr := u.eng.sampleRate
	n := len(d.ring[0])
	for i := 0; i < BlockSize; i++ {
		ds := dt[i] * sr
		if ds < 0 {
			ds = 0
		} else if ds > d.maxSamples {
			ds = d.maxSamples
		}
		for ch := 0; ch < 2; ch++ {
			ring := d.ring[ch]
			ring[d.w] = u.in[ch][i]
			pos := float64(d.w) - ds
			if pos < 0 {
				pos += float64(n)
			}
			i0 := int(pos)
			frac := pos - float64(i0)
			i1 := i0 + 1
			if i1 >= n {
				i1 = 0
			}
			u.out[ch][i] = ring[i0]*(1-frac) + ring[i1]*frac
		}
		d.w++
		if d.w >= n {
			d.w = 0
		}
	}
}

// ============================================================================
// Stereo panner
// ============================================================================

// pannerProc applies the equal-power stereo pan law: panning toward one
// side folds the opposite channel in with a cosine/sine crossfade so
// perceived loudness stays flat across the sweep.
type pannerProc struct{}

func (pannerProc) process(u *unit, gen uint64) {
	pan := u.paramBuf("pan", gen)
	for i := 0; i < BlockSize; i++ {
		p := pan[i]
		if p < -1 {
			p = -1
		} else if p > 1 {
			p = 1
		}
		l := u.in[0][i]
		r := u.in[1][i]
		if p <= 0 {
			x := (p + 1) * (math.Pi / 2)
			u.out[0][i] = l + r*math.Cos(x)
			u.out[1][i] = r * math.Sin(x)
		} else {
			x := p * (math.Pi / 2)
			u.out[0][i] = l * math.Cos(x)
			u.out[1][i] = r + l*math.Sin(x)
		}
	}
}

// ============================================================================
// Compressor
// ============================================================================

// compressorProc is a stereo-linked downward compressor. A peak envelope
// follower with half-life attack and release times feeds a soft-knee gain
// computer that works in the log2 domain; the computed gain is applied to
// both channels so the stereo image does not wander under compression.
type compressorProc struct {
	env float64
}

func (c *compressorProc) process(u *unit, gen uint64) {
	threshold := u.paramBuf("threshold", gen)[0]
	knee := u.paramBuf("knee", gen)[0]
	ratio := u.paramBuf("ratio", gen)[0]
	attack := u.paramBuf("attack", gen)[0]
	release := u.paramBuf("release", gen)[0]

	sr := u.eng.sampleRate
	atk := 1 - math.Exp(-math.Ln2/(attack*sr))
	rel := math.Exp(-math.Ln2 / (release * sr))
	if ratio < 1 {
		ratio = 1
	}
	slope := 1 - 1/ratio
	thLog2 := threshold * log2of10 / 20
	kneeLog2 := knee * log2of10 / 20
	halfKnee := kneeLog2 / 2

	for i := 0; i < BlockSize; i++ {
		x := math.Max(math.Abs(u.in[0][i]), math.Abs(u.in[1][i]))
		if x > c.env {
			c.env += (x - c.env) * atk
		} else {
			c.env = x + (c.env-x)*rel
		}
		gain := 1.0
		if c.env > 0 {
			over := math.Log2(c.env) - thLog2
			var eff float64
			switch {
			case over <= -halfKnee:
				eff = 0
			case over >= halfKnee:
				eff = over
			default:
				d := over + halfKnee
				eff = d * d * 0.5 / kneeLog2
			}
			if eff > 0 {
				gain = math.Exp2(-eff * slope)
			}
		}
		u.out[0][i] = u.in[0][i] * gain
		u.out[1][i] = u.in[1][i] * gain
	}
}

// ============================================================================
// Constant source
// ============================================================================

// constProc emits its offset parameter as a signal, the building block for
// parameter modulation fan-out.
type constProc struct{}

func (constProc) process(u *unit, gen uint64) {
	off := u.paramBuf("offset", gen)
	if !u.isStarted() {
		clear(u.out[0])
		clear(u.out[1])
		return
	}
	copy(u.out[0], off)
	copy(u.out[1], off)
}

// ============================================================================
// Capture and destination
// ============================================================================

// captureProc stands in for a live input. Offline there is nothing to
// capture, so it renders silence while keeping the graph topology honest.
type captureProc struct{}

func (captureProc) process(u *unit, _ uint64) {
	clear(u.out[0])
	clear(u.out[1])
}

// destProc is the terminal mixer. Summing happens in the pull path; the
// destination just presents the mix.
type destProc struct{}

func (destProc) process(u *unit, _ uint64) {
	copy(u.out[0], u.in[0])
	copy(u.out[1], u.in[1])
}
