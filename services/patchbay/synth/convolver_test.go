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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
)

func randomBlock(rng *rand.Rand) []float64 {
	buf := make([]float64, BlockSize)
	for i := range buf {
		buf[i] = rng.Float64()*2 - 1
	}
	return buf
}

func TestUPOLS_IdentityKernel(t *testing.T) {
	conv, err := newUPOLS([]float64{1})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	out := make([]float64, BlockSize)
	for block := 0; block < 3; block++ {
		in := randomBlock(rng)
		conv.process(out, in)
		for i := range in {
			assert.InDelta(t, in[i], out[i], 1e-9)
		}
	}
}

func TestUPOLS_OneBlockDelayKernel(t *testing.T) {
	kernel := make([]float64, BlockSize+1)
	kernel[BlockSize] = 1
	conv, err := newUPOLS(kernel)
	require.NoError(t, err)
	require.Equal(t, 2, conv.parts)

	rng := rand.New(rand.NewSource(2))
	first := randomBlock(rng)
	second := randomBlock(rng)
	out := make([]float64, BlockSize)

	conv.process(out, first)
	for i := range out {
		assert.InDelta(t, 0.0, out[i], 1e-9, "delayed kernel should output silence on the first block")
	}
	conv.process(out, second)
	for i := range out {
		assert.InDelta(t, first[i], out[i], 1e-9, "second block should replay the first input")
	}
}

func TestUPOLS_MatchesDirectConvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	kernel := make([]float64, 200)
	for i := range kernel {
		kernel[i] = rng.Float64()*2 - 1
	}
	const blocks = 4
	input := make([]float64, blocks*BlockSize)
	for i := range input {
		input[i] = rng.Float64()*2 - 1
	}

	direct := make([]float64, len(input))
	for n := range direct {
		var sum float64
		for k := 0; k < len(kernel) && k <= n; k++ {
			sum += kernel[k] * input[n-k]
		}
		direct[n] = sum
	}

	conv, err := newUPOLS(kernel)
	require.NoError(t, err)
	out := make([]float64, BlockSize)
	for b := 0; b < blocks; b++ {
		conv.process(out, input[b*BlockSize:(b+1)*BlockSize])
		for i := range out {
			assert.InDelta(t, direct[b*BlockSize+i], out[i], 1e-8)
		}
	}
}

func TestImpulseResponse_NormalizedToUnitEnergy(t *testing.T) {
	ir := impulseResponse(48000, 0.5, 2, true, 1)
	var energy float64
	for _, v := range ir {
		energy += v * v
	}
	assert.InDelta(t, 1.0, energy, 1e-9)
}

func TestImpulseResponse_DecaysToSilence(t *testing.T) {
	ir := impulseResponse(48000, 0.5, 4, false, 1)
	head := rms(ir[:4800])
	tail := rms(ir[len(ir)-4800:])
	assert.Greater(t, head, tail*10, "the tail should be far quieter than the onset")
}

func TestImpulseResponse_SeedsAreReproducible(t *testing.T) {
	a := impulseResponse(48000, 0.1, 2, true, 42)
	b := impulseResponse(48000, 0.1, 2, true, 42)
	assert.Equal(t, a, b)
}

func TestConvolver_ProducesReverbTail(t *testing.T) {
	e := New(Config{})
	clip, err := e.CreateClipUnit(context.Background(), "click")
	require.NoError(t, err)
	conv, err := e.CreateUnit("convolver", engine.DefaultUnitOptions())
	require.NoError(t, err)

	require.NoError(t, conv.SetAttribute("duration", 0.2))
	require.NoError(t, clip.Connect(conv))
	require.NoError(t, conv.Connect(e.Destination()))
	clip.Start()

	// The click is 5ms; anything audible past 50ms is convolution tail.
	left, _ := e.RenderFrames(int(e.SampleRate() / 4))
	tail := left[int(0.05*e.SampleRate()):]
	assert.Greater(t, rms(tail), 0.0, "the impulse response should ring past the dry click")
}
