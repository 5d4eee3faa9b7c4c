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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
)

func TestNew_Defaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, DefaultSampleRate, e.SampleRate())
	require.NotNil(t, e.Destination())
	assert.Equal(t, "output", e.Destination().Kind())
}

func TestCreateUnit_UnknownKind(t *testing.T) {
	e := New(Config{})
	_, err := e.CreateUnit("theremin", engine.DefaultUnitOptions())
	assert.Error(t, err)
}

func TestCreateUnit_RejectsControlKinds(t *testing.T) {
	e := New(Config{})
	_, err := e.CreateUnit("slider", engine.DefaultUnitOptions())
	assert.Error(t, err)
}

func TestCreateUnit_RejectsAsyncKinds(t *testing.T) {
	e := New(Config{})
	_, err := e.CreateUnit("clip", engine.DefaultUnitOptions())
	assert.Error(t, err)
	_, err = e.CreateUnit("capture", engine.DefaultUnitOptions())
	assert.Error(t, err)
}

func TestCreateUnit_OutputReturnsDestination(t *testing.T) {
	e := New(Config{})
	u, err := e.CreateUnit("output", engine.DefaultUnitOptions())
	require.NoError(t, err)
	assert.Same(t, e.Destination(), u)
}

func TestCreateUnit_SeedsRegistryDefaults(t *testing.T) {
	e := New(Config{})
	osc, err := e.CreateUnit("oscillator", engine.DefaultUnitOptions())
	require.NoError(t, err)

	p, ok := osc.Param("frequency")
	require.True(t, ok)
	assert.Equal(t, 440.0, p.Value())

	_, ok = osc.Param("waveform")
	assert.False(t, ok, "enums are attributes, not continuous parameters")
}

func TestCreateClipUnit_BuiltinSet(t *testing.T) {
	e := New(Config{})
	for _, name := range []string{"kick", "snare", "hat", "click"} {
		u, err := e.CreateClipUnit(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, "clip", u.Kind())
	}
}

func TestCreateClipUnit_UnknownName(t *testing.T) {
	e := New(Config{})
	_, err := e.CreateClipUnit(context.Background(), "airhorn")
	assert.ErrorIs(t, err, ErrClipNotFound)
}

func TestCreateClipUnit_CancelledContext(t *testing.T) {
	e := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.CreateClipUnit(ctx, "kick")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateCaptureUnit_RendersSilence(t *testing.T) {
	e := New(Config{})
	capture, err := e.CreateCaptureUnit(context.Background())
	require.NoError(t, err)
	require.NoError(t, capture.Connect(e.Destination()))
	capture.Start()

	left, right := e.RenderFrames(BlockSize * 4)
	assert.Equal(t, 0.0, rms(left))
	assert.Equal(t, 0.0, rms(right))
}

func TestCreateCaptureUnit_Denied(t *testing.T) {
	e := New(Config{DisableCapture: true})
	_, err := e.CreateCaptureUnit(context.Background())
	assert.ErrorIs(t, err, ErrCaptureDenied)
}

func TestClip_OneShotLatchesDone(t *testing.T) {
	e := New(Config{})
	u, err := e.CreateClipUnit(context.Background(), "click")
	require.NoError(t, err)
	require.NoError(t, u.Connect(e.Destination()))
	u.Start()

	// The click is 5ms (240 frames); render well past it.
	left, _ := e.RenderFrames(BlockSize * 10)
	assert.Greater(t, rms(left[:BlockSize]), 0.0, "the click should be audible at the start")
	assert.Equal(t, 0.0, rms(left[len(left)-BlockSize:]), "a one-shot clip goes silent after playing out")
	assert.True(t, u.(*unit).proc.(*clipProc).Done())
}

func TestClip_StartRewinds(t *testing.T) {
	e := New(Config{})
	u, err := e.CreateClipUnit(context.Background(), "click")
	require.NoError(t, err)
	require.NoError(t, u.Connect(e.Destination()))

	u.Start()
	e.RenderFrames(BlockSize * 10)
	require.True(t, u.(*unit).proc.(*clipProc).Done())

	u.Start()
	left, _ := e.RenderFrames(BlockSize)
	assert.Greater(t, rms(left), 0.0, "restarting should replay from the top")
}

func TestClip_LoopWrapsAround(t *testing.T) {
	e := New(Config{})
	u, err := e.CreateClipUnit(context.Background(), "click")
	require.NoError(t, err)
	require.NoError(t, u.SetAttribute("loop", true))
	require.NoError(t, u.Connect(e.Destination()))
	u.Start()

	left, _ := e.RenderFrames(BlockSize * 20)
	assert.Greater(t, rms(left[len(left)-BlockSize*4:]), 0.0, "looped playback should never go silent")
}

func TestRenderFrames_ExactLength(t *testing.T) {
	e := New(Config{})
	left, right := e.RenderFrames(1000)
	assert.Len(t, left, 1000)
	assert.Len(t, right, 1000)
}

func TestResume_DrivesSink(t *testing.T) {
	var blocks atomic.Int64
	e := New(Config{Sink: func(left, right []float64) {
		blocks.Add(1)
	}})
	require.NoError(t, e.Resume())
	require.NoError(t, e.Resume(), "resume is idempotent")

	deadline := time.Now().Add(2 * time.Second)
	for blocks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, e.Suspend())
	assert.Greater(t, blocks.Load(), int64(0), "the paced loop should deliver blocks")

	settled := blocks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, blocks.Load(), "no blocks after suspend")
}

func TestSuspend_WithoutResume(t *testing.T) {
	e := New(Config{})
	assert.NoError(t, e.Suspend())
}

func TestClose_RejectsFurtherResume(t *testing.T) {
	e := New(Config{})
	require.NoError(t, e.Resume())
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.Resume(), ErrEngineClosed)
}

func TestDispose_SilencesAndDetaches(t *testing.T) {
	e := New(Config{})
	osc, err := e.CreateUnit("oscillator", engine.DefaultUnitOptions())
	require.NoError(t, err)
	require.NoError(t, osc.Connect(e.Destination()))
	osc.Start()

	left, _ := e.RenderFrames(BlockSize * 2)
	require.Greater(t, rms(left), 0.0)

	osc.Dispose()
	left, _ = e.RenderFrames(BlockSize * 2)
	assert.Equal(t, 0.0, rms(left))
}

func TestFeedbackLoop_RendersWithoutHanging(t *testing.T) {
	e := New(Config{})
	g, err := e.CreateUnit("gain", engine.DefaultUnitOptions())
	require.NoError(t, err)
	d, err := e.CreateUnit("delay", engine.DefaultUnitOptions())
	require.NoError(t, err)
	src, err := e.CreateUnit("constant", engine.DefaultUnitOptions())
	require.NoError(t, err)

	p, ok := g.Param("gain")
	require.True(t, ok)
	p.SetValue(0.5)

	// src -> gain -> delay -> gain again: a classic echo loop.
	require.NoError(t, src.Connect(g))
	require.NoError(t, g.Connect(d))
	require.NoError(t, d.Connect(g))
	require.NoError(t, g.Connect(e.Destination()))
	src.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.RenderFrames(int(e.SampleRate()))
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("feedback loop deadlocked the render path")
	}
}

func TestDisconnect_RemovesAudioPath(t *testing.T) {
	e := New(Config{})
	src, err := e.CreateUnit("constant", engine.DefaultUnitOptions())
	require.NoError(t, err)
	require.NoError(t, src.Connect(e.Destination()))
	src.Start()

	e.RenderFrames(int(e.SampleRate() / 2))
	left, _ := e.RenderFrames(BlockSize)
	require.InDelta(t, 1.0, left[BlockSize-1], 1e-6)

	src.Disconnect(e.Destination())
	left, _ = e.RenderFrames(BlockSize)
	assert.Equal(t, 0.0, rms(left))
}

func TestDisconnectParam_StopsModulation(t *testing.T) {
	e := New(Config{})
	osc, err := e.CreateUnit("oscillator", engine.DefaultUnitOptions())
	require.NoError(t, err)
	mod, err := e.CreateUnit("constant", engine.DefaultUnitOptions())
	require.NoError(t, err)

	p, ok := mod.Param("offset")
	require.True(t, ok)
	p.SetValue(200)
	require.NoError(t, mod.ConnectParam(osc, "frequency"))
	require.NoError(t, osc.Connect(e.Destination()))
	mod.Start()
	osc.Start()

	e.RenderFrames(int(e.SampleRate() / 2))
	left, _ := e.RenderFrames(int(e.SampleRate()))
	require.InDelta(t, 640, risingCrossings(left), 4)

	mod.DisconnectParam(osc, "frequency")
	left, _ = e.RenderFrames(int(e.SampleRate()))
	assert.InDelta(t, 440, risingCrossings(left), 4, "pitch should fall back to the base frequency")
}

func TestWriteWAV_RoundTrip(t *testing.T) {
	e := New(Config{})
	osc, err := e.CreateUnit("oscillator", engine.DefaultUnitOptions())
	require.NoError(t, err)
	require.NoError(t, osc.Connect(e.Destination()))
	osc.Start()

	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, e.RenderWAVFile(path, 0.1))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.NotNil(t, buf.Format)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, int(DefaultSampleRate), buf.Format.SampleRate)
	assert.Equal(t, int(0.1*DefaultSampleRate)*2, len(buf.Data))
}

func TestDirLibrary_FallsBackToBuiltin(t *testing.T) {
	lib := NewDirLibrary(t.TempDir(), DefaultSampleRate)
	clip, err := lib.Load(context.Background(), "kick")
	require.NoError(t, err)
	assert.Greater(t, clip.frames(), 0)
}

func TestDirLibrary_DecodesAndCachesWAV(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{})
	osc, err := e.CreateUnit("oscillator", engine.DefaultUnitOptions())
	require.NoError(t, err)
	require.NoError(t, osc.Connect(e.Destination()))
	osc.Start()
	require.NoError(t, e.RenderWAVFile(filepath.Join(dir, "tone.wav"), 0.05))

	lib := NewDirLibrary(dir, DefaultSampleRate)
	first, err := lib.Load(context.Background(), "tone")
	require.NoError(t, err)
	assert.Equal(t, int(0.05*DefaultSampleRate), first.frames())
	assert.Equal(t, DefaultSampleRate, first.SampleRate)

	second, err := lib.Load(context.Background(), "tone")
	require.NoError(t, err)
	assert.Same(t, first, second, "repeat loads should hit the cache")
}

func TestParamSmoothing_ApproachesTarget(t *testing.T) {
	p := newParam("x", 0, DefaultSampleRate)
	p.SetValue(1)
	buf := p.resolve(1)
	for i := 1; i < len(buf); i++ {
		assert.Greater(t, buf[i], buf[i-1], "smoothing should rise monotonically")
	}
	assert.Less(t, buf[len(buf)-1], 1.0)
	assert.Greater(t, buf[len(buf)-1], 0.0)
}
