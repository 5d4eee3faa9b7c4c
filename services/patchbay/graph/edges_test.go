// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/synth"
)

func risingCrossings(buf []float64) int {
	n := 0
	for i := 1; i < len(buf); i++ {
		if buf[i-1] <= 0 && buf[i] > 0 {
			n++
		}
	}
	return n
}

func rms(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// ============================================================================
// Classification
// ============================================================================

func TestAddEdge_AudioBetweenNativeUnits(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	view := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})

	assert.Equal(t, ClassAudio, view.Class)
	assert.Equal(t, "out", view.SourceOutput)
	assert.Equal(t, "in", view.TargetInput)
}

func TestAddEdge_ModulationIntoRateParam(t *testing.T) {
	rig := newTestRig(t)

	lfo := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	view := mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: lfo.ID, TargetNodeID: gain.ID, TargetInput: "gain",
	})

	assert.Equal(t, ClassModulation, view.Class)
}

func TestAddEdge_ControlBetweenLogicUnits(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	adder := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindMath})
	view := mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: slider.ID, TargetNodeID: adder.ID, TargetInput: "a",
	})

	assert.Equal(t, ClassControl, view.Class)
	assert.Equal(t, "value", view.SourceOutput, "logic default output is the first declared port")
}

func TestAddEdge_BridgeFromLogicToRateParam(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	view := mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency",
	})

	assert.Equal(t, ClassBridge, view.Class)
	assert.Equal(t, 1, rig.store.bridges.Count())
	assert.Equal(t, 2, rig.eng.LiveCount(), "oscillator plus generator")

	hid := nodeHandleID(rig.store, osc.ID)
	v, ok := rig.store.bridges.Value(hid, "frequency")
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9, "bridge starts at the slider's current value")
}

func TestAddEdge_AudioIntoLogicUnsupported(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	disp := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindDisplay})
	_, err := rig.store.AddEdge(EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: disp.ID})

	assert.ErrorIs(t, err, ErrUnsupportedEdge)
	_, edges := rig.store.Counts()
	assert.Equal(t, 0, edges)
}

func TestAddEdge_InvalidPorts(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	button := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindButton})

	cases := []struct {
		name string
		spec EdgeSpec
	}{
		{"unknown target input", EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID, TargetInput: "feedback"}},
		{"unknown source output", EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID, SourceOutput: "aux"}},
		{"discrete param target", EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "waveform"}},
		{"logic target without inputs", EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: button.ID, TargetInput: "press"}},
		{"oscillator has no audio input", EdgeSpec{SourceNodeID: gain.ID, TargetNodeID: osc.ID, TargetInput: "in"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rig.store.AddEdge(tc.spec)
			assert.ErrorIs(t, err, ErrInvalidPort)
		})
	}
}

func TestAddEdge_MissingEndpoint(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	_, err := rig.store.AddEdge(EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: "ghost"})
	assert.ErrorIs(t, err, ErrNoSuchNode)
}

// ============================================================================
// Duplicates
// ============================================================================

func TestAddEdge_DuplicateTupleIsSilentNoOp(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})

	first := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})
	second, err := rig.store.AddEdge(EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	_, edges := rig.store.Counts()
	assert.Equal(t, 1, edges)
}

func TestAddEdge_DistinctTuplesBetweenSamePair(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})

	a := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})
	b := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID, TargetInput: "gain"})

	assert.NotEqual(t, a.ID, b.ID)
	_, edges := rig.store.Counts()
	assert.Equal(t, 2, edges)
}

func TestAddEdge_DuplicateExplicitID(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})

	mustConnect(t, rig.store, EdgeSpec{ID: "e", SourceNodeID: osc.ID, TargetNodeID: gain.ID})
	_, err := rig.store.AddEdge(EdgeSpec{ID: "e", SourceNodeID: osc.ID, TargetNodeID: gain.ID, TargetInput: "gain"})

	assert.ErrorIs(t, err, ErrDuplicateEdge)
}

// ============================================================================
// Bridge lifecycle
// ============================================================================

func TestBridge_SharedAcrossQualifyingEdges(t *testing.T) {
	rig := newTestRig(t)

	s1 := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	s2 := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})

	e1 := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: s1.ID, TargetNodeID: osc.ID, TargetInput: "frequency"})
	e2 := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: s2.ID, TargetNodeID: osc.ID, TargetInput: "frequency"})

	hid := nodeHandleID(rig.store, osc.ID)
	assert.Equal(t, 1, rig.store.bridges.Count())
	assert.Equal(t, 2, rig.store.bridges.Refs(hid, "frequency"))
	assert.Equal(t, 2, rig.eng.LiveCount())

	require.NoError(t, rig.store.RemoveEdge(e1.ID))
	assert.Equal(t, 1, rig.store.bridges.Count())
	assert.Equal(t, 1, rig.store.bridges.Refs(hid, "frequency"))

	require.NoError(t, rig.store.RemoveEdge(e2.ID))
	assert.Equal(t, 0, rig.store.bridges.Count())
	assert.Equal(t, 1, rig.eng.LiveCount(), "generator destroyed with its last edge")
}

func TestBridge_TracksSourceValue(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency"})

	require.NoError(t, rig.store.UpdateNodeProperty(slider.ID, "value", 0.75))

	hid := nodeHandleID(rig.store, osc.ID)
	v, ok := rig.store.bridges.Value(hid, "frequency")
	require.True(t, ok)
	assert.InDelta(t, 0.75, v, 1e-9)
}

func TestBridge_TracksRescaledSlider(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{
		Kind:       registry.KindSlider,
		Properties: map[string]any{"max": 1000.0, "step": 1.0},
	})
	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency"})

	require.NoError(t, rig.store.UpdateNodeProperty(slider.ID, "value", 300.0))

	hid := nodeHandleID(rig.store, osc.ID)
	assert.Equal(t, 1, rig.store.bridges.Count())
	v, ok := rig.store.bridges.Value(hid, "frequency")
	require.True(t, ok)
	assert.InDelta(t, 300.0, v, 1e-9)
}

func TestBridge_RaisedWhenPendingTargetAttaches(t *testing.T) {
	rig := newTestRig(t)

	clip := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindClip})
	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	view := mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: slider.ID, TargetNodeID: clip.ID, TargetInput: "playbackRate",
	})
	assert.Equal(t, ClassBridge, view.Class)

	waitReady(t, rig.store, clip.ID)
	assert.Equal(t, 1, rig.store.bridges.Count())
}

func TestBridge_SurvivesRetriggerRebuild(t *testing.T) {
	rig := newTestRig(t)

	clip := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindClip})
	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: slider.ID, TargetNodeID: clip.ID, TargetInput: "playbackRate",
	})
	waitReady(t, rig.store, clip.ID)
	first := nodeHandleID(rig.store, clip.ID)

	require.NoError(t, rig.store.RetriggerNode(clip.ID))
	waitReady(t, rig.store, clip.ID)

	second := nodeHandleID(rig.store, clip.ID)
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, rig.store.bridges.Count())
	_, ok := rig.store.bridges.Value(second, "playbackRate")
	assert.True(t, ok, "bridge re-aimed at the rebuilt unit")
}

// ============================================================================
// Control propagation
// ============================================================================

func TestControlChain_SliderThroughMathToDisplay(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	adder := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindMath})
	disp := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindDisplay})

	require.NoError(t, rig.store.UpdateNodeProperty(adder.ID, "b", 2.0))
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: adder.ID, TargetInput: "a"})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: adder.ID, TargetNodeID: disp.ID})

	v, err := rig.store.DisplayValue(disp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-9)

	require.NoError(t, rig.store.UpdateNodeProperty(slider.ID, "value", 0.1))
	v, _ = rig.store.DisplayValue(disp.ID)
	assert.InDelta(t, 2.1, v, 1e-9)
}

func TestControlChain_DisconnectedEdgeStopsPropagation(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	disp := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindDisplay})
	edge := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: disp.ID})

	require.NoError(t, rig.store.RemoveEdge(edge.ID))
	require.NoError(t, rig.store.UpdateNodeProperty(slider.ID, "value", 0.9))

	v, err := rig.store.DisplayValue(disp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9, "display keeps the last delivered value")
}

// ============================================================================
// Rendered signal paths
// ============================================================================

func TestAudioPath_ProducesSignal(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	out := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOutput})
	edge := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: gain.ID, TargetNodeID: out.ID})

	left, right := rig.backend.RenderFrames(4800)
	assert.Greater(t, rms(left), 0.05)
	assert.Greater(t, rms(right), 0.05)

	require.NoError(t, rig.store.RemoveEdge(edge.ID))
	left, _ = rig.backend.RenderFrames(synth.BlockSize * 4)
	assert.Less(t, rms(left), 1e-12)
}

func TestBridge_ShiftsRenderedFrequency(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	out := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOutput})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: out.ID})

	slider := mustAdd(t, rig.store, NodeSpec{
		Kind:       registry.KindSlider,
		Properties: map[string]any{"max": 2000.0, "step": 1.0, "value": 660.0},
	})
	mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency",
	})

	sr := int(rig.eng.SampleRate())
	left, _ := rig.backend.RenderFrames(sr)

	// 440 Hz base with 660 added through the generator.
	assert.InDelta(t, 1100, float64(risingCrossings(left)), 4)
}
