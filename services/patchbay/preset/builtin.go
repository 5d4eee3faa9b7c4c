// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preset

import (
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

type builtin struct {
	name  string
	graph *snapshot.Graph
}

func builtinPresets() []builtin {
	return []builtin{
		{name: "am-synth", graph: amSynth()},
		{name: "filter-sweep", graph: filterSweep()},
		{name: "delay-feedback", graph: delayFeedback()},
		{name: "keyboard", graph: keyboard()},
	}
}

// amSynth is a slider-tuned carrier with a slow sine LFO riding the amp
// gain. The carrier's own frequency sits at zero so the slider value is
// the pitch in Hz.
func amSynth() *snapshot.Graph {
	return &snapshot.Graph{
		Version: snapshot.Version,
		Nodes: []snapshot.Node{
			{ID: "pitch", Kind: "slider", Position: snapshot.Position{X: 80, Y: 80},
				Properties: map[string]any{"min": 50.0, "max": 1000.0, "step": 1.0, "value": 220.0}},
			{ID: "carrier", Kind: "oscillator", Position: snapshot.Position{X: 320, Y: 160},
				Properties: map[string]any{"frequency": 0.0, "waveform": "sine"}},
			{ID: "lfo", Kind: "oscillator", Position: snapshot.Position{X: 320, Y: 340},
				Properties: map[string]any{"frequency": 4.0, "waveform": "sine"}},
			{ID: "amp", Kind: "gain", Position: snapshot.Position{X: 560, Y: 160},
				Properties: map[string]any{"gain": 0.5}},
			{ID: "out", Kind: "output", Position: snapshot.Position{X: 800, Y: 160}},
		},
		Edges: []snapshot.Edge{
			{ID: "pitch-carrier", SourceNodeID: "pitch", TargetNodeID: "carrier", SourceOutput: "value", TargetInput: "frequency"},
			{ID: "carrier-amp", SourceNodeID: "carrier", TargetNodeID: "amp", SourceOutput: "out", TargetInput: "in"},
			{ID: "lfo-amp", SourceNodeID: "lfo", TargetNodeID: "amp", SourceOutput: "out", TargetInput: "gain"},
			{ID: "amp-out", SourceNodeID: "amp", TargetNodeID: "out", SourceOutput: "out", TargetInput: "in"},
		},
	}
}

// filterSweep runs a sawtooth through a resonant lowpass whose cutoff is
// pushed around by a slider.
func filterSweep() *snapshot.Graph {
	return &snapshot.Graph{
		Version: snapshot.Version,
		Nodes: []snapshot.Node{
			{ID: "cutoff", Kind: "slider", Position: snapshot.Position{X: 80, Y: 80},
				Properties: map[string]any{"min": 0.0, "max": 4800.0, "step": 10.0, "value": 600.0}},
			{ID: "voice", Kind: "oscillator", Position: snapshot.Position{X: 80, Y: 260},
				Properties: map[string]any{"frequency": 110.0, "waveform": "sawtooth"}},
			{ID: "sweep", Kind: "filter", Position: snapshot.Position{X: 340, Y: 260},
				Properties: map[string]any{"type": "lowpass", "frequency": 120.0, "Q": 6.0}},
			{ID: "level", Kind: "gain", Position: snapshot.Position{X: 580, Y: 260},
				Properties: map[string]any{"gain": 0.8}},
			{ID: "out", Kind: "output", Position: snapshot.Position{X: 800, Y: 260}},
		},
		Edges: []snapshot.Edge{
			{ID: "cutoff-sweep", SourceNodeID: "cutoff", TargetNodeID: "sweep", SourceOutput: "value", TargetInput: "frequency"},
			{ID: "voice-sweep", SourceNodeID: "voice", TargetNodeID: "sweep", SourceOutput: "out", TargetInput: "in"},
			{ID: "sweep-level", SourceNodeID: "sweep", TargetNodeID: "level", SourceOutput: "out", TargetInput: "in"},
			{ID: "level-out", SourceNodeID: "level", TargetNodeID: "out", SourceOutput: "out", TargetInput: "in"},
		},
	}
}

// delayFeedback loops a kick clip through a delay line with a gain stage
// feeding the wet signal back into the delay. The feedback cycle costs
// one render block of latency in the backend.
func delayFeedback() *snapshot.Graph {
	return &snapshot.Graph{
		Version: snapshot.Version,
		Nodes: []snapshot.Node{
			{ID: "beat", Kind: "clip", Position: snapshot.Position{X: 80, Y: 160},
				Properties: map[string]any{"clip": "kick", "loop": true}},
			{ID: "echo", Kind: "delay", Position: snapshot.Position{X: 340, Y: 160},
				Properties: map[string]any{"delayTime": 0.35}},
			{ID: "feedback", Kind: "gain", Position: snapshot.Position{X: 340, Y: 340},
				Properties: map[string]any{"gain": 0.45}},
			{ID: "out", Kind: "output", Position: snapshot.Position{X: 600, Y: 160}},
		},
		Edges: []snapshot.Edge{
			{ID: "beat-echo", SourceNodeID: "beat", TargetNodeID: "echo", SourceOutput: "out", TargetInput: "in"},
			{ID: "beat-out", SourceNodeID: "beat", TargetNodeID: "out", SourceOutput: "out", TargetInput: "in"},
			{ID: "echo-feedback", SourceNodeID: "echo", TargetNodeID: "feedback", SourceOutput: "out", TargetInput: "in"},
			{ID: "feedback-echo", SourceNodeID: "feedback", TargetNodeID: "echo", SourceOutput: "out", TargetInput: "in"},
			{ID: "echo-out", SourceNodeID: "echo", TargetNodeID: "out", SourceOutput: "out", TargetInput: "in"},
		},
	}
}

// keyboard maps a stepped MIDI-note slider through the note converter
// onto a triangle voice, with a display reading back the computed Hz.
func keyboard() *snapshot.Graph {
	return &snapshot.Graph{
		Version: snapshot.Version,
		Nodes: []snapshot.Node{
			{ID: "note", Kind: "slider", Position: snapshot.Position{X: 80, Y: 160},
				Properties: map[string]any{"min": 48.0, "max": 84.0, "step": 1.0, "value": 69.0}},
			{ID: "pitch", Kind: "note-to-freq", Position: snapshot.Position{X: 320, Y: 160}},
			{ID: "voice", Kind: "oscillator", Position: snapshot.Position{X: 560, Y: 160},
				Properties: map[string]any{"frequency": 0.0, "waveform": "triangle"}},
			{ID: "level", Kind: "gain", Position: snapshot.Position{X: 800, Y: 160},
				Properties: map[string]any{"gain": 0.4}},
			{ID: "out", Kind: "output", Position: snapshot.Position{X: 1040, Y: 160}},
			{ID: "hz", Kind: "display", Position: snapshot.Position{X: 320, Y: 340}},
		},
		Edges: []snapshot.Edge{
			{ID: "note-pitch", SourceNodeID: "note", TargetNodeID: "pitch", SourceOutput: "value", TargetInput: "note"},
			{ID: "pitch-voice", SourceNodeID: "pitch", TargetNodeID: "voice", SourceOutput: "frequency", TargetInput: "frequency"},
			{ID: "pitch-hz", SourceNodeID: "pitch", TargetNodeID: "hz", SourceOutput: "frequency", TargetInput: "value"},
			{ID: "voice-level", SourceNodeID: "voice", TargetNodeID: "level", SourceOutput: "out", TargetInput: "in"},
			{ID: "level-out", SourceNodeID: "level", TargetNodeID: "out", SourceOutput: "out", TargetInput: "in"},
		},
	}
}
