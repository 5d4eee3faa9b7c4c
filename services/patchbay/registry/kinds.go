// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

// Port name conventions: native units expose one audio input "in" and one
// audio output "out"; rate parameters double as connectable inputs (an edge
// may target "frequency" directly). Logic ports are named per kind.
const (
	PortIn  = "in"
	PortOut = "out"
)

func audioIn() []Port  { return []Port{{Name: PortIn, Signal: SignalAudio}} }
func audioOut() []Port { return []Port{{Name: PortOut, Signal: SignalAudio}} }

func builtinKinds() []Definition {
	return []Definition{
		// =====================================================================
		// Native kinds
		// =====================================================================
		{
			Kind: KindOscillator, Label: "Oscillator", Native: true, Transport: true,
			Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "frequency", Type: ParamFloat, Default: 440.0, Min: 0, Max: 20000, HasRange: true, Rate: true},
				{Name: "detune", Type: ParamFloat, Default: 0.0, Min: -1200, Max: 1200, HasRange: true, Rate: true},
				{Name: "waveform", Type: ParamEnum, Default: "sine", Values: []string{"sine", "square", "sawtooth", "triangle"}},
			},
		},
		{
			Kind: KindGain, Label: "Gain", Native: true,
			Inputs: audioIn(), Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "gain", Type: ParamFloat, Default: 1.0, Min: 0, Max: 2, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindFilter, Label: "Filter", Native: true,
			Inputs: audioIn(), Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "type", Type: ParamEnum, Default: "lowpass", Values: []string{
					"lowpass", "highpass", "bandpass", "lowshelf", "highshelf", "peaking", "notch", "allpass"}},
				{Name: "frequency", Type: ParamFloat, Default: 350.0, Min: 10, Max: 20000, HasRange: true, Rate: true},
				{Name: "Q", Type: ParamFloat, Default: 1.0, Min: 0.0001, Max: 1000, HasRange: true, Rate: true},
				{Name: "gain", Type: ParamFloat, Default: 0.0, Min: -40, Max: 40, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindDelay, Label: "Delay", Native: true,
			Inputs: audioIn(), Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "delayTime", Type: ParamFloat, Default: 0.3, Min: 0, Max: 5, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindPanner, Label: "Panner", Native: true,
			Inputs: audioIn(), Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "pan", Type: ParamFloat, Default: 0.0, Min: -1, Max: 1, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindCompressor, Label: "Compressor", Native: true,
			Inputs: audioIn(), Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "threshold", Type: ParamFloat, Default: -24.0, Min: -100, Max: 0, HasRange: true, Rate: true},
				{Name: "knee", Type: ParamFloat, Default: 30.0, Min: 0, Max: 40, HasRange: true, Rate: true},
				{Name: "ratio", Type: ParamFloat, Default: 12.0, Min: 1, Max: 20, HasRange: true, Rate: true},
				{Name: "attack", Type: ParamFloat, Default: 0.003, Min: 0, Max: 1, HasRange: true, Rate: true},
				{Name: "release", Type: ParamFloat, Default: 0.25, Min: 0, Max: 1, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindConvolver, Label: "Convolver", Native: true,
			Inputs: audioIn(), Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "duration", Type: ParamFloat, Default: 2.0, Min: 0.05, Max: 10, HasRange: true},
				{Name: "decay", Type: ParamFloat, Default: 2.0, Min: 0.1, Max: 10, HasRange: true},
				{Name: "normalize", Type: ParamBool, Default: true},
			},
		},
		{
			Kind: KindConstant, Label: "Constant", Native: true, Transport: true,
			Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "offset", Type: ParamFloat, Default: 1.0, Min: -10, Max: 10, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindClip, Label: "Clip Player", Native: true, Async: true, Transport: true, OneShot: true,
			Outputs: audioOut(),
			Params: []ParamSpec{
				{Name: "clip", Type: ParamString, Default: "kick"},
				{Name: "loop", Type: ParamBool, Default: false},
				{Name: "playbackRate", Type: ParamFloat, Default: 1.0, Min: 0.25, Max: 4, HasRange: true, Rate: true},
			},
		},
		{
			Kind: KindCapture, Label: "Live Input", Native: true, Async: true,
			Outputs: audioOut(),
			Params:  []ParamSpec{},
		},
		{
			Kind: KindOutput, Label: "Output", Native: true,
			Inputs: audioIn(),
			Params: []ParamSpec{},
		},

		// =====================================================================
		// Logic kinds
		// =====================================================================
		{
			Kind: KindSlider, Label: "Slider", Native: false,
			Outputs: []Port{{Name: "value", Signal: SignalControl}},
			// Range parameters precede value so initial properties apply
			// in a usable order.
			Params: []ParamSpec{
				{Name: "min", Type: ParamFloat, Default: 0.0},
				{Name: "max", Type: ParamFloat, Default: 1.0},
				{Name: "step", Type: ParamFloat, Default: 0.01, Min: 0, Max: 1000, HasRange: true},
				{Name: "value", Type: ParamFloat, Default: 0.5},
			},
		},
		{
			Kind: KindButton, Label: "Button", Native: false,
			Outputs: []Port{{Name: "press", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "label", Type: ParamString, Default: "Trigger"},
			},
		},
		{
			Kind: KindToggle, Label: "Toggle", Native: false,
			Outputs: []Port{{Name: "state", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "on", Type: ParamBool, Default: false},
			},
		},
		{
			Kind: KindTimer, Label: "Timer", Native: false,
			Outputs: []Port{{Name: "tick", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "interval", Type: ParamFloat, Default: 500.0, Min: 10, Max: 60000, HasRange: true},
				{Name: "running", Type: ParamBool, Default: false},
			},
		},
		{
			Kind: KindNoteToFreq, Label: "Note to Frequency", Native: false,
			Inputs:  []Port{{Name: "note", Signal: SignalControl}},
			Outputs: []Port{{Name: "frequency", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "note", Type: ParamFloat, Default: 69.0, Min: 0, Max: 127, HasRange: true},
				{Name: "tuning", Type: ParamFloat, Default: 440.0, Min: 400, Max: 480, HasRange: true},
			},
		},
		{
			Kind: KindCompare, Label: "Compare", Native: false,
			Inputs: []Port{
				{Name: "a", Signal: SignalControl},
				{Name: "b", Signal: SignalControl},
			},
			Outputs: []Port{{Name: "result", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "operator", Type: ParamEnum, Default: "gt", Values: []string{"gt", "ge", "lt", "le", "eq", "ne"}},
				{Name: "a", Type: ParamFloat, Default: 0.0},
				{Name: "b", Type: ParamFloat, Default: 0.0},
			},
		},
		{
			Kind: KindMath, Label: "Math", Native: false,
			Inputs: []Port{
				{Name: "a", Signal: SignalControl},
				{Name: "b", Signal: SignalControl},
			},
			Outputs: []Port{{Name: "result", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "operator", Type: ParamEnum, Default: "add", Values: []string{
					"add", "subtract", "multiply", "divide", "min", "max", "power"}},
				{Name: "a", Type: ParamFloat, Default: 0.0},
				{Name: "b", Type: ParamFloat, Default: 0.0},
			},
		},
		{
			Kind: KindDisplay, Label: "Display", Native: false,
			Inputs: []Port{{Name: "value", Signal: SignalControl}},
			Params: []ParamSpec{
				{Name: "value", Type: ParamFloat, Default: 0.0},
			},
		},
	}
}
