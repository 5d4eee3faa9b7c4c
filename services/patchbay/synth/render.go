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
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RenderFrames renders n frames offline, ignoring wall-clock pacing. It
// must not run concurrently with a resumed engine.
func (e *Engine) RenderFrames(n int) (left, right []float64) {
	left = make([]float64, 0, n+BlockSize)
	right = make([]float64, 0, n+BlockSize)
	for len(left) < n {
		l, r := e.RenderBlock()
		left = append(left, l...)
		right = append(right, r...)
	}
	return left[:n], right[:n]
}

// WriteWAV encodes a stereo float stream as 16-bit PCM. The encoder needs
// to seek back and patch the header, hence the WriteSeeker.
func WriteWAV(ws io.WriteSeeker, left, right []float64, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("synth: channel length mismatch %d != %d", len(left), len(right))
	}
	enc := wav.NewEncoder(ws, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, 0, len(left)*2),
	}
	for i := range left {
		buf.Data = append(buf.Data, pcm16(left[i]), pcm16(right[i]))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("synth: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("synth: finalize wav: %w", err)
	}
	return nil
}

func pcm16(v float64) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(math.Round(v * 32767))
}

// RenderWAVFile renders the current graph for the given duration and
// writes the result to path.
func (e *Engine) RenderWAVFile(path string, seconds float64) error {
	n := int(seconds * e.sampleRate)
	if n < 1 {
		return fmt.Errorf("synth: render duration %.3fs too short", seconds)
	}
	l, r := e.RenderFrames(n)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("synth: create %s: %w", path, err)
	}
	if err := WriteWAV(f, l, r, int(e.sampleRate)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
