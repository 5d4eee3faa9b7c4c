// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIconRender_ContainsGlyph(t *testing.T) {
	assert.Contains(t, IconSuccess.Render(), "✓")
	assert.Contains(t, IconError.Render(), "✗")
	assert.Contains(t, IconPending.Render(), "○")
	assert.Equal(t, "♪", IconNote.Render())
}

func TestTable_Layout(t *testing.T) {
	out := Table(
		[]string{"KIND", "LABEL"},
		[][]string{
			{"oscillator", "Oscillator"},
			{"gain", "Gain"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4, "header, rule, two rows")
	assert.Contains(t, lines[0], "KIND")
	assert.Contains(t, lines[0], "LABEL")
	assert.Contains(t, lines[1], "─")
	assert.Contains(t, lines[2], "oscillator")
	assert.Contains(t, lines[3], "gain")

	// Second column stays aligned across rows.
	assert.Equal(t,
		strings.Index(lines[2], "Oscillator"),
		strings.Index(lines[3], "Gain"))
}

func TestTable_ShortRowPadded(t *testing.T) {
	out := Table([]string{"A", "B"}, [][]string{{"only"}})
	assert.Contains(t, out, "only")
}
