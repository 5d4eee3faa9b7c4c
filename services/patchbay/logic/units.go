// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"math"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

func b01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// Slider
// ============================================================================

// SliderUnit holds a continuous value between its own min and max, snapped
// to step. Writing any of the range properties re-clamps the current value.
type SliderUnit struct {
	baseUnit
	value, min, max, step float64
}

func newSlider(id string, def registry.Definition, log *logging.Logger) *SliderUnit {
	u := &SliderUnit{
		baseUnit: newBaseUnit(id, def, log),
		value:    def.Param("value").Default.(float64),
		min:      def.Param("min").Default.(float64),
		max:      def.Param("max").Default.(float64),
		step:     def.Param("step").Default.(float64),
	}
	u.emit("value", u.value, false)
	return u
}

func (u *SliderUnit) SetProperty(name string, value any) error {
	f, ok, err := u.normalizeFloat(name, value)
	if err != nil || !ok {
		return err
	}

	u.mu.Lock()
	switch name {
	case "value":
		u.value = u.snap(f)
	case "min":
		u.min = f
		u.value = u.snap(u.value)
	case "max":
		u.max = f
		u.value = u.snap(u.value)
	case "step":
		u.step = f
		u.value = u.snap(u.value)
	}
	v := u.value
	u.mu.Unlock()

	u.emit("value", v, false)
	return nil
}

// snap quantizes to step then clamps into [min, max]. Caller holds mu.
func (u *SliderUnit) snap(v float64) float64 {
	if u.step > 0 {
		v = u.min + math.Round((v-u.min)/u.step)*u.step
	}
	if u.max >= u.min {
		v = math.Min(v, u.max)
	}
	return math.Max(v, u.min)
}

// ============================================================================
// Button
// ============================================================================

// ButtonUnit is momentary: it has no standing value and fires a pulse of 1
// on every press, repeats included.
type ButtonUnit struct {
	baseUnit
	label string
}

func newButton(id string, def registry.Definition, log *logging.Logger) *ButtonUnit {
	return &ButtonUnit{
		baseUnit: newBaseUnit(id, def, log),
		label:    def.Param("label").Default.(string),
	}
}

func (u *ButtonUnit) SetProperty(name string, value any) error {
	norm, err := u.normalize(name, value)
	if err != nil || norm == nil {
		return err
	}
	u.mu.Lock()
	u.label = norm.(string)
	u.mu.Unlock()
	return nil
}

func (u *ButtonUnit) Trigger() {
	u.emit("press", 1, true)
}

// ============================================================================
// Toggle
// ============================================================================

// ToggleUnit latches a boolean and emits it as 0 or 1 on change.
type ToggleUnit struct {
	baseUnit
	on bool
}

func newToggle(id string, def registry.Definition, log *logging.Logger) *ToggleUnit {
	u := &ToggleUnit{
		baseUnit: newBaseUnit(id, def, log),
		on:       def.Param("on").Default.(bool),
	}
	u.emit("state", b01(u.on), false)
	return u
}

func (u *ToggleUnit) SetProperty(name string, value any) error {
	norm, err := u.normalize(name, value)
	if err != nil || norm == nil {
		return err
	}
	u.mu.Lock()
	u.on = norm.(bool)
	v := b01(u.on)
	u.mu.Unlock()

	u.emit("state", v, false)
	return nil
}

func (u *ToggleUnit) Trigger() {
	u.mu.Lock()
	u.on = !u.on
	v := b01(u.on)
	u.mu.Unlock()

	u.emit("state", v, false)
}

// ============================================================================
// Note to frequency
// ============================================================================

// NoteToFreqUnit converts a note number on the equal-tempered scale to a
// frequency in Hz against a configurable tuning reference.
type NoteToFreqUnit struct {
	baseUnit
	note, tuning float64
}

func newNoteToFreq(id string, def registry.Definition, log *logging.Logger) *NoteToFreqUnit {
	u := &NoteToFreqUnit{
		baseUnit: newBaseUnit(id, def, log),
		note:     def.Param("note").Default.(float64),
		tuning:   def.Param("tuning").Default.(float64),
	}
	u.recompute()
	return u
}

func (u *NoteToFreqUnit) SetProperty(name string, value any) error {
	f, ok, err := u.normalizeFloat(name, value)
	if err != nil || !ok {
		return err
	}
	u.mu.Lock()
	switch name {
	case "note":
		u.note = f
	case "tuning":
		u.tuning = f
	}
	u.mu.Unlock()

	u.recompute()
	return nil
}

func (u *NoteToFreqUnit) ReceiveInput(input string, value float64) {
	if input != "note" {
		return
	}
	u.mu.Lock()
	u.note = u.def.Param("note").ClampFloat(value)
	u.mu.Unlock()

	u.recompute()
}

func (u *NoteToFreqUnit) recompute() {
	u.mu.Lock()
	f := u.tuning * math.Exp2((u.note-69)/12)
	u.mu.Unlock()

	u.emit("frequency", f, false)
}

// ============================================================================
// Compare
// ============================================================================

// CompareUnit emits 1 when its operator holds for a and b, else 0. Inputs
// override the corresponding properties.
type CompareUnit struct {
	baseUnit
	op   string
	a, b float64
}

func newCompare(id string, def registry.Definition, log *logging.Logger) *CompareUnit {
	u := &CompareUnit{
		baseUnit: newBaseUnit(id, def, log),
		op:       def.Param("operator").Default.(string),
		a:        def.Param("a").Default.(float64),
		b:        def.Param("b").Default.(float64),
	}
	u.recompute()
	return u
}

func (u *CompareUnit) SetProperty(name string, value any) error {
	norm, err := u.normalize(name, value)
	if err != nil || norm == nil {
		return err
	}
	u.mu.Lock()
	switch name {
	case "operator":
		u.op = norm.(string)
	case "a":
		u.a = norm.(float64)
	case "b":
		u.b = norm.(float64)
	}
	u.mu.Unlock()

	u.recompute()
	return nil
}

func (u *CompareUnit) ReceiveInput(input string, value float64) {
	u.mu.Lock()
	switch input {
	case "a":
		u.a = value
	case "b":
		u.b = value
	default:
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	u.recompute()
}

func (u *CompareUnit) recompute() {
	u.mu.Lock()
	var r bool
	switch u.op {
	case "gt":
		r = u.a > u.b
	case "ge":
		r = u.a >= u.b
	case "lt":
		r = u.a < u.b
	case "le":
		r = u.a <= u.b
	case "eq":
		r = u.a == u.b
	case "ne":
		r = u.a != u.b
	}
	u.mu.Unlock()

	u.emit("result", b01(r), false)
}

// ============================================================================
// Math
// ============================================================================

// MathUnit applies a binary operator to a and b. Results that are not finite
// (division by zero, bad powers) are swallowed by the emission gate.
type MathUnit struct {
	baseUnit
	op   string
	a, b float64
}

func newMath(id string, def registry.Definition, log *logging.Logger) *MathUnit {
	u := &MathUnit{
		baseUnit: newBaseUnit(id, def, log),
		op:       def.Param("operator").Default.(string),
		a:        def.Param("a").Default.(float64),
		b:        def.Param("b").Default.(float64),
	}
	u.recompute()
	return u
}

func (u *MathUnit) SetProperty(name string, value any) error {
	norm, err := u.normalize(name, value)
	if err != nil || norm == nil {
		return err
	}
	u.mu.Lock()
	switch name {
	case "operator":
		u.op = norm.(string)
	case "a":
		u.a = norm.(float64)
	case "b":
		u.b = norm.(float64)
	}
	u.mu.Unlock()

	u.recompute()
	return nil
}

func (u *MathUnit) ReceiveInput(input string, value float64) {
	u.mu.Lock()
	switch input {
	case "a":
		u.a = value
	case "b":
		u.b = value
	default:
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	u.recompute()
}

func (u *MathUnit) recompute() {
	u.mu.Lock()
	var r float64
	switch u.op {
	case "add":
		r = u.a + u.b
	case "subtract":
		r = u.a - u.b
	case "multiply":
		r = u.a * u.b
	case "divide":
		r = u.a / u.b
	case "min":
		r = math.Min(u.a, u.b)
	case "max":
		r = math.Max(u.a, u.b)
	case "power":
		r = math.Pow(u.a, u.b)
	}
	u.mu.Unlock()

	u.emit("result", r, false)
}

// ============================================================================
// Display
// ============================================================================

// DisplayUnit is a sink: it remembers the last value delivered to it so the
// editor can show it. Non-finite deliveries are ignored.
type DisplayUnit struct {
	baseUnit
	last float64
}

func newDisplay(id string, def registry.Definition, log *logging.Logger) *DisplayUnit {
	return &DisplayUnit{
		baseUnit: newBaseUnit(id, def, log),
		last:     def.Param("value").Default.(float64),
	}
}

func (u *DisplayUnit) SetProperty(name string, value any) error {
	f, ok, err := u.normalizeFloat(name, value)
	if err != nil || !ok {
		return err
	}
	u.mu.Lock()
	u.last = f
	u.mu.Unlock()
	return nil
}

func (u *DisplayUnit) ReceiveInput(input string, value float64) {
	if input != "value" || math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	u.mu.Lock()
	u.last = value
	u.mu.Unlock()
}

// Last returns the most recently displayed value.
func (u *DisplayUnit) Last() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}
