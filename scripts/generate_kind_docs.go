// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// generate_kind_docs generates a markdown reference for every node kind in
// the registry.
//
// Usage:
//
//	go run scripts/generate_kind_docs.go > docs/node_reference.md
//
// The generated documentation includes:
//   - Full kind inventory with categories
//   - Port and parameter tables per kind
//   - Modulation target index (every rate parameter)
//   - Summary statistics
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// KindCategory represents a palette category of node kinds.
type KindCategory struct {
	Name        string
	Description string
	Kinds       []registry.Definition
}

func main() {
	reg := registry.New()
	defs := reg.Kinds()

	categories := categorizeKinds(defs)
	generateMarkdown(categories, defs)
}

// categorizeKinds groups kinds into palette categories.
func categorizeKinds(defs []registry.Definition) []KindCategory {
	categoryMap := map[string]*KindCategory{
		"sources": {
			Name:        "Sound Sources",
			Description: "Kinds that produce signal: generated waveforms, decoded clips, and live capture.",
		},
		"processors": {
			Name:        "Audio Processors",
			Description: "Kinds that transform an audio stream in place (level, spectrum, time, and space).",
		},
		"output": {
			Name:        "Output",
			Description: "The terminal node. Audio that never reaches an output node is silent.",
		},
		"controls": {
			Name:        "Controls",
			Description: "Interactive logic kinds the user drives directly. Their values travel over control edges and bridge onto engine parameters.",
		},
		"logic": {
			Name:        "Logic Processors",
			Description: "Kinds that transform control values (unit conversion, comparison, arithmetic).",
		},
		"instrumentation": {
			Name:        "Instrumentation",
			Description: "Kinds that observe values without affecting the signal path.",
		},
	}

	// Categorization rules
	for _, def := range defs {
		switch def.Kind {
		case registry.KindOscillator, registry.KindConstant,
			registry.KindClip, registry.KindCapture:
			categoryMap["sources"].Kinds = append(categoryMap["sources"].Kinds, def)

		case registry.KindGain, registry.KindFilter, registry.KindDelay,
			registry.KindPanner, registry.KindCompressor, registry.KindConvolver:
			categoryMap["processors"].Kinds = append(categoryMap["processors"].Kinds, def)

		case registry.KindOutput:
			categoryMap["output"].Kinds = append(categoryMap["output"].Kinds, def)

		case registry.KindSlider, registry.KindButton,
			registry.KindToggle, registry.KindTimer:
			categoryMap["controls"].Kinds = append(categoryMap["controls"].Kinds, def)

		case registry.KindNoteToFreq, registry.KindCompare, registry.KindMath:
			categoryMap["logic"].Kinds = append(categoryMap["logic"].Kinds, def)

		case registry.KindDisplay:
			categoryMap["instrumentation"].Kinds = append(categoryMap["instrumentation"].Kinds, def)
		}
	}

	order := []string{"sources", "processors", "output", "controls", "logic", "instrumentation"}

	var result []KindCategory
	for _, key := range order {
		if cat, ok := categoryMap[key]; ok && len(cat.Kinds) > 0 {
			result = append(result, *cat)
		}
	}
	return result
}

// generateMarkdown outputs the full markdown documentation.
func generateMarkdown(categories []KindCategory, allDefs []registry.Definition) {
	fmt.Println("# Node Kind Reference")
	fmt.Println()
	fmt.Println("## Overview")
	fmt.Println()
	fmt.Println("This document is a reference for every node kind the Patchbay editor can place.")
	fmt.Println("The catalog is defined in `services/patchbay/registry` and served verbatim at `GET /api/kinds`.")
	fmt.Println()
	fmt.Printf("**Generated:** %s\n", time.Now().Format("2006-01-02 15:04:05 UTC"))
	fmt.Println()

	// Statistics
	native := 0
	async := 0
	rateParams := 0
	for _, def := range allDefs {
		if def.Native {
			native++
		}
		if def.Async {
			async++
		}
		for _, p := range def.Params {
			if p.Rate {
				rateParams++
			}
		}
	}

	fmt.Println("## Summary Statistics")
	fmt.Println()
	fmt.Println("| Metric | Count |")
	fmt.Println("|--------|-------|")
	fmt.Printf("| Total Kinds | %d |\n", len(allDefs))
	fmt.Printf("| Native Kinds | %d |\n", native)
	fmt.Printf("| Logic Kinds | %d |\n", len(allDefs)-native)
	fmt.Printf("| Async Kinds | %d |\n", async)
	fmt.Printf("| Modulation Targets | %d |\n", rateParams)
	fmt.Printf("| Categories | %d |\n", len(categories))
	fmt.Println()

	// Table of contents
	fmt.Println("## Table of Contents")
	fmt.Println()
	for i, cat := range categories {
		fmt.Printf("%d. [%s](#%s)\n", i+1, cat.Name, strings.ToLower(strings.ReplaceAll(cat.Name, " ", "-")))
	}
	fmt.Println()

	// Quick reference table (all kinds)
	fmt.Println("---")
	fmt.Println()
	fmt.Println("## Quick Reference")
	fmt.Println()
	fmt.Println("| Kind | Category | Backing | Inputs | Outputs | Params |")
	fmt.Println("|------|----------|---------|--------|---------|--------|")

	for _, cat := range categories {
		for _, def := range cat.Kinds {
			fmt.Printf("| `%s` | %s | %s | %s | %s | %d |\n",
				def.Kind,
				cat.Name,
				backing(def),
				portList(def.Inputs),
				portList(def.Outputs),
				len(def.Params),
			)
		}
	}
	fmt.Println()

	// Detailed sections per category
	fmt.Println("---")
	fmt.Println()
	for _, cat := range categories {
		fmt.Printf("## %s\n", cat.Name)
		fmt.Println()
		fmt.Println(cat.Description)
		fmt.Println()

		for _, def := range cat.Kinds {
			printKindDetails(def)
		}
	}

	// Modulation target index
	fmt.Println("---")
	fmt.Println()
	fmt.Println("## Modulation Target Index")
	fmt.Println()
	fmt.Println("Rate parameters ride the engine's smoothed-parameter path. Each one is a legal")
	fmt.Println("target for a control bridge (slider, timer) or for native modulation (LFO into gain).")
	fmt.Println()

	fmt.Println("| Parameter | Kind | Default | Range |")
	fmt.Println("|-----------|------|---------|-------|")
	for _, def := range allDefs {
		for _, p := range def.Params {
			if !p.Rate {
				continue
			}
			fmt.Printf("| `%s` | `%s` | %v | %s |\n", p.Name, def.Kind, p.Default, rangeCol(p))
		}
	}
	fmt.Println()

	// Footer
	fmt.Println("---")
	fmt.Println()
	fmt.Println("*This document is auto-generated from `services/patchbay/registry`.*")
	fmt.Println()
	fmt.Println("*To regenerate: `go run scripts/generate_kind_docs.go > docs/node_reference.md`*")
}

// printKindDetails prints detailed information for a single kind.
func printKindDetails(def registry.Definition) {
	fmt.Printf("### `%s`\n", def.Kind)
	fmt.Println()

	// Main table
	fmt.Println("| Property | Value |")
	fmt.Println("|----------|-------|")
	fmt.Printf("| **Label** | %s |\n", def.Label)
	fmt.Printf("| **Backing** | %s |\n", backing(def))
	if def.Async {
		fmt.Println("| **Acquisition** | asynchronous (node is pending until its resource resolves) |")
	}
	if def.OneShot {
		fmt.Println("| **Playback** | one-shot (restart requires retrigger) |")
	}
	fmt.Printf("| **Inputs** | %s |\n", portList(def.Inputs))
	fmt.Printf("| **Outputs** | %s |\n", portList(def.Outputs))
	fmt.Println()

	// Parameters
	if len(def.Params) == 0 {
		fmt.Println("No parameters.")
		fmt.Println()
		return
	}

	fmt.Println("**Parameters:**")
	fmt.Println()
	fmt.Println("| Name | Type | Default | Range | Values | Rate |")
	fmt.Println("|------|------|---------|-------|--------|------|")
	for _, p := range def.Params {
		values := "-"
		if len(p.Values) > 0 {
			values = "`" + strings.Join(p.Values, "`, `") + "`"
		}
		rate := "no"
		if p.Rate {
			rate = "yes"
		}
		fmt.Printf("| `%s` | %s | %v | %s | %s | %s |\n",
			p.Name, p.Type, p.Default, rangeCol(p), values, rate)
	}
	fmt.Println()
}

// backing describes what runs a kind at runtime.
func backing(def registry.Definition) string {
	if !def.Native {
		return "logic runtime"
	}
	if def.Transport {
		return "native unit (transport)"
	}
	return "native unit"
}

// portList renders port names with their signal class.
func portList(ports []registry.Port) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, fmt.Sprintf("`%s` (%s)", p.Name, p.Signal))
	}
	return strings.Join(parts, ", ")
}

// rangeCol renders a parameter's range column.
func rangeCol(p registry.ParamSpec) string {
	if !p.HasRange {
		return "-"
	}
	return fmt.Sprintf("[%g, %g]", p.Min, p.Max)
}
