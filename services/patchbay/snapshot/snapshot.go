// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot defines the serialized graph format. A snapshot is the
// complete editor state of a patch: nodes with their canvas positions and
// stored properties, and the edges between them. Runtime state never
// appears in a snapshot; loading one rebuilds it.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the format version written by Encode. Decoders accept any
// snapshot sharing the same major version.
const Version = "1.0.0"

// ErrInvalidFormat reports a document that is not a usable snapshot.
var ErrInvalidFormat = errors.New("snapshot: invalid project format")

// InvalidFormatError carries the reason a document was rejected.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("snapshot: invalid project format: %s", e.Reason)
}

func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// Position is a node's canvas location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one serialized graph node. Properties holds only values the user
// has actually set; defaults are implied by the kind.
type Node struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Position   Position       `json:"position"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is one serialized connection.
type Edge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	SourceOutput string `json:"sourceOutput"`
	TargetInput  string `json:"targetInput"`
}

// tuple is the logical identity of an edge, ignoring its ID.
type tuple struct {
	source, target, output, input string
}

func (e *Edge) tuple() tuple {
	return tuple{source: e.SourceNodeID, target: e.TargetNodeID, output: e.SourceOutput, input: e.TargetInput}
}

// Graph is a complete snapshot document.
type Graph struct {
	Version string `json:"version"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// SanitizeReport counts what Sanitize had to discard.
type SanitizeReport struct {
	DuplicateNodes int
	DuplicateEdges int
	DanglingEdges  int
}

func (r SanitizeReport) Clean() bool {
	return r.DuplicateNodes == 0 && r.DuplicateEdges == 0 && r.DanglingEdges == 0
}

// ============================================================================
// Codec
// ============================================================================

// Decode parses and validates a snapshot document. Both collections must be
// present, even when empty; a missing version is read as the current one.
func Decode(data []byte) (*Graph, error) {
	var raw struct {
		Version string  `json:"version"`
		Nodes   *[]Node `json:"nodes"`
		Edges   *[]Edge `json:"edges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidFormatError{Reason: err.Error()}
	}
	if raw.Nodes == nil {
		return nil, &InvalidFormatError{Reason: "missing nodes collection"}
	}
	if raw.Edges == nil {
		return nil, &InvalidFormatError{Reason: "missing edges collection"}
	}

	version := raw.Version
	if version == "" {
		version = Version
	}
	tagged := "v" + version
	if !semver.IsValid(tagged) {
		return nil, &InvalidFormatError{Reason: fmt.Sprintf("malformed version %q", raw.Version)}
	}
	if semver.Major(tagged) != semver.Major("v"+Version) {
		return nil, &InvalidFormatError{Reason: fmt.Sprintf("unsupported format version %s", version)}
	}

	g := &Graph{Version: version, Nodes: *raw.Nodes, Edges: *raw.Edges}
	for i, n := range g.Nodes {
		if n.ID == "" {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("node %d has no id", i)}
		}
		if n.Kind == "" {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("node %q has no kind", n.ID)}
		}
	}
	for i, e := range g.Edges {
		if e.SourceNodeID == "" || e.TargetNodeID == "" {
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("edge %d is missing an endpoint", i)}
		}
	}
	return g, nil
}

// Encode serializes the graph at the current format version.
func Encode(g *Graph) ([]byte, error) {
	out := Graph{Version: Version, Nodes: g.Nodes, Edges: g.Edges}
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// ============================================================================
// Sanitizing
// ============================================================================

// Sanitize removes what a loader cannot use: repeated node IDs, edges
// duplicating an earlier edge's endpoints, and edges whose endpoints do not
// exist. First occurrence wins throughout.
func (g *Graph) Sanitize() SanitizeReport {
	var report SanitizeReport

	seen := make(map[string]struct{}, len(g.Nodes))
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if _, dup := seen[n.ID]; dup {
			report.DuplicateNodes++
			continue
		}
		seen[n.ID] = struct{}{}
		nodes = append(nodes, n)
	}
	g.Nodes = nodes

	tuples := make(map[tuple]struct{}, len(g.Edges))
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if _, ok := seen[e.SourceNodeID]; !ok {
			report.DanglingEdges++
			continue
		}
		if _, ok := seen[e.TargetNodeID]; !ok {
			report.DanglingEdges++
			continue
		}
		key := e.tuple()
		if _, dup := tuples[key]; dup {
			report.DuplicateEdges++
			continue
		}
		tuples[key] = struct{}{}
		edges = append(edges, e)
	}
	g.Edges = edges
	return report
}

// ============================================================================
// Copying
// ============================================================================

// Clone deep-copies the graph, including property values, so history can
// hold immutable snapshots.
func (g *Graph) Clone() *Graph {
	out := &Graph{Version: g.Version}
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			cp := n
			cp.Properties = cloneProps(n.Properties)
			out.Nodes[i] = cp
		}
	}
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		copy(out.Edges, g.Edges)
	}
	return out
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneProps(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
