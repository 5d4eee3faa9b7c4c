// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the patchbay
// HTTP and WebSocket API.
//
// JSON field names follow the snapshot wire format (camelCase,
// sourceNodeId-style) so the editor frontend works with one vocabulary
// across REST bodies, WebSocket frames, and saved project files.
// Structural validation happens here via go-playground/validator;
// semantic validation (kind exists, param in schema, value in range) is
// the graph store's job.
package datatypes

import (
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/Patchbay/pkg/validation"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxSnapshotBytes caps imported snapshot documents.
	MaxSnapshotBytes = 1 * 1024 * 1024 // 1MB

	// MaxNameLen caps user-supplied names (projects, node IDs).
	MaxNameLen = 120
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// validate is the validator for all API datatypes.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// =============================================================================
// Graph Mutation Requests
// =============================================================================

// AddNodeRequest creates one node.
//
// ID is optional; the store generates a UUID when omitted. Properties are
// initial overrides of the kind's parameter defaults and pass through the
// kind's schema on the server.
type AddNodeRequest struct {
	ID         string             `json:"id,omitempty" validate:"omitempty,max=120"`
	Kind       string             `json:"kind" validate:"required,max=64"`
	Position   *snapshot.Position `json:"position,omitempty"`
	Properties map[string]any     `json:"properties,omitempty"`
}

// Validate checks structural constraints after JSON binding. A client-minted
// ID additionally passes the identifier charset check; generated IDs never
// need one.
func (r *AddNodeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.ID != "" {
		return validation.ValidateID(r.ID)
	}
	return nil
}

// Spec converts the request into a store node spec.
func (r *AddNodeRequest) Spec() graph.NodeSpec {
	spec := graph.NodeSpec{
		ID:         r.ID,
		Kind:       registry.Kind(r.Kind),
		Properties: r.Properties,
	}
	if r.Position != nil {
		spec.Position = *r.Position
	}
	return spec
}

// UpdatePropertyRequest sets one property on a node. Value is opaque here;
// the kind's parameter schema decides whether it is acceptable.
type UpdatePropertyRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Value any    `json:"value"`
}

func (r *UpdatePropertyRequest) Validate() error {
	return validate.Struct(r)
}

// MoveNodeRequest repositions a node on the editor canvas.
type MoveNodeRequest struct {
	Position snapshot.Position `json:"position"`
}

func (r *MoveNodeRequest) Validate() error {
	return validate.Struct(r)
}

// AddEdgeRequest connects two nodes. Port names are optional; the store
// falls back to the endpoints' primary ports.
type AddEdgeRequest struct {
	ID           string `json:"id,omitempty" validate:"omitempty,max=120"`
	SourceNodeID string `json:"sourceNodeId" validate:"required,max=120"`
	TargetNodeID string `json:"targetNodeId" validate:"required,max=120"`
	SourceOutput string `json:"sourceOutput,omitempty" validate:"omitempty,max=64"`
	TargetInput  string `json:"targetInput,omitempty" validate:"omitempty,max=64"`
}

func (r *AddEdgeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.ID != "" {
		return validation.ValidateID(r.ID)
	}
	return nil
}

// Spec converts the request into a store edge spec.
func (r *AddEdgeRequest) Spec() graph.EdgeSpec {
	return graph.EdgeSpec{
		ID:           r.ID,
		SourceNodeID: r.SourceNodeID,
		TargetNodeID: r.TargetNodeID,
		SourceOutput: r.SourceOutput,
		TargetInput:  r.TargetInput,
	}
}

// PlaybackRequest resumes or suspends the transport.
type PlaybackRequest struct {
	Playing bool `json:"playing"`
}

// LoadPresetRequest replaces the live graph with a named preset.
type LoadPresetRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (r *LoadPresetRequest) Validate() error {
	return validate.Struct(r)
}

// =============================================================================
// Responses
// =============================================================================

// GraphState is the reactive read model: everything the editor needs to
// draw the patch and enable its toolbar.
type GraphState struct {
	Nodes     []graph.NodeView `json:"nodes"`
	Edges     []graph.EdgeView `json:"edges"`
	IsPlaying bool             `json:"isPlaying"`
	CanUndo   bool             `json:"canUndo"`
	CanRedo   bool             `json:"canRedo"`
	Revision  uint64           `json:"revision"`
}

// NewGraphState assembles the read model from a store. Revision is the
// event bus revision the state was read at, letting WebSocket clients
// resume the event stream without a gap.
func NewGraphState(store *graph.Store, revision uint64) GraphState {
	return GraphState{
		Nodes:     store.Nodes(),
		Edges:     store.Edges(),
		IsPlaying: store.Playing(),
		CanUndo:   store.CanUndo(),
		CanRedo:   store.CanRedo(),
		Revision:  revision,
	}
}

// LoadReport describes what a snapshot or preset load did.
type LoadReport struct {
	Nodes          int `json:"nodes"`
	Edges          int `json:"edges"`
	DuplicateNodes int `json:"duplicateNodes,omitempty"`
	DuplicateEdges int `json:"duplicateEdges,omitempty"`
	DanglingEdges  int `json:"danglingEdges,omitempty"`
}

// NewLoadReport merges store counts with the sanitize report.
func NewLoadReport(store *graph.Store, rep snapshot.SanitizeReport) LoadReport {
	nodes, edges := store.Counts()
	return LoadReport{
		Nodes:          nodes,
		Edges:          edges,
		DuplicateNodes: rep.DuplicateNodes,
		DuplicateEdges: rep.DuplicateEdges,
		DanglingEdges:  rep.DanglingEdges,
	}
}

// ErrorResponse is the JSON body for any non-2xx response.
type ErrorResponse struct {
	// Error is the human-readable message.
	Error string `json:"error"`

	// Code is a stable machine-readable code (optional).
	Code string `json:"code,omitempty"`
}
