// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"github.com/AleutianAI/Patchbay/pkg/validation"
	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// Client action names.
const (
	ActionAddNode     = "add_node"
	ActionRemoveNode  = "remove_node"
	ActionSetProperty = "set_property"
	ActionMoveNode    = "move_node"
	ActionTrigger     = "trigger"
	ActionRetrigger   = "retrigger"
	ActionAddEdge     = "add_edge"
	ActionRemoveEdge  = "remove_edge"
	ActionClear       = "clear"
	ActionUndo        = "undo"
	ActionRedo        = "redo"
	ActionPlay        = "play"
	ActionPause       = "pause"
	ActionLoadPreset  = "load_preset"
	ActionState       = "request_state"
)

// ClientAction is one WebSocket frame from the editor. Action selects the
// operation; the remaining fields are read as that operation needs them,
// mirroring the REST request bodies. RequestID, when set, is echoed on the
// ack or error so the client can correlate.
type ClientAction struct {
	Action    string `json:"action" validate:"required,oneof=add_node remove_node set_property move_node trigger retrigger add_edge remove_edge clear undo redo play pause load_preset request_state"`
	RequestID string `json:"requestId,omitempty" validate:"omitempty,max=120"`

	// Node operations.
	NodeID     string             `json:"nodeId,omitempty" validate:"omitempty,max=120"`
	Kind       string             `json:"kind,omitempty" validate:"omitempty,max=64"`
	Position   *snapshot.Position `json:"position,omitempty"`
	Properties map[string]any     `json:"properties,omitempty"`

	// Property operations.
	Name  string `json:"name,omitempty" validate:"omitempty,max=64"`
	Value any    `json:"value,omitempty"`

	// Edge operations.
	EdgeID       string `json:"edgeId,omitempty" validate:"omitempty,max=120"`
	SourceNodeID string `json:"sourceNodeId,omitempty" validate:"omitempty,max=120"`
	TargetNodeID string `json:"targetNodeId,omitempty" validate:"omitempty,max=120"`
	SourceOutput string `json:"sourceOutput,omitempty" validate:"omitempty,max=64"`
	TargetInput  string `json:"targetInput,omitempty" validate:"omitempty,max=64"`

	// Preset operations.
	Preset string `json:"preset,omitempty" validate:"omitempty,max=120"`
}

func (a *ClientAction) Validate() error {
	if err := validate.Struct(a); err != nil {
		return err
	}
	// Same mint-time identifier rule as the REST bodies.
	if a.Action == ActionAddNode && a.NodeID != "" {
		return validation.ValidateID(a.NodeID)
	}
	if a.Action == ActionAddEdge && a.EdgeID != "" {
		return validation.ValidateID(a.EdgeID)
	}
	return nil
}

// Server frame types.
const (
	FrameHello = "hello"
	FrameEvent = "event"
	FrameAck   = "ack"
	FrameError = "error"
)

// ServerFrame is one WebSocket frame to the editor. Hello carries the full
// state on connect, event frames stream store changes, and ack/error close
// the loop on client actions.
type ServerFrame struct {
	Type      string        `json:"type"`
	RequestID string        `json:"requestId,omitempty"`
	State     *GraphState   `json:"state,omitempty"`
	Event     *events.Event `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
}
