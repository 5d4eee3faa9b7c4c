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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// TestAddNodeRequest_Validation covers the structural rules.
func TestAddNodeRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     AddNodeRequest
		wantErr bool
	}{
		{name: "minimal", req: AddNodeRequest{Kind: "oscillator"}},
		{name: "with id and position", req: AddNodeRequest{
			ID: "osc-1", Kind: "gain", Position: &snapshot.Position{X: 10, Y: 20}}},
		{name: "missing kind", req: AddNodeRequest{ID: "x"}, wantErr: true},
		{name: "id too long", req: AddNodeRequest{
			ID: strings.Repeat("a", 121), Kind: "gain"}, wantErr: true},
		{name: "id with bad charset", req: AddNodeRequest{
			ID: "../escape", Kind: "gain"}, wantErr: true},
		{name: "id with spaces", req: AddNodeRequest{
			ID: "my osc", Kind: "gain"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestAddNodeRequest_Spec verifies the conversion keeps all fields.
func TestAddNodeRequest_Spec(t *testing.T) {
	req := AddNodeRequest{
		ID:         "n1",
		Kind:       "slider",
		Position:   &snapshot.Position{X: 5, Y: 7},
		Properties: map[string]any{"value": 0.25},
	}
	spec := req.Spec()
	assert.Equal(t, "n1", spec.ID)
	assert.Equal(t, registry.KindSlider, spec.Kind)
	assert.Equal(t, 5.0, spec.Position.X)
	assert.Equal(t, 0.25, spec.Properties["value"])

	// Nil position stays at the zero origin.
	spec = (&AddNodeRequest{Kind: "gain"}).Spec()
	assert.Zero(t, spec.Position)
}

// TestAddEdgeRequest_Validation verifies endpoint requirements.
func TestAddEdgeRequest_Validation(t *testing.T) {
	ok := AddEdgeRequest{SourceNodeID: "a", TargetNodeID: "b"}
	assert.NoError(t, ok.Validate())

	missing := AddEdgeRequest{SourceNodeID: "a"}
	assert.Error(t, missing.Validate())

	badID := AddEdgeRequest{ID: "e 1", SourceNodeID: "a", TargetNodeID: "b"}
	assert.Error(t, badID.Validate())
}

// TestUpdatePropertyRequest_Validation verifies the name rule and that
// any JSON value passes structurally.
func TestUpdatePropertyRequest_Validation(t *testing.T) {
	assert.NoError(t, (&UpdatePropertyRequest{Name: "frequency", Value: 440.0}).Validate())
	assert.NoError(t, (&UpdatePropertyRequest{Name: "waveform", Value: "square"}).Validate())
	assert.NoError(t, (&UpdatePropertyRequest{Name: "loop", Value: nil}).Validate())
	assert.Error(t, (&UpdatePropertyRequest{Value: 1.0}).Validate())
}

// TestSaveProjectRequest_Validation verifies name bounds.
func TestSaveProjectRequest_Validation(t *testing.T) {
	assert.NoError(t, (&SaveProjectRequest{Name: "My Patch"}).Validate())
	assert.Error(t, (&SaveProjectRequest{}).Validate())
	assert.Error(t, (&SaveProjectRequest{Name: strings.Repeat("n", 121)}).Validate())
}

// TestClientAction_Validation verifies the action whitelist.
func TestClientAction_Validation(t *testing.T) {
	for _, action := range []string{
		ActionAddNode, ActionRemoveNode, ActionSetProperty, ActionMoveNode,
		ActionTrigger, ActionRetrigger, ActionAddEdge, ActionRemoveEdge,
		ActionClear, ActionUndo, ActionRedo, ActionPlay, ActionPause,
		ActionLoadPreset, ActionState,
	} {
		a := ClientAction{Action: action}
		require.NoError(t, a.Validate(), action)
	}

	bad := ClientAction{Action: "drop_tables"}
	assert.Error(t, bad.Validate())

	none := ClientAction{}
	assert.Error(t, none.Validate())

	// Minted IDs follow the identifier charset; references are not re-checked.
	mintBad := ClientAction{Action: ActionAddNode, Kind: "gain", NodeID: "../x"}
	assert.Error(t, mintBad.Validate())
	refOK := ClientAction{Action: ActionRemoveNode, NodeID: "any-id"}
	assert.NoError(t, refOK.Validate())
}
