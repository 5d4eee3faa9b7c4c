// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// ============================================================================
// Export
// ============================================================================

func TestExportSnapshot_CapturesGraph(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{
		Kind:       registry.KindOscillator,
		Position:   snapshot.Position{X: 10, Y: 20},
		Properties: map[string]any{"frequency": 220.0},
	})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	edge := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})

	g := rig.store.ExportSnapshot()

	assert.Equal(t, snapshot.Version, g.Version)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, osc.ID, g.Nodes[0].ID)
	assert.Equal(t, "oscillator", g.Nodes[0].Kind)
	assert.Equal(t, snapshot.Position{X: 10, Y: 20}, g.Nodes[0].Position)
	assert.InDelta(t, 220.0, g.Nodes[0].Properties["frequency"], 1e-12)
	assert.Nil(t, g.Nodes[1].Properties, "empty property maps are omitted")
	require.Len(t, g.Edges, 1)
	assert.Equal(t, edge.ID, g.Edges[0].ID)
	assert.Equal(t, "out", g.Edges[0].SourceOutput)
	assert.Equal(t, "in", g.Edges[0].TargetInput)
}

func TestExportSnapshot_DetachedFromLiveState(t *testing.T) {
	rig := newTestRig(t)

	gain := mustAdd(t, rig.store, NodeSpec{
		Kind:       registry.KindGain,
		Properties: map[string]any{"gain": 0.5},
	})
	g := rig.store.ExportSnapshot()

	require.NoError(t, rig.store.UpdateNodeProperty(gain.ID, "gain", 1.5))
	assert.InDelta(t, 0.5, g.Nodes[0].Properties["gain"], 1e-12,
		"snapshot must not alias the store's property maps")
}

// ============================================================================
// Load
// ============================================================================

func TestLoadSnapshot_RebuildsLiveGraph(t *testing.T) {
	src := newTestRig(t)
	osc := mustAdd(t, src.store, NodeSpec{
		Kind:       registry.KindOscillator,
		Properties: map[string]any{"frequency": 220.0, "waveform": "square"},
	})
	gain := mustAdd(t, src.store, NodeSpec{Kind: registry.KindGain})
	slider := mustAdd(t, src.store, NodeSpec{Kind: registry.KindSlider})
	mustConnect(t, src.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})
	mustConnect(t, src.store, EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency"})
	doc := src.store.ExportSnapshot()

	dst := newTestRig(t)
	report, err := dst.store.LoadSnapshot(doc)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	nodes, edges := dst.store.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
	assert.Equal(t, 3, dst.eng.LiveCount(), "oscillator, gain, and bridge generator")
	assert.Equal(t, 1, dst.store.bridges.Count())

	view, err := dst.store.Node(osc.ID)
	require.NoError(t, err)
	assert.Equal(t, "square", view.Properties["waveform"])

	assert.Len(t, dst.sink.EventsByType(events.TypeGraphLoaded), 1)
	assert.Empty(t, dst.sink.EventsByType(events.TypeNodeAdded),
		"bulk load announces once, not per node")
}

func TestLoadSnapshot_SanitizesInput(t *testing.T) {
	rig := newTestRig(t)

	doc := &snapshot.Graph{
		Version: snapshot.Version,
		Nodes: []snapshot.Node{
			{ID: "a", Kind: "oscillator"},
			{ID: "a", Kind: "gain"},
			{ID: "b", Kind: "gain"},
		},
		Edges: []snapshot.Edge{
			{ID: "e1", SourceNodeID: "a", TargetNodeID: "b", SourceOutput: "out", TargetInput: "in"},
			{ID: "e2", SourceNodeID: "a", TargetNodeID: "b", SourceOutput: "out", TargetInput: "in"},
			{ID: "e3", SourceNodeID: "a", TargetNodeID: "ghost", SourceOutput: "out", TargetInput: "in"},
		},
	}

	report, err := rig.store.LoadSnapshot(doc)
	require.NoError(t, err)

	assert.Equal(t, 1, report.DuplicateNodes)
	assert.Equal(t, 1, report.DuplicateEdges)
	assert.Equal(t, 1, report.DanglingEdges)

	nodes, edges := rig.store.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	// The caller's document is cloned before sanitizing.
	assert.Len(t, doc.Nodes, 3)
	assert.Len(t, doc.Edges, 3)
}

func TestLoadSnapshot_FailureRestoresPreviousGraph(t *testing.T) {
	rig := newTestRig(t)
	mustAdd(t, rig.store, NodeSpec{ID: "keep", Kind: registry.KindOscillator})

	bad := &snapshot.Graph{
		Version: snapshot.Version,
		Nodes: []snapshot.Node{
			{ID: "x", Kind: "gain"},
			{ID: "y", Kind: "theremin"},
		},
		Edges: []snapshot.Edge{},
	}

	_, err := rig.store.LoadSnapshot(bad)
	var replayErr *ReplayError
	require.ErrorAs(t, err, &replayErr)
	assert.Equal(t, "load", replayErr.Op)
	assert.ErrorIs(t, err, registry.ErrUnknownKind)

	nodes, edges := rig.store.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, edges)
	assert.Equal(t, 1, rig.eng.LiveCount())
	_, err = rig.store.Node("keep")
	assert.NoError(t, err)
}

func TestLoadSnapshot_StartsFreshHistory(t *testing.T) {
	rig := newTestRig(t)
	mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	require.True(t, rig.store.CanUndo())

	doc := &snapshot.Graph{
		Version: snapshot.Version,
		Nodes:   []snapshot.Node{{ID: "n", Kind: "oscillator"}},
		Edges:   []snapshot.Edge{},
	}
	_, err := rig.store.LoadSnapshot(doc)
	require.NoError(t, err)

	assert.False(t, rig.store.CanUndo())
	assert.False(t, rig.store.CanRedo())
}

func TestLoadJSON_RoundTrip(t *testing.T) {
	src := newTestRig(t)
	osc := mustAdd(t, src.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, src.store, NodeSpec{Kind: registry.KindGain})
	mustConnect(t, src.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})

	data, err := src.store.ExportJSON()
	require.NoError(t, err)

	dst := newTestRig(t)
	_, err = dst.store.LoadJSON(data)
	require.NoError(t, err)

	nodes, edges := dst.store.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
}

func TestLoadJSON_RejectsMalformedDocument(t *testing.T) {
	rig := newTestRig(t)
	mustAdd(t, rig.store, NodeSpec{ID: "keep", Kind: registry.KindGain})

	_, err := rig.store.LoadJSON([]byte(`{"version":"1.0.0","nodes":[]}`))
	assert.ErrorIs(t, err, snapshot.ErrInvalidFormat)

	// A parse failure never touches the live graph.
	nodes, _ := rig.store.Counts()
	assert.Equal(t, 1, nodes)
}

// ============================================================================
// Clear
// ============================================================================

func TestClearAllNodes_RemovesEverything(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency"})

	rig.store.ClearAllNodes()

	nodes, edges := rig.store.Counts()
	assert.Equal(t, 0, nodes)
	assert.Equal(t, 0, edges)
	assert.Equal(t, 0, rig.eng.LiveCount())
	assert.Equal(t, 0, rig.store.bridges.Count())
	assert.Len(t, rig.sink.EventsByType(events.TypeGraphCleared), 1)
}

func TestClearAllNodes_EmptyGraphIsNoOp(t *testing.T) {
	rig := newTestRig(t)

	rig.store.ClearAllNodes()

	assert.False(t, rig.store.CanUndo())
	assert.Empty(t, rig.sink.EventsByType(events.TypeGraphCleared))
}

// ============================================================================
// Undo and redo
// ============================================================================

func TestUndoRedo_NodeAdd(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})

	require.NoError(t, rig.store.Undo())
	nodes, _ := rig.store.Counts()
	assert.Equal(t, 0, nodes)
	assert.Equal(t, 0, rig.eng.LiveCount())
	assert.True(t, rig.store.CanRedo())

	require.NoError(t, rig.store.Redo())
	nodes, _ = rig.store.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 1, rig.eng.LiveCount())
	view, err := rig.store.Node(osc.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.KindOscillator, view.Kind)
}

func TestUndoRedo_PropertyChange(t *testing.T) {
	rig := newTestRig(t)

	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	require.NoError(t, rig.store.UpdateNodeProperty(gain.ID, "gain", 0.25))

	require.NoError(t, rig.store.Undo())
	view, err := rig.store.Node(gain.ID)
	require.NoError(t, err)
	assert.NotContains(t, view.Properties, "gain")

	require.NoError(t, rig.store.Redo())
	view, _ = rig.store.Node(gain.ID)
	assert.InDelta(t, 0.25, view.Properties["gain"], 1e-12)
}

func TestUndo_RestoresRemovedEdge(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	edge := mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})

	require.NoError(t, rig.store.RemoveEdge(edge.ID))
	require.NoError(t, rig.store.Undo())

	restored, err := rig.store.Edge(edge.ID)
	require.NoError(t, err)
	assert.Equal(t, osc.ID, restored.SourceNodeID)
	assert.Equal(t, gain.ID, restored.TargetNodeID)
	assert.Equal(t, ClassAudio, restored.Class)
}

func TestUndo_RestoresClearedGraph(t *testing.T) {
	rig := newTestRig(t)

	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	gain := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	mustConnect(t, rig.store, EdgeSpec{SourceNodeID: osc.ID, TargetNodeID: gain.ID})

	rig.store.ClearAllNodes()
	require.NoError(t, rig.store.Undo())

	nodes, edges := rig.store.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
	assert.Equal(t, 2, rig.eng.LiveCount())
}

func TestUndoRedo_EmptyStacks(t *testing.T) {
	rig := newTestRig(t)

	assert.ErrorIs(t, rig.store.Undo(), ErrNothingToUndo)
	assert.ErrorIs(t, rig.store.Redo(), ErrNothingToRedo)
}

func TestUndo_NewMutationClearsRedo(t *testing.T) {
	rig := newTestRig(t)

	mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	require.NoError(t, rig.store.Undo())
	require.True(t, rig.store.CanRedo())

	mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})
	assert.False(t, rig.store.CanRedo())
}

func TestUndo_RestoresBridgeWiring(t *testing.T) {
	rig := newTestRig(t)

	slider := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindSlider})
	osc := mustAdd(t, rig.store, NodeSpec{Kind: registry.KindOscillator})
	edge := mustConnect(t, rig.store, EdgeSpec{
		SourceNodeID: slider.ID, TargetNodeID: osc.ID, TargetInput: "frequency",
	})

	require.NoError(t, rig.store.RemoveEdge(edge.ID))
	assert.Equal(t, 0, rig.store.bridges.Count())

	require.NoError(t, rig.store.Undo())
	assert.Equal(t, 1, rig.store.bridges.Count())

	// The rebuilt bridge still follows the slider.
	require.NoError(t, rig.store.UpdateNodeProperty(slider.ID, "value", 0.9))
	hid := nodeHandleID(rig.store, osc.ID)
	v, ok := rig.store.bridges.Value(hid, "frequency")
	require.True(t, ok)
	assert.InDelta(t, 0.9, v, 1e-9)
}

func TestHistory_EventCarriesAvailability(t *testing.T) {
	rig := newTestRig(t)

	mustAdd(t, rig.store, NodeSpec{Kind: registry.KindGain})

	changes := rig.sink.EventsByType(events.TypeHistoryChanged)
	require.NotEmpty(t, changes)
	last := changes[len(changes)-1].Data.(events.HistoryData)
	assert.True(t, last.CanUndo)
	assert.False(t, last.CanRedo)
}
