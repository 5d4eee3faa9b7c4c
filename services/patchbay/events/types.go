// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events carries graph change notifications from the store to its
// observers (the websocket push layer, the edit shell, tests). The store is
// the single writer; everything else re-renders from these events plus the
// store's read surface.
package events

import "time"

// Type identifies a graph event.
type Type string

const (
	// TypeNodeAdded fires after a node is created and stored.
	TypeNodeAdded Type = "node_added"

	// TypeNodeRemoved fires after a node and its edges are torn down.
	TypeNodeRemoved Type = "node_removed"

	// TypeNodeReady fires when an asynchronously-acquired unit is attached
	// to its pending node.
	TypeNodeReady Type = "node_ready"

	// TypeNodeFailed fires when asynchronous acquisition fails and the
	// pending node is marked failed.
	TypeNodeFailed Type = "node_failed"

	// TypeEdgeAdded fires after an edge is wired.
	TypeEdgeAdded Type = "edge_added"

	// TypeEdgeRemoved fires after an edge is unwired.
	TypeEdgeRemoved Type = "edge_removed"

	// TypePropertyChanged fires after a node property update.
	TypePropertyChanged Type = "property_changed"

	// TypeGraphCleared fires after every node has been removed.
	TypeGraphCleared Type = "graph_cleared"

	// TypeGraphLoaded fires after a snapshot load rebuilt the graph.
	TypeGraphLoaded Type = "graph_loaded"

	// TypePlaybackChanged fires when the transport is resumed or suspended.
	TypePlaybackChanged Type = "playback_changed"

	// TypeHistoryChanged fires when undo/redo availability may have moved.
	TypeHistoryChanged Type = "history_changed"
)

// Event is one graph change notification.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NodeData is the payload for node lifecycle events.
type NodeData struct {
	NodeID string `json:"nodeId"`
	Kind   string `json:"kind"`
	Error  string `json:"error,omitempty"`
}

// EdgeData is the payload for edge lifecycle events.
type EdgeData struct {
	EdgeID       string `json:"edgeId"`
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	SourceOutput string `json:"sourceOutput"`
	TargetInput  string `json:"targetInput"`
}

// PropertyData is the payload for property change events.
type PropertyData struct {
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
	Value  any    `json:"value"`
}

// LoadData is the payload for graph load events.
type LoadData struct {
	NodeCount int `json:"nodeCount"`
	EdgeCount int `json:"edgeCount"`
	// DroppedEdges counts duplicate or dangling edge tuples filtered out
	// during normalization.
	DroppedEdges int `json:"droppedEdges,omitempty"`
}

// PlaybackData is the payload for transport events.
type PlaybackData struct {
	Playing bool `json:"playing"`
}

// HistoryData is the payload for history availability events.
type HistoryData struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}
