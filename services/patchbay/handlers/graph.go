// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/datatypes"
)

// ListKinds handles GET /api/kinds.
//
// Description:
//
//	Returns every node kind the registry knows, with port lists and
//	parameter specs. The editor palette is built from this response.
//
// Response:
//
//	200 OK: {"kinds": [Definition...]}
func ListKinds(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.JSON(http.StatusOK, gin.H{"kinds": svc.Registry.Kinds()})
	}
}

// GetState handles GET /api/graph.
//
// Description:
//
//	Returns the full reactive read model: nodes, edges, playback flag,
//	history availability, and the event bus revision the state was read
//	at.
//
// Response:
//
//	200 OK: GraphState
func GetState(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.JSON(http.StatusOK, datatypes.NewGraphState(svc.Store, svc.Events.Revision()))
	}
}

// AddNode handles POST /api/graph/nodes.
//
// Description:
//
//	Creates a node of the requested kind. Native kinds acquire an engine
//	unit before the node becomes visible; async kinds appear immediately
//	in pending status and are promoted by a node_ready event.
//
// Request Body:
//
//	AddNodeRequest
//
// Response:
//
//	200 OK: NodeView
//	400 Bad Request: Unknown kind or invalid property
//	409 Conflict: Node ID already in use
func AddNode(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "AddNode")

		var req datatypes.AddNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		view, err := svc.Store.AddNode(req.Spec())
		recordOp(svc.Metrics(), "add_node", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Node added", "node_id", view.ID, "kind", view.Kind)
		c.JSON(http.StatusOK, view)
	}
}

// RemoveNode handles DELETE /api/graph/nodes/:nodeId.
//
// Description:
//
//	Removes the node, its edges, any parameter bridges feeding it, and
//	its engine unit, in that order.
//
// Response:
//
//	200 OK: {"status": "removed"}
//	404 Not Found: No such node
func RemoveNode(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "RemoveNode")

		id := c.Param("nodeId")
		err := svc.Store.RemoveNode(id)
		recordOp(svc.Metrics(), "remove_node", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Node removed", "node_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "removed", "nodeId": id})
	}
}

// SetProperty handles PATCH /api/graph/nodes/:nodeId/properties.
//
// Description:
//
//	Sets one property on a node. The value is normalized against the
//	kind's parameter spec (clamped to range, coerced to float) and then
//	stored; rate parameters also reach the engine unit, and logic output
//	properties refresh any bridge fed by the node.
//
// Request Body:
//
//	UpdatePropertyRequest
//
// Response:
//
//	200 OK: updated NodeView
//	400 Bad Request: Unknown or invalid property
//	404 Not Found: No such node
func SetProperty(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "SetProperty")

		var req datatypes.UpdatePropertyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		id := c.Param("nodeId")
		err := svc.Store.UpdateNodeProperty(id, req.Name, req.Value)
		recordOp(svc.Metrics(), "set_property", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		view, err := svc.Store.Node(id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// MoveNode handles PATCH /api/graph/nodes/:nodeId/position.
//
// Description:
//
//	Updates a node's editor coordinates. Position is layout state only;
//	it never touches the engine and is not recorded in history.
//
// Request Body:
//
//	MoveNodeRequest
//
// Response:
//
//	200 OK: {"status": "moved"}
//	404 Not Found: No such node
func MoveNode(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "MoveNode")

		var req datatypes.MoveNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		id := c.Param("nodeId")
		err := svc.Store.MoveNode(id, req.Position)
		recordOp(svc.Metrics(), "move_node", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "moved", "nodeId": id})
	}
}

// TriggerNode handles POST /api/graph/nodes/:nodeId/trigger.
//
// Description:
//
//	Fires a one-shot node (a clip). Triggering a clip that is already
//	started is a no-op on the same unit; use retrigger for overlap.
//
// Response:
//
//	200 OK: {"status": "triggered"}
//	404 Not Found: No such node
func TriggerNode(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "TriggerNode")

		id := c.Param("nodeId")
		err := svc.Store.TriggerNode(id)
		recordOp(svc.Metrics(), "trigger", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "triggered", "nodeId": id})
	}
}

// RetriggerNode handles POST /api/graph/nodes/:nodeId/retrigger.
//
// Description:
//
//	Restarts a one-shot node by swapping in a fresh engine unit, so a
//	still-sounding playback overlaps the new one.
//
// Response:
//
//	200 OK: {"status": "retriggered"}
//	404 Not Found: No such node
func RetriggerNode(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "RetriggerNode")

		id := c.Param("nodeId")
		err := svc.Store.RetriggerNode(id)
		recordOp(svc.Metrics(), "retrigger", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "retriggered", "nodeId": id})
	}
}

// GetDisplay handles GET /api/graph/nodes/:nodeId/display.
//
// Description:
//
//	Reads the current value shown by a display node.
//
// Response:
//
//	200 OK: {"value": 440}
//	404 Not Found: No such node, or node is not a display
func GetDisplay(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "GetDisplay")

		id := c.Param("nodeId")
		value, err := svc.Store.DisplayValue(id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"nodeId": id, "value": value})
	}
}

// AddEdge handles POST /api/graph/edges.
//
// Description:
//
//	Connects two nodes. The edge is classified from its endpoint kinds
//	(audio, modulation, bridge, or control) and wired accordingly. A
//	request whose endpoint tuple already exists returns the existing
//	edge unchanged.
//
// Request Body:
//
//	AddEdgeRequest
//
// Response:
//
//	200 OK: EdgeView
//	400 Bad Request: Invalid port or unsupported endpoint combination
//	404 Not Found: Either endpoint missing
func AddEdge(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "AddEdge")

		var req datatypes.AddEdgeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		view, err := svc.Store.AddEdge(req.Spec())
		recordOp(svc.Metrics(), "add_edge", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Edge added",
			"edge_id", view.ID,
			"source", view.SourceNodeID,
			"target", view.TargetNodeID,
			"class", view.Class)
		c.JSON(http.StatusOK, view)
	}
}

// RemoveEdge handles DELETE /api/graph/edges/:edgeId.
//
// Response:
//
//	200 OK: {"status": "removed"}
//	404 Not Found: No such edge
func RemoveEdge(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "RemoveEdge")

		id := c.Param("edgeId")
		err := svc.Store.RemoveEdge(id)
		recordOp(svc.Metrics(), "remove_edge", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed", "edgeId": id})
	}
}

// ClearGraph handles POST /api/graph/clear.
//
// Description:
//
//	Removes every node and edge as a single history step. Clearing an
//	empty graph is a no-op.
//
// Response:
//
//	200 OK: {"status": "cleared"}
func ClearGraph(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "ClearGraph")

		svc.Store.ClearAllNodes()
		recordOp(svc.Metrics(), "clear", nil)
		logger.Info("Graph cleared")
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	}
}

// Undo handles POST /api/graph/undo.
//
// Response:
//
//	200 OK: GraphState after the undo
//	409 Conflict: Nothing to undo
func Undo(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "Undo")

		err := svc.Store.Undo()
		recordOp(svc.Metrics(), "undo", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewGraphState(svc.Store, svc.Events.Revision()))
	}
}

// Redo handles POST /api/graph/redo.
//
// Response:
//
//	200 OK: GraphState after the redo
//	409 Conflict: Nothing to redo
func Redo(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "Redo")

		err := svc.Store.Redo()
		recordOp(svc.Metrics(), "redo", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewGraphState(svc.Store, svc.Events.Revision()))
	}
}

// SetPlayback handles PUT /api/graph/playback.
//
// Description:
//
//	Starts or stops the engine transport. Setting the current state
//	again is a no-op.
//
// Request Body:
//
//	PlaybackRequest
//
// Response:
//
//	200 OK: {"isPlaying": true}
func SetPlayback(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "SetPlayback")

		var req datatypes.PlaybackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		var err error
		if req.Playing {
			err = svc.Store.Play()
			recordOp(svc.Metrics(), "play", err)
		} else {
			err = svc.Store.Pause()
			recordOp(svc.Metrics(), "pause", err)
		}
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"isPlaying": svc.Store.Playing()})
	}
}

// ExportGraph handles GET /api/graph/export.
//
// Description:
//
//	Serializes the live graph as a version-tagged snapshot document.
//	The document carries design state only; runtime handles and node
//	status never appear in it.
//
// Response:
//
//	200 OK: snapshot JSON
func ExportGraph(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "ExportGraph")

		data, err := svc.Store.ExportJSON()
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}

// ImportGraph handles POST /api/graph/import.
//
// Description:
//
//	Replaces the live graph with the posted snapshot document. The
//	document is sanitized first (duplicate IDs, duplicate edge tuples,
//	and dangling edges are dropped), then replayed through the normal
//	add path. On replay failure the previous graph is restored.
//
// Request Body:
//
//	snapshot JSON (at most MaxSnapshotBytes)
//
// Response:
//
//	200 OK: LoadReport
//	400 Bad Request: Malformed document or unknown kind
//	413 Request Entity Too Large: Document over the size cap
func ImportGraph(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "ImportGraph")

		data, err := io.ReadAll(io.LimitReader(c.Request.Body, datatypes.MaxSnapshotBytes+1))
		if err != nil {
			respondInvalid(c, logger, err)
			return
		}
		if len(data) > datatypes.MaxSnapshotBytes {
			logger.Warn("Snapshot over size cap", "bytes", len(data))
			c.JSON(http.StatusRequestEntityTooLarge, datatypes.ErrorResponse{
				Error: "snapshot exceeds size cap",
				Code:  "SNAPSHOT_TOO_LARGE",
			})
			return
		}

		report, err := svc.Store.LoadJSON(data)
		recordOp(svc.Metrics(), "import", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Graph imported",
			"dropped_duplicate_edges", report.DuplicateEdges,
			"dropped_dangling_edges", report.DanglingEdges)
		c.JSON(http.StatusOK, datatypes.NewLoadReport(svc.Store, report))
	}
}
