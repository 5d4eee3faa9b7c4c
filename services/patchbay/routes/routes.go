// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/handlers"
)

// SetupRoutes registers the full HTTP surface on the router.
//
// Operational:
//
//	GET  /healthz - Health and live engine numbers
//	GET  /metrics - Prometheus metrics (default registry)
//
// Graph:
//
//	GET    /api/kinds - Node kind catalog
//	GET    /api/graph - Full graph state
//	GET    /api/graph/ws - WebSocket session (events out, actions in)
//	POST   /api/graph/nodes - Add a node
//	DELETE /api/graph/nodes/:nodeId - Remove a node
//	PATCH  /api/graph/nodes/:nodeId/properties - Set one property
//	PATCH  /api/graph/nodes/:nodeId/position - Move a node
//	POST   /api/graph/nodes/:nodeId/trigger - Fire a one-shot node
//	POST   /api/graph/nodes/:nodeId/retrigger - Restart a one-shot node
//	GET    /api/graph/nodes/:nodeId/display - Read a display node
//	POST   /api/graph/edges - Connect two nodes
//	DELETE /api/graph/edges/:edgeId - Disconnect an edge
//	POST   /api/graph/clear - Remove everything
//	POST   /api/graph/undo - Undo the last mutation
//	POST   /api/graph/redo - Redo the last undone mutation
//	PUT    /api/graph/playback - Start or stop the transport
//	GET    /api/graph/export - Download the snapshot document
//	POST   /api/graph/import - Replace the graph from a document
//
// Projects:
//
//	GET    /api/projects - List saved projects
//	POST   /api/projects - Save the live graph as a new project
//	GET    /api/projects/name-exists - Name collision probe
//	GET    /api/projects/:projectId - Fetch a project record
//	PUT    /api/projects/:projectId - Re-save the live graph into a project
//	POST   /api/projects/:projectId/open - Load a project into the graph
//	DELETE /api/projects/:projectId - Delete a project
//
// Presets:
//
//	GET  /api/presets - List preset names
//	POST /api/presets/:name/load - Load a preset into the graph
func SetupRoutes(router *gin.Engine, svc *patchbay.Service) {
	router.Use(handlers.MetricsMiddleware(svc.Metrics()))

	router.GET("/healthz", handlers.Health(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/kinds", handlers.ListKinds(svc))

		g := api.Group("/graph")
		{
			g.GET("", handlers.GetState(svc))
			g.GET("/ws", handlers.GraphWebSocket(svc))

			g.POST("/nodes", handlers.AddNode(svc))
			g.DELETE("/nodes/:nodeId", handlers.RemoveNode(svc))
			g.PATCH("/nodes/:nodeId/properties", handlers.SetProperty(svc))
			g.PATCH("/nodes/:nodeId/position", handlers.MoveNode(svc))
			g.POST("/nodes/:nodeId/trigger", handlers.TriggerNode(svc))
			g.POST("/nodes/:nodeId/retrigger", handlers.RetriggerNode(svc))
			g.GET("/nodes/:nodeId/display", handlers.GetDisplay(svc))

			g.POST("/edges", handlers.AddEdge(svc))
			g.DELETE("/edges/:edgeId", handlers.RemoveEdge(svc))

			g.POST("/clear", handlers.ClearGraph(svc))
			g.POST("/undo", handlers.Undo(svc))
			g.POST("/redo", handlers.Redo(svc))
			g.PUT("/playback", handlers.SetPlayback(svc))
			g.GET("/export", handlers.ExportGraph(svc))
			g.POST("/import", handlers.ImportGraph(svc))
		}

		projects := api.Group("/projects")
		{
			projects.GET("", handlers.ListProjects(svc))
			projects.POST("", handlers.SaveProject(svc))
			projects.GET("/name-exists", handlers.CheckProjectName(svc))
			projects.GET("/:projectId", handlers.GetProject(svc))
			projects.PUT("/:projectId", handlers.UpdateProject(svc))
			projects.POST("/:projectId/open", handlers.OpenProject(svc))
			projects.DELETE("/:projectId", handlers.DeleteProject(svc))
		}

		presets := api.Group("/presets")
		{
			presets.GET("", handlers.ListPresets(svc))
			presets.POST("/:name/load", handlers.LoadPreset(svc))
		}
	}
}
