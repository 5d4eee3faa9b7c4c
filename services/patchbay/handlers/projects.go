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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/datatypes"
)

// ListProjects handles GET /api/projects.
//
// Description:
//
//	Lists saved projects, most recently updated first. Snapshots are not
//	included; load a single project to get its document.
//
// Response:
//
//	200 OK: {"projects": [Info...]}
func ListProjects(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "ListProjects")

		infos, err := svc.Projects.ListAll(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": infos, "count": len(infos)})
	}
}

// SaveProject handles POST /api/projects.
//
// Description:
//
//	Exports the live graph and saves it under the given name as a new
//	project. The snapshot always comes from the server-side store, never
//	from the client, so a stale editor cannot overwrite newer state.
//
// Request Body:
//
//	SaveProjectRequest
//
// Response:
//
//	200 OK: {"id": "...", "name": "..."}
//	400 Bad Request: Empty name
//	409 Conflict: Name already in use
func SaveProject(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "SaveProject")

		var req datatypes.SaveProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		data, err := svc.Store.ExportJSON()
		if err != nil {
			respondError(c, logger, err)
			return
		}

		id, err := svc.Projects.Save(c.Request.Context(), req.Name, data)
		recordOp(svc.Metrics(), "save_project", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Project saved", "project_id", id, "name", req.Name)
		c.JSON(http.StatusOK, gin.H{"id": id, "name": req.Name})
	}
}

// GetProject handles GET /api/projects/:projectId.
//
// Response:
//
//	200 OK: Record (including the snapshot document)
//	404 Not Found: No such project
func GetProject(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "GetProject")

		rec, err := svc.Projects.Load(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// UpdateProject handles PUT /api/projects/:projectId.
//
// Description:
//
//	Re-exports the live graph into an existing project, optionally
//	renaming it. CreatedAt is preserved; UpdatedAt moves.
//
// Request Body:
//
//	UpdateProjectRequest
//
// Response:
//
//	200 OK: {"status": "updated"}
//	404 Not Found: No such project
//	409 Conflict: New name already in use
func UpdateProject(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "UpdateProject")

		var req datatypes.UpdateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			respondInvalid(c, logger, err)
			return
		}

		data, err := svc.Store.ExportJSON()
		if err != nil {
			respondError(c, logger, err)
			return
		}

		id := c.Param("projectId")
		err = svc.Projects.Update(c.Request.Context(), id, req.Name, data)
		recordOp(svc.Metrics(), "update_project", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Project updated", "project_id", id, "name", req.Name)
		c.JSON(http.StatusOK, gin.H{"status": "updated", "id": id})
	}
}

// OpenProject handles POST /api/projects/:projectId/open.
//
// Description:
//
//	Loads a saved project's snapshot into the live graph, replacing the
//	current patch. Edit history is cleared; undo does not cross project
//	boundaries.
//
// Response:
//
//	200 OK: {"name": "...", "report": LoadReport}
//	404 Not Found: No such project
//	500 Internal Server Error: Replay failed, previous graph restored
func OpenProject(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "OpenProject")

		rec, err := svc.Projects.Load(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		report, err := svc.Store.LoadJSON(rec.Snapshot)
		recordOp(svc.Metrics(), "open_project", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Project opened", "project_id", rec.ID, "name", rec.Name)
		c.JSON(http.StatusOK, gin.H{
			"name":   rec.Name,
			"report": datatypes.NewLoadReport(svc.Store, report),
		})
	}
}

// DeleteProject handles DELETE /api/projects/:projectId.
//
// Response:
//
//	200 OK: {"status": "deleted"}
//	404 Not Found: No such project
func DeleteProject(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "DeleteProject")

		id := c.Param("projectId")
		err := svc.Projects.Delete(c.Request.Context(), id)
		recordOp(svc.Metrics(), "delete_project", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Project deleted", "project_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
	}
}

// CheckProjectName handles GET /api/projects/name-exists.
//
// Description:
//
//	Reports whether a project name is already claimed, for save-dialog
//	validation. Pass exclude=<id> when renaming so a project's own name
//	does not count as a collision.
//
// Query Parameters:
//
//	name: candidate name (required)
//	exclude: project ID whose claim is ignored (optional)
//
// Response:
//
//	200 OK: {"exists": true}
func CheckProjectName(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "CheckProjectName")

		name := c.Query("name")
		if name == "" {
			logger.Warn("Missing name parameter")
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "name parameter is required",
				Code:  "MISSING_PARAMETER",
			})
			return
		}

		exists, err := svc.Projects.NameExists(c.Request.Context(), name, c.Query("exclude"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": exists})
	}
}
