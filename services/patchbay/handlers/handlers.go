// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers exposes the graph store, project repository, and preset
// catalog over HTTP.
//
// Every handler is a constructor closing over the service facade and
// returning a gin.HandlerFunc. Request bodies are validated by the
// datatypes package before they touch the store; store errors are mapped
// to HTTP statuses in one place (statusForError) so REST and WebSocket
// responses stay consistent.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Patchbay/services/patchbay/datatypes"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
	"github.com/AleutianAI/Patchbay/services/patchbay/observability"
	"github.com/AleutianAI/Patchbay/services/patchbay/preset"
	"github.com/AleutianAI/Patchbay/services/patchbay/project"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// =============================================================================
// Request Plumbing
// =============================================================================

// getOrCreateRequestID returns the inbound X-Request-ID, minting one when
// the client did not send any, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// requestLogger builds the per-request logger every handler starts with.
func requestLogger(c *gin.Context, handler string) *slog.Logger {
	return slog.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

// =============================================================================
// Error Mapping
// =============================================================================

// statusForError maps a store, repository, or catalog error to an HTTP
// status and a stable machine-readable code. Sentinels are matched through
// wrapping, so a ReplayError caused by an unknown kind still reports
// UNKNOWN_KIND rather than a bare replay failure.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, graph.ErrNoSuchNode):
		return http.StatusNotFound, "NODE_NOT_FOUND"
	case errors.Is(err, graph.ErrNoSuchEdge):
		return http.StatusNotFound, "EDGE_NOT_FOUND"
	case errors.Is(err, project.ErrProjectNotFound):
		return http.StatusNotFound, "PROJECT_NOT_FOUND"
	case errors.Is(err, preset.ErrPresetNotFound):
		return http.StatusNotFound, "PRESET_NOT_FOUND"

	case errors.Is(err, graph.ErrDuplicateNode):
		return http.StatusConflict, "DUPLICATE_NODE"
	case errors.Is(err, graph.ErrDuplicateEdge):
		return http.StatusConflict, "DUPLICATE_EDGE"
	case errors.Is(err, project.ErrNameTaken):
		return http.StatusConflict, "NAME_TAKEN"
	case errors.Is(err, graph.ErrNothingToUndo):
		return http.StatusConflict, "NOTHING_TO_UNDO"
	case errors.Is(err, graph.ErrNothingToRedo):
		return http.StatusConflict, "NOTHING_TO_REDO"

	case errors.Is(err, registry.ErrUnknownKind):
		return http.StatusBadRequest, "UNKNOWN_KIND"
	case errors.Is(err, registry.ErrUnknownParam):
		return http.StatusBadRequest, "UNKNOWN_PARAM"
	case errors.Is(err, registry.ErrInvalidProperty):
		return http.StatusBadRequest, "INVALID_PROPERTY"
	case errors.Is(err, graph.ErrInvalidPort):
		return http.StatusBadRequest, "INVALID_PORT"
	case errors.Is(err, graph.ErrUnsupportedEdge):
		return http.StatusBadRequest, "UNSUPPORTED_EDGE"
	case errors.Is(err, graph.ErrKindMismatch):
		return http.StatusBadRequest, "KIND_MISMATCH"
	case errors.Is(err, snapshot.ErrInvalidFormat):
		return http.StatusBadRequest, "INVALID_SNAPSHOT"
	case errors.Is(err, project.ErrEmptyName):
		return http.StatusBadRequest, "EMPTY_NAME"
	case errors.Is(err, project.ErrInvalidSnapshot):
		return http.StatusBadRequest, "INVALID_SNAPSHOT"
	}

	var replayErr *graph.ReplayError
	if errors.As(err, &replayErr) {
		return http.StatusInternalServerError, "REPLAY_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// respondError writes the mapped ErrorResponse and logs at a severity
// matching the status class.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "code", code, "error", err)
	} else {
		logger.Warn("Request rejected", "code", code, "error", err)
	}
	c.JSON(status, datatypes.ErrorResponse{Error: err.Error(), Code: code})
}

// respondInvalid handles request bodies that fail binding or validation.
func respondInvalid(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
		Error: "Invalid request body: " + err.Error(),
		Code:  "INVALID_REQUEST",
	})
}

// recordOp counts one graph operation when metrics are enabled.
func recordOp(m *observability.Metrics, op string, err error) {
	if m != nil {
		m.RecordOperation(op, err)
	}
}
