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

// ListPresets handles GET /api/presets.
//
// Response:
//
//	200 OK: {"presets": ["am-synth", ...]}
func ListPresets(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		names := svc.Presets.Names()
		c.JSON(http.StatusOK, gin.H{"presets": names, "count": len(names)})
	}
}

// LoadPreset handles POST /api/presets/:name/load.
//
// Description:
//
//	Replaces the live graph with the named preset, a built-in patch or a
//	hot-loaded one from the preset directory.
//
// Response:
//
//	200 OK: LoadReport
//	404 Not Found: No such preset
func LoadPreset(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c, "LoadPreset")

		name := c.Param("name")
		g, err := svc.Presets.Get(name)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		report, err := svc.Store.LoadSnapshot(g)
		recordOp(svc.Metrics(), "load_preset", err)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Preset loaded", "preset", name)
		c.JSON(http.StatusOK, datatypes.NewLoadReport(svc.Store, report))
	}
}

// Health handles GET /healthz.
//
// Description:
//
//	Returns service health plus a few live engine numbers. Always 200
//	while the process is serving.
//
// Response:
//
//	200 OK: {"status": "healthy", ...}
func Health(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodes, edges := svc.Store.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"version":    patchbay.Version,
			"sampleRate": svc.Engine.SampleRate(),
			"liveUnits":  svc.Engine.LiveCount(),
			"isPlaying":  svc.Store.Playing(),
			"nodes":      nodes,
			"edges":      edges,
		})
	}
}
