// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchbay/cmd/patchbay/config"
	"github.com/AleutianAI/Patchbay/pkg/ux"
	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
)

// settleTimeout bounds how long render waits for asynchronous kinds
// (clips, capture) to finish acquiring their units before the offline
// pass starts.
const settleTimeout = 5 * time.Second

func runRender(cmd *cobra.Command, args []string) {
	cfg := config.Global

	if renderPreset == "" && len(args) < 1 {
		ux.Error("Usage: patchbay render [project-name] or patchbay render --preset [name]")
		os.Exit(1)
	}

	logger := newCommandLogger(cfg)
	defer logger.Close()

	// The render service is fully in-memory; the saved project store is
	// only opened long enough to read the snapshot out.
	svc, err := patchbay.New(patchbay.Config{
		SampleRate:   cfg.Audio.GetSampleRate(),
		HistoryLimit: cfg.Audio.GetHistoryLimit(),
		PresetDir:    cfg.Storage.PresetDir,
		Log:          logger,
	})
	if err != nil {
		ux.Errorf("Failed to assemble the service: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	var sourceName string
	if renderPreset != "" {
		sourceName = "preset " + renderPreset
		snap, err := svc.Presets.Get(renderPreset)
		if err != nil {
			ux.Errorf("%v", err)
			os.Exit(1)
		}
		if _, err := svc.Store.LoadSnapshot(snap); err != nil {
			ux.Errorf("Failed to load %s: %v", sourceName, err)
			os.Exit(1)
		}
	} else {
		store, err := openProjects(cfg)
		if err != nil {
			ux.Errorf("Failed to open the project store: %v", err)
			os.Exit(1)
		}
		ctx := context.Background()
		info, err := findProject(ctx, store, args[0])
		if err != nil {
			store.Close()
			ux.Errorf("%v", err)
			os.Exit(1)
		}
		rec, err := store.Load(ctx, info.ID)
		store.Close()
		if err != nil {
			ux.Errorf("Failed to load %q: %v", info.Name, err)
			os.Exit(1)
		}
		sourceName = fmt.Sprintf("project %q", rec.Name)
		if _, err := svc.Store.LoadJSON(rec.Snapshot); err != nil {
			ux.Errorf("Failed to load %s: %v", sourceName, err)
			os.Exit(1)
		}
	}

	if pending := waitForSettle(svc.Store, settleTimeout); pending > 0 {
		ux.Warning(fmt.Sprintf("%d nodes are still acquiring resources; they render as silence", pending))
	}
	for _, n := range svc.Store.Nodes() {
		if n.Status == graph.StatusFailed {
			ux.Warning(fmt.Sprintf("Node %s (%s) failed to initialize: %s", n.ID, n.Kind, n.Error))
		}
	}

	nodes, edges := svc.Store.Counts()
	ux.Info(fmt.Sprintf("Rendering %s (%d nodes, %d edges) for %.1fs", sourceName, nodes, edges, renderSeconds))

	start := time.Now()
	if err := svc.Backend.RenderWAVFile(renderOutput, renderSeconds); err != nil {
		ux.Errorf("Render failed: %v", err)
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Wrote %s in %s", renderOutput, time.Since(start).Round(time.Millisecond)))
}

// waitForSettle polls until no node reports pending status or the timeout
// passes, returning how many were still pending at the end.
func waitForSettle(store *graph.Store, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		pending := 0
		for _, n := range store.Nodes() {
			if n.Status == graph.StatusPending {
				pending++
			}
		}
		if pending == 0 || time.Now().After(deadline) {
			return pending
		}
		time.Sleep(50 * time.Millisecond)
	}
}
