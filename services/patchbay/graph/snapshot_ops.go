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
	"fmt"

	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// ExportSnapshot captures the current graph as a persistable document. The
// result carries no runtime state: no handles, no status, no properties map
// for nodes that have none.
func (s *Store) ExportSnapshot() *snapshot.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportLocked()
}

// ExportJSON captures the current graph as serialized JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.Lock()
	g := s.exportLocked()
	s.mu.Unlock()
	return snapshot.Encode(g)
}

// LoadSnapshot replaces the live graph with the given document. The input
// is cloned and sanitized first, so the caller's document is never mutated
// and duplicate or dangling entries are dropped rather than rejected.
//
// Replay runs with history suspended. On failure the store rebuilds the
// graph that was live before the call and returns a ReplayError; on success
// history is cleared, since undoing across a project boundary would splice
// two unrelated edit sessions together.
func (s *Store) LoadSnapshot(g *snapshot.Graph) (snapshot.SanitizeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := g.Clone()
	report := work.Sanitize()

	before := s.exportLocked()
	if err := s.replaceAllLocked(work); err != nil {
		if rerr := s.replaceAllLocked(before); rerr != nil {
			s.log.Error("graph rollback failed after load error", "error", rerr)
		}
		return report, &ReplayError{Op: "load", Err: err}
	}

	s.hist.Clear()
	s.emitHistoryLocked()
	s.emit(events.TypeGraphLoaded, events.LoadData{
		NodeCount:    len(work.Nodes),
		EdgeCount:    len(work.Edges),
		DroppedEdges: report.DuplicateEdges + report.DanglingEdges,
	})
	return report, nil
}

// LoadJSON parses and loads a serialized graph document.
func (s *Store) LoadJSON(data []byte) (snapshot.SanitizeReport, error) {
	g, err := snapshot.Decode(data)
	if err != nil {
		return snapshot.SanitizeReport{}, err
	}
	return s.LoadSnapshot(g)
}

// ClearAllNodes removes every node and edge. One history entry and one
// event cover the whole sweep.
func (s *Store) ClearAllNodes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.nodes) == 0 {
		return
	}
	before := s.exportLocked()
	s.quiet = true
	s.clearLocked()
	s.quiet = false
	s.hist.Record(before)
	s.emitHistoryLocked()
	s.emit(events.TypeGraphCleared, nil)
}

// Undo restores the graph state preceding the last recorded mutation.
func (s *Store) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.hist.PeekUndo()
	if !ok {
		return ErrNothingToUndo
	}
	current := s.exportLocked()
	if err := s.replaceAllLocked(target); err != nil {
		if rerr := s.replaceAllLocked(current); rerr != nil {
			s.log.Error("graph restore failed after undo error", "error", rerr)
		}
		return &ReplayError{Op: "undo", Err: err}
	}
	s.hist.CommitUndo(current)
	s.emitHistoryLocked()
	s.emit(events.TypeGraphLoaded, events.LoadData{
		NodeCount: len(target.Nodes),
		EdgeCount: len(target.Edges),
	})
	return nil
}

// Redo reapplies the last undone mutation.
func (s *Store) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.hist.PeekRedo()
	if !ok {
		return ErrNothingToRedo
	}
	current := s.exportLocked()
	if err := s.replaceAllLocked(target); err != nil {
		if rerr := s.replaceAllLocked(current); rerr != nil {
			s.log.Error("graph restore failed after redo error", "error", rerr)
		}
		return &ReplayError{Op: "redo", Err: err}
	}
	s.hist.CommitRedo(current)
	s.emitHistoryLocked()
	s.emit(events.TypeGraphLoaded, events.LoadData{
		NodeCount: len(target.Nodes),
		EdgeCount: len(target.Edges),
	})
	return nil
}

// replaceAllLocked tears the live graph down and rebuilds it from a
// document. Per-entity events and history recording are suppressed; callers
// announce the aggregate outcome themselves. The first entity that refuses
// to build aborts the rebuild, leaving teardown to the caller's rollback.
func (s *Store) replaceAllLocked(g *snapshot.Graph) error {
	s.hist.Suspend()
	s.quiet = true
	defer func() {
		s.quiet = false
		s.hist.Resume()
	}()

	s.clearLocked()
	for _, sn := range g.Nodes {
		spec := NodeSpec{
			ID:         sn.ID,
			Kind:       registry.Kind(sn.Kind),
			Position:   sn.Position,
			Properties: sn.Properties,
		}
		if _, err := s.addNodeLocked(spec); err != nil {
			return fmt.Errorf("node %s: %w", sn.ID, err)
		}
	}
	for _, se := range g.Edges {
		spec := EdgeSpec{
			ID:           se.ID,
			SourceNodeID: se.SourceNodeID,
			TargetNodeID: se.TargetNodeID,
			SourceOutput: se.SourceOutput,
			TargetInput:  se.TargetInput,
		}
		if _, _, err := s.addEdgeLocked(spec); err != nil {
			return fmt.Errorf("edge %s: %w", se.ID, err)
		}
	}
	return nil
}

func (s *Store) clearLocked() {
	for _, id := range append([]string(nil), s.nodeOrder...) {
		s.removeNodeLocked(id)
	}
	s.bridges.Reset()
}
