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

	"github.com/google/uuid"

	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/logic"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// EdgeSpec describes an edge to add. Empty ports select the kind's default
// ("out" and "in" for native units, the first declared port for logic). An
// empty ID requests a generated one.
type EdgeSpec struct {
	ID           string
	SourceNodeID string
	TargetNodeID string
	SourceOutput string
	TargetInput  string
}

// AddEdge classifies and wires a connection between two existing nodes.
//
// An edge whose (source, output, target, input) tuple already exists is not
// an error: the call returns the existing edge unchanged. Duplicate requests
// are routine during snapshot replay and double-click races, and rejecting
// them would force every caller to pre-check.
func (s *Store) AddEdge(spec EdgeSpec) (EdgeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.exportLocked()
	e, created, err := s.addEdgeLocked(spec)
	if err != nil {
		return EdgeView{}, err
	}
	if created {
		s.hist.Record(before)
		s.emitHistoryLocked()
	}
	return edgeView(e), nil
}

func (s *Store) addEdgeLocked(spec EdgeSpec) (*edge, bool, error) {
	src, ok := s.nodes[spec.SourceNodeID]
	if !ok {
		return nil, false, errNoSuchNode(spec.SourceNodeID)
	}
	dst, ok := s.nodes[spec.TargetNodeID]
	if !ok {
		return nil, false, errNoSuchNode(spec.TargetNodeID)
	}

	output := spec.SourceOutput
	if output == "" {
		output = defaultPort(src.def.Outputs, "out")
	}
	input := spec.TargetInput
	if input == "" {
		input = defaultPort(dst.def.Inputs, "in")
	}

	for _, eid := range s.edgeOrder {
		e := s.edges[eid]
		if e.source == src.id && e.target == dst.id &&
			e.sourceOutput == output && e.targetInput == input {
			return e, false, nil
		}
	}

	class, err := classify(src, dst, output, input)
	if err != nil {
		return nil, false, err
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.edges[id]; exists {
		return nil, false, fmt.Errorf("%w: %s", ErrDuplicateEdge, id)
	}

	e := &edge{
		id:           id,
		source:       src.id,
		target:       dst.id,
		sourceOutput: output,
		targetInput:  input,
		class:        class,
	}
	if err := s.wireEdgeLocked(e); err != nil {
		// Bridge wiring can fail after its logic connection is made; drop
		// that connection so the failed add leaves nothing behind.
		if class == ClassControl || class == ClassBridge {
			s.logicRT.Disconnect(e.source, e.sourceOutput,
				logic.ConnKey{Consumer: e.target, Input: e.targetInput})
		}
		return nil, false, err
	}
	s.edges[id] = e
	s.edgeOrder = append(s.edgeOrder, id)
	s.emit(events.TypeEdgeAdded, edgeEventData(e))
	return e, true, nil
}

// RemoveEdge unwires and deletes an edge.
func (s *Store) RemoveEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return errNoSuchEdge(id)
	}
	before := s.exportLocked()
	s.unwireEdgeLocked(e)
	delete(s.edges, id)
	s.edgeOrder = removeString(s.edgeOrder, id)
	s.hist.Record(before)
	s.emitHistoryLocked()
	s.emit(events.TypeEdgeRemoved, edgeEventData(e))
	return nil
}

// classify decides how an edge carries its signal from the endpoint kinds
// and port names. Audio may not feed logic; everything else resolves to one
// of the four classes or an invalid-port error.
func classify(src, dst *node, output, input string) (EdgeClass, error) {
	if src.def.Output(output) == nil {
		return "", fmt.Errorf("%w: %s has no output %q", ErrInvalidPort, src.id, output)
	}
	switch {
	case src.def.Native && dst.def.Native:
		if dst.def.Input(input) != nil {
			return ClassAudio, nil
		}
		if p := dst.def.Param(input); p != nil && p.Rate {
			return ClassModulation, nil
		}
		return "", fmt.Errorf("%w: %s has no signal input %q", ErrInvalidPort, dst.id, input)
	case !src.def.Native && !dst.def.Native:
		if dst.def.Input(input) == nil {
			return "", fmt.Errorf("%w: %s has no input %q", ErrInvalidPort, dst.id, input)
		}
		return ClassControl, nil
	case !src.def.Native && dst.def.Native:
		if p := dst.def.Param(input); p == nil || !p.Rate {
			return "", fmt.Errorf("%w: %s has no controllable parameter %q", ErrInvalidPort, dst.id, input)
		}
		return ClassBridge, nil
	default:
		return "", fmt.Errorf("%w: audio output %s.%s cannot drive control input %s.%s",
			ErrUnsupportedEdge, src.id, output, dst.id, input)
	}
}

// wireEdgeLocked establishes the runtime connection for an edge. Engine-side
// wiring is skipped while either endpoint is pending; attachment replays it.
// Wiring is idempotent, so replay may call this again for an edge whose
// logic side is already connected.
func (s *Store) wireEdgeLocked(e *edge) error {
	src := s.nodes[e.source]
	dst := s.nodes[e.target]

	switch e.class {
	case ClassAudio:
		if src.handle == nil || dst.handle == nil {
			return nil
		}
		return s.eng.Connect(src.handle, dst.handle)

	case ClassModulation:
		if src.handle == nil || dst.handle == nil {
			return nil
		}
		return s.eng.ConnectParam(src.handle, dst.handle, e.targetInput)

	case ClassControl:
		targetID := e.target
		tgt := logic.TargetFunc(func(input string, value float64) {
			s.logicRT.ReceiveInput(targetID, input, value)
		})
		key := logic.ConnKey{Consumer: e.target, Input: e.targetInput}
		if err := s.logicRT.Connect(e.source, e.sourceOutput, key, tgt); err != nil {
			return err
		}
		// Push the source's current value so chains settle immediately.
		if v, ok := s.logicValue(e.source, e.sourceOutput); ok {
			tgt.Deliver(e.targetInput, v)
		}
		return nil

	case ClassBridge:
		targetID, param := e.target, e.targetInput
		tgt := logic.TargetFunc(func(_ string, value float64) {
			// Deliveries run inside a store operation, so the lock is
			// already held and the node map read is safe. Resolving the
			// handle here keeps the bridge aimed at the current unit
			// across one-shot rebuilds.
			if tn, ok := s.nodes[targetID]; ok && tn.handle != nil {
				_ = s.bridges.Update(tn.handle.ID(), param, value)
			}
		})
		key := logic.ConnKey{Consumer: e.target, Input: e.targetInput}
		if err := s.logicRT.Connect(e.source, e.sourceOutput, key, tgt); err != nil {
			return err
		}
		if dst.handle == nil {
			return nil
		}
		value, _ := s.logicValue(e.source, e.sourceOutput)
		return s.bridges.Ensure(dst.handle, e.targetInput, value)
	}
	return nil
}

// unwireEdgeLocked tears down the runtime connection for an edge. The record
// itself is the caller's to delete.
func (s *Store) unwireEdgeLocked(e *edge) {
	src := s.nodes[e.source]
	dst := s.nodes[e.target]
	key := logic.ConnKey{Consumer: e.target, Input: e.targetInput}

	switch e.class {
	case ClassAudio:
		if src != nil && dst != nil && src.handle != nil && dst.handle != nil {
			s.eng.Disconnect(src.handle, dst.handle)
		}
	case ClassModulation:
		if src != nil && dst != nil && src.handle != nil && dst.handle != nil {
			s.eng.DisconnectParam(src.handle, dst.handle, e.targetInput)
		}
	case ClassControl:
		s.logicRT.Disconnect(e.source, e.sourceOutput, key)
	case ClassBridge:
		s.logicRT.Disconnect(e.source, e.sourceOutput, key)
		// The bridge was only raised if the target had a live handle; a
		// pending target never acquired one for this edge.
		if dst != nil && dst.handle != nil {
			s.bridges.Release(dst.handle.ID(), e.targetInput)
		}
	}
}

// replayEdgesForLocked re-wires every edge touching a node that just
// attached its engine unit.
func (s *Store) replayEdgesForLocked(n *node) {
	for _, eid := range s.edgeOrder {
		e := s.edges[eid]
		if e.source != n.id && e.target != n.id {
			continue
		}
		if err := s.wireEdgeLocked(e); err != nil {
			s.log.Warn("edge replay failed", "edge", e.id, "error", err)
		}
	}
}

func (s *Store) logicValue(nodeID, output string) (float64, bool) {
	u, ok := s.logicRT.Get(nodeID)
	if !ok {
		return 0, false
	}
	return u.Value(output)
}

func defaultPort(ports []registry.Port, fallback string) string {
	if len(ports) > 0 {
		return ports[0].Name
	}
	return fallback
}

func edgeEventData(e *edge) events.EdgeData {
	return events.EdgeData{
		EdgeID:       e.id,
		SourceNodeID: e.source,
		TargetNodeID: e.target,
		SourceOutput: e.sourceOutput,
		TargetInput:  e.targetInput,
	}
}
