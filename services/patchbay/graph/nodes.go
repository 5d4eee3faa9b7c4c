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

	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/logic"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// NodeSpec describes a node to add. An empty ID requests a generated one.
type NodeSpec struct {
	ID         string
	Kind       registry.Kind
	Position   snapshot.Position
	Properties map[string]any
}

// AddNode validates the spec, creates the node's runtime resource, and
// commits the record. On any failure nothing is committed: the store holds
// no record, no unit, and no history entry for the attempt.
//
// Kinds flagged for asynchronous acquisition commit immediately in pending
// status and resolve to ready or failed later.
func (s *Store) AddNode(spec NodeSpec) (NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.exportLocked()
	n, err := s.addNodeLocked(spec)
	if err != nil {
		return NodeView{}, err
	}
	s.hist.Record(before)
	s.emitHistoryLocked()
	return s.viewLocked(n), nil
}

func (s *Store) addNodeLocked(spec NodeSpec) (*node, error) {
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	def, err := s.reg.Lookup(spec.Kind)
	if err != nil {
		return nil, err
	}
	props, err := normalizeProps(def, spec.Properties)
	if err != nil {
		return nil, err
	}

	n := &node{
		id:       id,
		kind:     def.Kind,
		def:      def,
		position: spec.Position,
		props:    props,
	}
	if props == nil {
		n.props = map[string]any{}
	}

	switch {
	case !def.Native:
		lu, err := s.logicRT.Create(id, def.Kind, n.props)
		if err != nil {
			return nil, err
		}
		n.lu = lu
		n.status = StatusReady
	case def.Async:
		n.status = StatusPending
		s.epoch++
		n.epoch = s.epoch
		go s.acquireUnit(n.epoch, id, def, cloneProps(n.props))
	default:
		h, err := s.eng.CreateUnit(def.Kind, n.props)
		if err != nil {
			return nil, err
		}
		n.handle = h
		n.status = StatusReady
	}

	s.nodes[id] = n
	s.nodeOrder = append(s.nodeOrder, id)
	s.emit(events.TypeNodeAdded, events.NodeData{NodeID: id, Kind: string(def.Kind)})
	return n, nil
}

// acquireUnit is the second phase of asynchronous node creation. The engine
// call runs without the store lock; the result is reconciled against the
// store afterwards. A node that was removed or rebuilt while the call was in
// flight carries a different epoch, and the freshly acquired resource is
// destroyed instead of attached.
func (s *Store) acquireUnit(epoch uint64, id string, def registry.Definition, props map[string]any) {
	h, err := s.acquire(def, props)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.epoch != epoch {
		if h != nil {
			s.eng.DestroyUnit(h)
		}
		return
	}
	if err != nil {
		n.status = StatusFailed
		n.lastErr = err.Error()
		s.log.Warn("unit acquisition failed",
			"node", id, "kind", string(def.Kind), "error", err)
		s.emit(events.TypeNodeFailed, events.NodeData{
			NodeID: id, Kind: string(def.Kind), Error: err.Error(),
		})
		return
	}
	n.handle = h
	n.status = StatusReady
	n.lastErr = ""
	s.applyPropsLocked(n)
	s.replayEdgesForLocked(n)
	s.emit(events.TypeNodeReady, events.NodeData{NodeID: id, Kind: string(def.Kind)})
}

func (s *Store) acquire(def registry.Definition, props map[string]any) (*engine.Handle, error) {
	switch def.Kind {
	case registry.KindClip:
		name, _ := props["clip"].(string)
		if name == "" {
			if p := def.Param("clip"); p != nil {
				name, _ = p.Default.(string)
			}
		}
		return s.eng.CreateClipUnit(s.ctx, name, props)
	case registry.KindCapture:
		return s.eng.CreateCaptureUnit(s.ctx)
	default:
		return nil, fmt.Errorf("kind %q is not asynchronous", def.Kind)
	}
}

// applyPropsLocked pushes the stored properties into a freshly attached
// handle. Creation already applied the snapshot taken at spawn time; this
// covers writes that landed while the acquisition was in flight.
func (s *Store) applyPropsLocked(n *node) {
	for name, v := range n.props {
		if err := s.eng.SetParameter(n.handle, name, v); err != nil {
			s.log.Debug("deferred property apply skipped",
				"node", n.id, "param", name, "error", err)
		}
	}
}

// RemoveNode tears a node down: its edges first, then any bridges feeding
// its parameters, then the runtime resource, then the record itself. In-
// flight deliveries aimed at the node are dropped silently once it is gone.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return errNoSuchNode(id)
	}
	before := s.exportLocked()
	s.removeNodeLocked(id)
	s.hist.Record(before)
	s.emitHistoryLocked()
	return nil
}

func (s *Store) removeNodeLocked(id string) {
	n := s.nodes[id]

	for _, eid := range append([]string(nil), s.edgeOrder...) {
		e := s.edges[eid]
		if e == nil || (e.source != id && e.target != id) {
			continue
		}
		s.unwireEdgeLocked(e)
		delete(s.edges, eid)
		s.edgeOrder = removeString(s.edgeOrder, eid)
		s.emit(events.TypeEdgeRemoved, edgeEventData(e))
	}

	if n.handle != nil {
		s.bridges.ReleaseNode(n.handle.ID())
	}

	switch {
	case n.lu != nil:
		s.logicRT.Destroy(id)
	case n.handle != nil:
		s.eng.DestroyUnit(n.handle)
	}

	delete(s.nodes, id)
	s.nodeOrder = removeString(s.nodeOrder, id)
	s.emit(events.TypeNodeRemoved, events.NodeData{NodeID: id, Kind: string(n.kind)})
}

// UpdateNodeProperty validates and stores a property value, then applies it
// to the node's runtime resource. The stored value is committed regardless
// of the apply outcome: a pending node keeps the value for attachment, and
// an engine refusal is logged rather than surfaced, so the persisted graph
// always reflects the user's intent.
func (s *Store) UpdateNodeProperty(id, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return errNoSuchNode(id)
	}
	spec := n.def.Param(name)
	if spec == nil {
		return &registry.UnknownParamError{Kind: n.kind, Param: name}
	}
	norm, err := spec.Normalize(value)
	if err != nil {
		return err
	}

	before := s.exportLocked()
	n.props[name] = norm
	s.applyPropLocked(n, name, norm)
	s.hist.Record(before)
	s.emitHistoryLocked()
	s.emit(events.TypePropertyChanged, events.PropertyData{
		NodeID: id, Name: name, Value: norm,
	})
	return nil
}

func (s *Store) applyPropLocked(n *node, name string, value any) {
	switch {
	case n.lu != nil:
		if err := s.logicRT.SetProperty(n.id, name, value); err != nil {
			s.log.Warn("logic property apply failed",
				"node", n.id, "param", name, "error", err)
		}
	case n.handle != nil:
		if err := s.eng.SetParameter(n.handle, name, value); err != nil {
			s.log.Warn("engine parameter apply failed",
				"node", n.id, "param", name, "error", err)
		}
	}
	// Pending and failed nodes keep the stored value only; attachment
	// replays it.
}

// MoveNode updates a node's canvas position.
func (s *Store) MoveNode(id string, pos snapshot.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return errNoSuchNode(id)
	}
	before := s.exportLocked()
	n.position = pos
	s.hist.Record(before)
	s.emitHistoryLocked()
	s.emit(events.TypePropertyChanged, events.PropertyData{
		NodeID: id, Name: "position", Value: pos,
	})
	return nil
}

// TriggerNode fires a node's momentary action: a button press, a toggle
// flip, or a one-shot player restart. Kinds with no such action return an
// error.
func (s *Store) TriggerNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return errNoSuchNode(id)
	}
	if n.lu != nil {
		return s.logicRT.Trigger(id)
	}
	if n.def.OneShot {
		return s.retriggerLocked(n)
	}
	return fmt.Errorf("%w: kind %q does not respond to trigger", ErrKindMismatch, n.kind)
}

// RetriggerNode rebuilds a one-shot node's engine unit so playback restarts
// from the beginning. The rebuild follows the asynchronous acquisition path;
// edges and bridges touching the node are re-established when the new unit
// attaches. Retriggering is a playback action and records no history.
func (s *Store) RetriggerNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return errNoSuchNode(id)
	}
	return s.retriggerLocked(n)
}

func (s *Store) retriggerLocked(n *node) error {
	if !n.def.Native || !n.def.OneShot {
		return fmt.Errorf("%w: kind %q is not a one-shot unit", ErrKindMismatch, n.kind)
	}
	if n.status == StatusPending {
		return nil
	}
	if n.handle != nil {
		s.bridges.ReleaseNode(n.handle.ID())
		s.eng.DestroyUnit(n.handle)
		n.handle = nil
	}
	n.status = StatusPending
	n.lastErr = ""
	s.epoch++
	n.epoch = s.epoch
	go s.acquireUnit(n.epoch, n.id, n.def, cloneProps(n.props))
	return nil
}

// DisplayValue returns the last value shown by a display node.
func (s *Store) DisplayValue(id string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return 0, errNoSuchNode(id)
	}
	du, ok := n.lu.(*logic.DisplayUnit)
	if !ok {
		return 0, fmt.Errorf("%w: kind %q has no display value", ErrKindMismatch, n.kind)
	}
	return du.Last(), nil
}

func normalizeProps(def registry.Definition, in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for name, v := range in {
		spec := def.Param(name)
		if spec == nil {
			return nil, &registry.UnknownParamError{Kind: def.Kind, Param: name}
		}
		norm, err := spec.Normalize(v)
		if err != nil {
			return nil, err
		}
		out[name] = norm
	}
	return out, nil
}
