// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph owns the editable audio graph: the single source of truth
// mapping node and edge records to live engine units, logic units, and
// control bridges. Every mutation passes through the Store, which serializes
// writers, records history snapshots, and emits change events in commit
// order.
//
// The store holds its lock for the whole of each mutation, including the
// synchronous logic propagation a mutation may set off. Logic emissions
// therefore observe a consistent graph, and their downstream effects (bridge
// level changes, chained logic inputs) land before the mutating call returns.
// Asynchronous unit acquisition is the one exception: the engine call runs
// outside the lock and its result is reconciled against the store's state
// when it arrives.
package graph

import (
	"context"
	"sync"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/bridge"
	"github.com/AleutianAI/Patchbay/services/patchbay/engine"
	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/history"
	"github.com/AleutianAI/Patchbay/services/patchbay/logic"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// ============================================================================
// Status and class enumerations
// ============================================================================

// NodeStatus describes where a node stands in its resource lifecycle.
type NodeStatus string

const (
	// StatusReady means the node's runtime resource is live.
	StatusReady NodeStatus = "ready"

	// StatusPending means an asynchronous acquisition is in flight. The
	// node is fully addressable; engine-side effects apply once it lands.
	StatusPending NodeStatus = "pending"

	// StatusFailed means acquisition failed. The node record remains so
	// the user can see the failure and remove or retry the node.
	StatusFailed NodeStatus = "failed"
)

// EdgeClass names the transport an edge uses.
type EdgeClass string

const (
	// ClassAudio carries sample blocks between native units.
	ClassAudio EdgeClass = "audio"

	// ClassModulation carries a native unit's output into another native
	// unit's rate parameter.
	ClassModulation EdgeClass = "modulation"

	// ClassControl carries scalar values between logic units.
	ClassControl EdgeClass = "control"

	// ClassBridge carries a logic output into a native rate parameter via
	// a constant generator.
	ClassBridge EdgeClass = "bridge"
)

// ============================================================================
// Records and views
// ============================================================================

type node struct {
	id       string
	kind     registry.Kind
	def      registry.Definition
	position snapshot.Position
	props    map[string]any

	status NodeStatus
	// handle is live for ready native nodes, nil while pending or failed.
	handle *engine.Handle
	// lu is live for logic nodes.
	lu logic.Unit
	// epoch tags the acquisition this node is waiting on. A completion
	// carrying a stale epoch belongs to a node that was since removed or
	// rebuilt, and its resource is discarded.
	epoch   uint64
	lastErr string
}

type edge struct {
	id           string
	source       string
	target       string
	sourceOutput string
	targetInput  string
	class        EdgeClass
}

// NodeView is a read-only copy of a node record.
type NodeView struct {
	ID         string            `json:"id"`
	Kind       registry.Kind     `json:"kind"`
	Position   snapshot.Position `json:"position"`
	Properties map[string]any    `json:"properties,omitempty"`
	Status     NodeStatus        `json:"status"`
	Error      string            `json:"error,omitempty"`
}

// EdgeView is a read-only copy of an edge record.
type EdgeView struct {
	ID           string    `json:"id"`
	SourceNodeID string    `json:"sourceNodeId"`
	TargetNodeID string    `json:"targetNodeId"`
	SourceOutput string    `json:"sourceOutput"`
	TargetInput  string    `json:"targetInput"`
	Class        EdgeClass `json:"class"`
}

// ============================================================================
// Store
// ============================================================================

// Options configures a Store. Registry and Engine are required.
type Options struct {
	Registry *registry.Registry
	Engine   *engine.Adapter

	// Events receives change notifications. Nil disables emission.
	Events events.Sink

	Log *logging.Logger

	// HistoryLimit bounds the undo stack. Zero selects the default.
	HistoryLimit int
}

// Store is the graph owner. All exported methods are safe for concurrent
// use; mutations are serialized behind a single lock.
type Store struct {
	reg     *registry.Registry
	eng     *engine.Adapter
	logicRT *logic.Runtime
	bridges *bridge.Manager
	hist    *history.Log
	sink    events.Sink
	log     *logging.Logger

	// ctx governs asynchronous acquisitions. It belongs to the store, not
	// to the request that started the acquisition, so a caller
	// disappearing mid-flight does not orphan a pending node.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	nodes     map[string]*node
	nodeOrder []string
	edges     map[string]*edge
	edgeOrder []string
	epoch     uint64
	playing   bool
	// quiet suppresses per-entity events during bulk rebuilds; the caller
	// emits a single aggregate event instead.
	quiet bool
}

// New builds a Store around the given engine adapter. The store constructs
// its own logic runtime so timer callbacks route through its lock.
func New(opts Options) *Store {
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = history.DefaultLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		reg:    opts.Registry,
		eng:    opts.Engine,
		hist:   history.New(limit),
		sink:   opts.Events,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		nodes:  map[string]*node{},
		edges:  map[string]*edge{},
	}
	s.logicRT = logic.NewRuntime(opts.Registry, log, s.timerFired)
	s.bridges = bridge.NewManager(opts.Engine, log)
	return s
}

// Close stops timer callbacks and aborts in-flight acquisitions. The engine
// adapter is owned by the caller and is not touched.
func (s *Store) Close() {
	s.cancel()
	s.logicRT.Reset()
}

// timerFired is the logic runtime's notify callback. It runs on each
// timer's own goroutine; taking the store lock here serializes timer ticks
// with user mutations.
func (s *Store) timerFired(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[nodeID]; !ok {
		return
	}
	s.logicRT.FireTimer(nodeID)
}

func (s *Store) emit(t events.Type, data any) {
	if s.sink == nil || s.quiet {
		return
	}
	s.sink.Emit(t, data)
}

func (s *Store) emitHistoryLocked() {
	if s.sink == nil {
		return
	}
	s.sink.Emit(events.TypeHistoryChanged, events.HistoryData{
		CanUndo: s.hist.CanUndo(),
		CanRedo: s.hist.CanRedo(),
	})
}

// ============================================================================
// Transport
// ============================================================================

// Play resumes the engine render transport.
func (s *Store) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.Resume(); err != nil {
		return err
	}
	if !s.playing {
		s.playing = true
		s.emit(events.TypePlaybackChanged, events.PlaybackData{Playing: true})
	}
	return nil
}

// Pause suspends the engine render transport. Graph state is unaffected.
func (s *Store) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.Suspend(); err != nil {
		return err
	}
	if s.playing {
		s.playing = false
		s.emit(events.TypePlaybackChanged, events.PlaybackData{Playing: false})
	}
	return nil
}

// Playing reports whether the transport is running.
func (s *Store) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// ============================================================================
// Read access
// ============================================================================

// Node returns a copy of the node record.
func (s *Store) Node(id string) (NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return NodeView{}, errNoSuchNode(id)
	}
	return s.viewLocked(n), nil
}

// Nodes returns every node in insertion order.
func (s *Store) Nodes() []NodeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NodeView, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.viewLocked(s.nodes[id]))
	}
	return out
}

// Edge returns a copy of the edge record.
func (s *Store) Edge(id string) (EdgeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return EdgeView{}, errNoSuchEdge(id)
	}
	return edgeView(e), nil
}

// Edges returns every edge in insertion order.
func (s *Store) Edges() []EdgeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EdgeView, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, edgeView(s.edges[id]))
	}
	return out
}

// Counts returns the number of nodes and edges held.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), len(s.edges)
}

// BridgeCount returns the number of running parameter bridges.
func (s *Store) BridgeCount() int {
	return s.bridges.Count()
}

// CanUndo reports whether an undo step is available.
func (s *Store) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether a redo step is available.
func (s *Store) CanRedo() bool { return s.hist.CanRedo() }

func (s *Store) viewLocked(n *node) NodeView {
	return NodeView{
		ID:         n.id,
		Kind:       n.kind,
		Position:   n.position,
		Properties: cloneProps(n.props),
		Status:     n.status,
		Error:      n.lastErr,
	}
}

func edgeView(e *edge) EdgeView {
	return EdgeView{
		ID:           e.id,
		SourceNodeID: e.source,
		TargetNodeID: e.target,
		SourceOutput: e.sourceOutput,
		TargetInput:  e.targetInput,
		Class:        e.class,
	}
}

// ============================================================================
// Shared helpers
// ============================================================================

// exportLocked captures the persistable graph. Runtime resources (handles,
// logic units, bridges) and transient status never appear in the result.
func (s *Store) exportLocked() *snapshot.Graph {
	g := &snapshot.Graph{
		Version: snapshot.Version,
		Nodes:   make([]snapshot.Node, 0, len(s.nodeOrder)),
		Edges:   make([]snapshot.Edge, 0, len(s.edgeOrder)),
	}
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		sn := snapshot.Node{ID: n.id, Kind: string(n.kind), Position: n.position}
		if len(n.props) > 0 {
			sn.Properties = cloneProps(n.props)
		}
		g.Nodes = append(g.Nodes, sn)
	}
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		g.Edges = append(g.Edges, snapshot.Edge{
			ID:           e.id,
			SourceNodeID: e.source,
			TargetNodeID: e.target,
			SourceOutput: e.sourceOutput,
			TargetInput:  e.targetInput,
		})
	}
	return g
}

// cloneProps copies a property map. Values are normalized scalars, so a
// per-key copy is a deep copy.
func cloneProps(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func removeString(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
