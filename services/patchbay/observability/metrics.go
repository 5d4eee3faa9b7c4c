// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the patchbay server.
//
// # Description
//
// Metrics cover the three layers worth watching in production:
//   - Graph mutations (operation counters, node/edge gauges, event fanout)
//   - Engine resources (live units, bridges, async acquisition outcomes)
//   - HTTP surface (request counters and latency, WebSocket clients)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Construct once with New
// (or Init for the default registry) and share the instance; all metric
// operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "patchbay"

// Subsystems group metrics by layer.
const (
	graphSubsystem  = "graph"
	engineSubsystem = "engine"
	httpSubsystem   = "http"
)

// Acquisition outcomes for RecordAcquisition.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// WebSocket message directions for RecordWSMessage.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Metrics holds every Prometheus metric the server records.
type Metrics struct {
	// OperationsTotal counts store mutations by operation and status.
	// Labels: op (add_node, remove_node, add_edge, ...), status (ok, error)
	OperationsTotal *prometheus.CounterVec

	// GraphNodes and GraphEdges track the current graph size.
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	// EventsTotal counts events fanned out to subscribers by type.
	EventsTotal *prometheus.CounterVec

	// LiveUnits tracks units currently alive in the audio backend.
	LiveUnits prometheus.Gauge

	// ActiveBridges tracks constant-generator bridges currently running.
	ActiveBridges prometheus.Gauge

	// AcquisitionsTotal counts async unit acquisitions by kind and outcome.
	// Labels: kind (clip, capture), outcome (ok, failed, discarded)
	AcquisitionsTotal *prometheus.CounterVec

	// AcquireSeconds measures async acquisition latency by kind.
	AcquireSeconds *prometheus.HistogramVec

	// RequestsTotal counts HTTP requests by method, route, and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestSeconds measures HTTP request latency by method and route.
	RequestSeconds *prometheus.HistogramVec

	// WSClients tracks connected WebSocket clients.
	WSClients prometheus.Gauge

	// WSMessagesTotal counts WebSocket messages by direction.
	WSMessagesTotal *prometheus.CounterVec
}

// Default is the shared metrics instance set by Init.
var Default *Metrics

// Init creates Default on the global Prometheus registry.
//
// Call once at startup; a second call panics on duplicate registration.
func Init() *Metrics {
	Default = New(prometheus.DefaultRegisterer)
	return Default
}

// New creates a metrics set on the given registerer. Tests pass a private
// prometheus.NewRegistry() so parallel packages never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "operations_total",
				Help:      "Graph store operations by op and status",
			},
			[]string{"op", "status"},
		),

		GraphNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "nodes",
				Help:      "Nodes currently in the graph",
			},
		),

		GraphEdges: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "edges",
				Help:      "Edges currently in the graph",
			},
		),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "events_total",
				Help:      "Store events fanned out to subscribers by type",
			},
			[]string{"type"},
		),

		LiveUnits: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "live_units",
				Help:      "Units currently alive in the audio backend",
			},
		),

		ActiveBridges: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "active_bridges",
				Help:      "Logic-to-parameter bridges currently running",
			},
		),

		AcquisitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "acquisitions_total",
				Help:      "Async unit acquisitions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		AcquireSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "acquire_seconds",
				Help:      "Async unit acquisition latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status"},
		),

		RequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		WSClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "ws_clients",
				Help:      "Connected WebSocket clients",
			},
		),

		WSMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "ws_messages_total",
				Help:      "WebSocket messages by direction",
			},
			[]string{"direction"},
		),
	}
}

// ============================================================================
// Helper Methods
// ============================================================================

// RecordOperation records one store mutation and its outcome.
func (m *Metrics) RecordOperation(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(op, status).Inc()
}

// SetGraphSize updates the node and edge gauges.
func (m *Metrics) SetGraphSize(nodes, edges int) {
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

// RecordEvent counts one event delivered to the bus.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// SetLiveUnits updates the live unit gauge.
func (m *Metrics) SetLiveUnits(n int) {
	m.LiveUnits.Set(float64(n))
}

// SetActiveBridges updates the bridge gauge.
func (m *Metrics) SetActiveBridges(n int) {
	m.ActiveBridges.Set(float64(n))
}

// RecordAcquisition records one async acquisition attempt.
func (m *Metrics) RecordAcquisition(kind, outcome string, seconds float64) {
	m.AcquisitionsTotal.WithLabelValues(kind, outcome).Inc()
	m.AcquireSeconds.WithLabelValues(kind).Observe(seconds)
}

// RecordRequest records one finished HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestSeconds.WithLabelValues(method, route).Observe(seconds)
}

// ClientConnected increments the WebSocket client gauge.
func (m *Metrics) ClientConnected() {
	m.WSClients.Inc()
}

// ClientDisconnected decrements the WebSocket client gauge.
func (m *Metrics) ClientDisconnected() {
	m.WSClients.Dec()
}

// RecordWSMessage counts one WebSocket message.
func (m *Metrics) RecordWSMessage(direction string) {
	m.WSMessagesTotal.WithLabelValues(direction).Inc()
}
