// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New(prometheus.NewRegistry())
}

// TestRecordOperation verifies ok and error outcomes land on distinct series.
func TestRecordOperation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordOperation("add_node", nil)
	m.RecordOperation("add_node", nil)
	m.RecordOperation("add_node", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("add_node", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("add_node", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("remove_node", "ok")))
}

// TestGraphGauges verifies size gauges track the latest set values.
func TestGraphGauges(t *testing.T) {
	m := newTestMetrics(t)

	m.SetGraphSize(5, 7)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.GraphNodes))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.GraphEdges))

	m.SetGraphSize(0, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GraphNodes))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GraphEdges))
}

// TestEngineGauges verifies unit and bridge gauges.
func TestEngineGauges(t *testing.T) {
	m := newTestMetrics(t)

	m.SetLiveUnits(3)
	m.SetActiveBridges(2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LiveUnits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveBridges))
}

// TestRecordAcquisition verifies outcome labelling and histogram counts.
func TestRecordAcquisition(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAcquisition("clip", OutcomeOK, 0.02)
	m.RecordAcquisition("clip", OutcomeOK, 0.04)
	m.RecordAcquisition("clip", OutcomeFailed, 0.5)
	m.RecordAcquisition("capture", OutcomeDiscarded, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AcquisitionsTotal.WithLabelValues("clip", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcquisitionsTotal.WithLabelValues("clip", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcquisitionsTotal.WithLabelValues("capture", OutcomeDiscarded)))

	count := testutil.CollectAndCount(m.AcquireSeconds)
	assert.Equal(t, 2, count, "one histogram series per kind")
}

// TestRecordRequest verifies status codes become labels.
func TestRecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("GET", "/api/graph", 200, 0.003)
	m.RecordRequest("GET", "/api/graph", 200, 0.004)
	m.RecordRequest("POST", "/api/nodes", 422, 0.002)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/graph", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/nodes", "422")))
}

// TestWSClientGauge verifies connect and disconnect balance out.
func TestWSClientGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSClients))

	m.RecordWSMessage(DirectionInbound)
	m.RecordWSMessage(DirectionOutbound)
	m.RecordWSMessage(DirectionOutbound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSMessagesTotal.WithLabelValues(DirectionInbound)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSMessagesTotal.WithLabelValues(DirectionOutbound)))
}

// TestRecordEvent verifies per-type event counting.
func TestRecordEvent(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEvent("node_added")
	m.RecordEvent("node_added")
	m.RecordEvent("edge_added")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("node_added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("edge_added")))
}

// TestSeparateRegistries verifies two instances never share series.
func TestSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.RecordOperation("undo", nil)
	require.Equal(t, 1.0, testutil.ToFloat64(a.OperationsTotal.WithLabelValues("undo", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.OperationsTotal.WithLabelValues("undo", "ok")))
}
