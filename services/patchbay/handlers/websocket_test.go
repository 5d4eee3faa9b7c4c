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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/datatypes"
	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

func wsTestServer(t *testing.T) (*patchbay.Service, *httptest.Server) {
	t.Helper()
	svc := newTestService(t)
	router := gin.New()
	router.GET("/api/graph/ws", GraphWebSocket(svc))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return svc, server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/graph/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) datatypes.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame datatypes.ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readUntil drains frames until one of the wanted type arrives, returning
// it together with everything seen on the way.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) (datatypes.ServerFrame, []datatypes.ServerFrame) {
	t.Helper()
	var seen []datatypes.ServerFrame
	for range 20 {
		frame := readFrame(t, conn)
		if frame.Type == frameType {
			return frame, seen
		}
		seen = append(seen, frame)
	}
	t.Fatalf("no %q frame within 20 reads", frameType)
	return datatypes.ServerFrame{}, nil
}

func sawEvent(frames []datatypes.ServerFrame, eventType events.Type) bool {
	for _, f := range frames {
		if f.Type == datatypes.FrameEvent && f.Event != nil && f.Event.Type == eventType {
			return true
		}
	}
	return false
}

func TestWebSocket_Hello(t *testing.T) {
	_, server := wsTestServer(t)
	conn := dialWS(t, server)

	hello := readFrame(t, conn)
	assert.Equal(t, datatypes.FrameHello, hello.Type)
	require.NotNil(t, hello.State)
	assert.Empty(t, hello.State.Nodes)
	assert.False(t, hello.State.IsPlaying)
}

func TestWebSocket_AddNodeFlow(t *testing.T) {
	svc, server := wsTestServer(t)
	conn := dialWS(t, server)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteJSON(datatypes.ClientAction{
		Action:    datatypes.ActionAddNode,
		RequestID: "req-1",
		NodeID:    "osc-ws",
		Kind:      "oscillator",
	}))

	// The mutation's own event streams ahead of the ack.
	ack, earlier := readUntil(t, conn, datatypes.FrameAck)
	assert.Equal(t, "req-1", ack.RequestID)
	assert.True(t, sawEvent(earlier, events.TypeNodeAdded), "expected a node_added event before the ack")

	n, err := svc.Store.Node("osc-ws")
	require.NoError(t, err)
	assert.EqualValues(t, "oscillator", n.Kind)

	// request_state answers with a fresh snapshot inline.
	require.NoError(t, conn.WriteJSON(datatypes.ClientAction{
		Action:    datatypes.ActionState,
		RequestID: "req-2",
	}))
	state, _ := readUntil(t, conn, datatypes.FrameAck)
	assert.Equal(t, "req-2", state.RequestID)
	require.NotNil(t, state.State)
	assert.Len(t, state.State.Nodes, 1)
}

func TestWebSocket_InvalidAction(t *testing.T) {
	_, server := wsTestServer(t)
	conn := dialWS(t, server)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":    "explode",
		"requestId": "bad-1",
	}))
	frame, _ := readUntil(t, conn, datatypes.FrameError)
	assert.Equal(t, "bad-1", frame.RequestID)
	assert.Contains(t, frame.Error, "invalid action")
}

func TestWebSocket_ActionError(t *testing.T) {
	_, server := wsTestServer(t)
	conn := dialWS(t, server)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteJSON(datatypes.ClientAction{
		Action:    datatypes.ActionRemoveNode,
		RequestID: "req-missing",
		NodeID:    "ghost",
	}))
	frame, _ := readUntil(t, conn, datatypes.FrameError)
	assert.Equal(t, "req-missing", frame.RequestID)
	assert.Contains(t, frame.Error, "ghost")
}

func TestWebSocket_EventFanout(t *testing.T) {
	svc, server := wsTestServer(t)

	connA := dialWS(t, server)
	connB := dialWS(t, server)
	readFrame(t, connA) // hello
	readFrame(t, connB) // hello

	// A mutation from outside the sessions reaches every client.
	_, err := svc.Store.AddNode(graph.NodeSpec{ID: "shared", Kind: registry.KindGain})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{connA, connB} {
		frame, _ := readUntil(t, conn, datatypes.FrameEvent)
		require.NotNil(t, frame.Event)
		assert.Equal(t, events.TypeNodeAdded, frame.Event.Type)
	}
}
