// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Integration test for a full editor session against a live HTTP server:
// REST mutations observed over a concurrent WebSocket, a project save, and
// a restart proving the on-disk store survives the process.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
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
	"github.com/AleutianAI/Patchbay/services/patchbay/routes"
)

// TestEditorSession is the main integration test
func TestEditorSession(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") == "" {
		t.Skip("Set RUN_INTEGRATION_TESTS=1 to run this test")
	}

	projectDir := filepath.Join(t.TempDir(), "projects")

	// Step 1: Boot the full stack on a real listener
	t.Log("Starting the server...")
	svc, err := patchbay.New(patchbay.Config{ProjectDir: projectDir})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	routes.SetupRoutes(router, svc)
	server := httptest.NewServer(router)

	// Step 2: Attach a WebSocket observer before any edits happen
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/graph/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	hello := readWSFrame(t, conn)
	require.Equal(t, datatypes.FrameHello, hello.Type)
	require.NotNil(t, hello.State)
	require.Empty(t, hello.State.Nodes)

	// Step 3: Build a patch over REST
	t.Log("Editing the graph over REST...")
	doJSON(t, http.MethodPost, server.URL+"/api/graph/nodes",
		map[string]any{"id": "osc", "kind": "oscillator"}, http.StatusOK)
	doJSON(t, http.MethodPost, server.URL+"/api/graph/nodes",
		map[string]any{"id": "amp", "kind": "gain"}, http.StatusOK)
	doJSON(t, http.MethodPost, server.URL+"/api/graph/nodes",
		map[string]any{"id": "out", "kind": "output"}, http.StatusOK)
	doJSON(t, http.MethodPost, server.URL+"/api/graph/edges",
		map[string]any{"sourceNodeId": "osc", "targetNodeId": "amp"}, http.StatusOK)
	doJSON(t, http.MethodPost, server.URL+"/api/graph/edges",
		map[string]any{"sourceNodeId": "amp", "targetNodeId": "out"}, http.StatusOK)
	doJSON(t, http.MethodPatch, server.URL+"/api/graph/nodes/amp/properties",
		map[string]any{"name": "gain", "value": 0.5}, http.StatusOK)

	// Step 4: The observer saw every mutation, in event form
	t.Log("Verifying the event stream...")
	counts := map[events.Type]int{}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if counts[events.TypeNodeAdded] >= 3 &&
			counts[events.TypeEdgeAdded] >= 2 &&
			counts[events.TypePropertyChanged] >= 1 {
			break
		}
		frame := readWSFrame(t, conn)
		if frame.Type == datatypes.FrameEvent && frame.Event != nil {
			counts[frame.Event.Type]++
		}
	}
	assert.Equal(t, 3, counts[events.TypeNodeAdded], "node_added events")
	assert.Equal(t, 2, counts[events.TypeEdgeAdded], "edge_added events")
	assert.GreaterOrEqual(t, counts[events.TypePropertyChanged], 1, "property_changed events")

	// Step 5: Save the session
	body := doJSON(t, http.MethodPost, server.URL+"/api/projects",
		map[string]any{"name": "session one"}, http.StatusOK)
	var saved struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &saved))
	require.NotEmpty(t, saved.ID)

	// Step 6: A WebSocket action lands and is visible over REST
	require.NoError(t, conn.WriteJSON(datatypes.ClientAction{
		Action: datatypes.ActionAddNode, Kind: "slider", NodeID: "vol", RequestID: "r1",
	}))
	for {
		frame := readWSFrame(t, conn)
		if frame.Type == datatypes.FrameAck && frame.RequestID == "r1" {
			break
		}
		require.NotEqual(t, datatypes.FrameError, frame.Type, "action rejected: %s", frame.Error)
	}
	state := getState(t, server.URL)
	assert.Len(t, state.Nodes, 4, "WebSocket add visible over REST")

	// Step 7: Restart and verify the save survived the process
	t.Log("Restarting the service...")
	conn.Close()
	server.Close()
	require.NoError(t, svc.Close())

	svc2, err := patchbay.New(patchbay.Config{ProjectDir: projectDir})
	require.NoError(t, err)
	defer svc2.Close()

	rec, err := svc2.Projects.Load(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "session one", rec.Name)

	report, err := svc2.Store.LoadJSON(rec.Snapshot)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	nodes, edges := svc2.Store.Counts()
	assert.Equal(t, 3, nodes, "the save captured the pre-slider graph")
	assert.Equal(t, 2, edges)
}

func readWSFrame(t *testing.T, conn *websocket.Conn) datatypes.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame datatypes.ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// doJSON sends one JSON request and fails the test on an unexpected status.
func doJSON(t *testing.T, method, url string, payload any, wantStatus int) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode,
		fmt.Sprintf("%s %s: %s", method, url, buf.String()))
	return buf.Bytes()
}

func getState(t *testing.T, baseURL string) datatypes.GraphState {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/graph")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state datatypes.GraphState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}
