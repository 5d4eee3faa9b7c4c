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
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/datatypes"
	"github.com/AleutianAI/Patchbay/services/patchbay/events"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
	"github.com/AleutianAI/Patchbay/services/patchbay/observability"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a silent peer stays connected. Pings go out at
	// pingPeriod, which must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxActionBytes caps one inbound action frame.
	maxActionBytes = 32 * 1024

	// sendBuffer is the per-client outbound queue. Store events are
	// delivered while the store lock is held, so enqueueing must never
	// block; a client that cannot drain this many frames is dropped.
	sendBuffer = 256

	// actionRate and actionBurst bound inbound actions per client. A
	// slider drag streams set_property at frame rate, so the ceiling is
	// generous; it exists to stop runaway loops, not interactive use.
	actionRate  = 100
	actionBurst = 200
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The editor is served from arbitrary local origins (file://, vite
	// dev server), so origin checking is left to the deployment proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GraphWebSocket handles GET /api/graph/ws.
//
// Description:
//
//	Upgrades to a WebSocket session. The server first sends a hello
//	frame carrying the full graph state and the event bus revision it
//	was read at, then streams every store event; the client reconciles
//	by ignoring events at or below the hello revision. Inbound frames
//	are ClientAction values executed against the same store API the
//	REST surface uses, each answered with an ack or error frame.
func GraphWebSocket(svc *patchbay.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade websocket", "error", err)
			return
		}

		client := &wsClient{
			conn:    conn,
			svc:     svc,
			log:     slog.With("client_id", uuid.NewString()[:8]),
			send:    make(chan datatypes.ServerFrame, sendBuffer),
			done:    make(chan struct{}),
			limiter: rate.NewLimiter(rate.Limit(actionRate), actionBurst),
		}
		client.log.Info("Websocket client connected")
		if m := svc.Metrics(); m != nil {
			m.ClientConnected()
			defer m.ClientDisconnected()
		}

		// Subscribe before reading the state so nothing falls between the
		// hello revision and the first streamed event.
		subID := svc.Events.Subscribe(client.onEvent)
		defer svc.Events.Unsubscribe(subID)

		go client.writePump()
		client.enqueue(client.stateFrame(datatypes.FrameHello, ""))
		client.readPump()

		client.close()
		client.log.Info("Websocket client disconnected")
	}
}

// wsClient is one editor session. The writePump goroutine is the only
// writer on conn; everything else funnels frames through send.
type wsClient struct {
	conn    *websocket.Conn
	svc     *patchbay.Service
	log     *slog.Logger
	send    chan datatypes.ServerFrame
	done    chan struct{}
	limiter *rate.Limiter

	closeOnce sync.Once
}

func (cl *wsClient) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
		cl.conn.Close()
	})
}

// onEvent runs on the goroutine that mutated the store, with the store
// lock still held. It must not block and must not call back into the
// store; it only copies the event into the outbound queue.
func (cl *wsClient) onEvent(ev *events.Event) {
	cl.enqueue(datatypes.ServerFrame{Type: datatypes.FrameEvent, Event: ev})
}

// enqueue hands a frame to the write pump without blocking. A full queue
// means the peer stopped draining; the session is dropped rather than
// stalling the producer.
func (cl *wsClient) enqueue(frame datatypes.ServerFrame) {
	select {
	case cl.send <- frame:
	case <-cl.done:
	default:
		cl.log.Warn("Dropping slow websocket client", "queued", len(cl.send))
		cl.close()
	}
}

func (cl *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cl.close()

	for {
		select {
		case <-cl.done:
			return
		case frame := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(frame); err != nil {
				return
			}
			if m := cl.svc.Metrics(); m != nil {
				m.RecordWSMessage(observability.DirectionOutbound)
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (cl *wsClient) readPump() {
	cl.conn.SetReadLimit(maxActionBytes)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var action datatypes.ClientAction
		if err := cl.conn.ReadJSON(&action); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cl.log.Warn("Websocket read failed", "error", err)
			}
			return
		}
		if m := cl.svc.Metrics(); m != nil {
			m.RecordWSMessage(observability.DirectionInbound)
		}

		if !cl.limiter.Allow() {
			cl.enqueue(errorFrame(action.RequestID, "rate limit exceeded, action dropped"))
			continue
		}
		if err := action.Validate(); err != nil {
			cl.enqueue(errorFrame(action.RequestID, "invalid action: "+err.Error()))
			continue
		}
		cl.dispatch(action)
	}
}

// dispatch executes one client action against the store and answers it.
// It runs on the read goroutine, never under the store lock, so calling
// store methods here is safe.
func (cl *wsClient) dispatch(action datatypes.ClientAction) {
	store := cl.svc.Store
	var err error

	switch action.Action {
	case datatypes.ActionAddNode:
		spec := graph.NodeSpec{
			ID:         action.NodeID,
			Kind:       registry.Kind(action.Kind),
			Properties: action.Properties,
		}
		if action.Position != nil {
			spec.Position = *action.Position
		}
		_, err = store.AddNode(spec)

	case datatypes.ActionRemoveNode:
		err = store.RemoveNode(action.NodeID)

	case datatypes.ActionSetProperty:
		err = store.UpdateNodeProperty(action.NodeID, action.Name, action.Value)

	case datatypes.ActionMoveNode:
		if action.Position == nil {
			err = fmt.Errorf("move_node requires a position")
		} else {
			err = store.MoveNode(action.NodeID, *action.Position)
		}

	case datatypes.ActionTrigger:
		err = store.TriggerNode(action.NodeID)

	case datatypes.ActionRetrigger:
		err = store.RetriggerNode(action.NodeID)

	case datatypes.ActionAddEdge:
		_, err = store.AddEdge(graph.EdgeSpec{
			ID:           action.EdgeID,
			SourceNodeID: action.SourceNodeID,
			TargetNodeID: action.TargetNodeID,
			SourceOutput: action.SourceOutput,
			TargetInput:  action.TargetInput,
		})

	case datatypes.ActionRemoveEdge:
		err = store.RemoveEdge(action.EdgeID)

	case datatypes.ActionClear:
		store.ClearAllNodes()

	case datatypes.ActionUndo:
		err = store.Undo()

	case datatypes.ActionRedo:
		err = store.Redo()

	case datatypes.ActionPlay:
		err = store.Play()

	case datatypes.ActionPause:
		err = store.Pause()

	case datatypes.ActionLoadPreset:
		var g *snapshot.Graph
		if g, err = cl.svc.Presets.Get(action.Preset); err == nil {
			_, err = store.LoadSnapshot(g)
		}

	case datatypes.ActionState:
		cl.enqueue(cl.stateFrame(datatypes.FrameAck, action.RequestID))
		return
	}

	recordOp(cl.svc.Metrics(), action.Action, err)
	if err != nil {
		cl.enqueue(errorFrame(action.RequestID, err.Error()))
		return
	}
	cl.enqueue(datatypes.ServerFrame{Type: datatypes.FrameAck, RequestID: action.RequestID})
}

// stateFrame reads the full graph state at the current bus revision.
func (cl *wsClient) stateFrame(frameType, requestID string) datatypes.ServerFrame {
	state := datatypes.NewGraphState(cl.svc.Store, cl.svc.Events.Revision())
	return datatypes.ServerFrame{Type: frameType, RequestID: requestID, State: &state}
}

func errorFrame(requestID, msg string) datatypes.ServerFrame {
	return datatypes.ServerFrame{
		Type:      datatypes.FrameError,
		RequestID: requestID,
		Error:     msg,
	}
}
