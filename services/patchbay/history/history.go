// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history keeps undo and redo stacks of full graph snapshots.
// The log only stores state; replaying a snapshot back into the live graph
// is the store's job. Undo is therefore two-phase: peek at the target,
// replay it, and commit only once the replay succeeded, so a failed replay
// leaves the stacks exactly as they were.
package history

import (
	"sync"

	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// DefaultLimit bounds the undo stack when New is given no limit.
const DefaultLimit = 100

// Log is a bounded undo/redo log. Snapshots handed to the log are owned by
// it and must not be mutated afterward.
type Log struct {
	mu        sync.Mutex
	limit     int
	undo      []*snapshot.Graph
	redo      []*snapshot.Graph
	suspended int
}

func New(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// ============================================================================
// Recording
// ============================================================================

// Record pushes the state that held before a mutation and clears the redo
// stack. While the log is suspended this is a no-op, so bulk operations
// collapse into the single Record their caller makes.
func (l *Log) Record(before *snapshot.Graph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.suspended > 0 {
		return
	}
	l.undo = l.pushBounded(l.undo, before)
	l.redo = nil
}

// Suspend pauses recording. Calls nest; recording resumes when every
// Suspend has been matched by a Resume.
func (l *Log) Suspend() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.suspended++
}

// Resume undoes one Suspend.
func (l *Log) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.suspended > 0 {
		l.suspended--
	}
}

// Suspended reports whether recording is currently paused.
func (l *Log) Suspended() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suspended > 0
}

// ============================================================================
// Undo / redo
// ============================================================================

// PeekUndo returns the snapshot an undo would restore without altering the
// stacks.
func (l *Log) PeekUndo() (*snapshot.Graph, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.undo) == 0 {
		return nil, false
	}
	return l.undo[len(l.undo)-1], true
}

// CommitUndo finalizes a successful undo: the restored snapshot leaves the
// undo stack and the state that was live beforehand becomes redoable.
func (l *Log) CommitUndo(current *snapshot.Graph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.undo) == 0 {
		return
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, current)
}

// PeekRedo returns the snapshot a redo would restore.
func (l *Log) PeekRedo() (*snapshot.Graph, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.redo) == 0 {
		return nil, false
	}
	return l.redo[len(l.redo)-1], true
}

// CommitRedo finalizes a successful redo.
func (l *Log) CommitRedo(current *snapshot.Graph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.redo) == 0 {
		return
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = l.pushBounded(l.undo, current)
}

// CanUndo reports whether an undo target exists.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

// CanRedo reports whether a redo target exists.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

// Depths reports the stack sizes, for status displays.
func (l *Log) Depths() (undo, redo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo), len(l.redo)
}

// Clear empties both stacks, for project loads.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = nil
	l.redo = nil
}

func (l *Log) pushBounded(stack []*snapshot.Graph, g *snapshot.Graph) []*snapshot.Graph {
	stack = append(stack, g)
	if len(stack) > l.limit {
		copy(stack, stack[1:])
		stack = stack[:len(stack)-1]
	}
	return stack
}
