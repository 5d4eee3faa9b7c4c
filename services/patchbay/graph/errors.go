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
	"errors"
	"fmt"
)

var (
	// ErrNoSuchNode reports an operation against a node ID the store does
	// not hold.
	ErrNoSuchNode = errors.New("no such node")

	// ErrNoSuchEdge reports an operation against an edge ID the store does
	// not hold.
	ErrNoSuchEdge = errors.New("no such edge")

	// ErrDuplicateNode reports an explicit node ID that is already in use.
	ErrDuplicateNode = errors.New("node id already in use")

	// ErrDuplicateEdge reports an explicit edge ID that is already in use.
	ErrDuplicateEdge = errors.New("edge id already in use")

	// ErrInvalidPort reports an edge endpoint naming a port or parameter
	// the kind does not declare, or one that cannot accept the attempted
	// connection.
	ErrInvalidPort = errors.New("invalid port")

	// ErrUnsupportedEdge reports a connection shape the system rejects
	// outright: audio-rate outputs cannot feed control inputs.
	ErrUnsupportedEdge = errors.New("unsupported edge")

	// ErrNothingToUndo reports an undo request with an empty undo stack.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo reports a redo request with an empty redo stack.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrKindMismatch reports an operation the target node's kind does not
	// support, like triggering an oscillator or reading a display value
	// from a gain.
	ErrKindMismatch = errors.New("kind mismatch")
)

// ReplayError reports a snapshot replay that could not be completed. The
// store restores whatever state was live before the replay began; the
// wrapped error names the node or edge that refused to build.
type ReplayError struct {
	Op  string
	Err error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("%s replay failed: %v", e.Op, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

func errNoSuchNode(id string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchNode, id)
}

func errNoSuchEdge(id string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchEdge, id)
}
