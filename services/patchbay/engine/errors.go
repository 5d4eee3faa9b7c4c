// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrNativeResource wraps any failure surfaced by the backend.
	ErrNativeResource = errors.New("native resource failure")

	// ErrNotNative is returned when a logic kind reaches the adapter.
	ErrNotNative = errors.New("kind has no native unit")

	// ErrUnitDestroyed is returned when an operation hits a handle whose
	// unit has already been released.
	ErrUnitDestroyed = errors.New("unit already destroyed")

	// ErrAsyncKind is returned when a kind that acquires its resource
	// asynchronously is passed to the synchronous constructor.
	ErrAsyncKind = errors.New("kind requires asynchronous acquisition")
)

// NativeResourceError reports a backend failure with enough context to log
// and roll back: which operation, on which kind, and the underlying cause.
type NativeResourceError struct {
	Op   string
	Kind string
	Err  error
}

func (e *NativeResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("native %s failed for kind %q: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("native %s failed for kind %q", e.Op, e.Kind)
}

func (e *NativeResourceError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNativeResource
}

// Is lets errors.Is(err, ErrNativeResource) succeed even when a concrete
// cause is attached.
func (e *NativeResourceError) Is(target error) bool {
	return target == ErrNativeResource
}
