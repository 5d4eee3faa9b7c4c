// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrUnsupportedKind is returned when a native kind is handed to the
	// logic runtime.
	ErrUnsupportedKind = errors.New("kind is not a logic kind")

	// ErrUnknownPort is returned when a connection names an output the
	// kind does not declare.
	ErrUnknownPort = errors.New("unknown port")

	// ErrNoSuchUnit is returned when an operation targets a node the
	// runtime is not hosting.
	ErrNoSuchUnit = errors.New("no logic unit for node")

	// ErrDuplicateUnit is returned when a node ID is created twice.
	ErrDuplicateUnit = errors.New("logic unit already exists for node")
)

// UnsupportedKindError identifies the kind that could not be hosted.
type UnsupportedKindError struct {
	Kind registry.Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("logic runtime cannot host kind %q", e.Kind)
}

func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedKind }
