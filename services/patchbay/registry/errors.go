// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry lookups and schema validation.
var (
	// ErrUnknownKind indicates a kind that is not in the catalog.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrUnknownParam indicates a parameter name not declared by the kind.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrInvalidProperty indicates a value that fails a parameter's schema
	// and has no safe coercion.
	ErrInvalidProperty = errors.New("invalid property value")
)

// UnknownKindError reports a lookup for a kind the catalog does not contain.
// Callers must treat this as non-recoverable for that node creation; retrying
// with the same kind will fail again.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown node kind %q", string(e.Kind))
}

func (e *UnknownKindError) Unwrap() error {
	return ErrUnknownKind
}

// UnknownParamError reports a parameter name that the kind's schema does not
// declare.
type UnknownParamError struct {
	Kind  Kind
	Param string
}

func (e *UnknownParamError) Error() string {
	return fmt.Sprintf("kind %q has no parameter %q", string(e.Kind), e.Param)
}

func (e *UnknownParamError) Unwrap() error {
	return ErrUnknownParam
}

// InvalidPropertyError reports a value rejected by a parameter's schema.
// Values with a safe coercion (out-of-range floats, NaN) are clamped instead
// of raising this; only irreconcilable values (wrong type, enum miss) reach
// the caller as an error, and never mutate state.
type InvalidPropertyError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid value for %q: %s (got %v)", e.Param, e.Reason, e.Value)
}

func (e *InvalidPropertyError) Unwrap() error {
	return ErrInvalidProperty
}
