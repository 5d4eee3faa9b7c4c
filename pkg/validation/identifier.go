// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for user-supplied identifiers.
//
// Editor clients may mint their own node and edge IDs. Those IDs end up in
// snapshot documents, saved project records, WebSocket frames, and engine
// handle registries, so a malformed one (control characters, injection
// payloads, unbounded length) poisons every surface that later renders or
// stores it. Validating at the API boundary keeps the rest of the system
// free of escaping concerns.
package validation

import (
	"fmt"
	"regexp"
)

// idPattern matches valid graph identifiers.
// Allows: letters, digits, underscores, hyphens (UUIDs qualify)
// Must start with a letter or digit. Max length: 64 characters.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// ValidateID validates a client-minted node or edge identifier.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters A-Z and a-z
//   - Digits 0-9
//   - Underscores and hyphens after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateID(req.ID); err != nil {
//	    return fmt.Errorf("invalid node id: %w", err)
//	}
//	// Safe to store and echo in frames
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier %q (must be 1-64 letters, digits, underscores, or hyphens, starting with a letter or digit)", id)
	}

	return nil
}
