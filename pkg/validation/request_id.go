// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that reach logs,
// response headers or file names.
//
// Client-supplied identifiers are echoed back in headers and attached to
// every log record of a request. Accepting them unchecked allows header
// splitting and forged log lines.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxRequestIDLength bounds a client-supplied request ID.
const MaxRequestIDLength = 128

// requestIDPattern matches UUIDs and the usual tracing ID shapes.
// Allows: letters, digits, dots, hyphens, underscores and colons.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

// ValidateRequestID validates a client-supplied request ID.
//
// Valid IDs:
//   - 1-128 characters
//   - Letters, digits, '.', '_', ':' and '-'
//   - Starting with a letter or digit
//
// Example:
//
//	if err := validation.ValidateRequestID(id); err != nil {
//	    id = uuid.NewString()
//	}
func ValidateRequestID(id string) error {
	if id == "" {
		return fmt.Errorf("request id cannot be empty")
	}
	if len(id) > MaxRequestIDLength {
		return fmt.Errorf("request id too long: %d > %d", len(id), MaxRequestIDLength)
	}
	if !requestIDPattern.MatchString(id) {
		return fmt.Errorf("invalid request id format: %q", id)
	}
	return nil
}

// SanitizeRequestID trims surrounding whitespace and validates id.
// Returns the trimmed ID, or "" and an error if it is unusable.
func SanitizeRequestID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := ValidateRequestID(id); err != nil {
		return "", err
	}
	return id, nil
}
