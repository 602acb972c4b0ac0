// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that cross
// a trust boundary: agent IDs and action names loaded from config or bound
// from an HTTP request body, and element IDs a backend adapter hands back
// to be threaded into audit log entries and provisioned context citations.
// None of these strings are ever interpolated into a query string this
// package's callers build by hand, but they are logged, compared, and
// surfaced back to other agents verbatim, so a malformed value here is a
// data-integrity problem even without an injection vector.
package validation

import (
	"fmt"
	"regexp"
)

// identifierPattern matches the agent ID and action name shape: lowercase
// snake_case, 1-64 characters.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// elementIDPattern matches the element ID shape a backend must return for
// citation tracking: an uppercase alphanumeric prefix, a hyphen, and a
// numeric suffix (e.g. "THR-1042").
var elementIDPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}-[0-9]{1,12}$`)

// ValidateAgentID checks an agent ID's shape. Used wherever an ID crosses
// from config or an HTTP request into the registry.
func ValidateAgentID(id string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("validation: invalid agent id %q: must be lowercase snake_case, 1-64 chars", id)
	}
	return nil
}

// ValidateActionName checks an action name's shape, the same as an agent ID.
func ValidateActionName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("validation: invalid action name %q: must be lowercase snake_case, 1-64 chars", name)
	}
	return nil
}

// ValidateElementID checks the shape of an element ID a backend returned.
// A backend that can't produce a citable ID in this shape is treated as
// misbehaving, not as emitting an unfortunately-formatted but valid record.
func ValidateElementID(id string) error {
	if !elementIDPattern.MatchString(id) {
		return fmt.Errorf("validation: invalid element id %q: must be PREFIX-NUMBER, e.g. THR-1042", id)
	}
	return nil
}

// ValidateElementIDs validates every id in ids, returning an error listing
// all of the invalid ones rather than failing on the first.
func ValidateElementIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateElementID(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("validation: invalid element ids: %v", invalid)
	}
	return nil
}
