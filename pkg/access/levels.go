// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package access defines the data model consulted by every authorization
// and sanitization decision in AetherOS: access levels, information
// categories, agent profiles, and the policy records that bind them.
//
// # Description
//
// AccessLevel is a totally ordered rank compared against a per-category
// minimum. InformationCategory is a closed enumeration, each member
// carrying a CategoryPolicy describing how the Information Broker should
// treat it (minimum level, need-to-know, phase restriction, whether to
// sanitize and audit). AgentProfile is the immutable per-agent record the
// Authorization Engine and Information Broker both read.
package access

import (
	"encoding/json"
	"fmt"
)

// AccessLevel is a totally ordered rank. Comparison (>=) against a
// category's minimum is the sole authorization predicate for information
// access; there is no other notion of "permission" at this layer.
type AccessLevel int

const (
	// PUBLIC is the lowest access rank: no restriction.
	PUBLIC AccessLevel = iota + 1
	// INTERNAL is for internal-only, non-sensitive information.
	INTERNAL
	// OPERATIONAL is for day-to-day mission-relevant information.
	OPERATIONAL
	// SENSITIVE is for information that requires a clearance check.
	SENSITIVE
	// CRITICAL is the highest access rank.
	CRITICAL
)

// String renders the human-readable name of the level.
func (l AccessLevel) String() string {
	switch l {
	case PUBLIC:
		return "PUBLIC"
	case INTERNAL:
		return "INTERNAL"
	case OPERATIONAL:
		return "OPERATIONAL"
	case SENSITIVE:
		return "SENSITIVE"
	case CRITICAL:
		return "CRITICAL"
	default:
		return fmt.Sprintf("AccessLevel(%d)", int(l))
	}
}

// Valid reports whether l is one of the five defined ranks.
func (l AccessLevel) Valid() bool {
	return l >= PUBLIC && l <= CRITICAL
}

// ParseAccessLevel maps a configuration-file string to an AccessLevel.
// Returns an error for anything outside the closed set, the same way
// ConfidenceLevel.UnmarshalYAML rejects unrecognized values rather than
// defaulting silently.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case "PUBLIC":
		return PUBLIC, nil
	case "INTERNAL":
		return INTERNAL, nil
	case "OPERATIONAL":
		return OPERATIONAL, nil
	case "SENSITIVE":
		return SENSITIVE, nil
	case "CRITICAL":
		return CRITICAL, nil
	default:
		return 0, fmt.Errorf("access: invalid access level %q", s)
	}
}

// UnmarshalYAML lets AccessLevel appear as a plain string in policy and
// profile config files while still rejecting unknown values at load time.
func (l *AccessLevel) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseAccessLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML renders the level back to its string name.
func (l AccessLevel) MarshalYAML() (any, error) {
	return l.String(), nil
}

// UnmarshalJSON mirrors UnmarshalYAML for the HTTP transport, which binds
// request bodies as JSON rather than YAML.
func (l *AccessLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAccessLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON mirrors MarshalYAML.
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}
