// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package broker

import (
	"math"

	"github.com/aetheros-project/aetheros/pkg/access"
)

// Sanitizer projects records down to what level is allowed to see. Every
// Sanitizer must be total (defined for every record shape the category
// produces) and monotone in level: sanitize(r, L1) discloses no more than
// sanitize(r, L2) whenever L1 <= L2.
type Sanitizer interface {
	Sanitize(records []Record, level access.AccessLevel) []Record
}

// SanitizerFunc adapts a plain function to Sanitizer.
type SanitizerFunc func(records []Record, level access.AccessLevel) []Record

func (f SanitizerFunc) Sanitize(records []Record, level access.AccessLevel) []Record {
	return f(records, level)
}

// IdentitySanitizer passes records through unchanged. It is trivially
// monotone and is the default for any category whose policy does not set
// Sanitize.
var IdentitySanitizer Sanitizer = SanitizerFunc(func(records []Record, level access.AccessLevel) []Record {
	return records
})

// coordinatePrecision rounds lat/lon to the given number of decimal places,
// which at the equator is roughly:
//
//	0 decimals  ~111km   1 decimal ~11km   2 decimals ~1.1km
func coordinatePrecision(level access.AccessLevel) int {
	switch {
	case level >= access.SENSITIVE:
		return -1 // -1 signals "do not round: return exact value"
	case level >= access.OPERATIONAL:
		return 1
	default:
		return 0
	}
}

func roundTo(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(value*scale) / scale
}

// ThreatSanitizer coarsens precise lat/lon fields below SENSITIVE, per
// concrete scenario 3: a SENSITIVE-or-above caller sees exact coordinates,
// everyone else sees them rounded. Every other field passes through
// unchanged, so both responses share identical non-location fields.
var ThreatSanitizer Sanitizer = SanitizerFunc(func(records []Record, level access.AccessLevel) []Record {
	decimals := coordinatePrecision(level)
	if decimals < 0 {
		return records
	}
	out := make([]Record, len(records))
	for i, r := range records {
		fields := make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v
		}
		if lat, ok := fields["lat"].(float64); ok {
			fields["lat"] = roundTo(lat, decimals)
		}
		if lon, ok := fields["lon"].(float64); ok {
			fields["lon"] = roundTo(lon, decimals)
		}
		out[i] = Record{ElementID: r.ElementID, Fields: fields}
	}
	return out
})

// MissionSanitizer strips asset IDs below CRITICAL, since mission plans tie
// specific assets to specific operations and that linkage is itself
// sensitive below the highest access tier.
var MissionSanitizer Sanitizer = SanitizerFunc(func(records []Record, level access.AccessLevel) []Record {
	if level >= access.CRITICAL {
		return records
	}
	out := make([]Record, len(records))
	for i, r := range records {
		fields := make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			if k == "asset_ids" {
				continue
			}
			fields[k] = v
		}
		out[i] = Record{ElementID: r.ElementID, Fields: fields}
	}
	return out
})

// SanitizerTable maps InformationCategory to its Sanitizer, falling back to
// IdentitySanitizer for any category not explicitly registered.
type SanitizerTable struct {
	byCategory map[access.InformationCategory]Sanitizer
}

// NewSanitizerTable builds a table with the given assignments plus the
// built-in defaults for Threat and Mission data.
func NewSanitizerTable(overrides map[access.InformationCategory]Sanitizer) *SanitizerTable {
	t := &SanitizerTable{byCategory: map[access.InformationCategory]Sanitizer{
		access.ThreatData:   ThreatSanitizer,
		access.MissionPlan:  MissionSanitizer,
	}}
	for cat, s := range overrides {
		t.byCategory[cat] = s
	}
	return t
}

// For returns the sanitizer for cat, defaulting to IdentitySanitizer.
func (t *SanitizerTable) For(cat access.InformationCategory) Sanitizer {
	if s, ok := t.byCategory[cat]; ok {
		return s
	}
	return IdentitySanitizer
}
