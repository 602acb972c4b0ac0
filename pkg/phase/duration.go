// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phase

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// simpleDurationPattern matches shorthand phase/offset durations like
// "12h", "3d", "1w". The schedule loader does not use it: PhaseSpec reads
// only the plain float duration_hours fields.
var simpleDurationPattern = regexp.MustCompile(`^(\d+)(m|h|d|w)$`)

// ParseShorthandHours parses a shorthand duration string ("12h", "3d",
// "1w") into a number of hours. Supported units: m (minutes), h (hours),
// d (days), w (weeks).
func ParseShorthandHours(s string) (float64, error) {
	matches := simpleDurationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("phase: invalid duration shorthand %q (expected e.g. \"12h\", \"3d\", \"1w\")", s)
	}
	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("phase: invalid duration value %q", matches[1])
	}
	switch matches[2] {
	case "m":
		return float64(value) / 60, nil
	case "h":
		return float64(value), nil
	case "d":
		return float64(value) * 24, nil
	case "w":
		return float64(value) * 24 * 7, nil
	default:
		return 0, fmt.Errorf("phase: unsupported duration unit %q", matches[2])
	}
}

// ElapsedSince computes the elapsed duration from anchor to the supplied
// now, never accumulating successive tick deltas. This is
// the anchor-based arithmetic the tick contract requires: transitions are
// computed from (now - phase_start), so a late or skipped tick never
// compounds into a missed transition.
func ElapsedSince(anchor time.Time, now time.Time) time.Duration {
	return now.Sub(anchor)
}
