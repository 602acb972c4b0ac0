// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llmadapter

import "regexp"

// elementIDPattern matches context-element IDs (DOC-, THR-, MSN-, HIST-,
// COLL-, ...): an uppercase prefix, a hyphen, and an alphanumeric tail.
// Unlike pkg/ctxwindow's pattern it does not accept lowercase prefixes.
var elementIDPattern = regexp.MustCompile(`\b[A-Z]+-[A-Za-z0-9]+\b`)

// ExtractCitations scans every free-text field and returns the distinct
// element IDs found, in first-seen order. Used to populate a result's
// referenced-elements list even when the schema has no explicit citations
// field of its own.
func ExtractCitations(fields ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, field := range fields {
		for _, match := range elementIDPattern.FindAllString(field, -1) {
			if seen[match] {
				continue
			}
			seen[match] = true
			out = append(out, match)
		}
	}
	return out
}
