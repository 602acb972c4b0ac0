// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ctxwindow

import "regexp"

// citationPattern matches element-ID-shaped tokens in free text, e.g.
// "DOC-1" or "THR-2".
var citationPattern = regexp.MustCompile(`\b[A-Za-z]+-[A-Za-z0-9]+\b`)

// defaultUnderutilizedThreshold is the semantic-similarity score below
// which an element not literally cited is still considered unused.
const defaultUnderutilizedThreshold = 0.5

// SimilarityScorer is the optional second usage signal: semantic similarity
// between an element's content and the agent's response text. Nil is a
// valid Tracker configuration — utilization then degrades gracefully to
// literal ID-citation matching alone.
type SimilarityScorer interface {
	Score(elementContent, responseText string) float64
}

// Utilization is the result of scoring one AgentContext against the
// response text it informed.
type Utilization struct {
	Provisioned    int
	Used           []string
	Underutilized  []string
	UtilizationRate float64
}

// Tracker scores utilization of a provisioned context window.
type Tracker struct {
	Similarity SimilarityScorer
	Threshold  float64
}

// NewTracker builds a Tracker. similarity may be nil.
func NewTracker(similarity SimilarityScorer) *Tracker {
	return &Tracker{Similarity: similarity, Threshold: defaultUnderutilizedThreshold}
}

// Compute scores every element of c's window against responseText using
// both signals: literal ID citation, and (when a SimilarityScorer is
// configured) semantic similarity at or above Threshold.
func (t *Tracker) Compute(c *AgentContext, responseText string) Utilization {
	cited := make(map[string]bool)
	for _, tok := range citationPattern.FindAllString(responseText, -1) {
		cited[tok] = true
	}

	provisioned := c.Provisioned()
	var used, underutilized []string
	for _, e := range provisioned {
		if cited[e.ID] {
			used = append(used, e.ID)
			continue
		}
		if t.Similarity != nil && t.Similarity.Score(e.Content, responseText) >= t.Threshold {
			used = append(used, e.ID)
			continue
		}
		underutilized = append(underutilized, e.ID)
	}

	rate := 0.0
	if len(provisioned) > 0 {
		rate = float64(len(used)) / float64(len(provisioned))
	}
	return Utilization{
		Provisioned:     len(provisioned),
		Used:            used,
		Underutilized:   underutilized,
		UtilizationRate: rate,
	}
}
