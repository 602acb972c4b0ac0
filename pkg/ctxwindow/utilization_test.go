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

import (
	"fmt"
	"testing"
)

// TestTracker_Compute_MatchesScenario reproduces concrete scenario 5:
// 10 elements (DOC-1..5, THR-1..5) are provisioned; a response citing only
// DOC-1 and THR-2 yields utilization_rate = 0.2 and an underutilized set of
// the other 8.
func TestTracker_Compute_MatchesScenario(t *testing.T) {
	c := &AgentContext{MaxTokens: 10000}
	for i := 1; i <= 5; i++ {
		c.Doctrinal = append(c.Doctrinal, Element{ID: elementID("DOC", i), Tokens: 10, Relevance: 1})
	}
	for i := 1; i <= 5; i++ {
		c.Situational = append(c.Situational, Element{ID: elementID("THR", i), Tokens: 10, Relevance: 1})
	}

	tracker := NewTracker(nil)
	u := tracker.Compute(c, "Per DOC-1, the threat described in THR-2 requires immediate response.")

	if u.Provisioned != 10 {
		t.Fatalf("expected 10 provisioned elements, got %d", u.Provisioned)
	}
	if u.UtilizationRate != 0.2 {
		t.Fatalf("expected utilization_rate = 0.2, got %v", u.UtilizationRate)
	}
	if len(u.Used) != 2 {
		t.Fatalf("expected 2 used elements, got %d: %v", len(u.Used), u.Used)
	}
	if len(u.Underutilized) != 8 {
		t.Fatalf("expected 8 underutilized elements, got %d: %v", len(u.Underutilized), u.Underutilized)
	}
}

func elementID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}
