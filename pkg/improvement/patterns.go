// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package improvement

import (
	"fmt"
	"sort"
)

// defaultMinCardinality and defaultMinCycleSpan are the two independent
// triggers for promoting a repeated flag into a recommendation: either five
// or more flags sharing a (workflow, type) pair, or the pair recurring
// across at least two distinct cycles.
const (
	defaultMinCardinality = 5
	defaultMinCycleSpan   = 2
)

// Pattern is one emitted recommendation from analyzing accumulated flags.
type Pattern struct {
	Workflow       string
	Type           InefficiencyType
	Evidence       []string
	CycleCount     int
	SuggestedAction string
}

type patternKey struct {
	workflow string
	kind     InefficiencyType
}

// AnalyzePatterns groups flags by (workflow, type) and promotes any group
// meeting either threshold to a Pattern. Pass 0 for either threshold to use
// the defaults (cardinality 5, cycle span 2).
func AnalyzePatterns(flags []Flag, minCardinality, minCycleSpan int) []Pattern {
	if minCardinality <= 0 {
		minCardinality = defaultMinCardinality
	}
	if minCycleSpan <= 0 {
		minCycleSpan = defaultMinCycleSpan
	}

	type group struct {
		evidence []string
		cycles   map[string]struct{}
	}
	groups := make(map[patternKey]*group)
	var order []patternKey
	for _, f := range flags {
		key := patternKey{workflow: f.Workflow, kind: f.Type}
		g, ok := groups[key]
		if !ok {
			g = &group{cycles: make(map[string]struct{})}
			groups[key] = g
			order = append(order, key)
		}
		g.evidence = append(g.evidence, f.ID())
		g.cycles[f.CycleID] = struct{}{}
	}

	var patterns []Pattern
	for _, key := range order {
		g := groups[key]
		if len(g.evidence) < minCardinality && len(g.cycles) < minCycleSpan {
			continue
		}
		patterns = append(patterns, Pattern{
			Workflow:        key.workflow,
			Type:            key.kind,
			Evidence:        g.evidence,
			CycleCount:      len(g.cycles),
			SuggestedAction: suggestedAction(key.kind, key.workflow),
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Workflow != patterns[j].Workflow {
			return patterns[i].Workflow < patterns[j].Workflow
		}
		return patterns[i].Type < patterns[j].Type
	})
	return patterns
}

func suggestedAction(kind InefficiencyType, workflow string) string {
	switch kind {
	case TimingConstraint:
		return fmt.Sprintf("re-baseline the expected duration for %q or add staffing", workflow)
	case InformationGap:
		return fmt.Sprintf("widen information-access policy or add a backend for %q", workflow)
	case RedundantCoordination:
		return fmt.Sprintf("introduce a standing coordination channel for %q", workflow)
	case DoctrineContradiction:
		return fmt.Sprintf("reconcile doctrine sources referenced by %q", workflow)
	case AutomationOpportunity:
		return fmt.Sprintf("automate the manual steps in %q", workflow)
	case DeconflictionIssue:
		return fmt.Sprintf("add a pre-allocation conflict check to %q", workflow)
	case ResourceBottleneck:
		return fmt.Sprintf("increase reservation capacity backing %q", workflow)
	default:
		return fmt.Sprintf("review %q for recurring %s flags", workflow, kind)
	}
}
