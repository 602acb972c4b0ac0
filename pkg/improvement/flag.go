// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package improvement implements the Process-Improvement Logger: an
// append-only, hash-chained flag log recording deviations from doctrinal
// expectations, plus the auto-flag rules and the pattern-mining pass over
// accumulated flags.
package improvement

import (
	"fmt"
	"time"

	"github.com/aetheros-project/aetheros/pkg/phase"
)

// InefficiencyType is the fixed taxonomy of detected deviations.
type InefficiencyType string

const (
	TimingConstraint      InefficiencyType = "TIMING_CONSTRAINT"
	InformationGap        InefficiencyType = "INFORMATION_GAP"
	RedundantCoordination InefficiencyType = "REDUNDANT_COORDINATION"
	DoctrineContradiction InefficiencyType = "DOCTRINE_CONTRADICTION"
	AutomationOpportunity InefficiencyType = "AUTOMATION_OPPORTUNITY"
	DeconflictionIssue    InefficiencyType = "DECONFLICTION_ISSUE"
	ResourceBottleneck    InefficiencyType = "RESOURCE_BOTTLENECK"
)

// Flag is one append-only process-improvement record.
type Flag struct {
	Sequence             int64            `json:"sequence"`
	CycleID              string           `json:"cycle_id"`
	Phase                phase.Phase      `json:"phase"`
	AgentID              string           `json:"agent_id"`
	Workflow             string           `json:"workflow"`
	Type                 InefficiencyType `json:"type"`
	Description          string           `json:"description"`
	TimeWastedHours      *float64         `json:"time_wasted_hours,omitempty"`
	SuggestedImprovement string           `json:"suggested_improvement"`
	CreatedAt            time.Time        `json:"created_at"`
	PrevHash             string           `json:"prev_hash"`
	EntryHash            string           `json:"entry_hash"`
}

// ID renders a stable, sequence-derived flag identifier for cross-referencing
// from pattern-mining evidence.
func (f Flag) ID() string {
	return fmt.Sprintf("FLAG-%d", f.Sequence)
}

func (f Flag) fields() map[string]any {
	fields := map[string]any{
		"cycle_id":              f.CycleID,
		"phase":                 f.Phase.String(),
		"agent_id":              f.AgentID,
		"workflow":              f.Workflow,
		"type":                  string(f.Type),
		"description":           f.Description,
		"suggested_improvement": f.SuggestedImprovement,
		"created_at":            f.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if f.TimeWastedHours != nil {
		fields["time_wasted_hours"] = *f.TimeWastedHours
	}
	return fields
}

// timingThreshold is the spec's 1.3x multiplier: elapsed must exceed
// 1.3 * expected before a TIMING_CONSTRAINT flag is warranted.
const timingThreshold = 1.3

// redundantCoordinationThreshold: 3 or more round trips to the same agent
// for one logical decision.
const redundantCoordinationThreshold = 3

// TimingConstraintApplies reports whether elapsedHours against
// expectedHours crosses the 1.3x threshold, and if so the hours wasted.
// Per concrete scenario 4: expected=4, elapsed=6 flags with time_wasted=2;
// elapsed=5.1 (1.275x) does not flag.
func TimingConstraintApplies(expectedHours, elapsedHours float64) (applies bool, timeWastedHours float64) {
	if expectedHours <= 0 {
		return false, 0
	}
	if elapsedHours <= expectedHours*timingThreshold {
		return false, 0
	}
	return true, elapsedHours - expectedHours
}

// RedundantCoordinationApplies reports whether roundTrips to the same agent
// for one logical decision warrants a flag.
func RedundantCoordinationApplies(roundTrips int) bool {
	return roundTrips >= redundantCoordinationThreshold
}

// AutomationOpportunityApplies reports whether manualSteps for a recognized
// automatable pattern exceeds threshold.
func AutomationOpportunityApplies(manualSteps, threshold int) bool {
	return manualSteps > threshold
}

// DeconflictionIssueApplies reports whether a cycle's spectrum conflict rate
// exceeds threshold.
func DeconflictionIssueApplies(conflictRate, threshold float64) bool {
	return conflictRate > threshold
}

// ResourceBottleneckApplies reports whether asset-reservation denials within
// a cycle exceed threshold.
func ResourceBottleneckApplies(denials, threshold int) bool {
	return denials > threshold
}
