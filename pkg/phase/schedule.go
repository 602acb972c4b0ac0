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
	"time"
)

// PhaseSpec is the fixed, per-phase configuration loaded from the cycle
// schedule config tree: duration, offset from cycle start, the agents
// permitted to act, and whether the phase is critical (non-skippable).
type PhaseSpec struct {
	Phase         Phase    `yaml:"phase" json:"phase"`
	DurationHours float64  `yaml:"duration_hours" json:"duration_hours"`
	OffsetHours   float64  `yaml:"offset_hours" json:"offset_hours"`
	// ActiveAgentIDs restricts the phase to the named agents. Leave it
	// empty for a phase with no participation restriction — every
	// registered agent is considered active in it, including agents
	// registered after the cycle started.
	ActiveAgentIDs []string `yaml:"active_agent_ids" json:"active_agent_ids"`
	Critical       bool     `yaml:"critical" json:"critical"`
}

// Duration returns the phase's configured duration as a time.Duration.
func (s PhaseSpec) Duration() time.Duration {
	return time.Duration(s.DurationHours * float64(time.Hour))
}

// Schedule is the full six-phase cycle schedule: one PhaseSpec per phase,
// indexed for O(1) lookup during tick/advance.
type Schedule struct {
	specs map[Phase]PhaseSpec
}

// NewSchedule validates and indexes the given specs. All six phases must
// be present exactly once; PHASE3 and PHASE4 must be marked Critical
// regardless of what the config says, since spec compliance does not
// allow a deployment to un-mark a critical phase.
func NewSchedule(specs []PhaseSpec) (*Schedule, error) {
	if len(specs) != len(AllPhases) {
		return nil, fmt.Errorf("phase: schedule must declare exactly %d phases, got %d", len(AllPhases), len(specs))
	}
	indexed := make(map[Phase]PhaseSpec, len(specs))
	for _, s := range specs {
		if !s.Phase.Valid() {
			return nil, fmt.Errorf("phase: schedule names invalid phase %v", s.Phase)
		}
		if _, dup := indexed[s.Phase]; dup {
			return nil, fmt.Errorf("phase: schedule declares %v more than once", s.Phase)
		}
		if s.Phase.Critical() && !s.Critical {
			s.Critical = true
		}
		indexed[s.Phase] = s
	}
	for _, p := range AllPhases {
		if _, ok := indexed[p]; !ok {
			return nil, fmt.Errorf("phase: schedule is missing %v", p)
		}
	}
	return &Schedule{specs: indexed}, nil
}

// Spec returns the configuration for p. Callers may assume p is valid
// once NewSchedule has succeeded.
func (s *Schedule) Spec(p Phase) PhaseSpec {
	return s.specs[p]
}

// DefaultSchedule returns the representative 72-hour, six-phase schedule
// described in the spec's glossary (12 hours per phase), with PHASE3 and
// PHASE4 marked critical. Deployments override this via config.
func DefaultSchedule() *Schedule {
	sched, err := NewSchedule([]PhaseSpec{
		{Phase: Phase1, DurationHours: 12, OffsetHours: 0},
		{Phase: Phase2, DurationHours: 12, OffsetHours: 12},
		{Phase: Phase3, DurationHours: 12, OffsetHours: 24, Critical: true},
		{Phase: Phase4, DurationHours: 12, OffsetHours: 36, Critical: true},
		{Phase: Phase5, DurationHours: 12, OffsetHours: 48},
		{Phase: Phase6, DurationHours: 12, OffsetHours: 60},
	})
	if err != nil {
		// DefaultSchedule is exercised by every call site's zero-config
		// path; a failure here is a bug in the literal above, not a
		// runtime condition callers can recover from.
		panic(err)
	}
	return sched
}
