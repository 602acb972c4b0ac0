// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phase implements the ATO-cycle phase orchestrator: a
// deterministic, time-driven state machine that activates and deactivates
// agents per phase and publishes phase-transition events.
//
// # Architecture
//
// Six phases form a strictly linear graph with a single cycle-restart
// edge from PHASE6 back to PHASE1. Transitions are computed from
// `now - phase_start`, never from accumulated deltas, so clock skew
// between ticks cannot compound into a missed or duplicated transition
// (grounded on ttl.ClockChecker's anchor-based time validation).
package phase

import (
	"encoding/json"
	"fmt"
)

// Phase is the closed, ordered enumeration of the six ATO-cycle stages.
type Phase int

const (
	Phase1 Phase = iota + 1
	Phase2
	Phase3
	Phase4
	Phase5
	Phase6
)

// String renders the phase's canonical name.
func (p Phase) String() string {
	if p < Phase1 || p > Phase6 {
		return fmt.Sprintf("PHASE?(%d)", int(p))
	}
	return fmt.Sprintf("PHASE%d", int(p))
}

// Valid reports whether p is one of the six defined phases.
func (p Phase) Valid() bool {
	return p >= Phase1 && p <= Phase6
}

// Next returns the phase that follows p under the fixed transition graph.
// PHASE6 wraps to PHASE1 (the single cycle-restart edge); every other
// phase advances by one.
func (p Phase) Next() (Phase, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("phase: %v is not a valid phase", p)
	}
	if p == Phase6 {
		return Phase1, nil
	}
	return p + 1, nil
}

// Critical reports whether p is a critical phase. Critical phases
// (PHASE3, PHASE4) may never be skipped, even with an override.
func (p Phase) Critical() bool {
	return p == Phase3 || p == Phase4
}

// AllPhases lists the six phases in cycle order.
var AllPhases = []Phase{Phase1, Phase2, Phase3, Phase4, Phase5, Phase6}

// ParsePhase maps a phase's canonical name (e.g. "PHASE1") back to its
// Phase value, rejecting anything outside the closed set.
func ParsePhase(s string) (Phase, error) {
	for _, p := range AllPhases {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("phase: invalid phase name %q", s)
}

// MarshalJSON renders the phase as its canonical name, so HTTP responses
// read "PHASE1" rather than a bare ordinal.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a phase's canonical name in request bodies.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
