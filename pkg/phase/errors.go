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

import "fmt"

// AlreadyActiveError is returned by Orchestrator.StartCycle when a cycle is
// already current. A started cycle stays current: after PHASE6 it wraps to
// PHASE1 under the same CycleID, and the Orchestrator has no stop method.
type AlreadyActiveError struct {
	ActiveCycleID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("phase: cycle %q is already active", e.ActiveCycleID)
}

// IllegalTransitionError is returned by Orchestrator.Advance,
// Orchestrator.AdvanceWithOverride and Orchestrator.Tick when the cycle's
// current phase has no successor in the phase graph. A missing cycle is
// reported as NoActiveCycleError instead.
type IllegalTransitionError struct {
	From   Phase
	To     Phase
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("phase: illegal transition %v -> %v: %s", e.From, e.To, e.Reason)
}

// NoActiveCycleError is returned by operations that require a current cycle
// (CurrentPhase, Advance, Tick) when none has been started.
type NoActiveCycleError struct{}

func (e *NoActiveCycleError) Error() string {
	return "phase: no active cycle"
}
