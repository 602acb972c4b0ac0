// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agentrt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

// ProcedureFunc is the body of a doctrinal procedure: a unit of work the
// agent performs whose duration is measured against an expected-hours
// baseline.
type ProcedureFunc func(ctx context.Context) (any, error)

// ProcedureCall describes the metadata ExecuteDoctrinalProcedure needs to
// instrument a call and, if warranted, raise an auto-flag.
type ProcedureCall struct {
	CycleID       string
	Phase         phase.Phase
	AgentID       string
	Workflow      string
	Name          string
	ExpectedHours float64

	// ManualSteps is the number of manual steps this procedure took, for
	// procedures that follow a recognized automatable pattern. Zero means
	// the call doesn't track step count and the AUTOMATION_OPPORTUNITY
	// check is skipped.
	ManualSteps int
}

// automationStepThreshold is a representative default for "too many manual
// steps for an automatable pattern"; the spec names no normative value.
const automationStepThreshold = 5

// ExecuteDoctrinalProcedure wraps fn: it records t_start and t_end, computes
// elapsed/expected_hours, and raises a TIMING_CONSTRAINT auto-flag through
// flagLog when either the 1.3x threshold is crossed or fn's context is
// cancelled before it returns (cancellation always flags, per the
// reason "cancelled", regardless of the threshold). now is the clock used
// for both timestamps, so tests can supply a fake one.
func ExecuteDoctrinalProcedure(ctx context.Context, flagLog *improvement.Log, call ProcedureCall, now func() time.Time, fn ProcedureFunc) (any, error) {
	start := now()
	result, err := fn(ctx)
	end := now()
	elapsedHours := end.Sub(start).Hours()

	cancelled := errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
	switch {
	case cancelled:
		wasted := elapsedHours
		raiseTimingFlag(flagLog, call, "procedure cancelled before completion", &wasted, end)
	default:
		if applies, wasted := improvement.TimingConstraintApplies(call.ExpectedHours, elapsedHours); applies {
			raiseTimingFlag(flagLog, call, fmt.Sprintf("%q ran %.2fh against a %.2fh expectation", call.Name, elapsedHours, call.ExpectedHours), &wasted, end)
		}
	}

	if call.ManualSteps > 0 && improvement.AutomationOpportunityApplies(call.ManualSteps, automationStepThreshold) {
		raiseAutomationFlag(flagLog, call, end)
	}
	return result, err
}

func raiseAutomationFlag(flagLog *improvement.Log, call ProcedureCall, now time.Time) {
	if flagLog == nil {
		return
	}
	description := fmt.Sprintf("%q took %d manual steps, above the %d-step automation threshold", call.Name, call.ManualSteps, automationStepThreshold)
	_, _ = flagLog.Append(call.CycleID, call.Phase, call.AgentID, call.Workflow, improvement.AutomationOpportunity,
		description, nil, "script or template the repeated manual steps", now)
}

func raiseTimingFlag(flagLog *improvement.Log, call ProcedureCall, description string, wasted *float64, now time.Time) {
	if flagLog == nil {
		return
	}
	_, _ = flagLog.Append(call.CycleID, call.Phase, call.AgentID, call.Workflow, improvement.TimingConstraint,
		description, wasted, "re-baseline the expected duration or add staffing", now)
}
