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
	"testing"
	"time"

	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/aetheros-project/aetheros/pkg/store"
)

// TestExecuteDoctrinalProcedure_RaisesTimingFlag reproduces concrete
// scenario 4: a procedure declared at expected_hours=4 that takes 6
// simulated hours raises one TIMING_CONSTRAINT flag with time_wasted=2.
func TestExecuteDoctrinalProcedure_RaisesTimingFlag(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()
	flagLog := improvement.NewLog(db)

	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }

	call := ProcedureCall{CycleID: "C1", Phase: phase.Phase3, AgentID: "ew_planner", Workflow: "Plan EW Missions", Name: "deconflict_spectrum", ExpectedHours: 4}
	_, err = ExecuteDoctrinalProcedure(context.Background(), flagLog, call, now, func(ctx context.Context) (any, error) {
		clock = clock.Add(6 * time.Hour)
		return "done", nil
	})
	if err != nil {
		t.Fatalf("ExecuteDoctrinalProcedure failed: %v", err)
	}

	flags, err := flagLog.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("expected exactly one flag, got %d", len(flags))
	}
	f := flags[0]
	if f.Type != improvement.TimingConstraint {
		t.Fatalf("expected TIMING_CONSTRAINT, got %v", f.Type)
	}
	if f.TimeWastedHours == nil || *f.TimeWastedHours != 2 {
		t.Fatalf("expected time_wasted_hours = 2, got %v", f.TimeWastedHours)
	}
}

func TestExecuteDoctrinalProcedure_BelowThresholdDoesNotFlag(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()
	flagLog := improvement.NewLog(db)

	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }

	call := ProcedureCall{CycleID: "C1", Phase: phase.Phase3, AgentID: "ew_planner", Workflow: "Plan EW Missions", Name: "deconflict_spectrum", ExpectedHours: 4}
	_, err = ExecuteDoctrinalProcedure(context.Background(), flagLog, call, now, func(ctx context.Context) (any, error) {
		clock = clock.Add(5*time.Hour + 6*time.Minute) // 5.1h, below 1.3x
		return "done", nil
	})
	if err != nil {
		t.Fatalf("ExecuteDoctrinalProcedure failed: %v", err)
	}

	flags, err := flagLog.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("expected no flags below the 1.3x threshold, got %d", len(flags))
	}
}

func TestExecuteDoctrinalProcedure_RaisesAutomationOpportunityFlag(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()
	flagLog := improvement.NewLog(db)

	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }

	call := ProcedureCall{
		CycleID: "C1", Phase: phase.Phase3, AgentID: "ew_planner", Workflow: "Plan EW Missions",
		Name: "deconflict_spectrum", ExpectedHours: 4, ManualSteps: automationStepThreshold + 1,
	}
	_, err = ExecuteDoctrinalProcedure(context.Background(), flagLog, call, now, func(ctx context.Context) (any, error) {
		clock = clock.Add(1 * time.Hour)
		return "done", nil
	})
	if err != nil {
		t.Fatalf("ExecuteDoctrinalProcedure failed: %v", err)
	}

	flags, err := flagLog.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("expected exactly one flag, got %d", len(flags))
	}
	if flags[0].Type != improvement.AutomationOpportunity {
		t.Fatalf("expected AUTOMATION_OPPORTUNITY, got %v", flags[0].Type)
	}
}
