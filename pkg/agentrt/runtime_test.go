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
	"testing"
	"time"

	"github.com/aetheros-project/aetheros/pkg/aethererr"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/aetheros-project/aetheros/pkg/store"
)

func scenarioSchedule(t *testing.T) *phase.Schedule {
	t.Helper()
	sched, err := phase.NewSchedule([]phase.PhaseSpec{
		{Phase: phase.Phase1, DurationHours: 12, ActiveAgentIDs: []string{"ems_strategy"}},
		{Phase: phase.Phase2, DurationHours: 12},
		{Phase: phase.Phase3, DurationHours: 12, ActiveAgentIDs: []string{"ew_planner", "spectrum_manager"}},
		{Phase: phase.Phase4, DurationHours: 12},
		{Phase: phase.Phase5, DurationHours: 12, ActiveAgentIDs: []string{"spectrum_manager"}},
		{Phase: phase.Phase6, DurationHours: 12},
	})
	if err != nil {
		t.Fatalf("NewSchedule failed: %v", err)
	}
	return sched
}

// TestRuntime_ActivationByPhase reproduces concrete scenario 1: registering
// {ems_strategy, spectrum_manager, ew_planner, ato_producer, assessment},
// starting a cycle activates only ems_strategy; advancing to PHASE3 activates
// {ew_planner, spectrum_manager} and a message from ems_strategy (now
// inactive) to ew_planner fails with NotActive.
func TestRuntime_ActivationByPhase(t *testing.T) {
	orch := phase.NewOrchestrator(scenarioSchedule(t), nil)
	rt := New(orch, nil, nil, nil, nil, nil)
	for _, id := range []string{"ems_strategy", "spectrum_manager", "ew_planner", "ato_producer", "assessment"} {
		rt.RegisterAgent(id)
	}

	start := time.Unix(0, 0)
	if _, err := orch.StartCycle("C1", start); err != nil {
		t.Fatalf("StartCycle failed: %v", err)
	}
	if !orch.IsAgentActive("ems_strategy") {
		t.Fatal("expected ems_strategy active in PHASE1")
	}
	if orch.IsAgentActive("ew_planner") {
		t.Fatal("expected ew_planner inactive in PHASE1")
	}

	if _, _, err := orch.Advance(start.Add(12 * time.Hour)); err != nil {
		t.Fatalf("Advance to PHASE2 failed: %v", err)
	}
	if _, _, err := orch.Advance(start.Add(24 * time.Hour)); err != nil {
		t.Fatalf("Advance to PHASE3 failed: %v", err)
	}
	if !orch.IsAgentActive("ew_planner") || !orch.IsAgentActive("spectrum_manager") {
		t.Fatal("expected ew_planner and spectrum_manager active in PHASE3")
	}
	if orch.IsAgentActive("ems_strategy") {
		t.Fatal("expected ems_strategy inactive once PHASE3 begins")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := rt.SendMessage(ctx, "ems_strategy", "ew_planner", "coordinate", nil)
	var notActive *aethererr.NotActive
	if err == nil {
		t.Fatal("expected NotActive since ems_strategy is no longer active")
	}
	if !errors.As(err, &notActive) {
		t.Fatalf("expected a *aethererr.NotActive, got %T: %v", err, err)
	}
}

func TestRuntime_SendMessage_DeliversAndReplies(t *testing.T) {
	orch := phase.NewOrchestrator(scenarioSchedule(t), nil)
	rt := New(orch, nil, nil, nil, nil, nil)
	rt.RegisterAgent("ew_planner")
	rt.RegisterAgent("spectrum_manager")

	start := time.Unix(0, 0)
	if _, err := orch.StartCycle("C1", start); err != nil {
		t.Fatalf("StartCycle failed: %v", err)
	}
	if _, _, err := orch.Advance(start.Add(12 * time.Hour)); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if _, _, err := orch.Advance(start.Add(24 * time.Hour)); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	go func() {
		msg := <-rt.Inbox("spectrum_manager")
		msg.Reply("ack", nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := rt.SendMessage(ctx, "ew_planner", "spectrum_manager", "request_allocation", "2400-2500MHz")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply != "ack" {
		t.Fatalf("expected reply %q, got %v", "ack", reply)
	}
}

func TestRuntime_SendMessage_RaisesRedundantCoordinationFlag(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()
	flagLog := improvement.NewLog(db)

	orch := phase.NewOrchestrator(scenarioSchedule(t), nil)
	rt := New(orch, nil, nil, nil, orch, flagLog)
	rt.RegisterAgent("ew_planner")
	rt.RegisterAgent("spectrum_manager")

	start := time.Unix(0, 0)
	if _, err := orch.StartCycle("C1", start); err != nil {
		t.Fatalf("StartCycle failed: %v", err)
	}
	if _, _, err := orch.Advance(start.Add(12 * time.Hour)); err != nil {
		t.Fatalf("Advance to PHASE2 failed: %v", err)
	}
	if _, _, err := orch.Advance(start.Add(24 * time.Hour)); err != nil {
		t.Fatalf("Advance to PHASE3 failed: %v", err)
	}

	go func() {
		for i := 0; i < 3; i++ {
			msg := <-rt.Inbox("spectrum_manager")
			msg.Reply("ack", nil)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if _, err := rt.SendMessage(ctx, "ew_planner", "spectrum_manager", "request_allocation", nil); err != nil {
			t.Fatalf("SendMessage #%d failed: %v", i, err)
		}
	}

	flags, err := flagLog.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("expected exactly one flag at the 3rd round trip, got %d", len(flags))
	}
	if flags[0].Type != improvement.RedundantCoordination {
		t.Fatalf("expected REDUNDANT_COORDINATION, got %v", flags[0].Type)
	}
}
