// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authz

import (
	"context"
	"testing"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/aetheros-project/aetheros/pkg/store"
)

// flipFlopDoctrine alternates its verdict on every call, for exercising
// DOCTRINE_CONTRADICTION detection.
type flipFlopDoctrine struct{ verdict bool }

func (f *flipFlopDoctrine) CheckCompliance(ctx context.Context, actionDescription string) (bool, []string, error) {
	f.verdict = !f.verdict
	return f.verdict, []string{"DOC-1"}, nil
}

type fixedPhaseProvider struct{ p phase.Phase }

func (f fixedPhaseProvider) CurrentPhase() (phase.Phase, error) { return f.p, nil }

func mustRegistry(t *testing.T, profiles ...*access.AgentProfile) *access.Registry {
	t.Helper()
	r, err := access.NewRegistry(profiles)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r
}

func mustPolicyTable(t *testing.T, records ...access.CategoryPolicy) *access.PolicyTable {
	t.Helper()
	tbl, err := access.NewPolicyTable(records)
	if err != nil {
		t.Fatalf("NewPolicyTable failed: %v", err)
	}
	return tbl
}

// TestEngine_AuthorizationMatrix reproduces concrete scenario 2 from the
// spec: an ew_planner denied for an action outside its authorized_actions,
// and a spectrum_manager allowed during PHASE3 but denied the same call
// during PHASE1 with a "phase" factor reason.
func TestEngine_AuthorizationMatrix(t *testing.T) {
	ewPlanner, err := access.NewAgentProfile("ew_planner", "ew_planner", access.SENSITIVE,
		[]access.InformationCategory{access.SpectrumAllocation}, []string{"plan_ew_mission"},
		[]phase.Phase{phase.Phase3}, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	spectrumManager, err := access.NewAgentProfile("spectrum_manager", "spectrum_manager", access.OPERATIONAL,
		[]access.InformationCategory{access.SpectrumAllocation}, []string{"allocate_frequency"},
		[]phase.Phase{phase.Phase3, phase.Phase5}, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry := mustRegistry(t, ewPlanner, spectrumManager)
	policies := mustPolicyTable(t, access.CategoryPolicy{
		Category: access.SpectrumAllocation, MinLevel: access.OPERATIONAL,
	})

	actx := ActionContext{Categories: []access.InformationCategory{access.SpectrumAllocation}}

	phase3Engine := NewEngine(registry, policies, nil, fixedPhaseProvider{phase.Phase3}, nil, nil, nil, nil)
	decision := phase3Engine.Authorize(context.Background(), "ew_planner", "allocate_frequency", actx)
	if decision.Allow {
		t.Fatal("expected ew_planner to be denied allocate_frequency (not in authorized_actions)")
	}

	decision = phase3Engine.Authorize(context.Background(), "spectrum_manager", "allocate_frequency", actx)
	if !decision.Allow {
		t.Fatalf("expected spectrum_manager to be allowed during PHASE3, got reasons: %v", decision.Reasons)
	}

	phase1Engine := NewEngine(registry, policies, nil, fixedPhaseProvider{phase.Phase1}, nil, nil, nil, nil)
	decision = phase1Engine.Authorize(context.Background(), "spectrum_manager", "allocate_frequency", actx)
	if decision.Allow {
		t.Fatal("expected spectrum_manager to be denied during PHASE1")
	}
	found := false
	for _, r := range decision.Reasons {
		if r == "" {
			continue
		}
		if len(r) >= len(factorPhaseAppropriate) && r[:len(factorPhaseAppropriate)] == factorPhaseAppropriate {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a %q factor reason, got: %v", factorPhaseAppropriate, decision.Reasons)
	}
}

// TestEngine_EveryFactorEnumerated verifies the universal invariant: mutating
// one factor to fail flips the decision, and every failing factor appears in
// Reasons rather than stopping at the first.
func TestEngine_EveryFactorEnumerated(t *testing.T) {
	profile, err := access.NewAgentProfile("agent", "role", access.PUBLIC, nil, nil, nil, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry := mustRegistry(t, profile)
	policies := mustPolicyTable(t, access.CategoryPolicy{Category: access.Doctrine, MinLevel: access.CRITICAL})

	engine := NewEngine(registry, policies, nil, fixedPhaseProvider{phase.Phase1}, nil, nil, nil, nil)
	decision := engine.Authorize(context.Background(), "agent", "anything", ActionContext{
		Categories: []access.InformationCategory{access.Doctrine},
	})
	if decision.Allow {
		t.Fatal("expected denial")
	}
	if len(decision.Reasons) < 3 {
		t.Fatalf("expected role, phase, and information_access factors all reported, got: %v", decision.Reasons)
	}
}

// TestEngine_DelegationDepthCappedAtOne covers the Open Question decision
// recorded in DESIGN.md: delegation depth > 1 is rejected.
func TestEngine_DelegationDepthCappedAtOne(t *testing.T) {
	profile, err := access.NewAgentProfile("delegate", "role", access.PUBLIC, nil, []string{"act"}, []phase.Phase{phase.Phase1}, true)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry := mustRegistry(t, profile)
	policies := mustPolicyTable(t)
	engine := NewEngine(registry, policies, nil, fixedPhaseProvider{phase.Phase1}, nil, nil, nil, nil)

	decision := engine.Authorize(context.Background(), "delegate", "act", ActionContext{OnBehalfOf: "other", DelegationDepth: 2})
	if decision.Allow {
		t.Fatal("expected delegation depth 2 to be denied")
	}
}

// TestEngine_EmergencyReallocationRequiresRank covers the edge policy.
func TestEngine_EmergencyReallocationRequiresRank(t *testing.T) {
	profile, err := access.NewAgentProfile("commander", "role", access.PUBLIC, nil, []string{"reallocate"}, []phase.Phase{phase.Phase1}, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry := mustRegistry(t, profile)
	policies := mustPolicyTable(t)
	engine := NewEngine(registry, policies, nil, fixedPhaseProvider{phase.Phase1}, nil, nil, nil, nil)

	decision := engine.Authorize(context.Background(), "commander", "reallocate", ActionContext{EmergencyReallocation: true})
	if decision.Allow {
		t.Fatal("expected denial with no approved_by_rank")
	}

	decision = engine.Authorize(context.Background(), "commander", "reallocate", ActionContext{
		EmergencyReallocation: true, ApprovedByRank: "O-4",
	})
	if decision.Allow {
		t.Fatal("expected denial for rank below O-5")
	}

	decision = engine.Authorize(context.Background(), "commander", "reallocate", ActionContext{
		EmergencyReallocation: true, ApprovedByRank: "O-6",
	})
	if !decision.Allow {
		t.Fatalf("expected allow for rank above O-5, got reasons: %v", decision.Reasons)
	}
}

// TestEngine_RaisesDoctrineContradictionFlag covers a doctrine checker that
// returns opposite verdicts for the same action description within one
// cycle: the second call should raise a DOCTRINE_CONTRADICTION flag.
func TestEngine_RaisesDoctrineContradictionFlag(t *testing.T) {
	profile, err := access.NewAgentProfile("agent", "role", access.PUBLIC, nil, []string{"act"}, []phase.Phase{phase.Phase1}, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry := mustRegistry(t, profile)
	policies := mustPolicyTable(t)

	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()
	flagLog := improvement.NewLog(db)

	engine := NewEngine(registry, policies, nil, fixedPhaseProvider{phase.Phase1}, &flipFlopDoctrine{}, nil, func() string { return "C1" }, flagLog)

	actx := ActionContext{ActionDescription: "reroute spectrum allocation"}
	engine.Authorize(context.Background(), "agent", "act", actx)
	engine.Authorize(context.Background(), "agent", "act", actx)

	flags, err := flagLog.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("expected exactly one flag after the verdict flipped, got %d", len(flags))
	}
	if flags[0].Type != improvement.DoctrineContradiction {
		t.Fatalf("expected DOCTRINE_CONTRADICTION, got %v", flags[0].Type)
	}
}
