// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package broker

import (
	"context"
	"testing"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

type fixedPhaseProvider struct {
	ph  phase.Phase
	err error
}

func (f fixedPhaseProvider) CurrentPhase() (phase.Phase, error) { return f.ph, f.err }

func threatRecords() []Record {
	return []Record{
		{ElementID: "THR-1", Fields: map[string]any{"lat": 36.041234, "lon": 44.071234, "kind": "sam_site"}},
	}
}

func newTestBroker(t *testing.T, level access.AccessLevel) *Broker {
	t.Helper()
	profile, err := access.NewAgentProfile("agent", "role", level,
		[]access.InformationCategory{access.ThreatData}, nil, nil, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry, err := access.NewRegistry([]*access.AgentProfile{profile})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.ThreatData, MinLevel: access.OPERATIONAL, Sanitize: true, Audit: false},
	})
	if err != nil {
		t.Fatalf("NewPolicyTable failed: %v", err)
	}
	router := NewRouter(map[access.InformationCategory]Backend{
		access.ThreatData: BackendFunc(func(ctx context.Context, params QueryParams) ([]Record, error) {
			return threatRecords(), nil
		}),
	})
	return New(registry, policies, router, NewSanitizerTable(nil), nil, nil)
}

// TestBroker_Sanitization reproduces concrete scenario 3: an OPERATIONAL
// agent sees coarsened coordinates, a SENSITIVE agent sees exact ones, and
// every other field is identical between the two responses.
func TestBroker_Sanitization(t *testing.T) {
	opBroker := newTestBroker(t, access.OPERATIONAL)
	opResult, err := opBroker.Query(context.Background(), "agent", access.ThreatData, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	sensitiveBroker := newTestBroker(t, access.SENSITIVE)
	sensitiveResult, err := sensitiveBroker.Query(context.Background(), "agent", access.ThreatData, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	opLat := opResult.Records[0].Fields["lat"].(float64)
	sensitiveLat := sensitiveResult.Records[0].Fields["lat"].(float64)
	if opLat == sensitiveLat {
		t.Fatal("expected OPERATIONAL access to coarsen coordinates relative to SENSITIVE")
	}
	if sensitiveLat != 36.041234 {
		t.Fatalf("expected SENSITIVE access to see exact coordinates, got %v", sensitiveLat)
	}
	if opResult.Records[0].Fields["kind"] != sensitiveResult.Records[0].Fields["kind"] {
		t.Fatal("expected non-location fields to be identical across access levels")
	}
}

func TestBroker_Query_UnauthorizedCategory(t *testing.T) {
	profile, err := access.NewAgentProfile("agent", "role", access.CRITICAL, nil, nil, nil, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry, err := access.NewRegistry([]*access.AgentProfile{profile})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.ThreatData, MinLevel: access.PUBLIC},
	})
	if err != nil {
		t.Fatalf("NewPolicyTable failed: %v", err)
	}
	b := New(registry, policies, NewRouter(nil), NewSanitizerTable(nil), nil, nil)

	_, err = b.Query(context.Background(), "agent", access.ThreatData, nil)
	if err == nil {
		t.Fatal("expected an error for a category the agent is not authorized for")
	}
}

func TestBroker_Query_PhaseRestricted(t *testing.T) {
	profile, err := access.NewAgentProfile("agent", "role", access.OPERATIONAL,
		[]access.InformationCategory{access.SpectrumAllocation}, nil, nil, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry, err := access.NewRegistry([]*access.AgentProfile{profile})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.SpectrumAllocation, MinLevel: access.PUBLIC, PhaseRestricted: []phase.Phase{phase.Phase3, phase.Phase4}},
	})
	if err != nil {
		t.Fatalf("NewPolicyTable failed: %v", err)
	}
	router := NewRouter(map[access.InformationCategory]Backend{
		access.SpectrumAllocation: NopBackend,
	})

	b := New(registry, policies, router, NewSanitizerTable(nil), nil, fixedPhaseProvider{ph: phase.Phase1})
	if _, err := b.Query(context.Background(), "agent", access.SpectrumAllocation, nil); err == nil {
		t.Fatal("expected an error querying a phase-restricted category outside its allowed phases")
	}

	b = New(registry, policies, router, NewSanitizerTable(nil), nil, fixedPhaseProvider{ph: phase.Phase3})
	if _, err := b.Query(context.Background(), "agent", access.SpectrumAllocation, nil); err != nil {
		t.Fatalf("Query failed inside the allowed phase: %v", err)
	}
}

func TestBroker_Query_NeedToKnow(t *testing.T) {
	profile, err := access.NewAgentProfile("agent", "role", access.OPERATIONAL,
		[]access.InformationCategory{access.MissionPlan}, nil, nil, false)
	if err != nil {
		t.Fatalf("NewAgentProfile failed: %v", err)
	}
	registry, err := access.NewRegistry([]*access.AgentProfile{profile})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.MissionPlan, MinLevel: access.PUBLIC, NeedToKnow: true},
	})
	if err != nil {
		t.Fatalf("NewPolicyTable failed: %v", err)
	}
	router := NewRouter(map[access.InformationCategory]Backend{
		access.MissionPlan: NopBackend,
	})
	b := New(registry, policies, router, NewSanitizerTable(nil), nil, nil)

	if _, err := b.Query(context.Background(), "agent", access.MissionPlan, nil); err == nil {
		t.Fatal("expected an error querying a need-to-know category without a justification")
	}
	if _, err := b.Query(context.Background(), "agent", access.MissionPlan, QueryParams{"justification": "cycle 42 planning"}); err != nil {
		t.Fatalf("Query failed with a justification supplied: %v", err)
	}
}
