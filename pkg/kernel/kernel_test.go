// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernel

import (
	"context"
	"testing"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/authz"
	"github.com/aetheros-project/aetheros/pkg/broker"
	"github.com/aetheros-project/aetheros/pkg/ctxwindow"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/aetheros-project/aetheros/pkg/store"
	"github.com/stretchr/testify/require"
)

func allNopSources() map[ctxwindow.Layer]ctxwindow.Source {
	return map[ctxwindow.Layer]ctxwindow.Source{
		ctxwindow.Doctrinal:     ctxwindow.NopSource(),
		ctxwindow.Situational:   ctxwindow.NopSource(),
		ctxwindow.Historical:    ctxwindow.NopSource(),
		ctxwindow.Collaborative: ctxwindow.NopSource(),
	}
}

func newTestKernel(t *testing.T, profiles ...*access.AgentProfile) *Kernel {
	t.Helper()
	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.ThreatData, MinLevel: access.OPERATIONAL, Sanitize: true, Audit: false},
	})
	require.NoError(t, err)

	router := broker.NewRouter(map[access.InformationCategory]broker.Backend{
		access.ThreatData: broker.BackendFunc(func(ctx context.Context, params broker.QueryParams) ([]broker.Record, error) {
			return []broker.Record{{ElementID: "THR-1", Fields: map[string]any{"lat": 36.0, "lon": 44.0}}}, nil
		}),
	})

	k, err := New(Config{
		Profiles:   profiles,
		Policies:   policies,
		Router:     router,
		Sanitizers: broker.NewSanitizerTable(nil),
		Sources:    allNopSources(),
		Templates:  ctxwindow.DefaultTemplateTable(),
	})
	require.NoError(t, err)
	return k
}

func ewPlannerProfile(t *testing.T) *access.AgentProfile {
	t.Helper()
	p, err := access.NewAgentProfile("ew_planner", "ew_planner", access.OPERATIONAL,
		[]access.InformationCategory{access.ThreatData}, []string{"plan_ew_mission"},
		[]phase.Phase{phase.Phase1, phase.Phase2, phase.Phase3}, false)
	require.NoError(t, err)
	return p
}

func TestKernel_StartCycleAndQueryInformation(t *testing.T) {
	k := newTestKernel(t, ewPlannerProfile(t))

	_, err := k.StartCycle("cycle-1")
	require.NoError(t, err)

	result, err := k.QueryInformation(context.Background(), "ew_planner", access.ThreatData, nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, []string{"THR-1"}, result.ElementIDs)
}

func TestKernel_QueryInformation_UnknownAgentIsUnauthorized(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.StartCycle("cycle-1")
	require.NoError(t, err)

	_, err = k.QueryInformation(context.Background(), "nobody", access.ThreatData, nil)
	require.Error(t, err)
}

func TestKernel_AuthorizeAction_AllowsInsideActivePhase(t *testing.T) {
	k := newTestKernel(t, ewPlannerProfile(t))
	_, err := k.StartCycle("cycle-1")
	require.NoError(t, err)

	decision := k.AuthorizeAction(context.Background(), "ew_planner", "plan_ew_mission", authz.ActionContext{
		Categories: []access.InformationCategory{access.ThreatData},
	})
	require.True(t, decision.Allow, decision.Reasons)
}

func TestKernel_DeactivateAgent_BlocksMessaging(t *testing.T) {
	sender := ewPlannerProfile(t)
	receiver, err := access.NewAgentProfile("spectrum_manager", "spectrum_manager", access.OPERATIONAL,
		nil, nil, []phase.Phase{phase.Phase1, phase.Phase2, phase.Phase3}, false)
	require.NoError(t, err)

	k := newTestKernel(t, sender, receiver)
	_, err = k.StartCycle("cycle-1")
	require.NoError(t, err)
	require.True(t, k.IsAgentActive("spectrum_manager"))

	require.NoError(t, k.DeactivateAgent("spectrum_manager"))
	require.False(t, k.IsAgentActive("spectrum_manager"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = k.SendAgentMessage(ctx, "ew_planner", "spectrum_manager", "request", nil)
	require.Error(t, err)

	require.NoError(t, k.ActivateAgent("spectrum_manager"))
	require.True(t, k.IsAgentActive("spectrum_manager"))
}

func TestKernel_RegisterAgent_ExtendsLiveRegistryWithoutLosingExisting(t *testing.T) {
	k := newTestKernel(t, ewPlannerProfile(t))
	_, err := k.StartCycle("cycle-1")
	require.NoError(t, err)

	newcomer, err := access.NewAgentProfile("intel_officer", "intel_officer", access.OPERATIONAL,
		[]access.InformationCategory{access.ThreatData}, nil,
		[]phase.Phase{phase.Phase1}, false)
	require.NoError(t, err)

	require.NoError(t, k.RegisterAgent(newcomer))
	require.True(t, k.IsAgentActive("intel_officer"))

	// The profile registered before New() still resolves after the
	// registry rebuild.
	_, err = k.QueryInformation(context.Background(), "ew_planner", access.ThreatData, nil)
	require.NoError(t, err)

	err = k.RegisterAgent(newcomer)
	require.Error(t, err, "re-registering the same agent id must fail")
}

func TestKernel_GetProcessImprovementReport_NoLogConfiguredErrors(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.GetProcessImprovementReport(0, 0)
	require.Error(t, err)
}

func TestKernel_GetPerformanceReport_ScopesToAgent(t *testing.T) {
	k := newTestKernel(t, ewPlannerProfile(t))
	_, err := k.StartCycle("cycle-1")
	require.NoError(t, err)

	_, err = k.QueryInformation(context.Background(), "ew_planner", access.ThreatData, nil)
	require.NoError(t, err)

	report, err := k.GetPerformanceReport("ew_planner", 0)
	require.NoError(t, err)
	require.Equal(t, "ew_planner", report.AgentID)
}

// newTestKernelWithFlagLog mirrors newTestKernel but also wires an
// improvement.Log and a deny-everything AssetStatus backend (empty Records),
// for exercising the INFORMATION_GAP and RESOURCE_BOTTLENECK auto-flag rules.
func newTestKernelWithFlagLog(t *testing.T, flagLog *improvement.Log, profiles ...*access.AgentProfile) *Kernel {
	t.Helper()
	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.AssetStatus, MinLevel: access.OPERATIONAL},
	})
	require.NoError(t, err)

	router := broker.NewRouter(map[access.InformationCategory]broker.Backend{
		access.AssetStatus: broker.BackendFunc(func(ctx context.Context, params broker.QueryParams) ([]broker.Record, error) {
			return nil, nil
		}),
	})

	k, err := New(Config{
		Profiles:       profiles,
		Policies:       policies,
		Router:         router,
		Sanitizers:     broker.NewSanitizerTable(nil),
		Sources:        allNopSources(),
		Templates:      ctxwindow.DefaultTemplateTable(),
		ImprovementLog: flagLog,
	})
	require.NoError(t, err)
	return k
}

// TestKernel_QueryInformation_RaisesInformationGapAndResourceBottleneck
// covers an AssetStatus backend that always returns an empty result set: the
// first query raises an INFORMATION_GAP flag, and the fourth denial (the
// first above resourceBottleneckThreshold) raises a RESOURCE_BOTTLENECK flag.
func TestKernel_QueryInformation_RaisesInformationGapAndResourceBottleneck(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	flagLog := improvement.NewLog(db)

	planner, err := access.NewAgentProfile("ew_planner", "ew_planner", access.OPERATIONAL,
		[]access.InformationCategory{access.AssetStatus}, []string{"plan_ew_mission"},
		[]phase.Phase{phase.Phase1}, false)
	require.NoError(t, err)

	k := newTestKernelWithFlagLog(t, flagLog, planner)
	_, err = k.StartCycle("cycle-1")
	require.NoError(t, err)

	for i := 0; i < resourceBottleneckThreshold+1; i++ {
		_, err := k.QueryInformation(context.Background(), "ew_planner", access.AssetStatus, nil)
		require.NoError(t, err)
	}

	flags, err := flagLog.All()
	require.NoError(t, err)

	var gaps, bottlenecks int
	for _, f := range flags {
		switch f.Type {
		case improvement.InformationGap:
			gaps++
		case improvement.ResourceBottleneck:
			bottlenecks++
		}
	}
	require.Equal(t, resourceBottleneckThreshold+1, gaps,"every empty result should raise its own INFORMATION_GAP flag")
	require.Equal(t, 1, bottlenecks, "exactly one RESOURCE_BOTTLENECK flag should fire, on the crossing denial")
}
