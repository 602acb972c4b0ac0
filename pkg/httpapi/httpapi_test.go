// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/broker"
	"github.com/aetheros-project/aetheros/pkg/ctxwindow"
	"github.com/aetheros-project/aetheros/pkg/extensions"
	"github.com/aetheros-project/aetheros/pkg/kernel"
	"github.com/aetheros-project/aetheros/pkg/observability"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// rejectingAuthProvider fails every request, used to prove authMiddleware
// actually rejects unauthenticated callers rather than being a no-op.
type rejectingAuthProvider struct{}

func (rejectingAuthProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	return nil, extensions.ErrUnauthorized
}

func testSources() map[ctxwindow.Layer]ctxwindow.Source {
	return map[ctxwindow.Layer]ctxwindow.Source{
		ctxwindow.Doctrinal:     ctxwindow.NopSource(),
		ctxwindow.Situational:   ctxwindow.NopSource(),
		ctxwindow.Historical:    ctxwindow.NopSource(),
		ctxwindow.Collaborative: ctxwindow.NopSource(),
	}
}

func newTestService(t *testing.T) Service {
	return newTestServiceWithConfig(t, Config{GinMode: "test"})
}

func newTestServiceWithConfig(t *testing.T, cfg Config) Service {
	t.Helper()

	policies, err := access.NewPolicyTable([]access.CategoryPolicy{
		{Category: access.ThreatData, MinLevel: access.OPERATIONAL, Sanitize: true, Audit: false},
	})
	require.NoError(t, err)

	router := broker.NewRouter(map[access.InformationCategory]broker.Backend{
		access.ThreatData: broker.BackendFunc(func(ctx context.Context, params broker.QueryParams) ([]broker.Record, error) {
			return []broker.Record{{ElementID: "THR-1", Fields: map[string]any{"lat": 36.0}}}, nil
		}),
	})

	profile, err := access.NewAgentProfile("ew_planner", "ew_planner", access.OPERATIONAL,
		[]access.InformationCategory{access.ThreatData}, []string{"plan_ew_mission"},
		[]phase.Phase{phase.Phase1, phase.Phase2, phase.Phase3}, false)
	require.NoError(t, err)

	k, err := kernel.New(kernel.Config{
		Profiles:   []*access.AgentProfile{profile},
		Policies:   policies,
		Router:     router,
		Sanitizers: broker.NewSanitizerTable(nil),
		Sources:    testSources(),
		Templates:  ctxwindow.DefaultTemplateTable(),
	})
	require.NoError(t, err)
	_, err = k.StartCycle("cycle-1")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	svc, err := New(cfg, k, metrics, reg)
	require.NoError(t, err)
	return svc
}

func doJSON(t *testing.T, svc Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	svc := newTestService(t)
	rec := doJSON(t, svc, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryInformation_Success(t *testing.T) {
	svc := newTestService(t)
	rec := doJSON(t, svc, http.MethodPost, "/v1/broker/query", map[string]any{
		"agent_id": "ew_planner",
		"category": "THREAT_DATA",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result broker.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, []string{"THR-1"}, result.ElementIDs)
}

func TestQueryInformation_UnknownAgentIsForbidden(t *testing.T) {
	svc := newTestService(t)
	rec := doJSON(t, svc, http.MethodPost, "/v1/broker/query", map[string]any{
		"agent_id": "nobody",
		"category": "THREAT_DATA",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthorizeAction_Allows(t *testing.T) {
	svc := newTestService(t)
	rec := doJSON(t, svc, http.MethodPost, "/v1/authz/actions", map[string]any{
		"agent_id":   "ew_planner",
		"action":     "plan_ew_mission",
		"categories": []string{"THREAT_DATA"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndListAgents(t *testing.T) {
	svc := newTestService(t)
	rec := doJSON(t, svc, http.MethodPost, "/v1/agents", map[string]any{
		"id":                    "intel_officer",
		"role":                  "intel_officer",
		"access_level":          "OPERATIONAL",
		"authorized_categories": []string{"THREAT_DATA"},
		"active_phases":         []string{"PHASE1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, svc, http.MethodGet, "/v1/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Agents []kernel.RegisteredAgent `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Agents, 2)
}

func TestAuthMiddleware_RejectsFailedAuth(t *testing.T) {
	svc := newTestServiceWithConfig(t, Config{GinMode: "test", AuthProvider: rejectingAuthProvider{}})

	rec := doJSON(t, svc, http.MethodPost, "/v1/broker/query", map[string]any{
		"agent_id": "ew_planner",
		"category": "THREAT_DATA",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// /healthz sits outside the /v1 group and stays open regardless.
	rec = doJSON(t, svc, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeactivateAgent_BlocksMessaging(t *testing.T) {
	svc := newTestService(t)

	rec := doJSON(t, svc, http.MethodPost, "/v1/agents", map[string]any{
		"id":            "spectrum_manager",
		"role":          "spectrum_manager",
		"access_level":  "OPERATIONAL",
		"active_phases": []string{"PHASE1", "PHASE2", "PHASE3"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, svc, http.MethodPost, "/v1/agents/spectrum_manager/deactivate", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, svc, http.MethodPost, "/v1/agents/ew_planner/messages", map[string]any{
		"to":   "spectrum_manager",
		"type": "request",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}
