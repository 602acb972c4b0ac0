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
	"net/http"
	"strconv"
	"strings"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/authz"
	"github.com/aetheros-project/aetheros/pkg/broker"
	"github.com/aetheros-project/aetheros/pkg/kernel"
	"github.com/aetheros-project/aetheros/pkg/observability"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/gin-gonic/gin"
)

func startCycle(k *kernel.Kernel) gin.HandlerFunc {
	type request struct {
		CycleID string `json:"cycle_id" binding:"required"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cycle, err := k.StartCycle(req.CycleID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cycle)
	}
}

func currentPhase(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		ph, err := k.CurrentPhase()
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"phase": ph.String()})
	}
}

func advancePhase(k *kernel.Kernel, m *observability.Metrics) gin.HandlerFunc {
	type request struct {
		OverrideReason string `json:"override_reason"`
	}
	return func(c *gin.Context) {
		var req request
		_ = c.ShouldBindJSON(&req)

		var (
			next phase.Phase
			errs []phase.HandlerError
			err  error
			kind = "scheduled"
		)
		if req.OverrideReason != "" {
			next, errs, err = k.AdvancePhaseWithOverride(req.OverrideReason)
			kind = "override"
		} else {
			next, errs, err = k.AdvancePhase()
		}
		if err != nil {
			writeError(c, err)
			return
		}
		if m != nil {
			m.RecordPhaseTransition(next.String(), kind, 0)
		}
		c.JSON(http.StatusOK, gin.H{"phase": next.String(), "handler_errors": errs})
	}
}

func tick(k *kernel.Kernel, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, errs, err := k.Tick()
		if err != nil {
			writeError(c, err)
			return
		}
		if m != nil {
			for _, e := range events {
				kind := "scheduled"
				if e.Kind == phase.EventOverride {
					kind = "override"
				}
				m.RecordPhaseTransition(e.To.String(), kind, 0)
			}
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "handler_errors": errs})
	}
}

func queryInformation(k *kernel.Kernel, m *observability.Metrics) gin.HandlerFunc {
	type request struct {
		AgentID  string                  `json:"agent_id" binding:"required"`
		Category access.InformationCategory `json:"category" binding:"required"`
		Params   broker.QueryParams      `json:"params"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := k.QueryInformation(requestContext(c), req.AgentID, req.Category, req.Params)
		if m != nil {
			m.RecordBrokerQuery(string(req.Category), err == nil && result.Sanitized)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func authorizeAction(k *kernel.Kernel, m *observability.Metrics) gin.HandlerFunc {
	type request struct {
		AgentID         string                        `json:"agent_id" binding:"required"`
		Action          string                        `json:"action" binding:"required"`
		Categories      []access.InformationCategory `json:"categories"`
		OnBehalfOf      string                        `json:"on_behalf_of"`
		DelegationDepth int                           `json:"delegation_depth"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decision := k.AuthorizeAction(requestContext(c), req.AgentID, req.Action, authz.ActionContext{
			Categories:      req.Categories,
			OnBehalfOf:      req.OnBehalfOf,
			DelegationDepth: req.DelegationDepth,
		})
		if m != nil {
			factor := ""
			if !decision.Allow && len(decision.Reasons) > 0 {
				factor, _, _ = strings.Cut(decision.Reasons[0], ":")
			}
			m.RecordAuthorization(decision.Allow, factor)
		}
		status := http.StatusOK
		if !decision.Allow {
			status = http.StatusForbidden
		}
		c.JSON(status, decision)
	}
}

func sendAgentMessage(k *kernel.Kernel) gin.HandlerFunc {
	type request struct {
		To      string `json:"to" binding:"required"`
		Type    string `json:"type" binding:"required"`
		Payload any    `json:"payload"`
	}
	return func(c *gin.Context) {
		from := c.Param("id")
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reply, err := k.SendAgentMessage(requestContext(c), from, req.To, req.Type, req.Payload)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	}
}

func broadcastAgentMessage(k *kernel.Kernel) gin.HandlerFunc {
	type request struct {
		ActiveAgents []string `json:"active_agents" binding:"required"`
		Type         string   `json:"type" binding:"required"`
		Payload      any      `json:"payload"`
	}
	return func(c *gin.Context) {
		from := c.Param("id")
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results := k.BroadcastAgentMessage(requestContext(c), from, req.ActiveAgents, req.Type, req.Payload)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func requestAgentContext(k *kernel.Kernel, m *observability.Metrics) gin.HandlerFunc {
	type request struct {
		Task      string `json:"task" binding:"required"`
		MaxTokens int    `json:"max_tokens" binding:"required"`
	}
	return func(c *gin.Context) {
		agentID := c.Param("id")
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctxWindow, err := k.RequestAgentContext(requestContext(c), agentID, req.Task, req.MaxTokens)
		if err != nil {
			writeError(c, err)
			return
		}
		if m != nil {
			m.ContextTokensProvisioned.WithLabelValues("total").Observe(float64(ctxWindow.TotalTokens))
		}
		c.JSON(http.StatusOK, ctxWindow)
	}
}

func registerAgent(k *kernel.Kernel) gin.HandlerFunc {
	type request struct {
		ID                  string                        `json:"id" binding:"required"`
		Role                string                        `json:"role" binding:"required"`
		AccessLevel         access.AccessLevel            `json:"access_level" binding:"required"`
		AuthorizedCategories []access.InformationCategory `json:"authorized_categories"`
		AuthorizedActions   []string                      `json:"authorized_actions"`
		ActivePhases        []phase.Phase                 `json:"active_phases"`
		DelegationAuthority bool                          `json:"delegation_authority"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := access.NewAgentProfile(req.ID, req.Role, req.AccessLevel,
			req.AuthorizedCategories, req.AuthorizedActions, req.ActivePhases, req.DelegationAuthority)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := k.RegisterAgent(profile); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, profile)
	}
}

func activateAgent(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := k.ActivateAgent(c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func deactivateAgent(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := k.DeactivateAgent(c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listAgents(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"agents": k.ListAgents()})
	}
}

func processImprovementReport(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		minCardinality := intQuery(c, "min_cardinality", 0)
		minCycleSpan := intQuery(c, "min_cycle_span", 0)
		report, err := k.GetProcessImprovementReport(minCardinality, minCycleSpan)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func performanceReport(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Param("id")
		cycles := intQuery(c, "cycles", 0)
		report, err := k.GetPerformanceReport(agentID, cycles)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
