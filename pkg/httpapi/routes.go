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
	"github.com/aetheros-project/aetheros/pkg/extensions"
	"github.com/aetheros-project/aetheros/pkg/kernel"
	"github.com/aetheros-project/aetheros/pkg/observability"
	"github.com/gin-gonic/gin"
)

// setupRoutes registers every Kernel-backed route under /v1, grouped the
// way the five subsystems are grouped in the kernel API surface: cycles
// (Phase Orchestrator), broker queries and authorization (Authorization
// Engine / Information Broker), agents (agent directory, messaging, and
// Context Provisioner), and reports (Process-Improvement Subsystem). Every
// route in the group authenticates through provider first; per-agent
// authorization is a separate, later concern the kernel itself enforces.
func setupRoutes(router *gin.Engine, k *kernel.Kernel, m *observability.Metrics, provider extensions.AuthProvider) {
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(provider))
	{
		cycles := v1.Group("/cycles")
		{
			cycles.POST("", startCycle(k))
			cycles.GET("/current/phase", currentPhase(k))
			cycles.POST("/current/advance", advancePhase(k, m))
			cycles.POST("/current/tick", tick(k, m))
		}

		v1.POST("/broker/query", queryInformation(k, m))
		v1.POST("/authz/actions", authorizeAction(k, m))

		agents := v1.Group("/agents")
		{
			agents.GET("", listAgents(k))
			agents.POST("", registerAgent(k))
			agents.POST("/:id/activate", activateAgent(k))
			agents.POST("/:id/deactivate", deactivateAgent(k))
			agents.POST("/:id/messages", sendAgentMessage(k))
			agents.POST("/:id/broadcast", broadcastAgentMessage(k))
			agents.POST("/:id/context", requestAgentContext(k, m))
			agents.GET("/:id/performance", performanceReport(k))
		}

		v1.GET("/reports/process-improvement", processImprovementReport(k))
	}
}
