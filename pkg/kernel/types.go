// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kernel wires the Phase Orchestrator, Authorization Engine,
// Information Broker, Context Provisioner, Agent Runtime, and
// Process-Improvement Logger behind the single external API surface an
// operator or HTTP transport calls: register/activate/deactivate an agent,
// drive the cycle clock, query information, authorize an action, pass a
// message between agents, and pull the two standing reports. Not every
// error is one of pkg/aethererr's types: broker, authorization and runtime
// failures are, but the agent-directory and report methods return plain
// wrapped errors (fmt.Errorf), and the cycle methods pass the phase
// package's own error types through.
package kernel

import (
	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/audit"
	"github.com/aetheros-project/aetheros/pkg/improvement"
)

// ImprovementReport answers get_process_improvement_report(): the full
// accumulated flag log plus whatever patterns currently meet the
// cardinality/cycle-span thresholds.
type ImprovementReport struct {
	Flags    []improvement.Flag
	Patterns []improvement.Pattern
}

// PerformanceReport answers get_performance_report(agent_id, cycles). It
// scopes process-improvement flags to the most recent N cycle IDs the flag
// log has seen for that agent (N given by the cycles argument, 0 meaning
// "all"); audit entries carry no cycle identifier (see DESIGN.md), so the
// query-count fields below span the agent's full audit history rather than
// the same N-cycle window.
type PerformanceReport struct {
	AgentID          string
	CyclesCovered    []string
	QueriesTotal     int
	QueriesSanitized int
	FlagsRaised      int
	Flags            []improvement.Flag
	AuditEntries     []audit.Entry
}

// RegisteredAgent is one entry in ListAgents, pairing a profile with its
// online/offline bit.
type RegisteredAgent struct {
	Profile *access.AgentProfile
	Online  bool
}
