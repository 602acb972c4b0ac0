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
	"fmt"
	"time"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/aethererr"
	"github.com/aetheros-project/aetheros/pkg/audit"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

// PhaseProvider reports the cycle's current phase, for enforcing
// CategoryPolicy.AllowedInPhase on every query. Defined locally rather than
// reusing authz.PhaseProvider so this package does not depend on authz for
// what is structurally a one-method interface; *phase.Orchestrator and
// *kernel.Kernel both already satisfy it.
type PhaseProvider interface {
	CurrentPhase() (phase.Phase, error)
}

// justificationKey is the QueryParams key a caller must set to a non-empty
// string when querying a category whose policy sets NeedToKnow.
const justificationKey = "justification"

// Broker is the Information Broker. It is reentrant and safe under parallel
// callers; a given category's Backend is responsible for its own concurrency
// if it maintains state.
type Broker struct {
	registry   *access.Registry
	policies   *access.PolicyTable
	router     *Router
	sanitizers *SanitizerTable
	auditLog   *audit.Log
	phases     PhaseProvider
	now        func() time.Time
}

// New wires the broker to its collaborators. auditLog may be nil, in which
// case categories whose policy sets Audit are silently not audited — callers
// that need the audit guarantee must supply a log. phases may also be nil,
// in which case phase-restricted categories are never enforced — tests that
// do not model a running cycle can pass nil without having to stub one up.
func New(registry *access.Registry, policies *access.PolicyTable, router *Router, sanitizers *SanitizerTable, auditLog *audit.Log, phases PhaseProvider) *Broker {
	return &Broker{
		registry: registry, policies: policies, router: router,
		sanitizers: sanitizers, auditLog: auditLog, phases: phases, now: time.Now,
	}
}

// Query is the broker's single entry point for cross-category reads. Steps,
// in order: authorize the category, route to the backend, sanitize if the
// policy requires it, audit if the policy requires it.
func (b *Broker) Query(ctx context.Context, agentID string, cat access.InformationCategory, params QueryParams) (Result, error) {
	profile, ok := b.registry.Get(agentID)
	if !ok {
		return Result{}, &aethererr.Unauthorized{AgentID: agentID, Action: "query_information", Reasons: []string{"unknown agent"}}
	}
	policy, ok := b.policies.Lookup(cat)
	if !ok {
		return Result{}, &aethererr.Unauthorized{AgentID: agentID, Action: "query_information", Reasons: []string{fmt.Sprintf("no policy for category %q", cat)}}
	}

	// Step 1: verify category authorization, access_level, phase
	// restriction, and need-to-know justification.
	if !profile.AuthorizesCategory(cat) || profile.AccessLevel < policy.MinLevel {
		return Result{}, &aethererr.Unauthorized{
			AgentID: agentID, Action: "query_information",
			Reasons: []string{fmt.Sprintf("agent %q may not read category %q at its access level", agentID, cat)},
		}
	}
	if b.phases != nil {
		ph, err := b.phases.CurrentPhase()
		if err != nil {
			return Result{}, &aethererr.Unavailable{Subsystem: "phase", Cause: err}
		}
		if !policy.AllowedInPhase(ph) {
			return Result{}, &aethererr.Unauthorized{
				AgentID: agentID, Action: "query_information",
				Reasons: []string{fmt.Sprintf("category %q is not allowed in phase %q", cat, ph)},
			}
		}
	}
	if policy.NeedToKnow {
		justification, _ := params[justificationKey].(string)
		if justification == "" {
			return Result{}, &aethererr.Unauthorized{
				AgentID: agentID, Action: "query_information",
				Reasons: []string{fmt.Sprintf("category %q requires a need-to-know justification", cat)},
			}
		}
	}

	// Step 2: route to the category's backend adapter.
	backend, err := b.router.Route(cat)
	if err != nil {
		return Result{}, &aethererr.Unavailable{Subsystem: string(cat), Cause: err}
	}
	records, err := backend.Query(ctx, params)
	if err != nil {
		return Result{}, &aethererr.Unavailable{Subsystem: string(cat), Cause: err}
	}

	// Step 3: sanitize if the category's policy requires it.
	sanitized := false
	if policy.Sanitize {
		records = b.sanitizers.For(cat).Sanitize(records, profile.AccessLevel)
		sanitized = true
	}

	result := Result{Records: records, ElementIDs: elementIDs(records), Sanitized: sanitized}

	// Step 4: audit if the category's policy requires it.
	if policy.Audit && b.auditLog != nil {
		summary := fmt.Sprintf("category=%s records=%d", cat, len(records))
		if _, err := b.auditLog.Append(agentID, cat, summary, "allow", profile.AccessLevel, sanitized, b.now()); err != nil {
			return Result{}, fmt.Errorf("broker: audit append failed: %w", err)
		}
	}

	return result, nil
}
