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
	"fmt"
	"sync"
	"time"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

// PhaseProvider is the slice of the Phase Orchestrator the engine needs: the
// currently active phase, for the phase-appropriateness factor.
type PhaseProvider interface {
	CurrentPhase() (phase.Phase, error)
}

// maxDelegationDepth bounds how many hops an on-behalf-of chain may carry
// (see DESIGN.md): delegation is capped at depth 1, not unbounded.
const maxDelegationDepth = 1

// minEmergencyRank is the edge-policy rank floor for emergency reallocation
// during execution.
const minEmergencyRank = "O-5"

// doctrineRecord is the last compliance verdict seen for one query string,
// kept to detect a DOCTRINE_CONTRADICTION within the same cycle.
type doctrineRecord struct {
	cycleID   string
	verdict   bool
	citations []string
}

// Engine is the Authorization Engine: it evaluates all six factors for
// every authorize() call and never short-circuits, so Decision.Reasons
// always reflects every failing factor.
type Engine struct {
	registry     *access.Registry
	policies     *access.PolicyTable
	phaseActions map[phase.Phase]map[string]struct{}
	phases       PhaseProvider
	doctrine     DoctrineComplianceChecker
	external     ExternalPolicyEvaluator
	cycleID      func() string
	improvement  *improvement.Log
	now          func() time.Time

	doctrineMu  sync.Mutex
	lastVerdict map[string]doctrineRecord
}

// NewEngine wires the engine to its collaborators. doctrine and external may
// be nil; a nil doctrine checker degrades that factor to
// "doctrine_unavailable" (never a hard deny), and a nil external evaluator
// skips the external-policy factor entirely (treated as not configured,
// distinct from "unreachable"). improvementLog may also be nil, in which
// case the doctrinal-fit factor never raises a DOCTRINE_CONTRADICTION flag.
func NewEngine(
	registry *access.Registry,
	policies *access.PolicyTable,
	phaseActions map[phase.Phase]map[string]struct{},
	phases PhaseProvider,
	doctrine DoctrineComplianceChecker,
	external ExternalPolicyEvaluator,
	cycleID func() string,
	improvementLog *improvement.Log,
) *Engine {
	return &Engine{
		registry: registry, policies: policies, phaseActions: phaseActions,
		phases: phases, doctrine: doctrine, external: external, cycleID: cycleID,
		improvement: improvementLog, now: time.Now,
		lastVerdict: make(map[string]doctrineRecord),
	}
}

// Authorize evaluates every factor for agentID performing action under actx
// and returns a Decision. It never short-circuits: every factor runs and
// contributes to Reasons, even after an earlier factor has already failed.
func (e *Engine) Authorize(ctx context.Context, agentID, action string, actx ActionContext) Decision {
	var reasons []string
	allow := true

	fail := func(reason string) {
		allow = false
		reasons = append(reasons, reason)
	}

	profile, ok := e.registry.Get(agentID)
	if !ok {
		return Decision{Allow: false, Reasons: []string{fmt.Sprintf("%s: unknown agent %q", factorRoleAuthority, agentID)}}
	}

	// Factor 1: role authority.
	if !profile.AuthorizesAction(action) {
		fail(fmt.Sprintf("%s: action %q not in agent's authorized_actions", factorRoleAuthority, action))
	}

	// Factor 2: phase appropriateness.
	currentPhase, err := e.phases.CurrentPhase()
	if err != nil {
		fail(fmt.Sprintf("%s: %v", factorPhaseAppropriate, err))
	} else if !profile.ActiveIn(currentPhase) {
		fail(fmt.Sprintf("%s: agent not active during %v", factorPhaseAppropriate, currentPhase))
	} else if allowed := e.phaseActions[currentPhase]; allowed != nil {
		if _, ok := allowed[action]; !ok {
			fail(fmt.Sprintf("%s: action %q not permitted during %v", factorPhaseAppropriate, action, currentPhase))
		}
	}

	// Factor 3: information access, one check per touched category.
	for _, cat := range actx.Categories {
		policy, ok := e.policies.Lookup(cat)
		if !ok {
			fail(fmt.Sprintf("%s: no policy configured for category %q", factorInformationAccess, cat))
			continue
		}
		if !profile.AuthorizesCategory(cat) {
			fail(fmt.Sprintf("%s: agent not authorized for category %q", factorInformationAccess, cat))
		}
		if profile.AccessLevel < policy.MinLevel {
			fail(fmt.Sprintf("%s: access_level %v below required %v for %q", factorInformationAccess, profile.AccessLevel, policy.MinLevel, cat))
		}
	}

	// Factor 4: delegation chain.
	if actx.OnBehalfOf != "" {
		if !profile.DelegationAuthority {
			fail(fmt.Sprintf("%s: agent lacks delegation_authority", factorDelegationChain))
		}
		if actx.DelegationDepth > maxDelegationDepth {
			fail(fmt.Sprintf("%s: delegation depth %d exceeds maximum %d", factorDelegationChain, actx.DelegationDepth, maxDelegationDepth))
		}
	}

	cycleID := ""
	if e.cycleID != nil {
		cycleID = e.cycleID()
	}

	// Factor 5: doctrinal fit. Soft-fails to "doctrine_unavailable" on
	// adapter outage; never a hard deny by itself.
	if e.doctrine != nil {
		verdict, citations, err := e.doctrine.CheckCompliance(ctx, actx.ActionDescription)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: doctrine_unavailable: %v", factorDoctrinalFit, err))
		} else {
			if !verdict {
				fail(fmt.Sprintf("%s: action fails doctrinal compliance check", factorDoctrinalFit))
			}
			e.checkDoctrineContradiction(cycleID, agentID, action, actx.ActionDescription, currentPhase, verdict, citations)
		}
	}

	// Factor 6: external policy. Authoritative when reachable.
	if e.external != nil {
		externalAllow, err := e.external.Evaluate(ctx, agentID, action, cycleID)
		if err != nil {
			fail(fmt.Sprintf("%s: %v", factorExternalPolicy, err))
		} else if !externalAllow {
			fail(fmt.Sprintf("%s: external policy evaluator denied the action", factorExternalPolicy))
		}
	}

	// Edge policy: emergency reallocation during execution requires an
	// explicit approved_by_rank >= O-5; absent or insufficient, deny.
	if actx.EmergencyReallocation {
		if actx.ApprovedByRank == "" {
			fail("emergency_reallocation: approved_by_rank is required")
		} else if ok, err := meetsMinRank(actx.ApprovedByRank, minEmergencyRank); err != nil {
			fail(fmt.Sprintf("emergency_reallocation: %v", err))
		} else if !ok {
			fail(fmt.Sprintf("emergency_reallocation: approved_by_rank %q below required %s", actx.ApprovedByRank, minEmergencyRank))
		}
	}

	return Decision{Allow: allow, Reasons: reasons}
}

// checkDoctrineContradiction compares verdict against the last verdict seen
// for the same query within the same cycle, raising a DOCTRINE_CONTRADICTION
// flag when they disagree. A query string is only ever compared against a
// verdict from its own cycle, since doctrine can legitimately be amended
// between cycles.
func (e *Engine) checkDoctrineContradiction(cycleID, agentID, action, query string, ph phase.Phase, verdict bool, citations []string) {
	if query == "" || e.improvement == nil {
		return
	}
	e.doctrineMu.Lock()
	prev, ok := e.lastVerdict[query]
	e.lastVerdict[query] = doctrineRecord{cycleID: cycleID, verdict: verdict, citations: citations}
	e.doctrineMu.Unlock()

	if !ok || prev.cycleID != cycleID || prev.verdict == verdict {
		return
	}
	description := fmt.Sprintf("doctrine query %q returned %v then %v within cycle %q", query, prev.verdict, verdict, cycleID)
	_, _ = e.improvement.Append(cycleID, ph, agentID, action, improvement.DoctrineContradiction,
		description, nil, "reconcile the contradictory doctrinal citations for this query", e.now())
}
