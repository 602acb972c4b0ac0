// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package authz implements the Authorization Engine: a six-factor gate
// evaluated on every privileged action. Every factor runs to completion
// regardless of earlier failures, so Decision.Reasons always enumerates the
// full set of failing factors for observability rather than short-circuiting
// on the first one.
package authz

import "github.com/aetheros-project/aetheros/pkg/access"

// ActionContext carries the request-specific facts the six factors need
// beyond the agent's static profile: which categories the action touches,
// any delegation, and the emergency-reallocation rank field.
type ActionContext struct {
	// Categories lists every information category the action reads or
	// writes; factor 3 (information access) checks each one.
	Categories []access.InformationCategory

	// OnBehalfOf, when non-empty, names the agent this action delegates
	// from. DelegationDepth is the depth of that chain as the caller
	// understands it; the engine rejects depth > 1.
	OnBehalfOf      string
	DelegationDepth int

	// ActionDescription is free text describing what the action does,
	// passed to the doctrine KB adapter for the doctrinal-fit factor.
	ActionDescription string

	// EmergencyReallocation marks an action as the edge-policy-covered
	// emergency reallocation case, which requires ApprovedByRank to be
	// populated at O-5 or above.
	EmergencyReallocation bool
	ApprovedByRank        string
}

// Decision is the outcome of Engine.Authorize. Reasons is always populated
// with every failing factor's explanation, even when Allow is true it may
// carry non-fatal notices such as a degraded doctrinal-fit factor.
type Decision struct {
	Allow   bool
	Reasons []string
}

// factorNames gives stable, lower_snake_case identifiers for each of the six
// factors, used in Reasons so callers and tests can match on the factor
// rather than parsing prose.
const (
	factorRoleAuthority     = "role_authority"
	factorPhaseAppropriate  = "phase"
	factorInformationAccess = "information_access"
	factorDelegationChain   = "delegation_chain"
	factorDoctrinalFit      = "doctrinal_fit"
	factorExternalPolicy    = "external_policy"
)
