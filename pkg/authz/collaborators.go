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

import "context"

// DoctrineComplianceChecker is the narrow slice of the doctrine KB adapter
// the Authorization Engine needs for the doctrinal-fit factor. The full
// adapter interface lives in pkg/doctrine; this is intentionally a separate,
// minimal interface so the engine depends on nothing it doesn't use.
type DoctrineComplianceChecker interface {
	CheckCompliance(ctx context.Context, actionDescription string) (verdict bool, citations []string, err error)
}

// ExternalPolicyEvaluator is the out-of-scope external policy service,
// queried over HTTP against a `/v1/data/<pkg>/allow`-shaped contract. Its
// decision is authoritative when reachable; the circuit breaker in
// policyClient governs what happens when it is not.
type ExternalPolicyEvaluator interface {
	Evaluate(ctx context.Context, agentID, action, cycleID string) (allow bool, err error)
}
