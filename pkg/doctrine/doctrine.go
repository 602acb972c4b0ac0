// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package doctrine defines the doctrine knowledge-base adapter: the narrow
// interface the Information Broker and Authorization Engine use to query
// doctrinal text, fetch named procedures, and request a compliance verdict
// on an action description. The vector index and embedding model behind any
// concrete implementation are out-of-scope external collaborators; this
// package specifies only the interface the core consumes, plus a
// Weaviate-backed adapter that exercises it.
package doctrine

import "context"

// Element is a single retrievable unit from any information category
// backend, typed and globally unique per the Context Provisioner's
// invariant that every element id is unique and prefix-typed.
type Element struct {
	ID      string
	Content string
	// Relevance is the backend's own relevance score for the query that
	// produced this element, in [0, 1]; the Context Provisioner re-scores
	// and may discard it.
	Relevance float64
	Metadata  map[string]string
}

// Procedure is a named doctrinal procedure, including the expected duration
// the Process-Improvement Logger compares elapsed time against.
type Procedure struct {
	Name           string
	Description    string
	ExpectedHours  float64
	Steps          []string
}

// ComplianceVerdict is the outcome of a doctrinal-fit check: whether the
// described action complies with doctrine, and the doctrine elements cited
// in reaching that verdict.
type ComplianceVerdict struct {
	Compliant bool
	Citations []string
}

// Adapter is the full doctrine KB surface. It does not itself satisfy the
// narrower interfaces other packages consume, whose signatures differ:
// CheckComplianceAdapter adapts it for authz, and broker.DoctrineBackend
// adapts it to the broker's Backend interface.
type Adapter interface {
	// Query performs a filtered, top-k retrieval over the doctrine corpus.
	Query(ctx context.Context, text string, filters map[string]string, topK int) ([]Element, error)

	// GetProcedure fetches a named doctrinal procedure.
	GetProcedure(ctx context.Context, name string) (Procedure, error)

	// CheckCompliance asks whether actionDescription complies with
	// doctrine, returning the deciding citations. Implementations must
	// return a non-nil error (never a zero-value verdict) on backend
	// failure, so callers can tell "compliant" apart from "unavailable".
	CheckCompliance(ctx context.Context, actionDescription string) (ComplianceVerdict, error)
}

// CheckComplianceAdapter adapts Adapter to authz.DoctrineComplianceChecker's
// simpler (bool, []string, error) signature.
func CheckComplianceAdapter(a Adapter) func(ctx context.Context, actionDescription string) (bool, []string, error) {
	return func(ctx context.Context, actionDescription string) (bool, []string, error) {
		verdict, err := a.CheckCompliance(ctx, actionDescription)
		if err != nil {
			return false, nil, err
		}
		return verdict.Compliant, verdict.Citations, nil
	}
}
