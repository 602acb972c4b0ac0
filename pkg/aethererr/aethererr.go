// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aethererr collects the kernel-wide error taxonomy so every
// subsystem surfaces the same small set of typed errors to its callers, per
// the propagation policy: authorization and schema errors pass through
// unchanged, Unavailable recovers only for the doctrinal-fit factor, and
// nothing escapes the kernel boundary as a panic or an untyped error string.
package aethererr

import "fmt"

// Unauthorized is returned by the Authorization Engine and Information
// Broker when one or more authorization factors fail. Reasons enumerates
// every failing factor, not just the first, per the authorize() contract.
type Unauthorized struct {
	AgentID string
	Action  string
	Reasons []string
}

func (e *Unauthorized) Error() string {
	return fmt.Sprintf("aethererr: unauthorized: agent=%s action=%s reasons=%v", e.AgentID, e.Action, e.Reasons)
}

// NotActive is returned when a message or action targets an agent that is
// not in the current phase's active set.
type NotActive struct {
	AgentID string
}

func (e *NotActive) Error() string {
	return fmt.Sprintf("aethererr: agent %q is not active in the current phase", e.AgentID)
}

// Unavailable is returned when a backend adapter or the external policy
// evaluator cannot be reached. The broker never retries internally; this is
// always surfaced to the caller.
type Unavailable struct {
	Subsystem string
	Cause     error
}

func (e *Unavailable) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("aethererr: %s unavailable: %v", e.Subsystem, e.Cause)
	}
	return fmt.Sprintf("aethererr: %s unavailable", e.Subsystem)
}

func (e *Unavailable) Unwrap() error { return e.Cause }

// DeadlineExceeded is returned when a context deadline crosses before a
// suspension point (broker call, LLM call, policy call, message round-trip)
// completes.
type DeadlineExceeded struct {
	Operation string
}

func (e *DeadlineExceeded) Error() string {
	return fmt.Sprintf("aethererr: deadline exceeded: %s", e.Operation)
}

// SchemaViolation is returned when an LLM response fails structured-output
// validation. It is always a hard error — callers must not silently coerce
// or repair the payload.
type SchemaViolation struct {
	Schema string
	Detail string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("aethererr: schema violation (%s): %s", e.Schema, e.Detail)
}

// InvariantViolation marks a condition that should be structurally
// impossible (token-budget overrun, duplicate element ID). Callers should
// treat this as a bug report, not a recoverable runtime condition.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("aethererr: invariant violation: %s", e.Detail)
}
