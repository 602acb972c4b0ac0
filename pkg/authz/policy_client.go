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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPPolicyClient queries an external policy evaluator over HTTP, per the
// spec's `/v1/data/<pkg>/allow` contract. A gobreaker.CircuitBreaker wraps
// every call: after a configurable run of consecutive failures within a
// window the breaker opens and the client degrades straight to deny without
// attempting the network round trip, instead of queuing callers behind a
// service that is already down.
type HTTPPolicyClient struct {
	httpClient *http.Client
	baseURL    string
	policyPkg  string
	breaker    *gobreaker.CircuitBreaker
}

// PolicyClientConfig configures the HTTPPolicyClient's breaker thresholds.
type PolicyClientConfig struct {
	// BaseURL is the external policy evaluator's origin, e.g.
	// "https://policy.internal:8181".
	BaseURL string
	// Package is the `<pkg>` path segment in `/v1/data/<pkg>/allow`.
	Package string
	// Timeout bounds a single evaluation call.
	Timeout time.Duration
	// ConsecutiveFailureThreshold is how many consecutive failures within
	// Interval trip the breaker open.
	ConsecutiveFailureThreshold uint32
	// Interval is the rolling window the breaker counts failures over.
	Interval time.Duration
	// OpenDuration is how long the breaker stays open before allowing a
	// half-open probe.
	OpenDuration time.Duration
}

// DefaultPolicyClientConfig mirrors the spec's "degrades to deny after N
// consecutive failures within a window" language with representative
// defaults; deployments override via config.
func DefaultPolicyClientConfig(baseURL, pkg string) PolicyClientConfig {
	return PolicyClientConfig{
		BaseURL:                     baseURL,
		Package:                     pkg,
		Timeout:                     100 * time.Millisecond,
		ConsecutiveFailureThreshold: 5,
		Interval:                    30 * time.Second,
		OpenDuration:                15 * time.Second,
	}
}

// NewHTTPPolicyClient constructs a client with its own breaker instance.
// onStateChange may be nil; when set it is wired to the breaker's
// OnStateChange hook so callers can export breaker-state metrics.
func NewHTTPPolicyClient(cfg PolicyClientConfig, onStateChange func(name string, from, to gobreaker.State)) *HTTPPolicyClient {
	settings := gobreaker.Settings{
		Name:     "external_policy_evaluator",
		Interval: cfg.Interval,
		Timeout:  cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailureThreshold
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = onStateChange
	}
	return &HTTPPolicyClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		policyPkg:  cfg.Package,
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

type policyRequest struct {
	Input policyInput `json:"input"`
}

type policyInput struct {
	Agent    string `json:"agent"`
	Action   string `json:"action"`
	ATOCycle string `json:"ato_cycle"`
}

type policyResponse struct {
	Result bool `json:"result"`
}

// Evaluate implements ExternalPolicyEvaluator. When the breaker is open it
// returns false with gobreaker.ErrOpenState wrapped, which the caller (the
// doctrinal-fit-sibling external-policy factor) treats identically to any
// other evaluation failure: the factor fails closed.
func (c *HTTPPolicyClient) Evaluate(ctx context.Context, agentID, action, cycleID string) (bool, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doEvaluate(ctx, agentID, action, cycleID)
	})
	if err != nil {
		return false, fmt.Errorf("authz: external policy evaluation failed: %w", err)
	}
	return result.(bool), nil
}

func (c *HTTPPolicyClient) doEvaluate(ctx context.Context, agentID, action, cycleID string) (bool, error) {
	body, err := json.Marshal(policyRequest{Input: policyInput{Agent: agentID, Action: action, ATOCycle: cycleID}})
	if err != nil {
		return false, fmt.Errorf("authz: encoding policy request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/data/%s/allow", c.baseURL, c.policyPkg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("authz: building policy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("authz: policy request transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("authz: policy evaluator returned status %d", resp.StatusCode)
	}

	var decoded policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("authz: decoding policy response: %w", err)
	}
	return decoded.Result, nil
}
