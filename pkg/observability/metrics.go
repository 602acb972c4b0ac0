// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the kernel's five
// subsystems: phase transitions, authorization decisions, information
// broker queries, context provisioning, and process-improvement flags.
//
// Metrics are exposed via /metrics for Prometheus scraping; see
// pkg/httpapi for the route wiring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aetheros"
	kernelSubsystem  = "kernel"
)

// Metrics holds every Prometheus instrument the kernel records against.
// Initialize once at startup via NewMetrics() and pass the instance to
// every subsystem that needs to record against it.
type Metrics struct {
	// PhaseTransitionsTotal counts phase transitions by destination phase
	// and kind (scheduled, override, cycle_restart).
	PhaseTransitionsTotal *prometheus.CounterVec

	// PhaseDurationSeconds measures wall-clock time actually spent in a
	// phase before it transitioned out, labeled by phase.
	PhaseDurationSeconds *prometheus.HistogramVec

	// AuthorizationDecisionsTotal counts Authorize() calls by outcome
	// (allow, deny) and the first failing factor when denied ("" when
	// allowed).
	AuthorizationDecisionsTotal *prometheus.CounterVec

	// BrokerQueriesTotal counts Information Broker queries by category and
	// whether the result was sanitized.
	BrokerQueriesTotal *prometheus.CounterVec

	// ContextTokensProvisioned measures the token count of provisioned
	// context windows, by layer.
	ContextTokensProvisioned *prometheus.HistogramVec

	// ImprovementFlagsTotal counts process-improvement flags raised, by
	// inefficiency type.
	ImprovementFlagsTotal *prometheus.CounterVec

	// ActiveAgents gauges how many agents the current phase considers
	// active.
	ActiveAgents prometheus.Gauge
}

// NewMetrics registers every kernel metric against reg and returns the
// handle. Passing a fresh *prometheus.Registry (rather than the global
// default) keeps repeated calls in tests from panicking on duplicate
// registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PhaseTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name: "phase_transitions_total",
				Help: "Total phase transitions by destination phase and kind",
			},
			[]string{"phase", "kind"},
		),
		PhaseDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name:    "phase_duration_seconds",
				Help:    "Wall-clock time spent in a phase before transitioning out",
				Buckets: []float64{60, 300, 1800, 3600, 14400, 43200, 86400},
			},
			[]string{"phase"},
		),
		AuthorizationDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name: "authorization_decisions_total",
				Help: "Total Authorize() calls by outcome and first failing factor",
			},
			[]string{"outcome", "factor"},
		),
		BrokerQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name: "broker_queries_total",
				Help: "Total Information Broker queries by category and sanitization",
			},
			[]string{"category", "sanitized"},
		),
		ContextTokensProvisioned: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name:    "context_tokens_provisioned",
				Help:    "Token count of provisioned context windows by layer",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"layer"},
		),
		ImprovementFlagsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name: "improvement_flags_total",
				Help: "Total process-improvement flags raised by inefficiency type",
			},
			[]string{"type"},
		),
		ActiveAgents: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace, Subsystem: kernelSubsystem,
				Name: "active_agents",
				Help: "Number of agents active in the current phase",
			},
		),
	}
}

// RecordAuthorization records one Authorize() outcome. factor should be
// the first reason string's factor prefix (e.g. "role_authority") when
// denied, or "" when allowed.
func (m *Metrics) RecordAuthorization(allowed bool, factor string) {
	outcome := "allow"
	if !allowed {
		outcome = "deny"
	}
	m.AuthorizationDecisionsTotal.WithLabelValues(outcome, factor).Inc()
}

// RecordBrokerQuery records one Information Broker query outcome.
func (m *Metrics) RecordBrokerQuery(category string, sanitized bool) {
	m.BrokerQueriesTotal.WithLabelValues(category, boolLabel(sanitized)).Inc()
}

// RecordPhaseTransition records a phase transition and, when prevDuration
// is positive, the time spent in the phase being left.
func (m *Metrics) RecordPhaseTransition(toPhase, kind string, prevDuration float64) {
	m.PhaseTransitionsTotal.WithLabelValues(toPhase, kind).Inc()
	if prevDuration > 0 {
		m.PhaseDurationSeconds.WithLabelValues(toPhase).Observe(prevDuration)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
