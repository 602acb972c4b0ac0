// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/aethererr"
	"github.com/aetheros-project/aetheros/pkg/agentrt"
	"github.com/aetheros-project/aetheros/pkg/audit"
	"github.com/aetheros-project/aetheros/pkg/authz"
	"github.com/aetheros-project/aetheros/pkg/broker"
	"github.com/aetheros-project/aetheros/pkg/ctxwindow"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

// deconflictionRateThreshold and resourceBottleneckThreshold are
// representative defaults for the DECONFLICTION_ISSUE and
// RESOURCE_BOTTLENECK auto-flags' cycle-scoped counters; the spec names no normative value for either.
const (
	deconflictionRateThreshold  = 0.25
	resourceBottleneckThreshold = 3
)

// categoryCounter tracks one category's query attempts and denials within
// the active cycle, for the DECONFLICTION_ISSUE and RESOURCE_BOTTLENECK
// auto-flag rules.
type categoryCounter struct {
	attempts int
	denials  int
}

// Config wires every collaborator the Kernel needs at startup. Policies,
// the router, the sanitizer table, the context sources/templates, and the
// phase-action allowlist all come from the three config trees described in
// the external-interfaces surface; building them from YAML is pkg/config's
// job, not this package's.
type Config struct {
	Profiles []*access.AgentProfile
	Policies *access.PolicyTable

	Schedule     *phase.Schedule
	PhaseActions map[phase.Phase]map[string]struct{}

	Router     *broker.Router
	Sanitizers *broker.SanitizerTable

	Sources   map[ctxwindow.Layer]ctxwindow.Source
	Templates *ctxwindow.TemplateTable

	Doctrine authz.DoctrineComplianceChecker
	External authz.ExternalPolicyEvaluator

	AuditLog       *audit.Log
	ImprovementLog *improvement.Log
	Escalation     agentrt.EscalationSink

	Log *slog.Logger
}

// Kernel is the single point of entry the Kernel API surface is built
// from. It owns no persistence itself — audit.Log and improvement.Log are
// constructed by the caller against a shared store.DB and handed in.
type Kernel struct {
	mu sync.RWMutex

	profiles []*access.AgentProfile
	registry *access.Registry
	policies *access.PolicyTable
	online   map[string]bool

	phaseActions map[phase.Phase]map[string]struct{}
	router       *broker.Router
	sanitizers   *broker.SanitizerTable
	doctrine     authz.DoctrineComplianceChecker
	external     authz.ExternalPolicyEvaluator

	orchestrator   *phase.Orchestrator
	engine         *authz.Engine
	broker         *broker.Broker
	provisioner    *ctxwindow.Provisioner
	runtime        *agentrt.Runtime
	auditLog       *audit.Log
	improvementLog *improvement.Log

	cycleMu       sync.Mutex
	cycleCounters map[access.InformationCategory]*categoryCounter

	log *slog.Logger
	now func() time.Time
}

// New wires a Kernel from cfg. Every agent in cfg.Profiles is registered
// and marked online immediately, matching a process that starts up already
// knowing its full agent roster from config.
func New(cfg Config) (*Kernel, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Policies == nil {
		return nil, fmt.Errorf("kernel: config is missing an access policy table")
	}
	schedule := cfg.Schedule
	if schedule == nil {
		schedule = phase.DefaultSchedule()
	}

	registry, err := access.NewRegistry(cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("kernel: build registry: %w", err)
	}

	k := &Kernel{
		profiles:       append([]*access.AgentProfile(nil), cfg.Profiles...),
		registry:       registry,
		policies:       cfg.Policies,
		online:         make(map[string]bool, len(cfg.Profiles)),
		phaseActions:   cfg.PhaseActions,
		router:         cfg.Router,
		sanitizers:     cfg.Sanitizers,
		doctrine:       cfg.Doctrine,
		external:       cfg.External,
		orchestrator:   phase.NewOrchestrator(schedule, cfg.Log),
		auditLog:       cfg.AuditLog,
		improvementLog: cfg.ImprovementLog,
		cycleCounters:  make(map[access.InformationCategory]*categoryCounter),
		log:            cfg.Log,
		now:            time.Now,
	}
	k.engine = authz.NewEngine(registry, cfg.Policies, cfg.PhaseActions, k.orchestrator, cfg.Doctrine, cfg.External, k.orchestrator.CycleID, cfg.ImprovementLog)
	k.broker = broker.New(registry, cfg.Policies, cfg.Router, cfg.Sanitizers, cfg.AuditLog, k.orchestrator)

	provisioner, err := ctxwindow.NewProvisioner(cfg.Sources, cfg.Templates)
	if err != nil {
		return nil, fmt.Errorf("kernel: build context provisioner: %w", err)
	}
	k.provisioner = provisioner

	// The Kernel itself satisfies agentrt.ActivationGate: an agent is active
	// only when the Phase Orchestrator's schedule says so AND the operator
	// has not taken it offline with DeactivateAgent.
	k.runtime = agentrt.New(k, provisioner, cfg.Escalation, cfg.Log, k.orchestrator, cfg.ImprovementLog)

	for _, p := range cfg.Profiles {
		k.online[p.ID] = true
		k.runtime.RegisterAgent(p.ID)
	}

	return k, nil
}

// IsAgentActive implements agentrt.ActivationGate. An agent is active only
// while the current phase's schedule includes it and it has not been taken
// offline by DeactivateAgent.
func (k *Kernel) IsAgentActive(agentID string) bool {
	if !k.orchestrator.IsAgentActive(agentID) {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.online[agentID]
}

// RegisterAgent admits profile into the live agent directory.
// access.Registry is immutable once built — profiles are "loaded once from
// config at startup," per its own doc comment — so registration does not
// mutate the existing Registry; it builds a fresh one (and the
// Authorization Engine and Information Broker that close over it) under
// the Kernel's lock and swaps them in atomically. This is the in-process
// analogue of the config-reload path access.AgentProfile describes,
// reconciled with the Kernel API's runtime register_agent() operation (see
// DESIGN.md).
func (k *Kernel) RegisterAgent(profile *access.AgentProfile) error {
	if profile == nil {
		return fmt.Errorf("kernel: register_agent: profile is nil")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.registry.Get(profile.ID); exists {
		return fmt.Errorf("kernel: register_agent: agent %q is already registered", profile.ID)
	}

	profiles := append(append([]*access.AgentProfile(nil), k.profiles...), profile)
	registry, err := access.NewRegistry(profiles)
	if err != nil {
		return fmt.Errorf("kernel: register_agent: %w", err)
	}
	engine := authz.NewEngine(registry, k.policies, k.phaseActions, k.orchestrator, k.doctrine, k.external, k.orchestrator.CycleID, k.improvementLog)
	brk := broker.New(registry, k.policies, k.router, k.sanitizers, k.auditLog, k.orchestrator)

	k.profiles = profiles
	k.registry = registry
	k.engine = engine
	k.broker = brk
	k.online[profile.ID] = true
	k.runtime.RegisterAgent(profile.ID)
	return nil
}

// ActivateAgent brings a previously-registered agent back online. It is a
// no-op that succeeds if the agent is already online.
func (k *Kernel) ActivateAgent(agentID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.registry.Get(agentID); !ok {
		return fmt.Errorf("kernel: activate_agent: unknown agent %q", agentID)
	}
	k.online[agentID] = true
	return nil
}

// DeactivateAgent takes a registered agent offline: IsAgentActive reports
// false for it regardless of what the phase schedule says, and
// SendAgentMessage/Broadcast calls to or from it fail with
// aethererr.NotActive until it is reactivated.
func (k *Kernel) DeactivateAgent(agentID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.registry.Get(agentID); !ok {
		return fmt.Errorf("kernel: deactivate_agent: unknown agent %q", agentID)
	}
	k.online[agentID] = false
	return nil
}

// ListAgents returns every registered agent and its online bit, in no
// particular order.
func (k *Kernel) ListAgents() []RegisteredAgent {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]RegisteredAgent, 0, len(k.profiles))
	for _, p := range k.profiles {
		out = append(out, RegisteredAgent{Profile: p, Online: k.online[p.ID]})
	}
	return out
}

// StartCycle begins a new ATO cycle anchored at the current time. A fresh
// cycle also resets the per-category attempt/denial counters the
// DECONFLICTION_ISSUE and RESOURCE_BOTTLENECK auto-flag rules track.
func (k *Kernel) StartCycle(cycleID string) (*phase.Cycle, error) {
	cycle, err := k.orchestrator.StartCycle(cycleID, k.now())
	if err == nil {
		k.cycleMu.Lock()
		k.cycleCounters = make(map[access.InformationCategory]*categoryCounter)
		k.cycleMu.Unlock()
	}
	return cycle, err
}

// CurrentPhase reports the active cycle's current phase.
func (k *Kernel) CurrentPhase() (phase.Phase, error) {
	return k.orchestrator.CurrentPhase()
}

// AdvancePhase forces an immediate transition to the next phase. Each
// transition starts a fresh logical-decision window for
// REDUNDANT_COORDINATION counting.
func (k *Kernel) AdvancePhase() (phase.Phase, []phase.HandlerError, error) {
	ph, handlerErrs, err := k.orchestrator.Advance(k.now())
	if err == nil {
		k.runtime.ResetCoordination()
	}
	return ph, handlerErrs, err
}

// AdvancePhaseWithOverride forces a transition and records reason as an
// operator override, for a phase advance outside the normal schedule.
func (k *Kernel) AdvancePhaseWithOverride(reason string) (phase.Phase, []phase.HandlerError, error) {
	ph, handlerErrs, err := k.orchestrator.AdvanceWithOverride(k.now(), reason)
	if err == nil {
		k.runtime.ResetCoordination()
	}
	return ph, handlerErrs, err
}

// Tick evaluates the schedule against the current time and performs every
// transition the elapsed time justifies. Callers on a real clock should
// call this periodically instead of AdvancePhase.
func (k *Kernel) Tick() ([]phase.Event, []phase.HandlerError, error) {
	events, handlerErrs, err := k.orchestrator.Tick(k.now())
	if len(events) > 0 {
		k.runtime.ResetCoordination()
	}
	return events, handlerErrs, err
}

// QueryInformation routes to the Information Broker, then evaluates the
// INFORMATION_GAP, DECONFLICTION_ISSUE, and RESOURCE_BOTTLENECK auto-flag
// rules against the outcome.
func (k *Kernel) QueryInformation(ctx context.Context, agentID string, cat access.InformationCategory, params broker.QueryParams) (broker.Result, error) {
	k.mu.RLock()
	b := k.broker
	k.mu.RUnlock()
	result, err := b.Query(ctx, agentID, cat, params)
	k.recordInformationOutcome(agentID, cat, result, err)
	return result, err
}

// recordInformationOutcome raises an INFORMATION_GAP flag when a query comes
// back Unauthorized or empty, and folds the outcome into this cycle's
// per-category counters for the DECONFLICTION_ISSUE (SpectrumAllocation) and
// RESOURCE_BOTTLENECK (AssetStatus) rules. broker.Result carries no explicit
// accept/deny field, so an empty Records slice is treated as a denial — the
// same proxy the spec's own "returns Unauthorized or empty" wording uses.
func (k *Kernel) recordInformationOutcome(agentID string, cat access.InformationCategory, result broker.Result, queryErr error) {
	var unauthorized *aethererr.Unauthorized
	denied := errors.As(queryErr, &unauthorized) || (queryErr == nil && len(result.Records) == 0)

	k.cycleMu.Lock()
	counter := k.cycleCounters[cat]
	if counter == nil {
		counter = &categoryCounter{}
		k.cycleCounters[cat] = counter
	}
	counter.attempts++
	if denied {
		counter.denials++
	}
	attempts, denials := counter.attempts, counter.denials
	k.cycleMu.Unlock()

	if k.improvementLog == nil {
		return
	}
	ph, phErr := k.orchestrator.CurrentPhase()
	if phErr != nil {
		return
	}
	cycleID := k.orchestrator.CycleID()

	if denied {
		reason := "empty result set"
		if unauthorized != nil {
			reason = "unauthorized"
		}
		description := fmt.Sprintf("query for category %q by %q returned %s", cat, agentID, reason)
		_, _ = k.improvementLog.Append(cycleID, ph, agentID, string(cat), improvement.InformationGap,
			description, nil, "confirm the category's backend and policy actually cover this caller's need", k.now())
	}

	switch cat {
	case access.SpectrumAllocation:
		rate := float64(denials) / float64(attempts)
		if improvement.DeconflictionIssueApplies(rate, deconflictionRateThreshold) {
			description := fmt.Sprintf("spectrum allocation denial rate %.2f this cycle exceeds threshold %.2f", rate, deconflictionRateThreshold)
			_, _ = k.improvementLog.Append(cycleID, ph, agentID, "spectrum_deconfliction", improvement.DeconflictionIssue,
				description, nil, "escalate to the spectrum manager for manual deconfliction", k.now())
		}
	case access.AssetStatus:
		if improvement.ResourceBottleneckApplies(denials, resourceBottleneckThreshold) && !improvement.ResourceBottleneckApplies(denials-1, resourceBottleneckThreshold) {
			description := fmt.Sprintf("%d asset-reservation denials this cycle, above threshold %d", denials, resourceBottleneckThreshold)
			_, _ = k.improvementLog.Append(cycleID, ph, agentID, "asset_reservation", improvement.ResourceBottleneck,
				description, nil, "review asset allocation capacity for this cycle", k.now())
		}
	}
}

// AuthorizeAction routes to the Authorization Engine.
func (k *Kernel) AuthorizeAction(ctx context.Context, agentID, action string, actx authz.ActionContext) authz.Decision {
	k.mu.RLock()
	e := k.engine
	k.mu.RUnlock()
	return e.Authorize(ctx, agentID, action, actx)
}

// SendAgentMessage routes a point-to-point message through the Agent
// Runtime, blocking for the reply subject to ctx's deadline.
func (k *Kernel) SendAgentMessage(ctx context.Context, from, to, msgType string, payload any) (any, error) {
	return k.runtime.SendMessage(ctx, from, to, msgType, payload)
}

// BroadcastAgentMessage routes a broadcast through the Agent Runtime.
func (k *Kernel) BroadcastAgentMessage(ctx context.Context, from string, activeAgents []string, msgType string, payload any) []agentrt.BroadcastResult {
	return k.runtime.Broadcast(ctx, from, activeAgents, msgType, payload)
}

// RequestAgentContext provisions a context window for agentID through the
// Context Provisioner, under the phase the orchestrator currently reports.
func (k *Kernel) RequestAgentContext(ctx context.Context, agentID string, task string, maxTokens int) (*ctxwindow.AgentContext, error) {
	ph, err := k.orchestrator.CurrentPhase()
	if err != nil {
		return nil, err
	}
	return k.runtime.RequestContext(ctx, agentID, ph, task, maxTokens)
}

// GetProcessImprovementReport answers get_process_improvement_report(): the
// full flag log plus any recurrence patterns currently above threshold.
// Pass 0 for either threshold to use improvement.AnalyzePatterns' defaults.
func (k *Kernel) GetProcessImprovementReport(minCardinality, minCycleSpan int) (ImprovementReport, error) {
	if k.improvementLog == nil {
		return ImprovementReport{}, fmt.Errorf("kernel: get_process_improvement_report: no process-improvement log configured")
	}
	flags, err := k.improvementLog.All()
	if err != nil {
		return ImprovementReport{}, fmt.Errorf("kernel: get_process_improvement_report: %w", err)
	}
	return ImprovementReport{
		Flags:    flags,
		Patterns: improvement.AnalyzePatterns(flags, minCardinality, minCycleSpan),
	}, nil
}

// GetPerformanceReport answers get_performance_report(agent_id, cycles).
// cycles bounds the process-improvement window to the agent's most recent
// N distinct cycle IDs (0 means "every cycle on record"); see
// PerformanceReport's doc comment for why the audit-derived fields are not
// windowed the same way.
func (k *Kernel) GetPerformanceReport(agentID string, cycles int) (PerformanceReport, error) {
	report := PerformanceReport{AgentID: agentID}

	if k.improvementLog != nil {
		all, err := k.improvementLog.All()
		if err != nil {
			return PerformanceReport{}, fmt.Errorf("kernel: get_performance_report: %w", err)
		}
		var agentFlags []improvement.Flag
		for _, f := range all {
			if f.AgentID == agentID {
				agentFlags = append(agentFlags, f)
			}
		}
		window := recentCycleWindow(agentFlags, cycles)
		var windowed []improvement.Flag
		for _, f := range agentFlags {
			if window == nil || window[f.CycleID] {
				windowed = append(windowed, f)
				report.CyclesCovered = appendIfMissing(report.CyclesCovered, f.CycleID)
			}
		}
		report.Flags = windowed
		report.FlagsRaised = len(windowed)
	}

	if k.auditLog != nil {
		all, err := k.auditLog.All()
		if err != nil {
			return PerformanceReport{}, fmt.Errorf("kernel: get_performance_report: %w", err)
		}
		for _, e := range all {
			if e.AgentID != agentID {
				continue
			}
			report.AuditEntries = append(report.AuditEntries, e)
			report.QueriesTotal++
			if e.Sanitized {
				report.QueriesSanitized++
			}
		}
	}

	return report, nil
}

// recentCycleWindow returns the set of the last n distinct cycle IDs seen
// in flags, in first-seen order, or nil (meaning "no filtering") if n<=0.
func recentCycleWindow(flags []improvement.Flag, n int) map[string]bool {
	if n <= 0 {
		return nil
	}
	var order []string
	seen := make(map[string]bool)
	for _, f := range flags {
		if !seen[f.CycleID] {
			seen[f.CycleID] = true
			order = append(order, f.CycleID)
		}
	}
	if len(order) > n {
		order = order[len(order)-n:]
	}
	window := make(map[string]bool, len(order))
	for _, c := range order {
		window[c] = true
	}
	return window
}

func appendIfMissing(ss []string, s string) []string {
	for _, existing := range ss {
		if existing == s {
			return ss
		}
	}
	return append(ss, s)
}
