// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agentrt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aetheros-project/aetheros/pkg/aethererr"
	"github.com/aetheros-project/aetheros/pkg/ctxwindow"
	"github.com/aetheros-project/aetheros/pkg/improvement"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

// ActivationGate reports which agents the orchestrator currently considers
// active. *phase.Orchestrator satisfies this directly.
type ActivationGate interface {
	IsAgentActive(agentID string) bool
}

// CycleInfo is the slice of the Kernel/Phase Orchestrator the runtime needs
// to stamp a REDUNDANT_COORDINATION flag: the active cycle and phase. Both
// *kernel.Kernel and *phase.Orchestrator (wrapped) satisfy this.
type CycleInfo interface {
	CurrentPhase() (phase.Phase, error)
	CycleID() string
}

// EscalationSink receives human escalations. The default sink logs at Warn
// level; deployments that wire a paging system or ticket queue supply their
// own.
type EscalationSink interface {
	Escalate(agentID, reason string, payload any)
}

// EscalationSinkFunc adapts a plain function to EscalationSink.
type EscalationSinkFunc func(agentID, reason string, payload any)

func (f EscalationSinkFunc) Escalate(agentID, reason string, payload any) {
	f(agentID, reason, payload)
}

// Runtime is the Agent Runtime: per-agent context requests, doctrinal
// procedure instrumentation, and point-to-point/broadcast messaging, all
// gated by which agents are active in the current phase.
type Runtime struct {
	gate        ActivationGate
	provisioner *ctxwindow.Provisioner
	escalation  EscalationSink
	log         *slog.Logger
	cycle       CycleInfo
	flagLog     *improvement.Log

	mu         sync.Mutex
	inboxes    map[string]*inbox
	roundTrips map[string]int
}

// New wires a Runtime. escalation may be nil, in which case escalations are
// only logged. cycle and flagLog may both be nil, in which case round-trip
// coordination counting is tracked in memory but never raises a flag.
func New(gate ActivationGate, provisioner *ctxwindow.Provisioner, escalation EscalationSink, log *slog.Logger, cycle CycleInfo, flagLog *improvement.Log) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{
		gate: gate, provisioner: provisioner, escalation: escalation, log: log,
		cycle: cycle, flagLog: flagLog,
		inboxes: make(map[string]*inbox), roundTrips: make(map[string]int),
	}
}

// RegisterAgent creates agentID's inbox. Must be called once before the
// agent can receive messages; calling it again is a no-op.
func (rt *Runtime) RegisterAgent(agentID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.inboxes[agentID]; !ok {
		rt.inboxes[agentID] = newInbox()
	}
}

// Inbox returns agentID's receive channel for its processing loop to range
// over. Returns nil if agentID was never registered.
func (rt *Runtime) Inbox(agentID string) <-chan InboundMessage {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	ib, ok := rt.inboxes[agentID]
	if !ok {
		return nil
	}
	return ib.C()
}

// RequestContext provisions a context window for agentID's task under the
// caller-supplied phase ph, which is passed straight to the provisioner;
// the runtime does not look up the cycle's current phase itself.
func (rt *Runtime) RequestContext(ctx context.Context, agentID string, ph phase.Phase, task string, maxTokens int) (*ctxwindow.AgentContext, error) {
	return rt.provisioner.RequestContext(ctx, agentID, ph, task, maxTokens)
}

// SendMessage delivers a point-to-point request from "from" to "to" and
// blocks for the reply, subject to ctx's deadline. Both ends must be active
// in the current phase or the call fails with *aethererr.NotActive instead
// of buffering the message for later delivery.
func (rt *Runtime) SendMessage(ctx context.Context, from, to, msgType string, payload any) (any, error) {
	if !rt.gate.IsAgentActive(from) {
		return nil, &aethererr.NotActive{AgentID: from}
	}
	if !rt.gate.IsAgentActive(to) {
		return nil, &aethererr.NotActive{AgentID: to}
	}
	rt.mu.Lock()
	ib, ok := rt.inboxes[to]
	rt.mu.Unlock()
	if !ok {
		return nil, &aethererr.NotActive{AgentID: to}
	}

	replyCh := make(chan Reply, 1)
	msg := InboundMessage{From: from, To: to, Type: msgType, Payload: payload, reply: replyCh}

	select {
	case ib.ch <- msg:
	case <-ctx.Done():
		return nil, &aethererr.DeadlineExceeded{Operation: fmt.Sprintf("send_message(%s -> %s)", from, to)}
	}

	select {
	case r := <-replyCh:
		if r.Err == nil {
			rt.recordRoundTrip(from, to, msgType)
		}
		return r.Payload, r.Err
	case <-ctx.Done():
		return nil, &aethererr.DeadlineExceeded{Operation: fmt.Sprintf("send_message(%s -> %s) awaiting reply", from, to)}
	}
}

// recordRoundTrip counts a completed (from, to, msgType) exchange toward
// REDUNDANT_COORDINATION and raises a flag once the count reaches the
// threshold. Counts are scoped to one logical decision by resetting on every
// ResetCoordination call, which Kernel issues on each phase transition.
func (rt *Runtime) recordRoundTrip(from, to, msgType string) {
	key := from + "\x00" + to + "\x00" + msgType
	rt.mu.Lock()
	rt.roundTrips[key]++
	count := rt.roundTrips[key]
	rt.mu.Unlock()

	justCrossed := improvement.RedundantCoordinationApplies(count) && !improvement.RedundantCoordinationApplies(count-1)
	if !justCrossed || rt.flagLog == nil || rt.cycle == nil {
		return
	}
	ph, err := rt.cycle.CurrentPhase()
	if err != nil {
		return
	}
	description := fmt.Sprintf("%d round trips from %q to %q for %q", count, from, to, msgType)
	_, _ = rt.flagLog.Append(rt.cycle.CycleID(), ph, from, msgType, improvement.RedundantCoordination,
		description, nil, "consolidate this exchange into a single coordination message", time.Now())
}

// ResetCoordination clears round-trip counts for every agent pair, marking
// the end of one logical decision window. Kernel calls this on every phase
// transition.
func (rt *Runtime) ResetCoordination() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.roundTrips = make(map[string]int)
}

// BroadcastResult is one agent's outcome from a Broadcast call.
type BroadcastResult struct {
	AgentID string
	Reply   any
	Err     error
}

// Broadcast sends the same message to every active agent in activeAgents
// except from, aggregating replies best-effort: an agent that does not
// reply before ctx's deadline is simply absent from the result rather than
// failing the whole call.
func (rt *Runtime) Broadcast(ctx context.Context, from string, activeAgents []string, msgType string, payload any) []BroadcastResult {
	var wg sync.WaitGroup
	results := make(chan BroadcastResult, len(activeAgents))
	for _, to := range activeAgents {
		if to == from {
			continue
		}
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			reply, err := rt.SendMessage(ctx, from, to, msgType, payload)
			results <- BroadcastResult{AgentID: to, Reply: reply, Err: err}
		}(to)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var out []BroadcastResult
	for r := range results {
		if ctx.Err() != nil && r.Err != nil {
			continue // best-effort: drop stragglers that missed the deadline
		}
		out = append(out, r)
	}
	return out
}

// EscalateToHuman routes reason/payload to the configured EscalationSink
// and always logs the escalation, regardless of whether a sink is wired.
func (rt *Runtime) EscalateToHuman(agentID, reason string, payload any) {
	rt.log.Warn("escalation to human operator", "agent_id", agentID, "reason", reason)
	if rt.escalation != nil {
		rt.escalation.Escalate(agentID, reason, payload)
	}
}
