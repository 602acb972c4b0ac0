// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ctxwindow

import (
	"context"
	"testing"

	"github.com/aetheros-project/aetheros/pkg/phase"
)

func fixedSource(elements ...Element) Source {
	return SourceFunc(func(ctx context.Context, agentID, task string) ([]Element, error) {
		return elements, nil
	})
}

func newTestProvisioner(t *testing.T, sources map[Layer]Source) *Provisioner {
	t.Helper()
	full := map[Layer]Source{
		Doctrinal: NopSource(), Situational: NopSource(), Historical: NopSource(), Collaborative: NopSource(),
	}
	for l, s := range sources {
		full[l] = s
	}
	p, err := NewProvisioner(full, DefaultTemplateTable())
	if err != nil {
		t.Fatalf("NewProvisioner failed: %v", err)
	}
	return p
}

func TestProvisioner_RequestContext_RespectsTokenBudget(t *testing.T) {
	p := newTestProvisioner(t, map[Layer]Source{
		Doctrinal: fixedSource(
			Element{ID: "DOC-1", Tokens: 200, Relevance: 0.9},
			Element{ID: "DOC-2", Tokens: 200, Relevance: 0.5},
		),
	})
	ctx, err := p.RequestContext(context.Background(), "agent", phase.Phase1, "task", 1000)
	if err != nil {
		t.Fatalf("RequestContext failed: %v", err)
	}
	if err := ctx.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ctx.TotalTokens > ctx.MaxTokens {
		t.Fatalf("total tokens %d exceeds budget %d", ctx.TotalTokens, ctx.MaxTokens)
	}
}

// TestProvisioner_Prune_RemovesLowestRelevanceInOrder exercises prune
// directly against a hand-built context whose layers already exceed budget
// (as can happen when per-layer token estimates are approximate), bypassing
// the selection step's own budget filtering.
func TestProvisioner_Prune_RemovesLowestRelevanceInOrder(t *testing.T) {
	p := newTestProvisioner(t, nil)
	ctx := &AgentContext{
		MaxTokens: 60,
		Doctrinal: []Element{{ID: "DOC-1", Tokens: 50, Relevance: 0.9}},
		Collaborative: []Element{
			{ID: "COL-1", Tokens: 8, Relevance: 0.1},
			{ID: "COL-2", Tokens: 8, Relevance: 0.8},
		},
	}
	p.prune(ctx)
	if len(ctx.Collaborative) != 1 || ctx.Collaborative[0].ID != "COL-2" {
		t.Fatalf("expected only the higher-relevance collaborative element to survive, got %v", ctx.Collaborative)
	}
	if len(ctx.Doctrinal) != 1 {
		t.Fatalf("expected the doctrinal element to survive pruning, got %v", ctx.Doctrinal)
	}
}

func TestProvisioner_Prune_DoctrinalFloorDegradesInsteadOfEmptying(t *testing.T) {
	p := newTestProvisioner(t, nil)
	ctx := &AgentContext{
		MaxTokens: 10,
		Doctrinal: []Element{{ID: "DOC-1", Tokens: 5000, Relevance: 0.9}},
	}
	p.prune(ctx)
	if len(ctx.Doctrinal) != 1 {
		t.Fatalf("expected the doctrinal floor to keep the sole element, got %v", ctx.Doctrinal)
	}
	if !ctx.Degraded {
		t.Fatal("expected the context to be marked degraded when over budget at the doctrinal floor")
	}
}

func TestProvisioner_RequestContext_CachesUntilRefresh(t *testing.T) {
	calls := 0
	p := newTestProvisioner(t, map[Layer]Source{
		Doctrinal: SourceFunc(func(ctx context.Context, agentID, task string) ([]Element, error) {
			calls++
			return []Element{{ID: "DOC-1", Tokens: 10, Relevance: 1}}, nil
		}),
	})
	ctx1, _ := p.RequestContext(context.Background(), "agent", phase.Phase1, "task", 1000)
	ctx2, _ := p.RequestContext(context.Background(), "agent", phase.Phase1, "task", 1000)
	if ctx1 != ctx2 {
		t.Fatal("expected the second call to return the cached context")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one fetch before refresh, got %d", calls)
	}

	p.Refresh("agent", phase.Phase1, "task")
	_, _ = p.RequestContext(context.Background(), "agent", phase.Phase1, "task", 1000)
	if calls != 2 {
		t.Fatalf("expected a rebuild after Refresh, got %d calls", calls)
	}
}

func TestTemplateTable_Phase3BoostsSituational(t *testing.T) {
	table := DefaultTemplateTable()
	base := table.For(phase.Phase1)
	boosted := table.For(phase.Phase3)
	if boosted.Shares[Situational] <= base.Shares[Situational] {
		t.Fatalf("expected PHASE3 to boost situational share: base=%v boosted=%v",
			base.Shares[Situational], boosted.Shares[Situational])
	}
}
