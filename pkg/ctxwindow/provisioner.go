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
	"fmt"
	"sort"
	"sync"

	"github.com/aetheros-project/aetheros/pkg/phase"
)

// Source retrieves candidate elements for one layer, under the querying
// agent's identity. Implementations typically wrap a broker.Broker call
// against a fixed InformationCategory; see BrokerSource.
type Source interface {
	Fetch(ctx context.Context, agentID, task string) ([]Element, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, agentID, task string) ([]Element, error)

func (f SourceFunc) Fetch(ctx context.Context, agentID, task string) ([]Element, error) {
	return f(ctx, agentID, task)
}

// doctrinalFloor is the minimum number of doctrinal elements a context must
// retain; falling below it marks the context Degraded rather than pruning
// further.
const doctrinalFloor = 1

type cacheKey struct {
	agentID string
	ph      phase.Phase
	task    string
}

// Provisioner builds AgentContext windows per the layer/template/selection
// contract, and caches the result per (agent_id, phase, task) until one of
// the refresh triggers fires.
type Provisioner struct {
	sources   map[Layer]Source
	templates *TemplateTable

	mu    sync.Mutex
	cache map[cacheKey]*AgentContext
}

// NewProvisioner wires a Provisioner against one Source per layer and a
// template table. Every layer must have a Source; pass NopSource() for a
// layer with nothing to retrieve from.
func NewProvisioner(sources map[Layer]Source, templates *TemplateTable) (*Provisioner, error) {
	for _, l := range Layers {
		if _, ok := sources[l]; !ok {
			return nil, fmt.Errorf("ctxwindow: no source configured for layer %q", l)
		}
	}
	return &Provisioner{sources: sources, templates: templates, cache: make(map[cacheKey]*AgentContext)}, nil
}

// NopSource returns no candidates, for layers a deployment has not wired a
// backend for yet.
func NopSource() Source {
	return SourceFunc(func(ctx context.Context, agentID, task string) ([]Element, error) {
		return nil, nil
	})
}

// RequestContext returns the cached window for (agentID, ph, task) if one
// exists, otherwise builds and caches a fresh one.
func (p *Provisioner) RequestContext(ctx context.Context, agentID string, ph phase.Phase, task string, maxTokens int) (*AgentContext, error) {
	key := cacheKey{agentID: agentID, ph: ph, task: task}
	p.mu.Lock()
	if cached, ok := p.cache[key]; ok && cached.MaxTokens == maxTokens {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	built, err := p.build(ctx, agentID, ph, task, maxTokens)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.cache[key] = built
	p.mu.Unlock()
	return built, nil
}

func (p *Provisioner) build(ctx context.Context, agentID string, ph phase.Phase, task string, maxTokens int) (*AgentContext, error) {
	tmpl := p.templates.For(ph)
	out := &AgentContext{AgentID: agentID, Phase: ph, Task: task, MaxTokens: maxTokens}

	for _, l := range Layers {
		candidates, err := p.sources[l].Fetch(ctx, agentID, task)
		if err != nil {
			return nil, fmt.Errorf("ctxwindow: fetching layer %q: %w", l, err)
		}
		selected := selectGreedy(candidates, tmpl.Budget(l, maxTokens))
		*out.byLayer(l) = selected
	}

	p.prune(out)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("ctxwindow: built context failed validation: %w", err)
	}
	return out, nil
}

// selectGreedy sorts candidates by descending relevance and takes elements
// until the next one would exceed budget tokens.
func selectGreedy(candidates []Element, budget int) []Element {
	ordered := make([]Element, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Relevance > ordered[j].Relevance })

	var selected []Element
	used := 0
	for _, e := range ordered {
		if used+e.Tokens > budget {
			continue
		}
		selected = append(selected, e)
		used += e.Tokens
	}
	return selected
}

// prune removes lowest-relevance elements, in order collaborative →
// historical → situational → doctrinal, until total tokens fit within
// MaxTokens. The doctrinal layer will not be pruned below doctrinalFloor;
// if it still cannot fit, the context is marked Degraded instead.
func (p *Provisioner) prune(c *AgentContext) {
	total := func() int {
		sum := 0
		for _, e := range c.Provisioned() {
			sum += e.Tokens
		}
		return sum
	}

	for _, l := range pruneOrder {
		for total() > c.MaxTokens {
			layer := c.byLayer(l)
			if len(*layer) == 0 {
				break
			}
			if l == Doctrinal && len(*layer) <= doctrinalFloor {
				break
			}
			removeLowestRelevance(layer)
		}
	}
	c.TotalTokens = total()
	if c.TotalTokens > c.MaxTokens {
		c.Degraded = true
	}
}

func removeLowestRelevance(layer *[]Element) {
	elems := *layer
	if len(elems) == 0 {
		return
	}
	minIdx := 0
	for i, e := range elems {
		if e.Relevance < elems[minIdx].Relevance {
			minIdx = i
		}
	}
	*layer = append(elems[:minIdx], elems[minIdx+1:]...)
}

// Refresh invalidates the cached window for (agentID, ph, task), forcing the
// next RequestContext call to rebuild it. Callers invoke this on every
// refresh trigger: phase transition, new intelligence event, task change, or
// an explicit caller-initiated refresh.
func (p *Provisioner) Refresh(agentID string, ph phase.Phase, task string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, cacheKey{agentID: agentID, ph: ph, task: task})
}

// RefreshAgent invalidates every cached window for agentID, regardless of
// phase or task, for triggers that are agent-wide rather than
// task-specific (a phase transition, for instance).
func (p *Provisioner) RefreshAgent(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.cache {
		if key.agentID == agentID {
			delete(p.cache, key)
		}
	}
}
