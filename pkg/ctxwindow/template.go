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
	"fmt"

	"github.com/aetheros-project/aetheros/pkg/phase"
)

// Template is a token-budget split across the four layers. Shares must sum
// to 1.0.
type Template struct {
	Shares map[Layer]float64
}

// DefaultTemplate is the 40/30/20/10 doctrinal/situational/historical/
// collaborative split.
func DefaultTemplate() Template {
	return Template{Shares: map[Layer]float64{
		Doctrinal: 0.40, Situational: 0.30, Historical: 0.20, Collaborative: 0.10,
	}}
}

// phase3Template boosts situational awareness during PHASE3 (the critical
// planning window), trading off historical and collaborative share.
func phase3Template() Template {
	return Template{Shares: map[Layer]float64{
		Doctrinal: 0.30, Situational: 0.45, Historical: 0.15, Collaborative: 0.10,
	}}
}

// Validate reports whether t's shares sum to 1.0 (within floating-point
// tolerance) and cover every layer.
func (t Template) Validate() error {
	var sum float64
	for _, l := range Layers {
		share, ok := t.Shares[l]
		if !ok {
			return fmt.Errorf("ctxwindow: template missing a share for layer %q", l)
		}
		if share < 0 {
			return fmt.Errorf("ctxwindow: template has a negative share for layer %q", l)
		}
		sum += share
	}
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("ctxwindow: template shares sum to %v, want 1.0", sum)
	}
	return nil
}

// Budget returns the per-layer token sub-budget for maxTokens under t,
// rounding down so the sum never exceeds maxTokens.
func (t Template) Budget(l Layer, maxTokens int) int {
	return int(t.Shares[l] * float64(maxTokens))
}

// TemplateTable resolves the template in force for a given phase, falling
// back to DefaultTemplate for any phase without an explicit override.
type TemplateTable struct {
	byPhase map[phase.Phase]Template
	fallback Template
}

// NewTemplateTable builds a table with overrides layered on top of
// DefaultTemplate as the fallback. Every override must validate.
func NewTemplateTable(overrides map[phase.Phase]Template) (*TemplateTable, error) {
	fallback := DefaultTemplate()
	if err := fallback.Validate(); err != nil {
		return nil, err
	}
	t := &TemplateTable{byPhase: make(map[phase.Phase]Template), fallback: fallback}
	for p, tmpl := range overrides {
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("ctxwindow: override for %s: %w", p, err)
		}
		t.byPhase[p] = tmpl
	}
	return t, nil
}

// DefaultTemplateTable wires in the spec's one known override: PHASE3 boosts
// situational awareness.
func DefaultTemplateTable() *TemplateTable {
	t, err := NewTemplateTable(map[phase.Phase]Template{phase.Phase3: phase3Template()})
	if err != nil {
		// Both templates are fixed constants validated above; this cannot fail.
		panic(err)
	}
	return t
}

// For returns the template in effect during ph.
func (t *TemplateTable) For(ph phase.Phase) Template {
	if tmpl, ok := t.byPhase[ph]; ok {
		return tmpl
	}
	return t.fallback
}
