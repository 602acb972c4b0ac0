// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ctxwindow implements the Context Provisioner: bounded,
// phase-templated context windows assembled from four typed layers
// (doctrinal, situational, historical, collaborative) under a token budget,
// plus the utilization tracker that scores how much of a provisioned window
// an agent's response actually used.
package ctxwindow

import (
	"fmt"
	"regexp"

	"github.com/aetheros-project/aetheros/pkg/aethererr"
	"github.com/aetheros-project/aetheros/pkg/phase"
)

// Layer is one of the four typed context-window partitions.
type Layer string

const (
	Doctrinal     Layer = "doctrinal"
	Situational   Layer = "situational"
	Historical    Layer = "historical"
	Collaborative Layer = "collaborative"
)

// Layers enumerates the four layers in their fixed prune order: last entry
// is pruned first. See Provisioner.prune.
var Layers = []Layer{Doctrinal, Situational, Historical, Collaborative}

// pruneOrder lists layers in the order overflow is removed in:
// collaborative goes first, doctrinal last.
var pruneOrder = []Layer{Collaborative, Historical, Situational, Doctrinal}

// elementIDPattern enforces invariant (ii): every element ID is
// prefix-typed, e.g. "DOC-7", "THR-2".
var elementIDPattern = regexp.MustCompile(`^[A-Za-z]+-\S+$`)

// Element is one retrievable unit of context, stamped with a globally
// unique, prefix-typed ID.
type Element struct {
	ID        string
	Content   string
	Relevance float64
	Tokens    int
}

// Valid reports whether e's ID is well-formed per invariant (ii).
func (e Element) Valid() bool {
	return e.ID != "" && elementIDPattern.MatchString(e.ID)
}

// AgentContext is the bounded, token-budgeted window delivered to an agent
// for one task.
type AgentContext struct {
	AgentID      string
	Phase        phase.Phase
	Task         string
	Doctrinal    []Element
	Situational  []Element
	Historical   []Element
	Collaborative []Element
	MaxTokens    int
	TotalTokens  int
	Degraded     bool
}

// byLayer returns the slice backing layer, for code that needs to iterate
// generically over all four.
func (c *AgentContext) byLayer(l Layer) *[]Element {
	switch l {
	case Doctrinal:
		return &c.Doctrinal
	case Situational:
		return &c.Situational
	case Historical:
		return &c.Historical
	case Collaborative:
		return &c.Collaborative
	default:
		panic(fmt.Sprintf("ctxwindow: unknown layer %q", l))
	}
}

// Provisioned returns every element across all four layers, in layer order
// (doctrinal, situational, historical, collaborative).
func (c *AgentContext) Provisioned() []Element {
	var all []Element
	for _, l := range Layers {
		all = append(all, *c.byLayer(l)...)
	}
	return all
}

// Validate checks the four context-window invariants: no element in more
// than one layer, every ID unique and prefix-typed, and total tokens within
// budget. It does not check referenced ⊆ provisioned, since Referenced is
// not a property of AgentContext itself — see Utilization. A context that
// Degraded has already admitted it could not fit doctrinal below its floor,
// so the budget check is skipped for it; the other three invariants still
// hold unconditionally.
func (c *AgentContext) Validate() error {
	seen := make(map[string]Layer)
	total := 0
	for _, l := range Layers {
		for _, e := range *c.byLayer(l) {
			if !e.Valid() {
				return &aethererr.InvariantViolation{Detail: fmt.Sprintf("element %q has an invalid or missing prefix-typed id", e.ID)}
			}
			if owner, ok := seen[e.ID]; ok {
				return &aethererr.InvariantViolation{Detail: fmt.Sprintf("element %q appears in both %q and %q layers", e.ID, owner, l)}
			}
			seen[e.ID] = l
			total += e.Tokens
		}
	}
	if total > c.MaxTokens && !c.Degraded {
		return &aethererr.InvariantViolation{Detail: fmt.Sprintf("total tokens %d exceeds max_tokens %d", total, c.MaxTokens)}
	}
	return nil
}
