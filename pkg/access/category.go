// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package access

import "github.com/aetheros-project/aetheros/pkg/phase"

// InformationCategory is the closed enumeration of information kinds the
// Information Broker routes queries against. Every category has exactly
// one CategoryPolicy.
type InformationCategory string

const (
	Doctrine            InformationCategory = "DOCTRINE"
	ThreatData          InformationCategory = "THREAT_DATA"
	AssetStatus         InformationCategory = "ASSET_STATUS"
	SpectrumAllocation  InformationCategory = "SPECTRUM_ALLOCATION"
	MissionPlan         InformationCategory = "MISSION_PLAN"
	Organizational      InformationCategory = "ORGANIZATIONAL"
	ProcessMetrics      InformationCategory = "PROCESS_METRICS"
)

// AllCategories enumerates the closed set, in declaration order. Used for
// validating config and for exhaustiveness checks in tests.
var AllCategories = []InformationCategory{
	Doctrine, ThreatData, AssetStatus, SpectrumAllocation, MissionPlan,
	Organizational, ProcessMetrics,
}

// Valid reports whether c is a member of the closed enumeration.
func (c InformationCategory) Valid() bool {
	for _, known := range AllCategories {
		if known == c {
			return true
		}
	}
	return false
}

// CategoryPolicy is the per-category policy record the Information Broker
// and Context Provisioner consult on every query.
//
// PhaseRestricted, when non-empty, limits the category to the listed
// phases; an empty set means unrestricted across phases.
type CategoryPolicy struct {
	Category        InformationCategory `yaml:"category" json:"category"`
	MinLevel        AccessLevel         `yaml:"min_level" json:"min_level"`
	NeedToKnow      bool                `yaml:"need_to_know" json:"need_to_know"`
	PhaseRestricted []phase.Phase       `yaml:"phase_restricted,omitempty" json:"phase_restricted,omitempty"`
	Sanitize        bool                `yaml:"sanitize" json:"sanitize"`
	Audit           bool                `yaml:"audit" json:"audit"`
}

// AllowedInPhase reports whether the category may be queried during p.
// An empty PhaseRestricted set means every phase is allowed.
func (p CategoryPolicy) AllowedInPhase(ph phase.Phase) bool {
	if len(p.PhaseRestricted) == 0 {
		return true
	}
	for _, allowed := range p.PhaseRestricted {
		if allowed == ph {
			return true
		}
	}
	return false
}

// PolicyTable is an ordered set of CategoryPolicy records, one per
// InformationCategory, loaded once at startup. Grounded on
// policy_engine.PolicyEngine: a small table compiled once and consulted
// on every call rather than rebuilt per request.
type PolicyTable struct {
	byCategory map[InformationCategory]CategoryPolicy
}

// NewPolicyTable builds a PolicyTable from the given records, indexing them
// by category. Duplicate categories are rejected so config errors surface
// at load time, not at the first query that hits the ambiguous entry.
func NewPolicyTable(records []CategoryPolicy) (*PolicyTable, error) {
	t := &PolicyTable{byCategory: make(map[InformationCategory]CategoryPolicy, len(records))}
	for _, r := range records {
		if !r.Category.Valid() {
			return nil, &InvalidCategoryError{Category: r.Category}
		}
		if _, exists := t.byCategory[r.Category]; exists {
			return nil, &DuplicatePolicyError{Category: r.Category}
		}
		t.byCategory[r.Category] = r
	}
	return t, nil
}

// Lookup returns the policy for cat. ok is false if no policy was loaded
// for that category, which the caller must treat as "deny" rather than
// assume a permissive default.
func (t *PolicyTable) Lookup(cat InformationCategory) (CategoryPolicy, bool) {
	p, ok := t.byCategory[cat]
	return p, ok
}

// InvalidCategoryError is returned when config names a category outside
// the closed enumeration.
type InvalidCategoryError struct {
	Category InformationCategory
}

func (e *InvalidCategoryError) Error() string {
	return "access: invalid information category: " + string(e.Category)
}

// DuplicatePolicyError is returned when config declares the same category
// twice.
type DuplicatePolicyError struct {
	Category InformationCategory
}

func (e *DuplicatePolicyError) Error() string {
	return "access: duplicate policy for category: " + string(e.Category)
}
