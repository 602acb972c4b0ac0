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

import (
	"fmt"

	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/aetheros-project/aetheros/pkg/validation"
)

// AgentProfile is the immutable per-agent record the Authorization Engine,
// Information Broker, and Context Provisioner all consult. Profiles are
// loaded once from config at startup; there is deliberately no mutator here
// — a role change is a config reload and a process restart, not a runtime
// API call.
type AgentProfile struct {
	ID                  string              `yaml:"id" json:"id"`
	Role                string              `yaml:"role" json:"role"`
	AccessLevel         AccessLevel         `yaml:"access_level" json:"access_level"`
	AuthorizedCategories map[InformationCategory]struct{} `yaml:"-" json:"-"`
	AuthorizedActions   map[string]struct{} `yaml:"-" json:"-"`
	ActivePhases        map[phase.Phase]struct{} `yaml:"-" json:"-"`
	DelegationAuthority bool                `yaml:"delegation_authority" json:"delegation_authority"`

	// raw* mirror the map fields in config-friendly slice form; NewAgentProfile
	// builds the maps from these so lookups elsewhere are O(1) set membership
	// tests rather than linear scans.
	RawCategories []InformationCategory `yaml:"authorized_categories" json:"authorized_categories"`
	RawActions    []string              `yaml:"authorized_actions" json:"authorized_actions"`
	RawPhases     []phase.Phase         `yaml:"active_phases" json:"active_phases"`
}

// Finalize builds the set-typed fields from the raw slices loaded by the
// YAML/JSON decoder. Must be called once after unmarshaling and before the
// profile is used; NewAgentProfile does this for callers constructing a
// profile programmatically (e.g. in tests).
func (p *AgentProfile) Finalize() error {
	if p.ID == "" {
		return fmt.Errorf("access: agent profile is missing an id")
	}
	if err := validation.ValidateAgentID(p.ID); err != nil {
		return fmt.Errorf("access: %w", err)
	}
	if !p.AccessLevel.Valid() {
		return fmt.Errorf("access: agent %q has invalid access level %d", p.ID, p.AccessLevel)
	}
	p.AuthorizedCategories = make(map[InformationCategory]struct{}, len(p.RawCategories))
	for _, c := range p.RawCategories {
		if !c.Valid() {
			return fmt.Errorf("access: agent %q authorizes unknown category %q", p.ID, c)
		}
		p.AuthorizedCategories[c] = struct{}{}
	}
	p.AuthorizedActions = make(map[string]struct{}, len(p.RawActions))
	for _, a := range p.RawActions {
		if err := validation.ValidateActionName(a); err != nil {
			return fmt.Errorf("access: agent %q: %w", p.ID, err)
		}
		p.AuthorizedActions[a] = struct{}{}
	}
	p.ActivePhases = make(map[phase.Phase]struct{}, len(p.RawPhases))
	for _, ph := range p.RawPhases {
		if !ph.Valid() {
			return fmt.Errorf("access: agent %q has invalid active phase %v", p.ID, ph)
		}
		p.ActivePhases[ph] = struct{}{}
	}
	return nil
}

// NewAgentProfile constructs and finalizes a profile in one call, for
// programmatic construction in tests and seed data.
func NewAgentProfile(id, role string, level AccessLevel, categories []InformationCategory, actions []string, phases []phase.Phase, delegation bool) (*AgentProfile, error) {
	p := &AgentProfile{
		ID: id, Role: role, AccessLevel: level,
		RawCategories: categories, RawActions: actions, RawPhases: phases,
		DelegationAuthority: delegation,
	}
	if err := p.Finalize(); err != nil {
		return nil, err
	}
	return p, nil
}

// AuthorizesCategory reports whether the agent may query cat at all (the
// Authorization Engine's category factor; it does not account for the
// category's own MinLevel/NeedToKnow policy, which CategoryPolicy governs).
func (p *AgentProfile) AuthorizesCategory(cat InformationCategory) bool {
	_, ok := p.AuthorizedCategories[cat]
	return ok
}

// AuthorizesAction reports whether the agent may perform the named action.
func (p *AgentProfile) AuthorizesAction(action string) bool {
	_, ok := p.AuthorizedActions[action]
	return ok
}

// ActiveIn reports whether the agent is permitted to act during ph.
func (p *AgentProfile) ActiveIn(ph phase.Phase) bool {
	_, ok := p.ActivePhases[ph]
	return ok
}

// Registry is the loaded, indexed set of all agent profiles, keyed by ID.
type Registry struct {
	byID map[string]*AgentProfile
}

// NewRegistry indexes profiles by ID, rejecting duplicate IDs so a config
// error surfaces at load time.
func NewRegistry(profiles []*AgentProfile) (*Registry, error) {
	r := &Registry{byID: make(map[string]*AgentProfile, len(profiles))}
	for _, p := range profiles {
		if _, exists := r.byID[p.ID]; exists {
			return nil, fmt.Errorf("access: duplicate agent profile id %q", p.ID)
		}
		r.byID[p.ID] = p
	}
	return r, nil
}

// Get returns the profile for agentID, or ok=false if no such agent is
// registered.
func (r *Registry) Get(agentID string) (*AgentProfile, bool) {
	p, ok := r.byID[agentID]
	return p, ok
}

// All returns every registered profile, in no particular order.
func (r *Registry) All() []*AgentProfile {
	out := make([]*AgentProfile, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out
}
