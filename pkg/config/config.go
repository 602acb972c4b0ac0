// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the three YAML config trees the kernel is built
// from — agent profiles, category access policies, and the cycle phase
// schedule — and can watch them on disk for hot reload.
//
// Each tree is a thin YAML envelope around the domain types the rest of
// the module already declares (access.AgentProfile, access.CategoryPolicy,
// phase.PhaseSpec); this package owns only file I/O and decoding, never
// business rules.
package config

import (
	"fmt"
	"os"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/phase"
	"gopkg.in/yaml.v3"
)

// Trees holds the fully decoded, validated config trees a Kernel is built
// from. It does not include the Router, Sanitizers, Sources, or Templates
// collaborators — those wire up code-level backends (databases, LLM
// adapters, RAG stores) that have no YAML representation.
type Trees struct {
	Profiles []*access.AgentProfile
	Policies *access.PolicyTable
	Schedule *phase.Schedule
}

type agentProfilesDoc struct {
	Agents []*access.AgentProfile `yaml:"agents"`
}

type policiesDoc struct {
	Policies []access.CategoryPolicy `yaml:"policies"`
}

type scheduleDoc struct {
	Phases []phase.PhaseSpec `yaml:"phases"`
}

// Paths names the three files a Trees is assembled from, relative to a
// single config directory.
type Paths struct {
	AgentProfiles string
	Policies      string
	Schedule      string
}

// DefaultPaths returns the conventional file names within dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		AgentProfiles: dir + "/agents.yaml",
		Policies:      dir + "/policies.yaml",
		Schedule:      dir + "/schedule.yaml",
	}
}

// Load reads and decodes all three config trees named by p.
func Load(p Paths) (Trees, error) {
	profiles, err := LoadAgentProfiles(p.AgentProfiles)
	if err != nil {
		return Trees{}, fmt.Errorf("config: %w", err)
	}
	policies, err := LoadPolicies(p.Policies)
	if err != nil {
		return Trees{}, fmt.Errorf("config: %w", err)
	}
	schedule, err := LoadSchedule(p.Schedule)
	if err != nil {
		return Trees{}, fmt.Errorf("config: %w", err)
	}
	return Trees{Profiles: profiles, Policies: policies, Schedule: schedule}, nil
}

// LoadAgentProfiles decodes a YAML document of the form:
//
//	agents:
//	  - id: ew_planner
//	    role: ew_planner
//	    access_level: OPERATIONAL
//	    authorized_categories: [THREAT_DATA]
//	    authorized_actions: [plan_ew_mission]
//	    active_phases: [1, 2]
//	    delegation_authority: false
func LoadAgentProfiles(path string) ([]*access.AgentProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent profiles %s: %w", path, err)
	}
	var doc agentProfilesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding agent profiles %s: %w", path, err)
	}
	for _, p := range doc.Agents {
		if err := p.Finalize(); err != nil {
			return nil, fmt.Errorf("agent profiles %s: %w", path, err)
		}
	}
	return doc.Agents, nil
}

// LoadPolicies decodes a YAML document of the form:
//
//	policies:
//	  - category: THREAT_DATA
//	    min_level: OPERATIONAL
//	    need_to_know: true
//	    sanitize: true
//	    audit: true
func LoadPolicies(path string) (*access.PolicyTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policies %s: %w", path, err)
	}
	var doc policiesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding policies %s: %w", path, err)
	}
	table, err := access.NewPolicyTable(doc.Policies)
	if err != nil {
		return nil, fmt.Errorf("policies %s: %w", path, err)
	}
	return table, nil
}

// LoadSchedule decodes a YAML document of the form:
//
//	phases:
//	  - phase: 1
//	    duration_hours: 12
//	    offset_hours: 0
//	    active_agent_ids: [ew_planner, spectrum_manager]
//	    critical: false
func LoadSchedule(path string) (*phase.Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule %s: %w", path, err)
	}
	var doc scheduleDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding schedule %s: %w", path, err)
	}
	sched, err := phase.NewSchedule(doc.Phases)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", path, err)
	}
	return sched, nil
}
