// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const agentsYAML = `
agents:
  - id: ew_planner
    role: ew_planner
    access_level: OPERATIONAL
    authorized_categories: [THREAT_DATA]
    authorized_actions: [plan_ew_mission]
    active_phases: [1, 2, 3]
    delegation_authority: false
`

const policiesYAML = `
policies:
  - category: THREAT_DATA
    min_level: OPERATIONAL
    need_to_know: true
    sanitize: true
    audit: true
`

const scheduleYAML = `
phases:
  - phase: 1
    duration_hours: 12
    offset_hours: 0
    active_agent_ids: [ew_planner]
    critical: false
  - phase: 2
    duration_hours: 12
    offset_hours: 12
    active_agent_ids: [ew_planner]
    critical: false
  - phase: 3
    duration_hours: 24
    offset_hours: 24
    active_agent_ids: [ew_planner]
    critical: true
  - phase: 4
    duration_hours: 12
    offset_hours: 48
    active_agent_ids: [ew_planner]
    critical: true
  - phase: 5
    duration_hours: 8
    offset_hours: 60
    active_agent_ids: [ew_planner]
    critical: false
  - phase: 6
    duration_hours: 4
    offset_hours: 68
    active_agent_ids: [ew_planner]
    critical: false
`

func writeConfigDir(t *testing.T, agents, policies, schedule string) Paths {
	t.Helper()
	dir := t.TempDir()
	p := DefaultPaths(dir)
	require.NoError(t, os.WriteFile(p.AgentProfiles, []byte(agents), 0o644))
	require.NoError(t, os.WriteFile(p.Policies, []byte(policies), 0o644))
	require.NoError(t, os.WriteFile(p.Schedule, []byte(schedule), 0o644))
	return p
}

func TestLoad_DecodesAllThreeTrees(t *testing.T) {
	p := writeConfigDir(t, agentsYAML, policiesYAML, scheduleYAML)

	trees, err := Load(p)
	require.NoError(t, err)
	require.Len(t, trees.Profiles, 1)
	require.Equal(t, "ew_planner", trees.Profiles[0].ID)
	require.NotNil(t, trees.Policies)
	require.NotNil(t, trees.Schedule)
}

func TestLoadAgentProfiles_RejectsUnknownCategory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	bad := `
agents:
  - id: bad_agent
    role: bad
    access_level: OPERATIONAL
    authorized_categories: [NOT_A_REAL_CATEGORY]
    active_phases: [1]
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadAgentProfiles(path)
	require.Error(t, err)
}

func TestLoadSchedule_RejectsIncompletePhaseSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.yaml")
	incomplete := `
phases:
  - phase: 1
    duration_hours: 12
    offset_hours: 0
    active_agent_ids: []
`
	require.NoError(t, os.WriteFile(path, []byte(incomplete), 0o644))

	_, err := LoadSchedule(path)
	require.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	p := writeConfigDir(t, agentsYAML, policiesYAML, scheduleYAML)

	reloaded := make(chan Trees, 4)
	w, err := NewWatcher(p, func(trees Trees, reloadErr error) {
		if reloadErr == nil {
			reloaded <- trees
		}
	})
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// Editors commonly rewrite the whole file on save.
	require.NoError(t, os.WriteFile(p.AgentProfiles, []byte(agentsYAML+"\n"), 0o644))

	select {
	case trees := <-reloaded:
		require.Len(t, trees.Profiles, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
