// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).(prometheus.Metric).Write(m))
	return m.GetCounter().GetValue()
}

func TestMetrics_RecordAuthorization(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordAuthorization(true, "")
	m.RecordAuthorization(false, "role_authority")
	m.RecordAuthorization(false, "role_authority")

	require.Equal(t, float64(1), counterValue(t, m.AuthorizationDecisionsTotal, "allow", ""))
	require.Equal(t, float64(2), counterValue(t, m.AuthorizationDecisionsTotal, "deny", "role_authority"))
}

func TestMetrics_RecordBrokerQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordBrokerQuery("THREAT_DATA", true)
	require.Equal(t, float64(1), counterValue(t, m.BrokerQueriesTotal, "THREAT_DATA", "true"))
}
