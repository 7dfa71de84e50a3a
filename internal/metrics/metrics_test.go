// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwiceIsFine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg))
}

func TestObservations(t *testing.T) {
	m := New()
	m.ObserveRequest("list", "ok")
	m.ObserveRequest("list", "ok")
	m.ObserveRequest("create", "conflict")
	m.ObserveWait(3, 0.2, "ok")

	require.Equal(t, 2.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("list", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("create", "conflict")))
	require.Equal(t, 1, testutil.CollectAndCount(m.WaiterSeconds))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("list", "ok")
	m.ObserveWait(1, 0, "ok")
}
