package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidispatch/pkg/metrics"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ClaimsTotal.WithLabelValues("won").Inc()
	m.PartialFailuresTotal.WithLabelValues("set_busy").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("won")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PartialFailuresTotal.WithLabelValues("set_busy")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "taxidispatch_claims_total")
	assert.Contains(t, names, "taxidispatch_partial_failures_total")
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}

func TestNopIsUsable(t *testing.T) {
	m := metrics.NewNop()
	m.TransitionsTotal.WithLabelValues("COMPLETED").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("COMPLETED")))
}
