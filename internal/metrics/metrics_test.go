package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_PoolLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.PoolInitialized(0, 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.CapacityBlocks.WithLabelValues("0")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.FreeBlocks.WithLabelValues("0")))

	m.Allocated(0, 2)
	m.Allocated(0, 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AllocationsTotal.WithLabelValues("0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FreeBlocks.WithLabelValues("0")))

	m.Released(0, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReleasesTotal.WithLabelValues("0")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FreeBlocks.WithLabelValues("0")))

	m.Exhausted()
	m.Corrupted(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExhaustedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CorruptionsTotal.WithLabelValues("1")))
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.PoolInitialized(0, 5)

	expected := `
# HELP slob_pool_free_blocks Current number of free blocks by pool
# TYPE slob_pool_free_blocks gauge
slob_pool_free_blocks{pool="0"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "slob_pool_free_blocks"))
}

func TestMetrics_NilRegisterer(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	require.NotPanics(t, func() {
		m.PoolInitialized(0, 1)
		m.Allocated(0, 0)
	})
	// A second unregistered instance must not collide with the first.
	_, err = New(nil)
	require.NoError(t, err)
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	var are prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &are)
}

func TestMetrics_PartialRegistrationIsRolledBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	// Occupies the name of a collector registered after the free and capacity gauges.
	taken := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slob_releases_total",
		Help: "Taken",
	})
	reg.MustRegister(taken)

	_, err := New(reg)
	require.Error(t, err)

	// Nothing from the failed attempt may still hold a name.
	require.True(t, reg.Unregister(taken))
	_, err = New(reg)
	require.NoError(t, err)
}
