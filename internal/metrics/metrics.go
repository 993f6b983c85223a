// Package metrics exposes allocator activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of a single allocator instance.
// Registering two instances with the same registerer panics on duplicate names.
type Metrics struct {
	// FreeBlocks tracks the number of blocks on each pool's free list.
	FreeBlocks *prometheus.GaugeVec

	// CapacityBlocks tracks the number of blocks carved from each pool's storage.
	CapacityBlocks *prometheus.GaugeVec

	// AllocationsTotal counts blocks handed out, by pool.
	AllocationsTotal *prometheus.CounterVec

	// ReleasesTotal counts blocks returned to a free list, by pool.
	ReleasesTotal *prometheus.CounterVec

	// ExhaustedTotal counts allocation requests no pool could satisfy.
	ExhaustedTotal prometheus.Counter

	// CorruptionsTotal counts releases rejected because of a corrupted header, by pool.
	CorruptionsTotal *prometheus.CounterVec
}

// New creates the allocator metrics and registers them with reg.
// A nil reg creates working but unregistered metrics. When a collector cannot
// be registered, those registered so far are unregistered and the error returned.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FreeBlocks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slob_pool_free_blocks",
				Help: "Current number of free blocks by pool",
			},
			[]string{"pool"},
		),
		CapacityBlocks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slob_pool_capacity_blocks",
				Help: "Number of blocks carved from the pool storage",
			},
			[]string{"pool"},
		),
		AllocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slob_allocations_total",
				Help: "Total number of blocks allocated by pool",
			},
			[]string{"pool"},
		),
		ReleasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slob_releases_total",
				Help: "Total number of blocks released by pool",
			},
			[]string{"pool"},
		),
		ExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_allocations_exhausted_total",
			Help: "Total number of allocation requests that found no free block",
		}),
		CorruptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slob_corrupted_releases_total",
				Help: "Total number of releases rejected due to a corrupted block header",
			},
			[]string{"pool"},
		),
	}
	if reg == nil {
		return m, nil
	}

	collectors := m.collectors()
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FreeBlocks,
		m.CapacityBlocks,
		m.AllocationsTotal,
		m.ReleasesTotal,
		m.ExhaustedTotal,
		m.CorruptionsTotal,
	}
}

func label(pool int) string {
	return strconv.Itoa(pool)
}

// PoolInitialized records a freshly fragmented pool.
func (m *Metrics) PoolInitialized(pool int, capacity int) {
	m.CapacityBlocks.WithLabelValues(label(pool)).Set(float64(capacity))
	m.FreeBlocks.WithLabelValues(label(pool)).Set(float64(capacity))
}

// Allocated records a block popped from pool, leaving free blocks.
func (m *Metrics) Allocated(pool int, free int) {
	m.AllocationsTotal.WithLabelValues(label(pool)).Inc()
	m.FreeBlocks.WithLabelValues(label(pool)).Set(float64(free))
}

// Released records a block pushed back onto pool, leaving free blocks.
func (m *Metrics) Released(pool int, free int) {
	m.ReleasesTotal.WithLabelValues(label(pool)).Inc()
	m.FreeBlocks.WithLabelValues(label(pool)).Set(float64(free))
}

func (m *Metrics) Exhausted() {
	m.ExhaustedTotal.Inc()
}

func (m *Metrics) Corrupted(pool int) {
	m.CorruptionsTotal.WithLabelValues(label(pool)).Inc()
}
