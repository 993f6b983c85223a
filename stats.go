package slob

import (
	"errors"
	"fmt"
	"io"

	"github.com/holmberd/go-slob/internal/pool"
)

// PoolStats represents the bookkeeping of a single pool.
type PoolStats = pool.Stats

// Stats returns the stats of every initialized pool, ordered by pool id.
func (a *Allocator) Stats() []PoolStats {
	var stats []PoolStats
	for i := range a.slots {
		s := &a.slots[i]
		if st, ok := s.readyStats(); ok {
			stats = append(stats, st)
		}
	}
	return stats
}

// PoolStats returns the stats of pool id.
func (a *Allocator) PoolStats(id int) (PoolStats, error) {
	if id < 0 || id >= len(a.slots) {
		return PoolStats{}, fmt.Errorf("%w: pool id %d, total pools %d", ErrPoolIDOutOfRange, id, len(a.slots))
	}
	st, ok := a.slots[id].readyStats()
	if !ok {
		return PoolStats{}, fmt.Errorf("%w: pool %d", ErrPoolNotInitialized, id)
	}
	return st, nil
}

// Verify walks every initialized pool and checks that all block headers are
// intact and that each free count matches its free list.
func (a *Allocator) Verify() error {
	var errs []error
	for i := range a.slots {
		s := &a.slots[i]
		if err := s.verify(); err != nil {
			errs = append(errs, fmt.Errorf("pool %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Print outputs the block headers of every initialized pool for debugging purposes.
func (a *Allocator) Print(w io.Writer) {
	for i := range a.slots {
		s := &a.slots[i]
		s.mu.Lock()
		if s.ready() {
			s.pool.Print(w)
		}
		s.mu.Unlock()
	}
}
