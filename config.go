package slob

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holmberd/go-slob/internal/pool"
)

// Policy selects how Allocate picks a pool for a request.
type Policy int

const (
	// PolicyFirstFit allocates only from the smallest pool whose block size fits
	// the request. When that pool is exhausted the request fails, even if a larger
	// pool has free blocks.
	PolicyFirstFit Policy = iota

	// PolicyFirstFitFallback falls back to the next larger pools, in ascending
	// block size order, when the smallest fitting pool is exhausted.
	PolicyFirstFitFallback
)

func (p Policy) String() string {
	switch p {
	case PolicyFirstFit:
		return "first-fit"
	case PolicyFirstFitFallback:
		return "first-fit-fallback"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the string form of a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "first-fit", "":
		return PolicyFirstFit, nil
	case "first-fit-fallback":
		return PolicyFirstFitFallback, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, s)
	}
}

// PoolConfig describes a pool created by New.
type PoolConfig struct {
	BlockSize   int // Payload size of every block, in bytes.
	StorageSize int // Size of the backing region, in bytes.
}

// Config configures an Allocator.
type Config struct {
	// TotalPools is the number of pool slots in the registry. Pool ids passed to
	// InitPool must be smaller than TotalPools.
	TotalPools int

	// Pools are initialized by New with ids matching their position.
	// Slots without a PoolConfig can be initialized later with InitPool.
	Pools []PoolConfig

	Backing Backing // Where New allocates the backing regions for Pools.
	Policy  Policy  // Pool selection policy for Allocate.

	// ThreadSafe guards each pool's free list with its own mutex. Without it the
	// allocator assumes a single thread of control per pool.
	ThreadSafe bool

	Logger *slog.Logger // Diagnostics sink; slog.Default() when nil.

	// Registerer receives the allocator metrics; they are not registered when nil.
	// New fails when the registerer already holds metrics of another allocator.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the two-pool layout of 4 and 8 byte blocks,
// ten header-plus-block units of storage each.
func DefaultConfig() Config {
	return Config{
		TotalPools: 2,
		Pools: []PoolConfig{
			{BlockSize: 4, StorageSize: 10 * (pool.HeaderSize + 4)},
			{BlockSize: 8, StorageSize: 10 * (pool.HeaderSize + 8)},
		},
		Backing: BackingHeap,
		Policy:  PolicyFirstFit,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.TotalPools <= 0 || c.TotalPools > pool.MaxPools {
		errs = append(errs, fmt.Errorf("%w: total pools %d must be between 1 and %d",
			ErrInvalidConfig, c.TotalPools, pool.MaxPools))
	}
	if len(c.Pools) > c.TotalPools {
		errs = append(errs, fmt.Errorf("%w: %d pools configured, but total pools is %d",
			ErrInvalidConfig, len(c.Pools), c.TotalPools))
	}
	for i, pc := range c.Pools {
		if pc.BlockSize <= 0 {
			errs = append(errs, fmt.Errorf("%w: pool %d: block size %d must be greater than zero",
				ErrInvalidConfig, i, pc.BlockSize))
		}
		if pc.StorageSize <= 0 {
			errs = append(errs, fmt.Errorf("%w: pool %d: storage size %d must be greater than zero",
				ErrInvalidConfig, i, pc.StorageSize))
		}
	}
	if c.Backing != BackingHeap && c.Backing != BackingMmap {
		errs = append(errs, fmt.Errorf("%w: unknown backing %v", ErrInvalidConfig, c.Backing))
	}
	if c.Policy != PolicyFirstFit && c.Policy != PolicyFirstFitFallback {
		errs = append(errs, fmt.Errorf("%w: unknown policy %v", ErrInvalidConfig, c.Policy))
	}
	return errors.Join(errs...)
}
