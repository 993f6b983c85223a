// Package slob implements a fixed-block memory allocator (Simple List Of Blocks).
//
// Memory is statically fragmented at init time: each pool's backing region is
// sliced into equal-size blocks, every block prefixed by a small header carrying
// a free-list link, the owning pool id and a magic value. Allocate pops a block
// from the free list of the smallest pool that fits the request and Release
// pushes it back after validating its header, both in O(1).
package slob

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/holmberd/go-slob/internal/metrics"
	"github.com/holmberd/go-slob/internal/pool"
)

const (
	HeaderSize = pool.HeaderSize // Block header size, in bytes.
	SlackSize  = pool.SlackSize  // Reserved byte after every payload.
	MagicValue = pool.MagicValue // Sentinel stored in every block header.
	MaxPools   = pool.MaxPools   // Upper bound for Config.TotalPools.
	MaxBlocks  = pool.MaxBlocks  // Upper bound for the blocks of a single pool.
)

var (
	ErrPoolIDOutOfRange   = errors.New("slob: pool id out of range")
	ErrPoolNotInitialized = errors.New("slob: pool is not initialized")
	ErrInvalidHandle      = errors.New("slob: invalid handle")
	ErrInvalidConfig      = errors.New("slob: invalid config")
	ErrCorrupted          = pool.ErrCorrupted
	ErrInvalidBlockSize   = pool.ErrInvalidBlockSize
	ErrTooManyBlocks      = pool.ErrTooManyBlocks
)

// sizeClass is a ready pool in the allocation order.
type sizeClass struct {
	id        uint8
	blockSize int
}

// Allocator owns a registry of pools and their backing storage.
//
// Pools must be initialized before any block is allocated from or released to
// them. Unless Config.ThreadSafe is set, an Allocator must not be used from
// multiple goroutines at once.
type Allocator struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	policy  Policy
	seed    uint64 // Handle fingerprint seed, unique per instance.
	slots   []slot

	initMu sync.Mutex                 // Serializes InitPool and Close.
	order  atomic.Pointer[[]sizeClass] // Ready pools by ascending block size.
}

// New creates an allocator and initializes the pools listed in config.
func New(config Config) (*Allocator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m, err := metrics.New(config.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a := &Allocator{
		logger:  logger,
		metrics: m,
		policy:  config.Policy,
		seed:    newSeed(),
		slots:   make([]slot, config.TotalPools),
	}
	for i := range a.slots {
		a.slots[i].init(config.ThreadSafe)
	}
	a.order.Store(&[]sizeClass{})

	for id, pc := range config.Pools {
		r, err := allocRegion(config.Backing, pc.StorageSize)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("pool %d: %w", id, err)
		}
		if err := a.initPool(id, pc.BlockSize, r); err != nil {
			r.release(logger)
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// InitPool fragments storage into blocks of blockSize bytes and makes them
// available to Allocate as pool id. The allocator owns storage from then on.
//
// Storage that is not a multiple of HeaderSize + blockSize is accepted with a
// warning. Blocks are laid out at a stride of HeaderSize + blockSize + SlackSize
// and the bytes past the last whole stride stay unused.
// Re-initializing a pool invalidates every handle previously issued from it.
func (a *Allocator) InitPool(id int, blockSize int, storage []byte) error {
	return a.initPool(id, blockSize, region{data: storage})
}

func (a *Allocator) initPool(id int, blockSize int, r region) error {
	if id < 0 || id >= len(a.slots) {
		a.logger.Error("pool id is larger than total pools", "pool", id, "total", len(a.slots))
		return fmt.Errorf("%w: pool id %d, total pools %d", ErrPoolIDOutOfRange, id, len(a.slots))
	}

	a.initMu.Lock()
	defer a.initMu.Unlock()

	s := &a.slots[id]
	s.mu.Lock()
	trailing, err := s.pool.Init(uint8(id), blockSize, r.data)
	if err != nil {
		s.state = stateInitFailed
		s.mu.Unlock()
		a.reorder()
		a.logger.Error("failed to initialize pool", "pool", id, "error", err)
		return fmt.Errorf("init pool %d: %w", id, err)
	}
	// Storage carved from the slot's current region keeps that region whole,
	// so Close unmaps the full mapping.
	if !s.region.owns(r.data) {
		s.region.release(a.logger)
		s.region = r
	}
	s.state = stateReady
	stats := s.pool.Stats()
	s.mu.Unlock()
	a.reorder()

	a.metrics.PoolInitialized(id, stats.Capacity)
	a.logger.Info("pool initialized", "pool", id, "block_size", blockSize, "blocks", stats.Capacity)
	if pool.Misaligned(blockSize, len(r.data)) {
		a.logger.Warn("pool size is not a multiple of header plus block size",
			"pool", id, "pool_size", len(r.data), "block_size", blockSize,
			"header_size", HeaderSize, "unused_bytes", trailing,
		)
	}
	if stats.Capacity == 0 {
		a.logger.Warn("pool holds no blocks", "pool", id, "pool_size", len(r.data), "stride", stats.Stride)
	}
	return nil
}

// reorder rebuilds the allocation order from the ready pools.
// It assumes the caller holds initMu.
func (a *Allocator) reorder() {
	order := make([]sizeClass, 0, len(a.slots))
	for i := range a.slots {
		s := &a.slots[i]
		s.mu.Lock()
		if s.ready() {
			order = append(order, sizeClass{id: uint8(i), blockSize: s.pool.BlockSize()})
		}
		s.mu.Unlock()
	}
	slices.SortFunc(order, func(x, y sizeClass) int {
		return cmp.Or(cmp.Compare(x.blockSize, y.blockSize), cmp.Compare(x.id, y.id))
	})
	a.order.Store(&order)
}

// Allocate returns a block with a payload of at least size bytes.
//
// The block comes from the smallest pool whose block size fits size. Under
// PolicyFirstFit the ok result is false when that pool has no free block;
// under PolicyFirstFitFallback larger pools are tried in ascending order.
// The payload is not zeroed and may hold data of a previous occupant.
func (a *Allocator) Allocate(size int) (h Handle, ok bool) {
	var lastErr error
	for _, c := range *a.order.Load() {
		if c.blockSize < size {
			continue
		}
		offset, free, err := a.slots[c.id].pop()
		lastErr = err
		if err == nil {
			a.metrics.Allocated(int(c.id), free)
			return Handle{
				pool:   c.id,
				offset: uint32(offset),
				tag:    handleTag(a.seed, c.id, uint32(offset)),
			}, true
		}
		if errors.Is(err, ErrCorrupted) {
			a.metrics.Corrupted(int(c.id))
			a.logger.Error("free list is corrupted", "pool", c.id, "error", err)
		}
		if a.policy != PolicyFirstFitFallback {
			break
		}
	}
	// Corrupted or re-initialized pools are not counted as exhausted.
	if lastErr == nil || errors.Is(lastErr, pool.ErrExhausted) {
		a.metrics.Exhausted()
	}
	return Handle{}, false
}

// Release returns the block referenced by h to the free list of its pool.
//
// The block header must carry MagicValue and the id of the pool h was issued
// from; otherwise ErrCorrupted is returned and the block is not reused.
// Releasing a handle twice is not detected unless the pool is full.
func (a *Allocator) Release(h Handle) error {
	s, err := a.resolve(h)
	if err != nil {
		a.logger.Error("invalid handle released", "error", err)
		return err
	}
	free, err := s.push(h.Offset())
	if err != nil {
		if errors.Is(err, ErrCorrupted) {
			a.metrics.Corrupted(h.Pool())
			a.logger.Error("block is corrupted", "pool", h.Pool(), "error", err)
			return err
		}
		a.logger.Error("invalid handle released", "pool", h.Pool(), "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	}
	a.metrics.Released(h.Pool(), free)
	a.logger.Debug("block returned to pool", "pool", h.Pool())
	return nil
}

// Bytes returns the payload of the block referenced by h, or nil if h is invalid.
// The slice length and capacity equal the pool's block size.
func (a *Allocator) Bytes(h Handle) []byte {
	s, err := a.resolve(h)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil
	}
	b, err := s.pool.Payload(h.Offset())
	if err != nil {
		return nil
	}
	return b
}

// resolve checks that h was issued by this allocator and returns its pool slot.
func (a *Allocator) resolve(h Handle) (*slot, error) {
	if h.IsZero() {
		return nil, fmt.Errorf("%w: zero handle", ErrInvalidHandle)
	}
	if int(h.pool) >= len(a.slots) {
		return nil, fmt.Errorf("%w: pool %d out of range", ErrInvalidHandle, h.pool)
	}
	if handleTag(a.seed, h.pool, h.offset) != h.tag {
		return nil, fmt.Errorf("%w: not issued by this allocator", ErrInvalidHandle)
	}
	return &a.slots[h.pool], nil
}

// Close releases all backing storage obtained by New and resets every pool.
// Handles issued before Close must not be used afterwards.
func (a *Allocator) Close() {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	for i := range a.slots {
		s := &a.slots[i]
		s.mu.Lock()
		s.region.release(a.logger)
		s.pool = pool.Pool{}
		s.state = stateEmpty
		s.mu.Unlock()
	}
	a.order.Store(&[]sizeClass{})
}
