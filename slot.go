package slob

import (
	"fmt"
	"sync"

	"github.com/holmberd/go-slob/internal/pool"
)

type slotState int

const (
	stateEmpty       slotState = iota // Pool slot was never initialized.
	stateReady                        // Pool is initialized and serving blocks.
	stateInitFailed                   // Last InitPool call failed; the pool is unusable.
)

func (s slotState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateReady:
		return "ready"
	case stateInitFailed:
		return "initFailed"
	default:
		return fmt.Sprintf("slotState(%d)", s)
	}
}

// nopLocker is used when the allocator runs with a single thread of control.
type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// slot is a registry entry: one pool, its storage and the lock guarding its free list.
type slot struct {
	mu     sync.Locker
	pool   pool.Pool
	region region
	state  slotState
}

func (s *slot) init(threadSafe bool) {
	if threadSafe {
		s.mu = &sync.Mutex{}
	} else {
		s.mu = nopLocker{}
	}
}

func (s *slot) ready() bool {
	return s.state == stateReady
}

// pop removes a block from the free list.
// It returns the payload offset and the free count after the pop.
func (s *slot) pop() (offset int, free int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, 0, ErrPoolNotInitialized
	}
	offset, err = s.pool.Pop()
	return offset, s.pool.Free(), err
}

// push returns a block to the free list.
// It returns the free count after the push.
func (s *slot) push(offset int) (free int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, ErrPoolNotInitialized
	}
	err = s.pool.Push(offset)
	return s.pool.Free(), err
}

// readyStats returns the pool stats if the pool is initialized.
func (s *slot) readyStats() (pool.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return pool.Stats{}, false
	}
	return s.pool.Stats(), true
}

// verify checks the pool invariants. Pools that are not initialized pass.
func (s *slot) verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil
	}
	return s.pool.Verify()
}
