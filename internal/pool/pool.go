// Package pool implements a single fixed-block memory pool.
//
// A pool statically fragments a caller-owned byte region into equal-size blocks at
// init time. Every block is prefixed by a HeaderSize header carrying a free-list
// link, the owning pool id and a magic value, and followed by a SlackSize reserved
// byte. Free blocks are threaded onto a null-terminated singly linked list through
// their headers, so allocation and release are O(1) pointer (index) swaps.
package pool

import (
	"errors"
	"fmt"
)

var (
	ErrCorrupted        = errors.New("slob: block is corrupted")
	ErrOutOfBounds      = errors.New("slob: offset is out of bounds")
	ErrExhausted        = errors.New("slob: pool has no free blocks")
	ErrInvalidBlockSize = errors.New("slob: block size must be greater than zero")
	ErrTooManyBlocks    = fmt.Errorf("slob: storage holds more than %d blocks", MaxBlocks)
)

// Pool is a region of storage sliced into header+payload blocks, together with
// its free-list registry entry (block size, free count and head).
//
// A Pool is not safe for concurrent use.
type Pool struct {
	id        uint8
	blockSize int    // Payload size of every block, in bytes.
	stride    int    // HeaderSize + blockSize + SlackSize.
	storage   []byte // Backing region, owned by the pool for its lifetime.
	capacity  int    // Number of blocks carved from storage.
	free      int    // Number of blocks on the free list.
	head      uint32 // Index of the first free block, nilIndex if none.
}

// Stride returns the distance in bytes between consecutive block headers
// for the given block size.
func Stride(blockSize int) int {
	return HeaderSize + blockSize + SlackSize
}

// Capacity returns the number of blocks a storage region of storageSize bytes
// holds for the given block size, and the number of trailing bytes left unused.
func Capacity(blockSize int, storageSize int) (blocks int, trailing int) {
	stride := Stride(blockSize)
	return storageSize / stride, storageSize % stride
}

// Misaligned reports whether a storage region of storageSize bytes is not a
// whole number of header plus block units. The slack byte is not part of the unit.
func Misaligned(blockSize int, storageSize int) bool {
	return storageSize%(HeaderSize+blockSize) != 0
}

// Init fragments storage into blocks of blockSize bytes and builds the free list
// from all of them in storage order. Storage is zeroed first.
//
// Calling Init on an already initialized pool re-fragments its storage and
// invalidates every block previously handed out from it.
// It returns the number of trailing storage bytes left unused.
func (p *Pool) Init(id uint8, blockSize int, storage []byte) (trailing int, err error) {
	if blockSize <= 0 {
		return 0, ErrInvalidBlockSize
	}
	capacity, trailing := Capacity(blockSize, len(storage))
	if capacity > MaxBlocks {
		return 0, ErrTooManyBlocks
	}

	clear(storage)
	*p = Pool{
		id:        id,
		blockSize: blockSize,
		stride:    Stride(blockSize),
		storage:   storage,
		capacity:  capacity,
		free:      capacity,
		head:      nilIndex,
	}

	// Walk the storage backwards so that each header links to the block placed
	// after it; the head ends up at block 0 and the last block terminates the list.
	next := nilIndex
	for i := capacity - 1; i >= 0; i-- {
		encodeHeader(p.storage[i*p.stride:], Header{
			Next:   next,
			PoolID: id,
			Magic:  MagicValue,
		})
		next = uint32(i)
	}
	p.head = next
	return trailing, nil
}

func (p *Pool) ID() int {
	return int(p.id)
}

// BlockSize returns the payload size of every block in the pool.
func (p *Pool) BlockSize() int {
	return p.blockSize
}

// Capacity returns the number of blocks carved from the storage.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Free returns the number of blocks currently on the free list.
func (p *Pool) Free() int {
	return p.free
}

// Storage returns the pool's backing region.
func (p *Pool) Storage() []byte {
	return p.storage
}

// Head returns the index of the first free block and whether the list is non-empty.
func (p *Pool) Head() (index int, ok bool) {
	if p.head == nilIndex {
		return 0, false
	}
	return int(p.head), true
}

// Pop removes the first block from the free list and returns the storage offset
// of its payload. The free count, not the link value, decides whether the list
// is empty.
func (p *Pool) Pop() (payloadOffset int, err error) {
	if p.free == 0 {
		return 0, ErrExhausted
	}
	if p.head == nilIndex || int(p.head) >= p.capacity {
		return 0, fmt.Errorf("%w: free list head %d out of range with %d free", ErrCorrupted, p.head, p.free)
	}
	off := int(p.head) * p.stride
	h := decodeHeader(p.storage[off:])
	if !h.valid() || h.PoolID != p.id {
		return 0, fmt.Errorf("%w: free block %d has an invalid header", ErrCorrupted, p.head)
	}
	p.head = h.Next
	p.free--
	return off + HeaderSize, nil
}

// Push returns the block whose payload starts at payloadOffset to the head of the
// free list. The block header must carry the magic value and this pool's id;
// otherwise ErrCorrupted is returned and the free list is left untouched.
func (p *Pool) Push(payloadOffset int) error {
	idx, h, err := p.Locate(payloadOffset)
	if err != nil {
		return err
	}
	if !h.valid() {
		return fmt.Errorf("%w: bad magic %#x at block %d", ErrCorrupted, h.Magic, idx)
	}
	if h.PoolID != p.id {
		return fmt.Errorf("%w: block %d belongs to pool %d, not %d", ErrCorrupted, idx, h.PoolID, p.id)
	}
	if p.free >= p.capacity {
		return fmt.Errorf("%w: free list of pool %d is already full", ErrCorrupted, p.id)
	}
	putNext(p.storage[int(idx)*p.stride:], p.head)
	p.head = idx
	p.free++
	return nil
}

// Locate resolves a payload offset to its block index and decodes the header
// immediately preceding it. The offset must address the start of a payload.
func (p *Pool) Locate(payloadOffset int) (index uint32, h Header, err error) {
	off := payloadOffset - HeaderSize
	if off < 0 || p.stride == 0 || off%p.stride != 0 || off/p.stride >= p.capacity {
		return 0, Header{}, fmt.Errorf("%w: payload offset %d in pool %d", ErrOutOfBounds, payloadOffset, p.id)
	}
	return uint32(off / p.stride), decodeHeader(p.storage[off:]), nil
}

// Payload returns the payload of the block starting at payloadOffset.
// The returned slice is capped at the block size.
func (p *Pool) Payload(payloadOffset int) ([]byte, error) {
	if _, _, err := p.Locate(payloadOffset); err != nil {
		return nil, err
	}
	return p.storage[payloadOffset : payloadOffset+p.blockSize : payloadOffset+p.blockSize], nil
}

// Stats represents pool stats.
type Stats struct {
	ID            int
	BlockSize     int
	Stride        int
	Capacity      int
	Free          int
	InUse         int
	StorageBytes  int
	TrailingBytes int
}

func (p *Pool) Stats() Stats {
	return Stats{
		ID:            int(p.id),
		BlockSize:     p.blockSize,
		Stride:        p.stride,
		Capacity:      p.capacity,
		Free:          p.free,
		InUse:         p.capacity - p.free,
		StorageBytes:  len(p.storage),
		TrailingBytes: len(p.storage) - p.capacity*p.stride,
	}
}
