package slob

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Handle is an opaque reference to an allocated block payload.
// It records the owning pool and the payload offset within the pool's storage;
// the block header sits HeaderSize bytes before that offset.
//
// The zero Handle is never issued by Allocate.
type Handle struct {
	pool   uint8
	offset uint32
	tag    uint32 // Fingerprint of the issuing allocator, pool and offset.
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.tag == 0
}

// Pool returns the id of the pool the block was allocated from.
func (h Handle) Pool() int {
	return int(h.pool)
}

// Offset returns the payload offset within the pool's storage.
func (h Handle) Offset() int {
	return int(h.offset)
}

var instances atomic.Uint64

// newSeed returns a seed that differs between allocator instances.
func newSeed() uint64 {
	return uint64(time.Now().UnixNano()) ^ instances.Add(1)<<40
}

// handleTag fingerprints a pool/offset pair for the allocator with the given seed.
// The low bit is always set so that a valid tag is never zero.
func handleTag(seed uint64, poolID uint8, offset uint32) uint32 {
	var buf [13]byte
	binary.LittleEndian.PutUint64(buf[0:], seed)
	buf[8] = poolID
	binary.LittleEndian.PutUint32(buf[9:], offset)
	return uint32(xxhash.Sum64(buf[:])) | 1
}
