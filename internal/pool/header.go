package pool

import "encoding/binary"

const (
	HeaderSize = 8 // Block header size, in bytes.
	SlackSize  = 1 // Reserved byte trailing every payload.

	// MagicValue is written into every block header at init and checked on release.
	MagicValue uint32 = 71001985

	MaxPools  = 1 << 8            // Pool ids are stored as a single byte.
	MaxBlocks = 1<<24 - 1         // Block indexes are stored as uint24.
	nilIndex  = uint32(1<<24 - 1) // Terminates the free list.
)

// Header layout (little-endian):
//
//	[0:3] next    uint24 index of the next free block, nilIndex if none
//	[3]   poolID  owning pool
//	[4:8] magic   MagicValue; last header bytes, adjacent to the payload
const (
	nextOffset  = 0
	poolOffset  = 3
	magicOffset = 4
)

// Header is the decoded form of the metadata prefixed to every payload.
type Header struct {
	Next   uint32
	PoolID uint8
	Magic  uint32
}

func (h Header) valid() bool {
	return h.Magic == MagicValue
}

func (h Header) hasNext() bool {
	return h.Next != nilIndex
}

// decodeHeader reads a header from the first HeaderSize bytes of b.
func decodeHeader(b []byte) Header {
	_ = b[HeaderSize-1] // Bounds check hint.
	return Header{
		Next:   uint32(b[nextOffset]) | uint32(b[nextOffset+1])<<8 | uint32(b[nextOffset+2])<<16,
		PoolID: b[poolOffset],
		Magic:  binary.LittleEndian.Uint32(b[magicOffset:]),
	}
}

// encodeHeader writes h into the first HeaderSize bytes of b.
func encodeHeader(b []byte, h Header) {
	_ = b[HeaderSize-1]
	b[nextOffset] = byte(h.Next)
	b[nextOffset+1] = byte(h.Next >> 8)
	b[nextOffset+2] = byte(h.Next >> 16)
	b[poolOffset] = h.PoolID
	binary.LittleEndian.PutUint32(b[magicOffset:], h.Magic)
}

// putNext rewrites only the link field of the header at b.
func putNext(b []byte, next uint32) {
	_ = b[nextOffset+2]
	b[nextOffset] = byte(next)
	b[nextOffset+1] = byte(next >> 8)
	b[nextOffset+2] = byte(next >> 16)
}
