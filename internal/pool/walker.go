package pool

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Walker iterates the free list of a Pool from its head.
// It never follows more links than the pool has blocks, so a corrupted
// (cyclic) list terminates.
type Walker struct {
	p     *Pool
	cur   uint32
	steps int
	err   error
}

func NewWalker(p *Pool) *Walker {
	return &Walker{p: p, cur: p.head}
}

// Reset resets the walker to the head of the free list.
func (w *Walker) Reset() *Walker {
	w.cur = w.p.head
	w.steps = 0
	w.err = nil
	return w
}

// Next returns the index of the next free block.
// The ok result is false at the end of the list or after an error.
func (w *Walker) Next() (index int, ok bool) {
	if w.err != nil || w.cur == nilIndex {
		return 0, false
	}
	if int(w.cur) >= w.p.capacity {
		w.err = fmt.Errorf("%w: link to block %d beyond capacity %d", ErrCorrupted, w.cur, w.p.capacity)
		return 0, false
	}
	if w.steps >= w.p.capacity {
		w.err = fmt.Errorf("%w: free list of pool %d has a cycle", ErrCorrupted, w.p.id)
		return 0, false
	}
	index = int(w.cur)
	h := decodeHeader(w.p.storage[index*w.p.stride:])
	if !h.valid() {
		w.err = fmt.Errorf("%w: bad magic %#x at free block %d", ErrCorrupted, h.Magic, index)
		return 0, false
	}
	w.cur = h.Next
	w.steps++
	return index, true
}

// Err returns the first error encountered while walking.
func (w *Walker) Err() error {
	return w.err
}

// Verify checks the pool invariants: every header carries the magic value and
// the pool id, the free list is acyclic and in bounds, and the free count
// equals the number of blocks reachable from the head.
func (p *Pool) Verify() error {
	var errs []error
	for i := range p.capacity {
		h := decodeHeader(p.storage[i*p.stride:])
		if !h.valid() {
			errs = append(errs, fmt.Errorf("%w: bad magic %#x at block %d", ErrCorrupted, h.Magic, i))
			continue
		}
		if h.PoolID != p.id {
			errs = append(errs, fmt.Errorf("%w: block %d tagged with pool %d", ErrCorrupted, i, h.PoolID))
		}
	}

	w := NewWalker(p)
	reachable := 0
	for _, ok := w.Next(); ok; _, ok = w.Next() {
		reachable++
	}
	if err := w.Err(); err != nil {
		errs = append(errs, err)
	} else if reachable != p.free {
		errs = append(errs, fmt.Errorf(
			"%w: pool %d free count %d, %d blocks reachable", ErrCorrupted, p.id, p.free, reachable,
		))
	}
	return errors.Join(errs...)
}

// Print outputs a visual representation of the pool for debugging purposes.
// It prints each block header as a row of space-separated hexadecimal values
// followed by its decoded fields.
func (p *Pool) Print(w io.Writer) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "--- Pool %d (block %d, stride %d, free %d/%d) ---\n",
		p.id, p.blockSize, p.stride, p.free, p.capacity)
	if p.capacity == 0 {
		fmt.Fprintf(w, "(empty)\n\n")
		return
	}

	// Align all block indexes to the width of the highest one.
	paddingWidth := len(strconv.Itoa(p.capacity - 1))
	for i := range p.capacity {
		raw := p.storage[i*p.stride : i*p.stride+HeaderSize]
		h := decodeHeader(raw)
		next := "-"
		if h.hasNext() {
			next = strconv.Itoa(int(h.Next))
		}
		fmt.Fprintf(w, "%*d: [% x] next=%s pool=%d magic=%t\n",
			paddingWidth, i, raw, next, h.PoolID, h.valid())
	}
	fmt.Fprintln(w)
}
