package slob

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// Backing selects where New allocates pool storage.
type Backing int

const (
	BackingHeap Backing = iota // Regular Go heap slices.

	// BackingMmap uses anonymous private mappings outside the Go heap, so large
	// pools add nothing for the garbage collector to scan.
	BackingMmap
)

func (b Backing) String() string {
	switch b {
	case BackingHeap:
		return "heap"
	case BackingMmap:
		return "mmap"
	default:
		return fmt.Sprintf("Backing(%d)", int(b))
	}
}

// ParseBacking parses the string form of a Backing.
func ParseBacking(s string) (Backing, error) {
	switch s {
	case "heap", "":
		return BackingHeap, nil
	case "mmap":
		return BackingMmap, nil
	default:
		return 0, fmt.Errorf("%w: unknown backing %q", ErrInvalidConfig, s)
	}
}

// region is a backing storage region and how it was obtained.
type region struct {
	data   []byte
	mapped bool
}

// allocRegion allocates a region of size bytes.
func allocRegion(backing Backing, size int) (region, error) {
	if backing != BackingMmap {
		return region{data: make([]byte, size)}, nil
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return region{}, fmt.Errorf("cannot allocate %d bytes via mmap: %w", size, err)
	}
	return region{data: data, mapped: true}, nil
}

// release returns a mapped region to the operating system.
// Heap regions are left to the garbage collector.
func (r *region) release(logger *slog.Logger) {
	if r.mapped && len(r.data) > 0 {
		if err := unix.Munmap(r.data); err != nil {
			logger.Error("failed to unmap pool storage", "error", err)
		}
	}
	*r = region{}
}

// owns reports whether storage starts at the same address as the region.
func (r *region) owns(storage []byte) bool {
	return len(r.data) > 0 && len(storage) > 0 && &r.data[0] == &storage[0]
}
