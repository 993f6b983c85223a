package slob

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

// GOMAXPROCS=4 go clean -testcache && go test -bench=BenchmarkAllocator -benchtime=10s -benchmem .

const benchBlocks = 1 << 12

func newBenchAllocator(b *testing.B, threadSafe bool) *Allocator {
	b.Helper()
	a, err := New(Config{
		TotalPools: 3,
		Pools: []PoolConfig{
			{BlockSize: 16, StorageSize: benchBlocks * (HeaderSize + 16 + SlackSize)},
			{BlockSize: 64, StorageSize: benchBlocks * (HeaderSize + 64 + SlackSize)},
			{BlockSize: 256, StorageSize: benchBlocks * (HeaderSize + 256 + SlackSize)},
		},
		ThreadSafe: threadSafe,
		Logger:     discardLogger,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(a.Close)
	return a
}

// BenchmarkAllocatorRoundTrip measures a single allocate/release pair,
// which always reuses the head block.
func BenchmarkAllocatorRoundTrip(b *testing.B) {
	for _, size := range []int{16, 64, 256} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			a := newBenchAllocator(b, false)
			b.ReportAllocs()
			b.ResetTimer()
			for range b.N {
				h, ok := a.Allocate(size)
				if !ok {
					b.Fatal("pool exhausted")
				}
				if err := a.Release(h); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkAllocatorChurn simulates a workload holding a random working set
// of blocks across all size classes.
func BenchmarkAllocatorChurn(b *testing.B) {
	a := newBenchAllocator(b, false)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	live := make([]Handle, 0, benchBlocks)

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if len(live) > 0 && (len(live) == cap(live) || rng.Intn(2) == 0) {
			i := rng.Intn(len(live))
			if err := a.Release(live[i]); err != nil {
				b.Fatal(err)
			}
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		if h, ok := a.Allocate(1 + rng.Intn(256)); ok {
			live = append(live, h)
		}
	}
}

// BenchmarkAllocatorParallel measures contention on the per-pool locks.
func BenchmarkAllocatorParallel(b *testing.B) {
	a := newBenchAllocator(b, true)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h, ok := a.Allocate(64)
			if !ok {
				continue
			}
			if err := a.Release(h); err != nil {
				panic(err)
			}
		}
	})
}
