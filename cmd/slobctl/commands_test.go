package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmberd/go-slob"
)

func TestDemoCommand(t *testing.T) {
	clearEnv(t)
	stdout, stderr, err := runCommand(t, "demo", "--log-level", "debug")
	require.NoError(t, err)

	assert.Contains(t, stdout, "pool 0: 3 blocks of 4 bytes (stride 13, 1 unused bytes)")
	assert.Contains(t, stdout, `allocated 4 bytes from pool 0 at offset 8, wrote "slob"`)
	assert.Contains(t, stdout, "successful return to pool 0")
	assert.Contains(t, stdout, "pool 0: 3/3 blocks free")

	assert.Contains(t, stderr, `msg="pool initialized" pool=0`)
	assert.Contains(t, stderr, `msg="pool size is not a multiple of header plus block size"`)
	assert.Contains(t, stderr, `msg="block returned to pool" pool=0`)
}

func TestStatsCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		clearEnv(t)
		stdout, _, err := runCommand(t, "stats", "--log-level", "error")
		require.NoError(t, err)
		assert.Contains(t, stdout, "POOL")
		assert.Contains(t, stdout, "CAPACITY")
		assert.Regexp(t, `(?m)^0\s+4\s+13\s+9\s+9\s+0\s+120\s+3\s*$`, stdout)
		assert.Regexp(t, `(?m)^1\s+8\s+17\s+9\s+9\s+0\s+160\s+7\s*$`, stdout)
	})

	t.Run("json", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOB_POOLS", "16:250")
		stdout, _, err := runCommand(t, "stats", "--json", "--log-level", "error")
		require.NoError(t, err)

		var stats []slob.PoolStats
		require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
		require.Len(t, stats, 1)
		assert.Equal(t, 16, stats[0].BlockSize)
		assert.Equal(t, 25, stats[0].Stride)
		assert.Equal(t, 10, stats[0].Capacity)
		assert.Equal(t, 0, stats[0].TrailingBytes)
	})

	t.Run("invalid config", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SLOB_BACKING", "disk")
		_, _, err := runCommand(t, "stats")
		require.ErrorIs(t, err, slob.ErrInvalidConfig)
	})
}

func TestExerciseCommand(t *testing.T) {
	tests := []struct {
		name          string
		policy        string
		count         string
		size          string
		wantAllocated int
		wantExhausted int
		wantByPool    map[int]int
	}{
		{
			name:          "first fit stays in smallest pool",
			policy:        "first-fit",
			count:         "20",
			size:          "4",
			wantAllocated: 9,
			wantExhausted: 11,
			wantByPool:    map[int]int{0: 9},
		},
		{
			name:          "fallback spills into larger pool",
			policy:        "first-fit-fallback",
			count:         "20",
			size:          "4",
			wantAllocated: 18,
			wantExhausted: 2,
			wantByPool:    map[int]int{0: 9, 1: 9},
		},
		{
			name:          "size larger than every block",
			policy:        "first-fit",
			count:         "3",
			size:          "9",
			wantAllocated: 0,
			wantExhausted: 3,
			wantByPool:    map[int]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SLOB_POLICY", tt.policy)
			stdout, _, err := runCommand(t, "exercise", "--json", "--log-level", "error",
				"--count", tt.count, "--size", tt.size)
			require.NoError(t, err)

			var report ExerciseReport
			require.NoError(t, json.Unmarshal([]byte(stdout), &report))
			assert.Equal(t, tt.wantAllocated, report.Allocated)
			assert.Equal(t, tt.wantExhausted, report.Exhausted)
			assert.Equal(t, tt.wantAllocated, report.Released)
			assert.Equal(t, tt.wantByPool, report.ByPool)
			assert.True(t, report.Verified)
			assert.Equal(t, tt.wantExhausted, report.Counters["slob_allocations_exhausted_total"])
			assert.Equal(t, tt.wantAllocated, report.Counters["slob_allocations_total"])
			assert.Equal(t, tt.wantAllocated, report.Counters["slob_releases_total"])
		})
	}

	t.Run("text output", func(t *testing.T) {
		clearEnv(t)
		stdout, _, err := runCommand(t, "exercise", "--count", "2", "--size", "8", "--log-level", "error")
		require.NoError(t, err)
		assert.Contains(t, stdout, "requested 2 blocks of 8 bytes")
		assert.Contains(t, stdout, "allocated: 2")
		assert.Contains(t, stdout, "pool 1 (block 8): 2")
		assert.Contains(t, stdout, "verified: true")
	})

	t.Run("negative count", func(t *testing.T) {
		clearEnv(t)
		_, _, err := runCommand(t, "exercise", "--count", "-1")
		require.Error(t, err)
	})
}
