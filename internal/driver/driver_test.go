package driver

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachesim/cachesim/internal/cache"
	_ "github.com/cachesim/cachesim/internal/policy"
	"github.com/cachesim/cachesim/internal/trace"
	"github.com/cachesim/cachesim/pkg/types"
)

func testTrace(t *testing.T, requests uint64) types.TraceReader {
	t.Helper()
	r, err := trace.NewSynthetic(trace.SyntheticConfig{
		Distribution: trace.DistZipf,
		Objects:      500,
		Requests:     requests,
		ObjectSize:   10,
		ZipfS:        1.2,
		Seed:         11,
	})
	require.NoError(t, err)
	return r
}

func TestRunSingle(t *testing.T) {
	res, err := Run(context.Background(), cache.Config{
		Name:          "lru-small",
		Policy:        "lru",
		CapacityBytes: 1000,
	}, testTrace(t, 5000), Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "lru", res.PolicyName)
	assert.Equal(t, uint64(5000), res.Stats.Requests)
	assert.Greater(t, res.Stats.Hits, uint64(0))
	assert.Greater(t, res.Stats.Misses, uint64(0))
	assert.LessOrEqual(t, res.OccupiedBytes, uint64(1000))
}

func TestRunWarmupExcludedFromStats(t *testing.T) {
	res, err := Run(context.Background(), cache.Config{
		Policy:        "lru",
		CapacityBytes: 1000,
	}, testTrace(t, 5000), Options{WarmupRequests: 1000})
	require.NoError(t, err)

	// Warm-up requests mutate the cache but are not counted.
	assert.Equal(t, uint64(4000), res.Stats.Requests)

	cold, err := Run(context.Background(), cache.Config{
		Policy:        "lru",
		CapacityBytes: 1000,
	}, testTrace(t, 5000), Options{})
	require.NoError(t, err)

	// A warmed cache misses less over the measured window than a cold
	// one does over the whole trace.
	assert.Less(t, res.Stats.MissRatio(), cold.Stats.MissRatio())
}

func TestRunUnknownPolicyFails(t *testing.T) {
	_, err := Run(context.Background(), cache.Config{
		Policy:        "definitely-not-registered",
		CapacityBytes: 1000,
	}, testTrace(t, 10), Options{})
	require.Error(t, err)
}

func TestRunCanceledContextYieldsPartialStats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, cache.Config{
		Policy:        "fifo",
		CapacityBytes: 1000,
	}, testTrace(t, 5000), Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Stats.Requests)
}

func TestRunAll(t *testing.T) {
	cfgs := []cache.Config{
		{Name: "fifo-1k", Policy: "fifo", CapacityBytes: 1000},
		{Name: "lru-1k", Policy: "lru", CapacityBytes: 1000},
		{Name: "lru-4k", Policy: "lru", CapacityBytes: 4000},
		{Name: "arc-1k", Policy: "arc", CapacityBytes: 1000},
		{Name: "s3fifo-1k", Policy: "s3fifo", CapacityBytes: 1000},
	}
	results, err := RunAll(context.Background(), cfgs, testTrace(t, 5000), Options{Workers: 3})
	require.NoError(t, err)
	require.Len(t, results, len(cfgs))

	byName := make(map[string]Result)
	for _, r := range results {
		require.NoError(t, r.Err, r.ConfigName)
		assert.Equal(t, uint64(5000), r.Stats.Requests)
		byName[r.ConfigName] = r
	}

	// Same policy, larger capacity: the miss ratio cannot be higher on
	// this trace by any meaningful margin.
	lru4k := byName["lru-4k"]
	lru1k := byName["lru-1k"]
	assert.LessOrEqual(t, lru4k.Stats.MissRatio(), lru1k.Stats.MissRatio())
}

func TestRunAllIsolatesFailures(t *testing.T) {
	cfgs := []cache.Config{
		{Name: "good", Policy: "lru", CapacityBytes: 1000},
		{Name: "bad", Policy: "no-such-policy", CapacityBytes: 1000},
	}
	results, err := RunAll(context.Background(), cfgs, testTrace(t, 100), Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var good, bad Result
	for _, r := range results {
		if r.ConfigName == "good" {
			good = r
		} else {
			bad = r
		}
	}
	assert.NoError(t, good.Err)
	assert.Equal(t, uint64(100), good.Stats.Requests)
	assert.Error(t, bad.Err)
}

func TestRunAllEmpty(t *testing.T) {
	_, err := RunAll(context.Background(), nil, testTrace(t, 10), Options{})
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	results := []Result{
		{
			PolicyName:      "lru",
			CapacityBytes:   1000,
			Stats:           types.Statistics{Requests: 10, Hits: 6, Misses: 4, BytesRequested: 100, BytesMiss: 40},
			ResidentObjects: 5,
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		"policy_name,capacity_bytes,requests,misses,miss_ratio,byte_miss_ratio,resident_objects,error",
		lines[0])
	assert.Equal(t, "lru,1000,10,4,0.400000,0.400000,5,", lines[1])
}

func TestWriteTableIncludesFailures(t *testing.T) {
	results := []Result{
		{ConfigName: "ok", PolicyName: "lru", CapacityBytes: 100},
		{ConfigName: "broken", PolicyName: "x", CapacityBytes: 100,
			Err: assert.AnError},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, results))
	assert.Contains(t, buf.String(), "FAILED")
}
