package mrc

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachesim/cachesim/pkg/types"
)

func TestTreapSumGreater(t *testing.T) {
	tr := newTreap(1)
	for i := uint64(1); i <= 100; i++ {
		tr.Insert(i, i*10)
	}
	require.Equal(t, 100, tr.Len())

	count, bytes := tr.SumGreater(100)
	assert.Equal(t, 0, count)
	assert.Equal(t, uint64(0), bytes)

	count, bytes = tr.SumGreater(90)
	assert.Equal(t, 10, count)
	assert.Equal(t, uint64(91+92+93+94+95+96+97+98+99+100)*10, bytes)

	count, _ = tr.SumGreater(0)
	assert.Equal(t, 100, count)
}

func TestTreapDelete(t *testing.T) {
	tr := newTreap(1)
	for i := uint64(1); i <= 50; i++ {
		tr.Insert(i, 1)
	}
	for i := uint64(2); i <= 50; i += 2 {
		tr.Delete(i)
	}
	assert.Equal(t, 25, tr.Len())

	count, bytes := tr.SumGreater(0)
	assert.Equal(t, 25, count)
	assert.Equal(t, uint64(25), bytes)

	// Deleting a missing key is a no-op.
	tr.Delete(2)
	assert.Equal(t, 25, tr.Len())
}

func TestTreapRandomizedAgainstLinearScan(t *testing.T) {
	tr := newTreap(42)
	rng := rand.New(rand.NewSource(42))
	live := make(map[uint64]uint64)

	var next uint64
	for i := 0; i < 5000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for k := range live {
				tr.Delete(k)
				delete(live, k)
				break
			}
			continue
		}
		next++
		size := uint64(rng.Intn(100) + 1)
		tr.Insert(next, size)
		live[next] = size
	}

	for _, probe := range []uint64{0, next / 4, next / 2, next} {
		wantCount, wantBytes := 0, uint64(0)
		for k, sz := range live {
			if k > probe {
				wantCount++
				wantBytes += sz
			}
		}
		gotCount, gotBytes := tr.SumGreater(probe)
		assert.Equal(t, wantCount, gotCount, "probe %d", probe)
		assert.Equal(t, wantBytes, gotBytes, "probe %d", probe)
	}
}

func TestEstimatorValidation(t *testing.T) {
	cases := []Config{
		{Mode: ModeFixedRate, Rate: 0},
		{Mode: ModeFixedRate, Rate: 1.5},
		{Mode: ModeFixedSize, MaxSamples: 0},
		{Mode: "bogus", Rate: 0.1},
	}
	for _, cfg := range cases {
		_, err := New(cfg, nil)
		require.Error(t, err)
	}
}

func replayLoop(e *Estimator, ids []uint64, size uint64) {
	for i, id := range ids {
		e.Record(&types.Request{ID: id, Size: size, LogicalTime: uint64(i), Op: types.OpGet})
	}
}

// Cyclic access over a working set: the curve must be non-increasing in
// cache size, and must reach a low miss ratio once the cache covers the
// whole working set.
func TestCurveMonotoneNonIncreasing(t *testing.T) {
	e, err := New(Config{Mode: ModeFixedRate, Rate: 1.0, Seed: 1}, nil)
	require.NoError(t, err)

	var ids []uint64
	for round := 0; round < 50; round++ {
		for id := uint64(1); id <= 200; id++ {
			ids = append(ids, id)
		}
	}
	replayLoop(e, ids, 100)

	curve := e.Curve(50)
	require.NotEmpty(t, curve)
	for i := 1; i < len(curve); i++ {
		assert.GreaterOrEqual(t, curve[i].CacheBytes, curve[i-1].CacheBytes)
		assert.LessOrEqual(t, curve[i].MissRatio, curve[i-1].MissRatio+1e-9,
			"miss ratio increased at point %d", i)
	}

	// At full rate the cyclic trace is exact: every non-cold access has
	// reuse distance 199 objects (19900 bytes), so a cache that covers
	// the working set hits everything but the cold misses.
	last := curve[len(curve)-1]
	assert.InDelta(t, 200.0/10000.0, last.MissRatio, 1e-6)
}

// With sampling enabled the curve is an estimate; monotonicity must still
// hold exactly, and the estimate should be in the neighborhood of truth.
func TestCurveSampledMonotone(t *testing.T) {
	e, err := New(Config{Mode: ModeFixedRate, Rate: 0.25, Seed: 1}, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	var ids []uint64
	for i := 0; i < 40000; i++ {
		ids = append(ids, uint64(rng.Intn(2000))+1)
	}
	replayLoop(e, ids, 10)

	curve := e.Curve(100)
	require.NotEmpty(t, curve)
	for i := 1; i < len(curve); i++ {
		assert.LessOrEqual(t, curve[i].MissRatio, curve[i-1].MissRatio+1e-9)
	}
}

func TestFixedSizeModeLowersRate(t *testing.T) {
	e, err := New(Config{Mode: ModeFixedSize, MaxSamples: 100, Seed: 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e.Rate(), 1e-9)

	var ids []uint64
	for id := uint64(1); id <= 10000; id++ {
		ids = append(ids, id)
	}
	replayLoop(e, ids, 1)

	assert.Less(t, e.Rate(), 1.0)
	assert.LessOrEqual(t, len(e.tracked), 100)

	// Later accesses to pruned ids must stay invisible, so the curve is
	// still well formed.
	replayLoop(e, ids, 1)
	curve := e.Curve(20)
	for i := 1; i < len(curve); i++ {
		assert.LessOrEqual(t, curve[i].MissRatio, curve[i-1].MissRatio+1e-9)
	}
}

func TestRemoveDropsTracking(t *testing.T) {
	e, err := New(Config{Mode: ModeFixedRate, Rate: 1.0, Seed: 1}, nil)
	require.NoError(t, err)

	e.Record(&types.Request{ID: 1, Size: 10, Op: types.OpGet})
	e.Record(&types.Request{ID: 1, Op: types.OpRemove})
	require.Equal(t, 0, e.order.Len())

	// The next access is a cold miss again.
	e.Record(&types.Request{ID: 1, Size: 10, Op: types.OpGet})
	assert.Equal(t, 1, e.order.Len())
	assert.InDelta(t, 2.0, e.coldW, 1e-9)
}

func TestWriteTable(t *testing.T) {
	e, err := New(Config{Mode: ModeFixedRate, Rate: 0.5, Seed: 1}, nil)
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		for id := uint64(1); id <= 100; id++ {
			e.Record(&types.Request{ID: id, Size: 10, Op: types.OpGet})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, e.WriteTable(&buf, 10))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# sampling_rate=0.5"), out)
	assert.Contains(t, out, "cache_bytes\tmiss_ratio")
	assert.Greater(t, strings.Count(out, "\n"), 2)
}
