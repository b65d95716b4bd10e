package policy_test

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachesim/cachesim/internal/cache"
	_ "github.com/cachesim/cachesim/internal/policy"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
)

func newCache(t *testing.T, policy string, capacity uint64, params map[string]string) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{
		Name:          policy,
		Policy:        policy,
		CapacityBytes: capacity,
		Params:        params,
		Strict:        true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func access(t *testing.T, c *cache.Cache, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		_, err := c.Apply(&types.Request{ID: id, Size: 1, Op: types.OpGet})
		require.NoError(t, err)
	}
}

func resident(c *cache.Cache) []uint64 {
	ids := c.ResidentIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func stateOf(c *cache.Cache, id uint64) uint8 {
	h := c.Store().Find(id)
	if h == store.NilHandle {
		return store.StateNone
	}
	return c.Store().Obj(h).State
}

// FIFO order law: with unit sizes and a monotonically increasing id stream,
// the resident set after N > C insertions is exactly the last C ids.
func TestFIFOOrderLaw(t *testing.T) {
	const capacity = 8
	c := newCache(t, "fifo", capacity, nil)

	for id := uint64(1); id <= 50; id++ {
		access(t, c, id)
	}
	want := []uint64{43, 44, 45, 46, 47, 48, 49, 50}
	assert.Equal(t, want, resident(c))
}

// Hits must not protect anything under FIFO.
func TestFIFOIgnoresHits(t *testing.T) {
	c := newCache(t, "fifo", 3, nil)
	access(t, c, 1, 2, 3)
	access(t, c, 1, 1, 1) // hits
	access(t, c, 4)       // evicts 1 regardless
	assert.Equal(t, []uint64{2, 3, 4}, resident(c))
}

// LRU recency law: eviction never removes an object accessed more recently
// than another resident.
func TestLRURecencyLaw(t *testing.T) {
	c := newCache(t, "lru", 3, nil)
	access(t, c, 1, 2, 3)
	access(t, c, 1) // 2 is now the least recent
	access(t, c, 4)
	assert.Equal(t, []uint64{1, 3, 4}, resident(c))

	access(t, c, 3, 1) // order now 4, 3, 1
	access(t, c, 5)
	assert.Equal(t, []uint64{1, 3, 5}, resident(c))
}

func TestClockSecondChance(t *testing.T) {
	c := newCache(t, "clock", 3, nil)
	access(t, c, 1, 2, 3)
	access(t, c, 1) // sets 1's reference bit
	access(t, c, 4) // hand passes 1 (clears bit), evicts 2
	assert.Equal(t, []uint64{1, 3, 4}, resident(c))

	access(t, c, 5) // 1's bit is clear now, 1 is the victim
	assert.Equal(t, []uint64{3, 4, 5}, resident(c))
}

func TestSieveKeepsVisited(t *testing.T) {
	c := newCache(t, "sieve", 3, nil)
	access(t, c, 1, 2, 3)
	access(t, c, 1) // visited
	access(t, c, 4) // hand clears 1, evicts 2
	assert.Equal(t, []uint64{1, 3, 4}, resident(c))
}

// The SIEVE hand survives across evictions instead of restarting from the
// tail, so an object it already passed is not re-examined.
func TestSieveHandPersists(t *testing.T) {
	c := newCache(t, "sieve", 3, nil)
	access(t, c, 1, 2, 3)
	access(t, c, 1, 2, 3) // all visited
	access(t, c, 4)       // sweep clears all bits, evicts 1 (tail)
	assert.Equal(t, []uint64{2, 3, 4}, resident(c))
	access(t, c, 5) // hand sits at 2, evicts it without touching 3
	assert.Equal(t, []uint64{3, 4, 5}, resident(c))
}

func TestLFUEvictsLeastFrequent(t *testing.T) {
	c := newCache(t, "lfu", 3, nil)
	access(t, c, 1, 1, 1)
	access(t, c, 2, 2)
	access(t, c, 3)
	access(t, c, 4) // 3 has the lowest count
	assert.Equal(t, []uint64{1, 2, 4}, resident(c))

	// 4 now sits alone in the lowest frequency class.
	access(t, c, 5)
	assert.Equal(t, []uint64{1, 2, 5}, resident(c))
}

func TestLFUPrefersHigherFrequency(t *testing.T) {
	c := newCache(t, "lfu", 2, nil)
	access(t, c, 1, 1, 2)
	access(t, c, 3) // evicts 2 (freq 1 vs 1's freq 2)
	assert.Equal(t, []uint64{1, 3}, resident(c))
}

func TestARCGhostHitPromotesToT2(t *testing.T) {
	c := newCache(t, "arc", 4, nil)

	access(t, c, 1, 2, 3, 4) // fill T1
	access(t, c, 5)          // demotes 1 to the B1 ghost queue
	assert.False(t, c.Contains(1))
	assert.Equal(t, store.StateB1, stateOf(c, 1))

	access(t, c, 1) // ghost hit: revived into T2, p grew
	assert.True(t, c.Contains(1))
	assert.Equal(t, store.StateT2, stateOf(c, 1))
}

func TestARCHitMovesT1ToT2(t *testing.T) {
	c := newCache(t, "arc", 4, nil)
	access(t, c, 1)
	assert.Equal(t, store.StateT1, stateOf(c, 1))
	access(t, c, 1)
	assert.Equal(t, store.StateT2, stateOf(c, 1))
}

func TestS3FIFOGhostPromotion(t *testing.T) {
	c := newCache(t, "s3fifo", 4, map[string]string{
		"small_ratio": "0.25",
	})

	access(t, c, 1, 2, 3, 4) // all enter small
	for _, id := range []uint64{1, 2, 3, 4} {
		assert.Equal(t, store.StateSmall, stateOf(c, id), "id %d", id)
	}

	access(t, c, 5) // small over target: 1 demoted to ghost
	assert.False(t, c.Contains(1))
	assert.Equal(t, store.StateGhost, stateOf(c, 1))

	// Re-requesting a ghost id must admit straight into main, never back
	// into small.
	access(t, c, 1)
	assert.True(t, c.Contains(1))
	assert.Equal(t, store.StateMain, stateOf(c, 1))
}

func TestS3FIFOFrequentSmallObjectPromotes(t *testing.T) {
	c := newCache(t, "s3fifo", 4, map[string]string{
		"small_ratio": "0.25",
	})

	access(t, c, 1, 2, 3, 4)
	access(t, c, 1) // freq 1 >= promotion threshold
	access(t, c, 5) // small eviction promotes 1 to main instead of ghosting
	assert.True(t, c.Contains(1))
	assert.Equal(t, store.StateMain, stateOf(c, 1))
}

func TestS3FIFORejectsObjectLargerThanSmall(t *testing.T) {
	c := newCache(t, "s3fifo", 100, map[string]string{
		"small_ratio": "0.1",
	})

	out, err := c.Apply(&types.Request{ID: 1, Size: 50, Op: types.OpGet})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeRejected, out)
	assert.False(t, c.Contains(1))
	assert.Equal(t, uint64(0), c.OccupiedBytes())
}

func TestClockProTestHitPromotesToHot(t *testing.T) {
	c := newCache(t, "clockpro", 4, map[string]string{
		"cold_ratio": "0.25",
	})

	access(t, c, 1, 2, 3, 4) // all cold
	access(t, c, 5)          // cold hand demotes 1 to a test entry
	assert.False(t, c.Contains(1))
	assert.Equal(t, store.StateTest, stateOf(c, 1))

	access(t, c, 1) // test hit: straight to hot, cold target grows
	assert.True(t, c.Contains(1))
	assert.Equal(t, store.StateHot, stateOf(c, 1))
}

func TestClockProReferencedColdPromotes(t *testing.T) {
	c := newCache(t, "clockpro", 4, map[string]string{
		"cold_ratio": "0.25",
	})

	access(t, c, 1, 2, 3, 4)
	access(t, c, 1) // references the cold head
	access(t, c, 5) // sweep promotes 1 to hot, then demotes 2 to test
	assert.True(t, c.Contains(1))
	assert.Equal(t, store.StateHot, stateOf(c, 1))
	assert.False(t, c.Contains(2))
	assert.Equal(t, store.StateTest, stateOf(c, 2))
}

func TestScoredEvictsMinimumScore(t *testing.T) {
	c := newCache(t, "scored", 3, map[string]string{
		"scorer":      "frequency",
		"sample_size": "16", // larger than the resident set: exact min
	})

	access(t, c, 1, 1, 1)
	access(t, c, 2, 2)
	access(t, c, 3)
	access(t, c, 4)
	assert.Equal(t, []uint64{1, 2, 4}, resident(c))
}

func TestScoredSizeScorerEvictsLargest(t *testing.T) {
	c, err := cache.New(cache.Config{
		Policy:        "scored",
		CapacityBytes: 100,
		Params: map[string]string{
			"scorer":      "size",
			"sample_size": "16",
		},
		Strict: true,
	})
	require.NoError(t, err)
	defer c.Close()

	for id, size := range map[uint64]uint64{1: 10, 2: 60, 3: 20} {
		_, err := c.Apply(&types.Request{ID: id, Size: size, Op: types.OpGet})
		require.NoError(t, err)
	}
	_, err = c.Apply(&types.Request{ID: 4, Size: 30, Op: types.OpGet})
	require.NoError(t, err)
	assert.False(t, c.Contains(2), "largest object should be the victim")
}

func TestInvalidParamsRejectedAtConstruction(t *testing.T) {
	cases := []struct {
		policy string
		params map[string]string
	}{
		{"s3fifo", map[string]string{"small_ratio": "2.0"}},
		{"s3fifo", map[string]string{"small_ratio": "abc"}},
		{"s3fifo", map[string]string{"promotion_threshold": "0"}},
		{"clockpro", map[string]string{"cold_ratio": "-1"}},
		{"scored", map[string]string{"sample_size": "0"}},
		{"scored", map[string]string{"scorer": "nope"}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%v", tc.policy, tc.params), func(t *testing.T) {
			_, err := cache.New(cache.Config{
				Policy:        tc.policy,
				CapacityBytes: 100,
				Params:        tc.params,
			})
			require.Error(t, err)
		})
	}
}

// Long mixed workloads across every policy, with strict validation on:
// accounting must hold at every step and capacity must never be exceeded.
func TestPoliciesUnderChurn(t *testing.T) {
	for _, policy := range cache.PolicyNames() {
		if policy == "plugin" {
			continue
		}
		t.Run(policy, func(t *testing.T) {
			c := newCache(t, policy, 64, nil)
			for i := 0; i < 3000; i++ {
				id := uint64(i*i%89 + 1)
				_, err := c.Apply(&types.Request{ID: id, Size: id%7 + 1, Op: types.OpGet})
				require.NoError(t, err)
				if i%13 == 0 {
					_, err := c.Apply(&types.Request{ID: id, Op: types.OpRemove})
					require.NoError(t, err)
				}
			}
			assert.LessOrEqual(t, c.OccupiedBytes(), uint64(64))
		})
	}
}
