package policy

import (
	"math/rand"

	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("scored", map[string]string{
		"scorer":      "recency",
		"sample_size": "10",
		"seed":        "1",
	}, newScored)
}

// ObjectMeta is the view of a resident object handed to a scoring function.
type ObjectMeta struct {
	ID         uint64
	Size       uint64
	Freq       uint32
	LastAccess uint64
}

// ScoreFunc ranks eviction candidates; the lowest score is evicted first.
type ScoreFunc func(m ObjectMeta) float64

// Scored delegates victim selection to a scoring function over a random
// sample of residents, the sampled-eviction scheme frequency- and
// probability-weighted policies share. Built-in scorers cover recency
// (approximate LRU), frequency (approximate LFU), size, and a
// frequency-over-size composite; SetScorer swaps in an external function,
// which is how learned policies plug in without a new state machine.
type Scored struct {
	base
	handles []store.Handle
	samples int
	rng     *rand.Rand
	score   ScoreFunc
}

func newScored(st *store.Store, capacity uint64, params map[string]string, _ *utils.Logger) (cache.Policy, error) {
	samples, err := uintParam(params, "sample_size", 10, 1, 64)
	if err != nil {
		return nil, err
	}
	seed, err := uintParam(params, "seed", 1, 0, 1<<62)
	if err != nil {
		return nil, err
	}
	name := stringParam(params, "scorer", "recency")
	score, ok := builtinScorers[name]
	if !ok {
		return nil, simerrors.Newf(simerrors.ErrCodeInvalidParam,
			"parameter \"scorer\": unknown scorer %q", name).WithComponent("policy")
	}
	return &Scored{
		base:    base{name: "scored", st: st, capacity: capacity},
		samples: int(samples),
		rng:     rand.New(rand.NewSource(int64(seed))),
		score:   score,
	}, nil
}

var builtinScorers = map[string]ScoreFunc{
	// Older access evicts first: approximate LRU.
	"recency": func(m ObjectMeta) float64 { return float64(m.LastAccess) },
	// Rarer access evicts first: approximate LFU.
	"frequency": func(m ObjectMeta) float64 { return float64(m.Freq) },
	// Bigger evicts first.
	"size": func(m ObjectMeta) float64 { return -float64(m.Size) },
	// Frequency density: cheap-to-rebuild large objects evict first.
	"freq_over_size": func(m ObjectMeta) float64 {
		if m.Size == 0 {
			return float64(m.Freq)
		}
		return float64(m.Freq) / float64(m.Size)
	},
}

// SetScorer replaces the scoring function. The external scoring entry point
// for callers that assemble the policy programmatically.
func (p *Scored) SetScorer(score ScoreFunc) {
	p.score = score
}

// OnHit accumulates the frequency signal scorers may consume.
func (p *Scored) OnHit(h store.Handle, _ *types.Request) {
	p.st.Obj(h).Freq++
}

// OnMiss registers the new object in the candidate pool.
func (p *Scored) OnMiss(h store.Handle, _ *types.Request) {
	o := p.st.Obj(h)
	o.Freq = 1
	o.Aux = uint64(len(p.handles))
	p.handles = append(p.handles, h)
}

// Evict scores a random sample of residents and removes the minimum.
func (p *Scored) Evict(*types.Request) error {
	n := len(p.handles)
	if n == 0 {
		return errEmptyQueue("scored")
	}
	victim := store.NilHandle
	best := 0.0
	consider := func(h store.Handle) {
		o := p.st.Obj(h)
		s := p.score(ObjectMeta{ID: o.ID, Size: o.Size, Freq: o.Freq, LastAccess: o.LastAccess})
		if victim == store.NilHandle || s < best {
			victim = h
			best = s
		}
	}
	if p.samples >= n {
		// Sample covers the pool: exact minimum.
		for _, h := range p.handles {
			consider(h)
		}
	} else {
		for i := 0; i < p.samples; i++ {
			consider(p.handles[p.rng.Intn(n)])
		}
	}
	p.forget(victim)
	p.st.RemoveHandle(victim)
	return nil
}

// OnRemove drops an explicitly removed object from the candidate pool.
func (p *Scored) OnRemove(h store.Handle) {
	p.forget(h)
}

// forget swap-removes a handle from the pool; each object's Aux field holds
// its pool index.
func (p *Scored) forget(h store.Handle) {
	idx := int(p.st.Obj(h).Aux)
	last := len(p.handles) - 1
	if idx != last {
		moved := p.handles[last]
		p.handles[idx] = moved
		p.st.Obj(moved).Aux = uint64(idx)
	}
	p.handles = p.handles[:last]
}
