package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("sieve", nil, newSieve)
}

// Sieve is the SIEVE variant of Clock: new objects enter at the head, a
// stationary hand sweeps from the tail toward the head clearing visited
// bits, and victims are removed in place without rotating the queue.
type Sieve struct {
	base
	q    store.Queue
	hand store.Handle
}

func newSieve(st *store.Store, capacity uint64, _ map[string]string, _ *utils.Logger) (cache.Policy, error) {
	return &Sieve{base: base{name: "sieve", st: st, capacity: capacity}}, nil
}

// OnHit marks the object visited.
func (p *Sieve) OnHit(h store.Handle, _ *types.Request) {
	p.st.Obj(h).Referenced = true
}

// OnMiss links the new object at the head, on the far side of the hand.
func (p *Sieve) OnMiss(h store.Handle, _ *types.Request) {
	p.st.Obj(h).Referenced = false
	p.q.PushHead(p.st, h)
}

// Evict advances the hand from the tail toward the head until it finds an
// unvisited object, clearing visited bits along the way. The hand keeps its
// position across evictions.
func (p *Sieve) Evict(*types.Request) error {
	if p.q.Len() == 0 {
		return errEmptyQueue("sieve")
	}
	h := p.hand
	if h == store.NilHandle {
		h = p.q.Tail()
	}
	for p.st.Obj(h).Referenced {
		p.st.Obj(h).Referenced = false
		h = p.q.Prev(p.st, h)
		if h == store.NilHandle {
			h = p.q.Tail()
		}
	}
	p.hand = p.q.Prev(p.st, h)
	p.q.Remove(p.st, h)
	p.st.RemoveHandle(h)
	return nil
}

// OnRemove unlinks the object, stepping the hand off it first.
func (p *Sieve) OnRemove(h store.Handle) {
	if p.hand == h {
		p.hand = p.q.Prev(p.st, h)
	}
	p.q.Remove(p.st, h)
}
