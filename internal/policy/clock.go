package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("clock", nil, newClock)
}

// Clock is the classic one-bit second-chance policy: hits set the reference
// bit, eviction examines the queue head and either evicts it (bit unset) or
// clears the bit and rotates it to the tail.
type Clock struct {
	base
	q store.Queue
}

func newClock(st *store.Store, capacity uint64, _ map[string]string, _ *utils.Logger) (cache.Policy, error) {
	return &Clock{base: base{name: "clock", st: st, capacity: capacity}}, nil
}

// OnHit sets the reference bit without touching queue order.
func (p *Clock) OnHit(h store.Handle, _ *types.Request) {
	p.st.Obj(h).Referenced = true
}

// OnMiss links the new object at the tail with the bit unset.
func (p *Clock) OnMiss(h store.Handle, _ *types.Request) {
	p.st.Obj(h).Referenced = false
	p.q.PushTail(p.st, h)
}

// Evict sweeps the hand until it finds an unreferenced head. Each rotation
// clears one bit, so a full sweep always terminates with a victim.
func (p *Clock) Evict(*types.Request) error {
	for {
		h := p.q.Head()
		if h == store.NilHandle {
			return errEmptyQueue("clock")
		}
		o := p.st.Obj(h)
		if o.Referenced {
			o.Referenced = false
			p.q.MoveToTail(p.st, h)
			continue
		}
		p.q.Remove(p.st, h)
		p.st.RemoveHandle(h)
		return nil
	}
}

// OnRemove unlinks an explicitly removed object.
func (p *Clock) OnRemove(h store.Handle) {
	p.q.Remove(p.st, h)
}
