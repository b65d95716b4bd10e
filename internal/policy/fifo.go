package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("fifo", nil, newFIFO)
}

// FIFO evicts in strict insertion order. Hits do not reorder.
type FIFO struct {
	base
	q store.Queue
}

func newFIFO(st *store.Store, capacity uint64, _ map[string]string, _ *utils.Logger) (cache.Policy, error) {
	return &FIFO{base: base{name: "fifo", st: st, capacity: capacity}}, nil
}

// OnHit is a no-op: FIFO ignores recency.
func (p *FIFO) OnHit(store.Handle, *types.Request) {}

// OnMiss links the new object at the queue tail.
func (p *FIFO) OnMiss(h store.Handle, _ *types.Request) {
	p.q.PushTail(p.st, h)
}

// Evict removes the queue head unconditionally.
func (p *FIFO) Evict(*types.Request) error {
	h := p.q.PopHead(p.st)
	if h == store.NilHandle {
		return errEmptyQueue("fifo")
	}
	p.st.RemoveHandle(h)
	return nil
}

// OnRemove unlinks an explicitly removed object.
func (p *FIFO) OnRemove(h store.Handle) {
	p.q.Remove(p.st, h)
}
