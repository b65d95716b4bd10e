package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("lru", nil, newLRU)
}

// LRU keeps one queue ordered by recency: every hit relinks the object at
// the tail, eviction takes the head.
type LRU struct {
	base
	q store.Queue
}

func newLRU(st *store.Store, capacity uint64, _ map[string]string, _ *utils.Logger) (cache.Policy, error) {
	return &LRU{base: base{name: "lru", st: st, capacity: capacity}}, nil
}

// OnHit moves the object to the most-recently-used position.
func (p *LRU) OnHit(h store.Handle, _ *types.Request) {
	p.q.MoveToTail(p.st, h)
}

// OnMiss links the new object at the most-recently-used position.
func (p *LRU) OnMiss(h store.Handle, _ *types.Request) {
	p.q.PushTail(p.st, h)
}

// Evict removes the least-recently-used object.
func (p *LRU) Evict(*types.Request) error {
	h := p.q.PopHead(p.st)
	if h == store.NilHandle {
		return errEmptyQueue("lru")
	}
	p.st.RemoveHandle(h)
	return nil
}

// OnRemove unlinks an explicitly removed object.
func (p *LRU) OnRemove(h store.Handle) {
	p.q.Remove(p.st, h)
}
