package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("lfu", nil, newLFU)
}

// LFU evicts the least-frequently-used object, breaking frequency ties by
// insertion order within the frequency class. Objects live in per-frequency
// queues; promotion on a hit moves an object one class up, so every
// operation stays O(1).
type LFU struct {
	base
	buckets map[uint32]*store.Queue
	minFreq uint32
	count   uint64
}

func newLFU(st *store.Store, capacity uint64, _ map[string]string, _ *utils.Logger) (cache.Policy, error) {
	return &LFU{
		base:    base{name: "lfu", st: st, capacity: capacity},
		buckets: make(map[uint32]*store.Queue),
	}, nil
}

func (p *LFU) bucket(freq uint32) *store.Queue {
	q, ok := p.buckets[freq]
	if !ok {
		q = &store.Queue{}
		p.buckets[freq] = q
	}
	return q
}

// OnHit moves the object from its frequency class to the next one up.
func (p *LFU) OnHit(h store.Handle, _ *types.Request) {
	o := p.st.Obj(h)
	q := p.buckets[o.Freq]
	q.Remove(p.st, h)
	if q.Len() == 0 {
		delete(p.buckets, o.Freq)
		if p.minFreq == o.Freq {
			p.minFreq = o.Freq + 1
		}
	}
	o.Freq++
	p.bucket(o.Freq).PushTail(p.st, h)
}

// OnMiss starts the new object in frequency class one.
func (p *LFU) OnMiss(h store.Handle, _ *types.Request) {
	o := p.st.Obj(h)
	o.Freq = 1
	p.bucket(1).PushTail(p.st, h)
	p.minFreq = 1
	p.count++
}

// Evict removes the oldest object in the lowest occupied frequency class.
func (p *LFU) Evict(*types.Request) error {
	if p.count == 0 {
		return errEmptyQueue("lfu")
	}
	q := p.buckets[p.minFreq]
	for q == nil || q.Len() == 0 {
		delete(p.buckets, p.minFreq)
		p.minFreq++
		q = p.buckets[p.minFreq]
	}
	h := q.PopHead(p.st)
	if q.Len() == 0 {
		delete(p.buckets, p.minFreq)
	}
	p.st.RemoveHandle(h)
	p.count--
	return nil
}

// OnRemove unlinks the object from its frequency class.
func (p *LFU) OnRemove(h store.Handle) {
	o := p.st.Obj(h)
	q := p.buckets[o.Freq]
	q.Remove(p.st, h)
	if q.Len() == 0 {
		delete(p.buckets, o.Freq)
	}
	p.count--
}
