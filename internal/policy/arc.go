package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("arc", nil, newARC)
}

// ARC is the adaptive replacement cache: a recency queue T1 and a frequency
// queue T2, shadowed by ghost queues B1 and B2 holding the ids (not the
// payloads) of recent evictions from each. Ghost hits steer the adaptive
// target p, the byte share of capacity reserved for T1.
//
// Ghost entries stay in the hash index with size zero; their original size
// is kept in the policy scratch word so the ghost queues can be bounded in
// bytes like everything else.
type ARC struct {
	base
	t1, t2  store.Queue
	b1, b2  store.Queue
	b1Bytes uint64
	b2Bytes uint64
	p       uint64
}

func newARC(st *store.Store, capacity uint64, _ map[string]string, _ *utils.Logger) (cache.Policy, error) {
	return &ARC{base: base{name: "arc", st: st, capacity: capacity}}, nil
}

// OnHit promotes a T1 object to T2 and refreshes T2 recency.
func (p *ARC) OnHit(h store.Handle, _ *types.Request) {
	o := p.st.Obj(h)
	switch o.State {
	case store.StateT1:
		p.t1.Remove(p.st, h)
		o.State = store.StateT2
		p.t2.PushTail(p.st, h)
	case store.StateT2:
		p.t2.MoveToTail(p.st, h)
	}
}

// OnMiss handles the three admission cases: a B1 ghost hit grows p and
// revives the object into T2, a B2 ghost hit shrinks p and revives into T2,
// and a cold miss enters T1 after the ghost bound is restored.
func (p *ARC) OnMiss(h store.Handle, req *types.Request) {
	o := p.st.Obj(h)
	switch o.State {
	case store.StateB1:
		delta := req.Size
		if p.b1.Len() > 0 && p.b2Bytes/p.b1.Len() > delta {
			delta = p.b2Bytes / p.b1.Len()
		}
		if p.p+delta < p.capacity {
			p.p += delta
		} else {
			p.p = p.capacity
		}
		p.revive(h, req, &p.b1, &p.b1Bytes)
	case store.StateB2:
		delta := req.Size
		if p.b2.Len() > 0 && p.b1Bytes/p.b2.Len() > delta {
			delta = p.b1Bytes / p.b2.Len()
		}
		if p.p > delta {
			p.p -= delta
		} else {
			p.p = 0
		}
		p.revive(h, req, &p.b2, &p.b2Bytes)
	default:
		// Cold miss: keep the directory bounded before admitting.
		for p.t1.Bytes()+p.b1Bytes > p.capacity && p.b1.Len() > 0 {
			p.dropGhost(&p.b1, &p.b1Bytes)
		}
		for p.directoryBytes() > 2*p.capacity && p.b2.Len() > 0 {
			p.dropGhost(&p.b2, &p.b2Bytes)
		}
		o.State = store.StateT1
		p.t1.PushTail(p.st, h)
	}
}

// Evict implements the REPLACE rule: demote from T1 while it exceeds its
// target p (or ties it on a B2 ghost hit), otherwise from T2. Demotion keeps
// the id as a ghost; the payload bytes are freed.
func (p *ARC) Evict(req *types.Request) error {
	fromT1 := false
	switch {
	case p.t1.Len() == 0:
		// Only T2 can give.
	case p.t2.Len() == 0:
		fromT1 = true
	case p.t1.Bytes() > p.p:
		fromT1 = true
	case p.t1.Bytes() == p.p && p.ghostState(req.ID) == store.StateB2:
		fromT1 = true
	}
	if fromT1 {
		return p.demote(&p.t1, store.StateB1, &p.b1, &p.b1Bytes)
	}
	if p.t2.Len() == 0 {
		return errEmptyQueue("arc")
	}
	return p.demote(&p.t2, store.StateB2, &p.b2, &p.b2Bytes)
}

// OnRemove unlinks an explicitly removed resident.
func (p *ARC) OnRemove(h store.Handle) {
	o := p.st.Obj(h)
	switch o.State {
	case store.StateT1:
		p.t1.Remove(p.st, h)
	case store.StateT2:
		p.t2.Remove(p.st, h)
	}
}

func (p *ARC) revive(h store.Handle, req *types.Request, ghostQ *store.Queue, ghostBytes *uint64) {
	o := p.st.Obj(h)
	ghostQ.Remove(p.st, h)
	*ghostBytes -= o.Aux
	o.Aux = 0
	p.st.Resize(h, req.Size)
	o.State = store.StateT2
	p.t2.PushTail(p.st, h)
}

func (p *ARC) demote(q *store.Queue, ghostState uint8, ghostQ *store.Queue, ghostBytes *uint64) error {
	h := q.PopHead(p.st)
	if h == store.NilHandle {
		return errEmptyQueue("arc")
	}
	o := p.st.Obj(h)
	o.Aux = o.Size
	p.st.Resize(h, 0)
	o.State = ghostState
	ghostQ.PushTail(p.st, h)
	*ghostBytes += o.Aux
	for p.directoryBytes() > 2*p.capacity && (p.b1.Len() > 0 || p.b2.Len() > 0) {
		if p.b2.Len() > 0 {
			p.dropGhost(&p.b2, &p.b2Bytes)
		} else {
			p.dropGhost(&p.b1, &p.b1Bytes)
		}
	}
	return nil
}

func (p *ARC) dropGhost(q *store.Queue, bytes *uint64) {
	h := q.PopHead(p.st)
	if h == store.NilHandle {
		return
	}
	*bytes -= p.st.Obj(h).Aux
	p.st.RemoveHandle(h)
}

func (p *ARC) ghostState(id uint64) uint8 {
	h := p.st.Find(id)
	if h == store.NilHandle {
		return store.StateNone
	}
	return p.st.Obj(h).State
}

func (p *ARC) directoryBytes() uint64 {
	return p.t1.Bytes() + p.t2.Bytes() + p.b1Bytes + p.b2Bytes
}
