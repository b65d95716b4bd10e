package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("clockpro", map[string]string{
		"cold_ratio": "0.01",
		"test_ratio": "1.0",
	}, newClockPro)
}

// ClockPro is the hot/cold/test adaptive clock: resident objects are hot or
// cold, and evicted cold objects leave a metadata-only test entry behind. A
// test hit means the cold partition was too small: the object is promoted
// straight to hot and the cold target grows by its size, capped at capacity.
// Test entries evicted for space shrink the target back.
//
// Two hands sweep: the hot hand demotes unreferenced hot objects to cold
// whenever hot exceeds its share, and the cold hand promotes referenced cold
// objects to hot while demoting unreferenced ones to test. Each hand checks
// the object it points at before advancing, and an object a hand moved to
// another state is out of the other hand's queue, so one eviction call never
// processes a transitioned object twice.
type ClockPro struct {
	base
	hot, cold, test store.Queue

	coldMax   uint64 // adaptive byte target of the cold partition
	coldMin   uint64
	testCap   uint64 // byte budget of test metadata, in original sizes
	testBytes uint64
}

func newClockPro(st *store.Store, capacity uint64, params map[string]string, _ *utils.Logger) (cache.Policy, error) {
	coldRatio, err := floatParam(params, "cold_ratio", 0.01, 0.0001, 0.5)
	if err != nil {
		return nil, err
	}
	testRatio, err := floatParam(params, "test_ratio", 1.0, 0.01, 2.0)
	if err != nil {
		return nil, err
	}
	coldMin := uint64(float64(capacity) * coldRatio)
	if coldMin == 0 {
		coldMin = 1
	}
	return &ClockPro{
		base:    base{name: "clockpro", st: st, capacity: capacity},
		coldMax: coldMin,
		coldMin: coldMin,
		testCap: uint64(float64(capacity) * testRatio),
	}, nil
}

func (p *ClockPro) hotTarget() uint64 {
	if p.coldMax >= p.capacity {
		return 0
	}
	return p.capacity - p.coldMax
}

// OnHit sets the reference bit; hands act on it later.
func (p *ClockPro) OnHit(h store.Handle, _ *types.Request) {
	p.st.Obj(h).Referenced = true
}

// OnMiss admits a fresh object as cold. A miss that found a test entry is
// the adaptation signal: the object is revived directly to hot and the cold
// target grows by its size.
func (p *ClockPro) OnMiss(h store.Handle, req *types.Request) {
	o := p.st.Obj(h)
	if o.State == store.StateTest {
		p.test.Remove(p.st, h)
		p.testBytes -= o.Aux
		o.Aux = 0
		p.st.Resize(h, req.Size)
		o.State = store.StateHot
		o.Referenced = false
		p.hot.PushTail(p.st, h)
		if p.coldMax+req.Size < p.capacity {
			p.coldMax += req.Size
		} else {
			p.coldMax = p.capacity
		}
		return
	}
	o.State = store.StateCold
	o.Referenced = false
	p.cold.PushTail(p.st, h)
}

// Evict runs the cold hand until an unreferenced cold object is demoted to
// test, freeing its payload. Referenced cold objects promote to hot on the
// way, the hot hand rebalances, and reference bits only ever clear during a
// sweep, so the loop terminates.
func (p *ClockPro) Evict(*types.Request) error {
	p.sweepHot()
	for {
		h := p.cold.Head()
		if h == store.NilHandle {
			if p.hot.Len() == 0 {
				return errEmptyQueue("clockpro")
			}
			// Everything is hot; force the hot head down so the
			// cold hand has material.
			fh := p.hot.PopHead(p.st)
			fo := p.st.Obj(fh)
			fo.State = store.StateCold
			fo.Referenced = false
			p.cold.PushTail(p.st, fh)
			continue
		}
		o := p.st.Obj(h)
		if o.Referenced {
			o.Referenced = false
			p.cold.Remove(p.st, h)
			o.State = store.StateHot
			p.hot.PushTail(p.st, h)
			p.sweepHot()
			continue
		}
		p.cold.Remove(p.st, h)
		o.Aux = o.Size
		p.st.Resize(h, 0)
		o.State = store.StateTest
		p.test.PushTail(p.st, h)
		p.testBytes += o.Aux
		p.pruneTest()
		return nil
	}
}

// OnRemove unlinks an explicitly removed resident from its clock.
func (p *ClockPro) OnRemove(h store.Handle) {
	switch p.st.Obj(h).State {
	case store.StateHot:
		p.hot.Remove(p.st, h)
	case store.StateCold:
		p.cold.Remove(p.st, h)
	}
}

// sweepHot demotes unreferenced hot heads to cold while hot exceeds its
// share, giving referenced ones a second chance.
func (p *ClockPro) sweepHot() {
	for p.hot.Bytes() > p.hotTarget() && p.hot.Len() > 0 {
		h := p.hot.Head()
		o := p.st.Obj(h)
		if o.Referenced {
			o.Referenced = false
			p.hot.MoveToTail(p.st, h)
			continue
		}
		p.hot.Remove(p.st, h)
		o.State = store.StateCold
		p.cold.PushTail(p.st, h)
	}
}

// pruneTest drops the oldest test entries while the test budget is
// exceeded. Losing a test entry to space pressure shrinks the cold target:
// the adaptation signal it carried expired unused.
func (p *ClockPro) pruneTest() {
	for p.testBytes > p.testCap && p.test.Len() > 0 {
		g := p.test.PopHead(p.st)
		aux := p.st.Obj(g).Aux
		p.testBytes -= aux
		if p.coldMax > p.coldMin+aux {
			p.coldMax -= aux
		} else {
			p.coldMax = p.coldMin
		}
		p.st.RemoveHandle(g)
	}
}
