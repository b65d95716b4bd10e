package policy

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

func init() {
	cache.Register("s3fifo", map[string]string{
		"small_ratio":         "0.1",
		"ghost_ratio":         "0.9",
		"promotion_threshold": "1",
		"max_freq":            "3",
	}, newS3FIFO)
}

// S3FIFO is the three-tier FIFO hybrid: a small probationary queue, a main
// protected queue, and a ghost queue of ids recently evicted from small.
//
// New objects enter small unless their id is found in ghost, which routes
// them straight to main. Eviction drains small while it exceeds its target;
// a small victim with enough accesses is promoted to main, otherwise its id
// is recorded in ghost and the payload is dropped. Main evicts with a
// segmented clock: a survivor with nonzero frequency is reinserted at the
// tail with the counter decremented, a zero-frequency head is evicted
// outright.
//
// Admission rule for the small/main boundary (version-dependent in the
// literature, fixed here): a non-ghost admission always enters small, even
// when small alone is over target while the cache is not yet full; the
// overflow is reconciled on the eviction side.
type S3FIFO struct {
	base
	small, main, ghost store.Queue

	smallCap   uint64
	mainCap    uint64
	ghostCap   uint64
	ghostBytes uint64
	threshold  uint32
	maxFreq    uint32
}

func newS3FIFO(st *store.Store, capacity uint64, params map[string]string, _ *utils.Logger) (cache.Policy, error) {
	smallRatio, err := floatParam(params, "small_ratio", 0.1, 0.001, 0.999)
	if err != nil {
		return nil, err
	}
	ghostRatio, err := floatParam(params, "ghost_ratio", 0.9, 0, 16)
	if err != nil {
		return nil, err
	}
	maxFreq, err := uintParam(params, "max_freq", 3, 1, 255)
	if err != nil {
		return nil, err
	}
	threshold, err := uintParam(params, "promotion_threshold", 1, 1, maxFreq)
	if err != nil {
		return nil, err
	}
	smallCap := uint64(float64(capacity) * smallRatio)
	if smallCap == 0 {
		smallCap = 1
	}
	return &S3FIFO{
		base:      base{name: "s3fifo", st: st, capacity: capacity},
		smallCap:  smallCap,
		mainCap:   capacity - smallCap,
		ghostCap:  uint64(float64(capacity) * ghostRatio),
		threshold: uint32(threshold),
		maxFreq:   uint32(maxFreq),
	}, nil
}

// Admit rejects objects too large for their admitting tier: ghost-promoted
// objects must fit main, everything else must fit small. Without this gate a
// single oversized object would corrupt the tier accounting.
func (p *S3FIFO) Admit(req *types.Request) bool {
	if p.ghostState(req.ID) {
		return req.Size <= p.mainCap
	}
	return req.Size <= p.smallCap
}

// OnHit bumps the saturating frequency counter.
func (p *S3FIFO) OnHit(h store.Handle, _ *types.Request) {
	o := p.st.Obj(h)
	if o.Freq < p.maxFreq {
		o.Freq++
	}
}

// OnMiss admits into small, or straight into main when the id was found in
// ghost (a prior small eviction that came back).
func (p *S3FIFO) OnMiss(h store.Handle, req *types.Request) {
	o := p.st.Obj(h)
	if o.State == store.StateGhost {
		p.ghost.Remove(p.st, h)
		p.ghostBytes -= o.Aux
		o.Aux = 0
		p.st.Resize(h, req.Size)
		o.Freq = 0
		o.State = store.StateMain
		p.main.PushTail(p.st, h)
		return
	}
	o.Freq = 0
	o.State = store.StateSmall
	p.small.PushTail(p.st, h)
}

// Evict drains small while it exceeds its target, then falls back to main.
// Every successful call frees the victim's payload bytes.
func (p *S3FIFO) Evict(*types.Request) error {
	if p.small.Bytes() >= p.smallCap && p.small.Len() > 0 {
		if p.evictSmall() {
			return nil
		}
	}
	if p.evictMain() {
		return nil
	}
	if p.evictSmall() {
		return nil
	}
	return errEmptyQueue("s3fifo")
}

// OnRemove unlinks an explicitly removed resident from its tier.
func (p *S3FIFO) OnRemove(h store.Handle) {
	switch p.st.Obj(h).State {
	case store.StateSmall:
		p.small.Remove(p.st, h)
	case store.StateMain:
		p.main.Remove(p.st, h)
	}
}

// evictSmall pops small heads until one is demoted to ghost (bytes freed) or
// small runs out. Heads at or above the promotion threshold move to main and
// free nothing, so the caller must follow up with evictMain when this
// returns false.
func (p *S3FIFO) evictSmall() bool {
	for {
		h := p.small.PopHead(p.st)
		if h == store.NilHandle {
			return false
		}
		o := p.st.Obj(h)
		if o.Freq >= p.threshold {
			o.Freq = 0
			o.State = store.StateMain
			p.main.PushTail(p.st, h)
			continue
		}
		p.demoteToGhost(h)
		return true
	}
}

// evictMain runs the segmented clock over main: nonzero-frequency heads
// rotate with the counter decremented, a zero-frequency head is evicted.
func (p *S3FIFO) evictMain() bool {
	for {
		h := p.main.PopHead(p.st)
		if h == store.NilHandle {
			return false
		}
		o := p.st.Obj(h)
		if o.Freq > 0 {
			o.Freq--
			p.main.PushTail(p.st, h)
			continue
		}
		p.st.RemoveHandle(h)
		return true
	}
}

func (p *S3FIFO) demoteToGhost(h store.Handle) {
	o := p.st.Obj(h)
	o.Aux = o.Size
	p.st.Resize(h, 0)
	o.State = store.StateGhost
	o.Freq = 0
	p.ghost.PushTail(p.st, h)
	p.ghostBytes += o.Aux
	for p.ghostBytes > p.ghostCap && p.ghost.Len() > 0 {
		g := p.ghost.PopHead(p.st)
		p.ghostBytes -= p.st.Obj(g).Aux
		p.st.RemoveHandle(g)
	}
}

func (p *S3FIFO) ghostState(id uint64) bool {
	h := p.st.Find(id)
	return h != store.NilHandle && p.st.Obj(h).State == store.StateGhost
}
