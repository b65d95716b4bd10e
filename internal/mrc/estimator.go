// Package mrc estimates a miss-ratio curve from a single trace pass. Instead
// of simulating a cache per candidate size, it spatially samples object ids
// (an id is either always sampled or never, by hash), measures the byte reuse
// distance of every sampled access with an order-statistics tree, and scales
// the resulting distance distribution by the inverse sampling rate. The curve
// read off the cumulative distribution approximates the exact one at a small
// fraction of the memory.
//
// Two sampling modes are supported. Fixed-rate keeps the rate constant for
// the whole pass. Fixed-size bounds the tracked-object set instead: when it
// overflows, the ids with the largest hash values are dropped and the
// sampling threshold is lowered to the smallest dropped hash, so the
// effective rate shrinks as the trace's working set grows.
package mrc

import (
	"container/heap"
	"fmt"
	"io"
	"sort"

	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

// Mode selects the sampling strategy.
type Mode string

const (
	// ModeFixedRate samples a constant fraction of the id space.
	ModeFixedRate Mode = "fixed_rate"
	// ModeFixedSize bounds tracked objects, shrinking the rate as needed.
	ModeFixedSize Mode = "fixed_size"
)

// hashMod is the modulus of the spatial hash. Thresholds are expressed as a
// value in [0, hashMod); the sampling rate is threshold/hashMod.
const hashMod = 1 << 24

// Config controls an estimator.
type Config struct {
	Mode       Mode    `yaml:"mode"`
	Rate       float64 `yaml:"rate"`        // fixed-rate mode: (0, 1]
	MaxSamples int     `yaml:"max_samples"` // fixed-size mode: tracked-object cap
	Seed       int64   `yaml:"seed"`
}

func (c *Config) validate() error {
	bad := func(msg string) error {
		return simerrors.New(simerrors.ErrCodeInvalidConfig, msg).
			WithComponent("mrc")
	}
	switch c.Mode {
	case ModeFixedRate:
		if c.Rate <= 0 || c.Rate > 1 {
			return bad("sampling rate must be in (0, 1]")
		}
	case ModeFixedSize:
		if c.MaxSamples <= 0 {
			return bad("fixed-size mode needs a positive sample cap")
		}
	default:
		return bad("unknown sampling mode " + string(c.Mode))
	}
	return nil
}

type sampleEntry struct {
	lastTime uint64
	hash     uint64
}

// distPoint is one sampled reuse, already corrected for the sampling rate in
// effect when it was observed.
type distPoint struct {
	bytes  float64
	weight float64
}

// Estimator accumulates reuse distances. It is single-threaded, like a cache
// instance; run one per worker if estimating in parallel.
type Estimator struct {
	cfg       Config
	logger    *utils.Logger
	threshold uint64
	tracked   map[uint64]*sampleEntry
	order     *treap
	byHash    hashHeap
	points    []distPoint
	coldW     float64
	clock     uint64
	requests  uint64
}

// New builds an estimator from cfg.
func New(cfg Config, logger *utils.Logger) (*Estimator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.NewLogger(utils.DefaultLoggerConfig())
	}
	e := &Estimator{
		cfg:     cfg,
		logger:  logger.WithComponent("mrc"),
		tracked: make(map[uint64]*sampleEntry),
		order:   newTreap(cfg.Seed),
	}
	if cfg.Mode == ModeFixedRate {
		e.threshold = uint64(cfg.Rate * hashMod)
		if e.threshold == 0 {
			e.threshold = 1
		}
	} else {
		e.threshold = hashMod // start at rate 1.0, shrink on overflow
	}
	return e, nil
}

// hashID scrambles an object id into the sampling space. The same id always
// lands on the same value, which is what makes spatial sampling unbiased.
func hashID(id uint64) uint64 {
	x := id
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x % hashMod
}

// Rate reports the sampling rate currently in effect.
func (e *Estimator) Rate() float64 {
	return float64(e.threshold) / float64(hashMod)
}

// Requests reports how many requests have been observed, sampled or not.
func (e *Estimator) Requests() uint64 { return e.requests }

// Record observes one request. Unsampled ids cost a hash and nothing else.
func (e *Estimator) Record(req *types.Request) {
	e.requests++
	h := hashID(req.ID)
	if h >= e.threshold {
		return
	}
	if req.Op == types.OpRemove {
		if ent, ok := e.tracked[req.ID]; ok {
			e.order.Delete(ent.lastTime)
			delete(e.tracked, req.ID)
		}
		return
	}

	rate := e.Rate()
	now := e.clock
	e.clock++

	if ent, ok := e.tracked[req.ID]; ok {
		_, distBytes := e.order.SumGreater(ent.lastTime)
		e.points = append(e.points, distPoint{
			bytes:  float64(distBytes) / rate,
			weight: 1 / rate,
		})
		e.order.Delete(ent.lastTime)
		ent.lastTime = now
		e.order.Insert(now, req.Size)
		return
	}

	// First access of a sampled id: an infinite-distance (cold) miss.
	e.coldW += 1 / rate
	e.tracked[req.ID] = &sampleEntry{lastTime: now, hash: h}
	e.order.Insert(now, req.Size)
	heap.Push(&e.byHash, hashHeapEntry{id: req.ID, hash: h})
	if e.cfg.Mode == ModeFixedSize && len(e.tracked) > e.cfg.MaxSamples {
		e.prune()
	}
}

// prune drops the tracked ids with the largest hash values until the set
// fits, then lowers the threshold to the smallest dropped hash so those ids
// stay unsampled for the rest of the pass.
func (e *Estimator) prune() {
	var newThreshold uint64
	for len(e.tracked) > e.cfg.MaxSamples && e.byHash.Len() > 0 {
		top := heap.Pop(&e.byHash).(hashHeapEntry)
		ent, ok := e.tracked[top.id]
		if !ok {
			continue // already removed, stale heap entry
		}
		e.order.Delete(ent.lastTime)
		delete(e.tracked, top.id)
		newThreshold = top.hash
	}
	// Drop any remaining ids sharing the new threshold hash, since the
	// lowered threshold makes their future accesses invisible.
	for e.byHash.Len() > 0 && e.byHash[0].hash == newThreshold {
		top := heap.Pop(&e.byHash).(hashHeapEntry)
		if ent, ok := e.tracked[top.id]; ok {
			e.order.Delete(ent.lastTime)
			delete(e.tracked, top.id)
		}
	}
	if newThreshold > 0 && newThreshold < e.threshold {
		e.threshold = newThreshold
		e.logger.Debug("lowered sampling threshold", map[string]interface{}{
			"rate":    e.Rate(),
			"tracked": len(e.tracked),
		})
	}
}

// Point is one (cache size, estimated miss ratio) sample of the curve.
type Point struct {
	CacheBytes uint64
	MissRatio  float64
}

// Curve converts the accumulated distance distribution into at most n curve
// points. The miss ratio is non-increasing in cache size.
func (e *Estimator) Curve(n int) []Point {
	if n < 2 {
		n = 2
	}
	pts := make([]distPoint, len(e.points))
	copy(pts, e.points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].bytes < pts[j].bytes })

	total := e.coldW
	for _, p := range pts {
		total += p.weight
	}
	if total == 0 {
		return nil
	}

	// Cumulative hit weight at each distinct distance.
	type cumPoint struct {
		bytes float64
		hitW  float64
	}
	cum := make([]cumPoint, 0, len(pts)+1)
	cum = append(cum, cumPoint{0, 0})
	running := 0.0
	for i := 0; i < len(pts); {
		j := i
		for j < len(pts) && pts[j].bytes == pts[i].bytes {
			running += pts[j].weight
			j++
		}
		cum = append(cum, cumPoint{pts[i].bytes, running})
		i = j
	}

	// Pick up to n evenly spaced points, always keeping the endpoints.
	out := make([]Point, 0, n)
	stride := 1
	if len(cum) > n {
		stride = (len(cum) + n - 1) / n
	}
	for i := 0; i < len(cum); i += stride {
		out = append(out, Point{
			CacheBytes: uint64(cum[i].bytes),
			MissRatio:  1 - cum[i].hitW/total,
		})
	}
	last := cum[len(cum)-1]
	if out[len(out)-1].CacheBytes != uint64(last.bytes) {
		out = append(out, Point{
			CacheBytes: uint64(last.bytes),
			MissRatio:  1 - last.hitW/total,
		})
	}
	return out
}

// WriteTable exports the curve as a tab-delimited table with the sampling
// rate recorded in a comment header.
func (e *Estimator) WriteTable(w io.Writer, n int) error {
	if _, err := fmt.Fprintf(w, "# sampling_rate=%g\n", e.Rate()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "cache_bytes\tmiss_ratio"); err != nil {
		return err
	}
	for _, p := range e.Curve(n) {
		if _, err := fmt.Fprintf(w, "%d\t%.6f\n", p.CacheBytes, p.MissRatio); err != nil {
			return err
		}
	}
	return nil
}

// hashHeap is a max-heap of tracked ids by hash value; fixed-size pruning
// pops from it. Entries for ids removed through other paths are skipped
// lazily when popped.
type hashHeapEntry struct {
	id   uint64
	hash uint64
}

type hashHeap []hashHeapEntry

func (h hashHeap) Len() int            { return len(h) }
func (h hashHeap) Less(i, j int) bool  { return h[i].hash > h[j].hash }
func (h hashHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hashHeap) Push(x interface{}) { *h = append(*h, x.(hashHeapEntry)) }
func (h *hashHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
