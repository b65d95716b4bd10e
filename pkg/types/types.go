package types

// Op identifies the kind of operation a trace request asks the cache to perform.
type Op uint8

const (
	// OpGet looks an object up and admits it on a miss.
	OpGet Op = iota
	// OpRemove deletes an object if it is resident.
	OpRemove
)

// String returns the trace-format name of the operation.
func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Request represents one object access read from a trace.
// Requests are immutable once issued; a request replayed against several
// caches is cloned by value, never shared.
type Request struct {
	ID          uint64 `json:"id"`
	Size        uint64 `json:"size"`
	LogicalTime uint64 `json:"logical_time"`
	Op          Op     `json:"op"`
}

// Outcome classifies what a single request did to a cache.
type Outcome uint8

const (
	// OutcomeHit means the object was resident.
	OutcomeHit Outcome = iota
	// OutcomeMiss means the object was admitted after a miss.
	OutcomeMiss
	// OutcomeRejected means the object could not be admitted at all
	// (larger than the cache or the admitting tier). Distinct from a miss.
	OutcomeRejected
	// OutcomeRemoved means an OpRemove deleted a resident object.
	OutcomeRemoved
	// OutcomeNoop means an OpRemove targeted a non-resident object.
	OutcomeNoop
)

// String returns a stable lowercase name for reports.
func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeRejected:
		return "rejected"
	case OutcomeRemoved:
		return "removed"
	case OutcomeNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Statistics accumulates per-configuration counters during a replay.
// One instance is owned by the simulation driver per configuration and
// written only by that configuration's worker.
type Statistics struct {
	Requests       uint64 `json:"requests"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Rejected       uint64 `json:"rejected"`
	BytesRequested uint64 `json:"bytes_requested"`
	BytesMiss      uint64 `json:"bytes_miss"`
}

// Record folds one request outcome into the counters.
func (s *Statistics) Record(req *Request, outcome Outcome) {
	if req.Op != OpGet {
		return
	}
	s.Requests++
	s.BytesRequested += req.Size
	switch outcome {
	case OutcomeHit:
		s.Hits++
	case OutcomeMiss:
		s.Misses++
		s.BytesMiss += req.Size
	case OutcomeRejected:
		s.Rejected++
		s.BytesMiss += req.Size
	}
}

// MissRatio returns misses (including rejected requests) over requests.
func (s *Statistics) MissRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Misses+s.Rejected) / float64(s.Requests)
}

// ByteMissRatio returns missed bytes over requested bytes.
func (s *Statistics) ByteMissRatio() float64 {
	if s.BytesRequested == 0 {
		return 0
	}
	return float64(s.BytesMiss) / float64(s.BytesRequested)
}
