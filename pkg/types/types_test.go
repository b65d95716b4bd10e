package types

import (
	"io"
	"testing"
)

func TestOpString(t *testing.T) {
	tests := []struct {
		op       Op
		expected string
	}{
		{OpGet, "get"},
		{OpRemove, "remove"},
		{Op(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.expected)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{OutcomeHit, "hit"},
		{OutcomeMiss, "miss"},
		{OutcomeRejected, "rejected"},
		{OutcomeRemoved, "removed"},
		{OutcomeNoop, "noop"},
		{Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.expected {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.outcome, got, tt.expected)
		}
	}
}

func TestStatisticsRecord(t *testing.T) {
	var s Statistics

	s.Record(&Request{ID: 1, Size: 100, Op: OpGet}, OutcomeMiss)
	s.Record(&Request{ID: 1, Size: 100, Op: OpGet}, OutcomeHit)
	s.Record(&Request{ID: 2, Size: 300, Op: OpGet}, OutcomeRejected)

	if s.Requests != 3 {
		t.Errorf("Requests = %d, want 3", s.Requests)
	}
	if s.Hits != 1 || s.Misses != 1 || s.Rejected != 1 {
		t.Errorf("Hits/Misses/Rejected = %d/%d/%d, want 1/1/1", s.Hits, s.Misses, s.Rejected)
	}
	if s.BytesRequested != 500 {
		t.Errorf("BytesRequested = %d, want 500", s.BytesRequested)
	}
	if s.BytesMiss != 400 {
		t.Errorf("BytesMiss = %d, want 400", s.BytesMiss)
	}
}

func TestStatisticsIgnoresRemoveOps(t *testing.T) {
	var s Statistics

	s.Record(&Request{ID: 1, Size: 100, Op: OpRemove}, OutcomeRemoved)
	s.Record(&Request{ID: 2, Size: 100, Op: OpRemove}, OutcomeNoop)

	if s.Requests != 0 {
		t.Errorf("remove operations should not count as requests, got %d", s.Requests)
	}
	if s.BytesRequested != 0 {
		t.Errorf("remove operations should not count bytes, got %d", s.BytesRequested)
	}
}

func TestStatisticsRatios(t *testing.T) {
	var s Statistics

	// Empty statistics divide to zero, not NaN.
	if got := s.MissRatio(); got != 0 {
		t.Errorf("MissRatio on empty = %v, want 0", got)
	}
	if got := s.ByteMissRatio(); got != 0 {
		t.Errorf("ByteMissRatio on empty = %v, want 0", got)
	}

	s.Record(&Request{ID: 1, Size: 100, Op: OpGet}, OutcomeMiss)
	s.Record(&Request{ID: 1, Size: 100, Op: OpGet}, OutcomeHit)
	s.Record(&Request{ID: 2, Size: 200, Op: OpGet}, OutcomeHit)
	s.Record(&Request{ID: 3, Size: 600, Op: OpGet}, OutcomeRejected)

	// Rejections count as misses in the ratio.
	if got := s.MissRatio(); got != 0.5 {
		t.Errorf("MissRatio = %v, want 0.5", got)
	}
	if got := s.ByteMissRatio(); got != 0.7 {
		t.Errorf("ByteMissRatio = %v, want 0.7", got)
	}
}

// sliceReader is the minimal TraceReader used to pin down the interface
// contract for reader implementations elsewhere.
type sliceReader struct {
	reqs []Request
	pos  int
}

func (r *sliceReader) Next() (*Request, error) {
	if r.pos >= len(r.reqs) {
		return nil, io.EOF
	}
	req := r.reqs[r.pos]
	r.pos++
	return &req, nil
}

func (r *sliceReader) Clone() (TraceReader, error) {
	return &sliceReader{reqs: r.reqs}, nil
}

func (r *sliceReader) Reset() error {
	r.pos = 0
	return nil
}

func (r *sliceReader) Skip(n uint64) error {
	r.pos += int(n)
	return nil
}

func TestTraceReaderContract(t *testing.T) {
	var reader TraceReader = &sliceReader{reqs: []Request{
		{ID: 1, Size: 10, Op: OpGet},
		{ID: 2, Size: 20, Op: OpGet},
	}}

	first, err := reader.Next()
	if err != nil || first.ID != 1 {
		t.Fatalf("Next() = %v, %v", first, err)
	}

	clone, err := reader.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	cloneFirst, err := clone.Next()
	if err != nil || cloneFirst.ID != 1 {
		t.Errorf("clone does not start at the beginning: %v, %v", cloneFirst, err)
	}

	if _, err := reader.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end, got %v", err)
	}

	if err := reader.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	again, err := reader.Next()
	if err != nil || again.ID != 1 {
		t.Errorf("Reset did not rewind: %v, %v", again, err)
	}
}
