package types

// TraceReader is the narrow contract the simulation core consumes requests
// through. The core never parses trace file formats itself; readers live at
// the edge of the system and hand the kernel a stream of Requests.
//
// Readers are not safe for concurrent use. The multi-configuration driver
// gives every worker its own Clone, so no two goroutines ever share reader
// state.
type TraceReader interface {
	// Next returns the next request, or io.EOF when the trace is exhausted.
	Next() (*Request, error)

	// Clone returns an independent reader positioned at the start of the
	// trace. The underlying trace bytes may be shared read-only.
	Clone() (TraceReader, error)

	// Reset rewinds the reader to the start of the trace.
	Reset() error

	// Skip discards the next n requests. Skipping past the end of the
	// trace is not an error; the next call to Next reports io.EOF.
	Skip(n uint64) error
}
