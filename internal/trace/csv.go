// Package trace provides the request sources the driver replays: a CSV file
// reader and deterministic synthetic generators. All of them implement
// types.TraceReader, so a cache run does not care whether its workload came
// from a production capture or a seeded distribution.
package trace

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
)

// CSVReader reads requests from a comma-separated file with rows of the form
//
//	time,id,size[,op]
//
// where op is "get" (default) or "remove". Lines starting with '#' and a
// single optional header row are skipped. Logical time is assigned from the
// row position, not the time column; the column is kept for provenance and
// future inter-arrival work.
type CSVReader struct {
	path    string
	file    *os.File
	r       *csv.Reader
	line    uint64
	emitted uint64
}

// OpenCSV opens a trace file for reading.
func OpenCSV(path string) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.ErrCodeTraceRead,
			"failed to open trace file", err).
			WithComponent("trace").WithDetail("path", path)
	}
	return &CSVReader{path: path, file: f, r: newCSVParser(f)}, nil
}

func newCSVParser(f *os.File) *csv.Reader {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // 3 or 4 columns, validated per row
	r.TrimLeadingSpace = true
	r.Comment = '#'
	return r
}

// Next returns the next request, or io.EOF when the trace is exhausted.
func (c *CSVReader) Next() (*types.Request, error) {
	for {
		rec, err := c.r.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, simerrors.Wrap(simerrors.ErrCodeTraceParse,
				"malformed trace row", err).
				WithComponent("trace").WithDetail("path", c.path)
		}
		c.line++
		if len(rec) < 3 || len(rec) > 4 {
			return nil, c.parseError("expected 3 or 4 columns")
		}
		// Tolerate a single header row.
		if c.line == 1 {
			if _, err := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 64); err != nil {
				continue
			}
		}
		req, err := c.parseRow(rec)
		if err != nil {
			return nil, err
		}
		c.emitted++
		return req, nil
	}
}

func (c *CSVReader) parseRow(rec []string) (*types.Request, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 64)
	if err != nil {
		return nil, c.parseError("bad id column")
	}
	size, err := strconv.ParseUint(strings.TrimSpace(rec[2]), 10, 64)
	if err != nil {
		return nil, c.parseError("bad size column")
	}
	op := types.OpGet
	if len(rec) == 4 {
		switch strings.ToLower(strings.TrimSpace(rec[3])) {
		case "", "get", "read":
			op = types.OpGet
		case "remove", "delete", "del":
			op = types.OpRemove
		default:
			return nil, c.parseError("bad op column")
		}
	}
	return &types.Request{
		ID:          id,
		Size:        size,
		LogicalTime: c.emitted,
		Op:          op,
	}, nil
}

func (c *CSVReader) parseError(msg string) error {
	return simerrors.New(simerrors.ErrCodeTraceParse, msg).
		WithComponent("trace").
		WithDetail("path", c.path).
		WithDetail("line", strconv.FormatUint(c.line, 10))
}

// Clone opens an independent reader over the same file, positioned at the
// start. Concurrent cache runs each get their own clone.
func (c *CSVReader) Clone() (types.TraceReader, error) {
	return OpenCSV(c.path)
}

// Reset rewinds to the beginning of the trace.
func (c *CSVReader) Reset() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return simerrors.Wrap(simerrors.ErrCodeTraceRead,
			"failed to rewind trace file", err).
			WithComponent("trace").WithDetail("path", c.path)
	}
	c.r = newCSVParser(c.file)
	c.line = 0
	c.emitted = 0
	return nil
}

// Skip discards the next n requests.
func (c *CSVReader) Skip(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if _, err := c.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying file.
func (c *CSVReader) Close() error {
	return c.file.Close()
}
