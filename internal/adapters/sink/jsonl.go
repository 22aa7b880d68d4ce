// Package sink provides record sinks that write to files.
package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// JSONLSink appends one JSON record per line.
type JSONLSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	enc    *json.Encoder
	closed bool
}

var _ ports.SinkPort = (*JSONLSink)(nil)

// NewJSONLSink opens path for appending, creating parent directories.
// Stdout writes to standard output.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == Stdout {
		return NewJSONLWriter(os.Stdout, nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WithContext(errors.NewError(errors.CodeConfiguration, "failed to create output directory", err), "path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WithContext(errors.NewError(errors.CodeConfiguration, "failed to open output file", err), "path", path)
	}
	return NewJSONLWriter(f, f), nil
}

// NewJSONLWriter writes to w. closer, if non-nil, is closed by Close.
func NewJSONLWriter(w io.Writer, closer io.Closer) *JSONLSink {
	bw := bufio.NewWriter(w)
	return &JSONLSink{w: bw, closer: closer, enc: json.NewEncoder(bw)}
}

// Save writes the record and flushes so a crash loses at most one line.
func (s *JSONLSink) Save(_ context.Context, record *page.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewError(errors.CodeExecution, "sink is closed", nil)
	}
	if err := s.enc.Encode(record); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Discard drops every record.
type Discard struct{}

var _ ports.SinkPort = Discard{}

// Save implements ports.SinkPort.
func (Discard) Save(context.Context, *page.Record) error { return nil }

// Close implements ports.SinkPort.
func (Discard) Close() error { return nil }
