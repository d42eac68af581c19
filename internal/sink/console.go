package sink

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

// ConsoleSink writes heartbeat messages to a console stream.
//
// Messages without a payload are rendered in the standard line format.
// Messages carrying a payload (the flood-test variant) are written as
// the raw block immediately followed by the marker line, matching the
// stream contract observed by supervisors.
type ConsoleSink struct {
	name   string
	writer io.Writer

	mu     sync.Mutex
	closed bool
}

// NewStdoutSink creates a console sink bound to standard output.
func NewStdoutSink() *ConsoleSink {
	return &ConsoleSink{name: "stdout", writer: os.Stdout}
}

// NewStderrSink creates a console sink bound to standard error.
func NewStderrSink() *ConsoleSink {
	return &ConsoleSink{name: "stderr", writer: os.Stderr}
}

// NewConsoleSink creates a console sink over an arbitrary writer.
// Tests use this to capture output in memory.
func NewConsoleSink(name string, w io.Writer) *ConsoleSink {
	return &ConsoleSink{name: name, writer: w}
}

// Name returns the stream name ("stdout" or "stderr").
func (s *ConsoleSink) Name() string {
	return s.name
}

// Open is a no-op; the underlying stream is already open.
func (s *ConsoleSink) Open() error {
	return nil
}

// Write emits one message to the stream. A payload block, if present,
// is written and flushed before the marker line so a supervisor reads
// the block and its confirmation in order.
func (s *ConsoleSink) Write(m *beat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSinkClosed
	}

	if len(m.Payload) > 0 {
		if _, err := s.writer.Write(m.Payload); err != nil {
			return err
		}
		if err := s.flushLocked(); err != nil {
			return err
		}
		// Marker lines are plain text, not timestamped log lines.
		_, err := fmt.Fprintln(s.writer, m.Text)
		return err
	}

	_, err := fmt.Fprintln(s.writer, m.Line())
	return err
}

// Flush forces buffered output to the stream.
func (s *ConsoleSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *ConsoleSink) flushLocked() error {
	if f, ok := s.writer.(*os.File); ok {
		// Sync fails on terminals; the write itself is already
		// unbuffered there.
		_ = f.Sync()
		return nil
	}
	if f, ok := s.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close marks the sink closed. The underlying stream stays open: the
// process, not the sink, owns stdout and stderr.
func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked()
}
