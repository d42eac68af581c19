package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

// FileSink appends heartbeat lines to a log file. The parent directory
// is created on Open if it does not exist. Payload blocks are never
// persisted; only the line format goes to disk.
type FileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// NewFileSink creates a file sink for the given path. The file is not
// touched until Open.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Name returns "file:<path>".
func (s *FileSink) Name() string {
	return "file:" + s.path
}

// Open creates the parent directory if needed and opens the file in
// append mode.
func (s *FileSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", s.path, err)
	}

	s.file = file
	s.writer = bufio.NewWriter(file)
	s.closed = false
	return nil
}

// Write appends one line. Payload messages are reduced to their marker
// line; the block itself stays on the console streams.
func (s *FileSink) Write(m *beat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.writer == nil {
		return errors.ErrSinkClosed
	}

	_, err := s.writer.WriteString(m.Line() + "\n")
	return err
}

// Flush drains the buffer and syncs the file so every line written so
// far is durable.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileSink) flushLocked() error {
	if s.writer == nil {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close flushes and closes the file. Closing a sink that never opened
// is a no-op, and a second Close is a no-op as well.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.file == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	flushErr := s.flushLocked()
	closeErr := s.file.Close()
	s.file = nil
	s.writer = nil

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Path returns the configured log file path.
func (s *FileSink) Path() string {
	return s.path
}
