package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

const (
	// MaxRingBytes is the maximum total size of retained messages (1MB).
	MaxRingBytes = 1 * 1024 * 1024

	// DefaultRingCapacity is the default number of retained messages.
	DefaultRingCapacity = 1000
)

// RingSink is a thread-safe, bounded in-memory sink. When full it
// evicts the oldest messages, by count and by total byte size. It
// backs the "memory" sink configuration and gives tests an observable
// destination without touching the filesystem.
type RingSink struct {
	mu        sync.RWMutex
	entries   []*beat.Message
	head      int // Points to the next position to write
	tail      int // Points to the oldest entry
	size      int // Number of entries in the buffer
	capacity  int // Maximum number of entries
	totalSize int // Total size in bytes
	closed    bool
}

// NewRingSink creates a ring sink with the specified capacity.
func NewRingSink(capacity int) *RingSink {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &RingSink{
		entries:  make([]*beat.Message, capacity),
		capacity: capacity,
	}
}

// Name returns "memory".
func (s *RingSink) Name() string {
	return "memory"
}

// Open is a no-op.
func (s *RingSink) Open() error {
	return nil
}

// Write adds a message, evicting the oldest entries if the buffer is
// over capacity or over its byte budget.
func (s *RingSink) Write(m *beat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSinkClosed
	}

	s.addLocked(m)
	s.evictBySizeLocked()
	return nil
}

func (s *RingSink) addLocked(m *beat.Message) {
	if s.size == s.capacity {
		// Buffer full: head and tail point at the same slot, so the
		// oldest entry must be accounted for before it is overwritten
		if old := s.entries[s.head]; old != nil {
			s.totalSize -= old.Size()
		}
		s.tail = (s.tail + 1) % s.capacity
	} else {
		s.size++
	}

	s.entries[s.head] = m
	s.head = (s.head + 1) % s.capacity
	s.totalSize += m.Size()
}

func (s *RingSink) evictBySizeLocked() {
	for s.totalSize > MaxRingBytes && s.size > 0 {
		old := s.entries[s.tail]
		if old != nil {
			s.totalSize -= old.Size()
		}
		s.entries[s.tail] = nil
		s.tail = (s.tail + 1) % s.capacity
		s.size--
	}
}

// Flush is a no-op; memory writes are immediately visible.
func (s *RingSink) Flush() error {
	return nil
}

// Close marks the sink closed. Retained messages stay readable so a
// post-shutdown inspection can still see what was emitted.
func (s *RingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// All returns the retained messages in chronological order.
func (s *RingSink) All() []*beat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked()
}

func (s *RingSink) allLocked() []*beat.Message {
	if s.size == 0 {
		return nil
	}

	result := make([]*beat.Message, 0, s.size)
	for i := 0; i < s.size; i++ {
		idx := (s.tail + i) % s.capacity
		if s.entries[idx] != nil {
			result = append(result, s.entries[idx])
		}
	}
	return result
}

// Recent returns the newest n messages in chronological order.
func (s *RingSink) Recent(n int) []*beat.Message {
	all := s.All()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of retained messages.
func (s *RingSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Clear removes all retained messages.
func (s *RingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		s.entries[i] = nil
	}
	s.head = 0
	s.tail = 0
	s.size = 0
	s.totalSize = 0
}

// Stats describes the current state of the ring.
type Stats struct {
	EntryCount     int
	TotalSizeBytes int
	Capacity       int
	Oldest         *time.Time
	Newest         *time.Time
}

// GetStats returns statistics about the ring sink.
func (s *RingSink) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		EntryCount:     s.size,
		TotalSizeBytes: s.totalSize,
		Capacity:       s.capacity,
	}

	entries := s.allLocked()
	if len(entries) > 0 {
		stats.Oldest = &entries[0].Timestamp
		stats.Newest = &entries[len(entries)-1].Timestamp
	}

	return stats
}

// String returns a human-readable string representation of the stats.
func (s Stats) String() string {
	if s.EntryCount == 0 {
		return "Ring sink is empty"
	}

	return fmt.Sprintf("Ring sink: %d/%d entries, %d bytes, oldest: %v, newest: %v",
		s.EntryCount, s.Capacity, s.TotalSizeBytes, s.Oldest, s.Newest)
}
