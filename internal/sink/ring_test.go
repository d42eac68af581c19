package sink

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

func TestNewRingSink(t *testing.T) {
	s := NewRingSink(100)

	if s.capacity != 100 {
		t.Errorf("Expected capacity 100, got %d", s.capacity)
	}

	stats := s.GetStats()
	if stats.EntryCount != 0 {
		t.Errorf("Expected empty ring, got %d entries", stats.EntryCount)
	}
}

func TestNewRingSink_DefaultCapacity(t *testing.T) {
	s := NewRingSink(0)
	if s.capacity != DefaultRingCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultRingCapacity, s.capacity)
	}
}

func TestRingSink_WriteAndAll(t *testing.T) {
	s := NewRingSink(10)

	for i := 0; i < 3; i++ {
		if err := s.Write(beat.New(fmt.Sprintf("beat %d", i))); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(all))
	}
	for i, m := range all {
		if m.Text != fmt.Sprintf("beat %d", i) {
			t.Errorf("Expected chronological order, got %q at index %d", m.Text, i)
		}
	}
}

func TestRingSink_CapacityEviction(t *testing.T) {
	s := NewRingSink(5)

	for i := 0; i < 8; i++ {
		if err := s.Write(beat.New(fmt.Sprintf("beat %d", i))); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	all := s.All()
	if len(all) != 5 {
		t.Fatalf("Expected 5 retained messages, got %d", len(all))
	}
	if all[0].Text != "beat 3" {
		t.Errorf("Expected oldest retained to be 'beat 3', got %q", all[0].Text)
	}
	if all[4].Text != "beat 7" {
		t.Errorf("Expected newest to be 'beat 7', got %q", all[4].Text)
	}
}

func TestRingSink_ByteEviction(t *testing.T) {
	s := NewRingSink(10000)

	// Each message is ~256KB of text, so five of them exceed the
	// byte budget and force eviction well before the count cap.
	big := strings.Repeat("x", 256*1024)
	for i := 0; i < 6; i++ {
		if err := s.Write(beat.New(big)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	stats := s.GetStats()
	if stats.TotalSizeBytes > MaxRingBytes {
		t.Errorf("Expected total size within %d bytes, got %d", MaxRingBytes, stats.TotalSizeBytes)
	}
	if stats.EntryCount >= 6 {
		t.Errorf("Expected byte-based eviction, still have %d entries", stats.EntryCount)
	}
}

func TestRingSink_EvictionByteAccounting(t *testing.T) {
	s := NewRingSink(4)

	// Overwrite the full ring many times with varying message sizes so
	// any drift in the evicted-byte accounting accumulates.
	for i := 0; i < 50; i++ {
		text := strings.Repeat("x", 10+i%37)
		if err := s.Write(beat.New(text)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	want := 0
	for _, m := range s.All() {
		want += m.Size()
	}

	stats := s.GetStats()
	if stats.TotalSizeBytes != want {
		t.Errorf("Expected total size %d to match retained entries, got %d",
			want, stats.TotalSizeBytes)
	}
	if stats.EntryCount != 4 {
		t.Errorf("Expected a full ring of 4 entries, got %d", stats.EntryCount)
	}
}

func TestRingSink_Recent(t *testing.T) {
	s := NewRingSink(10)

	for i := 0; i < 6; i++ {
		s.Write(beat.New(fmt.Sprintf("beat %d", i)))
	}

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(recent))
	}
	if recent[0].Text != "beat 4" || recent[1].Text != "beat 5" {
		t.Errorf("Expected the two newest messages, got %q, %q", recent[0].Text, recent[1].Text)
	}

	if got := s.Recent(0); len(got) != 6 {
		t.Errorf("Expected Recent(0) to return all, got %d", len(got))
	}
	if got := s.Recent(100); len(got) != 6 {
		t.Errorf("Expected Recent(100) to return all, got %d", len(got))
	}
}

func TestRingSink_WriteAfterClose(t *testing.T) {
	s := NewRingSink(10)
	s.Write(beat.New("before"))

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := s.Write(beat.New("after"))
	if !errors.IsCode(err, errors.CodeSinkClosed) {
		t.Errorf("Expected SINK_CLOSED error, got %v", err)
	}

	// Retained messages stay readable after close
	if s.Len() != 1 {
		t.Errorf("Expected 1 retained message after close, got %d", s.Len())
	}
}

func TestRingSink_Clear(t *testing.T) {
	s := NewRingSink(10)
	for i := 0; i < 5; i++ {
		s.Write(beat.New("beat"))
	}

	s.Clear()

	stats := s.GetStats()
	if stats.EntryCount != 0 || stats.TotalSizeBytes != 0 {
		t.Errorf("Expected empty ring after clear, got %d entries, %d bytes",
			stats.EntryCount, stats.TotalSizeBytes)
	}
}

func TestRingSink_Stats(t *testing.T) {
	s := NewRingSink(10)

	stats := s.GetStats()
	if stats.String() != "Ring sink is empty" {
		t.Errorf("Expected empty stats string, got %q", stats.String())
	}

	s.Write(beat.New("first"))
	s.Write(beat.New("second"))

	stats = s.GetStats()
	if stats.EntryCount != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.EntryCount)
	}
	if stats.Oldest == nil || stats.Newest == nil {
		t.Fatal("Expected oldest and newest timestamps to be set")
	}
	if stats.Newest.Before(*stats.Oldest) {
		t.Error("Expected newest >= oldest")
	}
	if !strings.Contains(stats.String(), "2/10 entries") {
		t.Errorf("Unexpected stats string: %q", stats.String())
	}
}

func TestRingSink_ConcurrentWrites(t *testing.T) {
	s := NewRingSink(1000)

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				s.Write(beat.New("concurrent"))
			}
		}()
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	if s.Len() != 400 {
		t.Errorf("Expected 400 messages, got %d", s.Len())
	}
}
