package sink

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

func TestFileSink_CreatesMissingDirectory(t *testing.T) {
	// Scenario: log directory does not exist at startup
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "nested", "test.log")

	s := NewFileSink(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Write(beat.New("first line")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}

	parsed, err := beat.ParseLine(string(data))
	if err != nil {
		t.Fatalf("First log line did not parse: %v", err)
	}
	if parsed.Text != "first line" {
		t.Errorf("Expected text 'first line', got %q", parsed.Text)
	}
}

func TestFileSink_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	s1 := NewFileSink(path)
	if err := s1.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s1.Write(beat.New("run one")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2 := NewFileSink(path)
	if err := s2.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if err := s2.Write(beat.New("run two")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %v", len(lines), lines)
	}
}

func TestFileSink_EveryLineParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	s := NewFileSink(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	texts := []string{"Service started", "Hello, World!", "同时也感觉没有想象的那么好用", "Service stopped!"}
	for _, text := range texts {
		if err := s.Write(beat.New(text)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != len(texts) {
		t.Fatalf("Expected %d lines, got %d", len(texts), len(lines))
	}

	for i, line := range lines {
		parsed, err := beat.ParseLine(line)
		if err != nil {
			t.Fatalf("Line %d did not parse: %v", i, err)
		}
		if parsed.Text != texts[i] {
			t.Errorf("Line %d: expected text %q, got %q", i, texts[i], parsed.Text)
		}
		if parsed.Level != beat.LevelInfo {
			t.Errorf("Line %d: expected level INFO, got %s", i, parsed.Level)
		}
	}
}

func TestFileSink_PayloadNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	s := NewFileSink(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Write(beat.NewPayload(1024*1024, 'a', "Wrote 1MB to stdout")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	// Only the marker line is written, never the 1 MiB block
	if info.Size() > 1024 {
		t.Errorf("Expected only the marker line on disk, got %d bytes", info.Size())
	}
}

func TestFileSink_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	s := NewFileSink(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := s.Write(beat.New("late"))
	if !errors.IsCode(err, errors.CodeSinkClosed) {
		t.Errorf("Expected SINK_CLOSED error, got %v", err)
	}
}

func TestFileSink_CloseWithoutOpen(t *testing.T) {
	s := NewFileSink(filepath.Join(t.TempDir(), "never.log"))
	if err := s.Close(); err != nil {
		t.Errorf("Close on unopened sink failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestFileSink_OpenFailsOnBadPath(t *testing.T) {
	dir := t.TempDir()
	// A file where a directory is needed makes MkdirAll fail
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	s := NewFileSink(filepath.Join(blocker, "sub", "test.log"))
	if err := s.Open(); err == nil {
		s.Close()
		t.Error("Expected Open to fail under a file path")
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Scanner error: %v", err)
	}
	return lines
}
