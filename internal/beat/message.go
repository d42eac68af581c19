// Package beat defines the heartbeat message model and its wire formats.
//
// A heartbeat is a small, immutable value composed once per tick:
// a wall-clock timestamp at millisecond precision plus either a short
// UTF-8 text line or a fixed-size payload block. Line sinks serialize
// messages as:
//
//	20060102 15:04:05.000 [INFO] => message text
//
// The format round-trips through ParseLine, which supervisors and
// tests use to validate emitted output.
package beat

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wall-clock layout used on every emitted line,
// millisecond precision, local time.
const TimestampLayout = "20060102 15:04:05.000"

// Level classifies a heartbeat line. Heartbeats are INFO; sink write
// failures reported through healthy sinks are ERROR.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Message is a single heartbeat. Messages are composed fresh each tick
// and never mutated after construction.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Text      string    `json:"text"`

	// Payload, when non-empty, is written to raw-mode sinks as a fixed
	// block immediately before the marker line carried in Text.
	Payload []byte `json:"-"`
}

// New creates an INFO heartbeat stamped with the current wall clock.
func New(text string) *Message {
	return &Message{
		Timestamp: time.Now(),
		Level:     LevelInfo,
		Text:      text,
	}
}

// NewError creates an ERROR message stamped with the current wall clock.
func NewError(text string) *Message {
	return &Message{
		Timestamp: time.Now(),
		Level:     LevelError,
		Text:      text,
	}
}

// NewPayload creates a flood-test heartbeat: a payload block of size
// bytes filled with fill, plus a marker line confirming the write.
func NewPayload(size int, fill byte, marker string) *Message {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = fill
	}
	return &Message{
		Timestamp: time.Now(),
		Level:     LevelInfo,
		Text:      marker,
		Payload:   payload,
	}
}

// Line renders the message in the log line format, without a trailing
// newline.
func (m *Message) Line() string {
	return fmt.Sprintf("%s [%s] => %s", m.Timestamp.Format(TimestampLayout), m.Level, m.Text)
}

// Size returns the approximate size of the message in bytes.
func (m *Message) Size() int {
	return len(m.Text) + len(m.Payload) + len(string(m.Level)) + 8
}

// ParseLine parses a line previously produced by Line back into a
// Message. The payload block is not part of the line format and is
// never recovered.
func ParseLine(line string) (*Message, error) {
	line = strings.TrimSuffix(line, "\n")

	if len(line) < len(TimestampLayout) {
		return nil, fmt.Errorf("line too short to contain timestamp: %q", line)
	}

	ts, err := time.ParseInLocation(TimestampLayout, line[:len(TimestampLayout)], time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp in line %q: %w", line, err)
	}

	rest := line[len(TimestampLayout):]
	if !strings.HasPrefix(rest, " [") {
		return nil, fmt.Errorf("missing level field in line %q", line)
	}
	rest = rest[2:]

	end := strings.Index(rest, "] => ")
	if end < 0 {
		return nil, fmt.Errorf("missing '] => ' separator in line %q", line)
	}

	level := Level(rest[:end])
	switch level {
	case LevelInfo, LevelError:
	default:
		return nil, fmt.Errorf("unknown level %q in line %q", level, line)
	}

	return &Message{
		Timestamp: ts,
		Level:     level,
		Text:      rest[end+len("] => "):],
	}, nil
}
