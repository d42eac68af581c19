// Package sink provides the output destinations of the pulse probe.
//
// A sink is a destination capable of receiving heartbeat messages and
// later being flushed and closed. Sinks are exclusively owned by a
// single probe for its whole lifetime: the probe opens them before the
// first tick, writes to them in configuration order on every tick, and
// flushes and closes them exactly once during shutdown.
//
// Implementations: console streams, append-only files, a bounded
// in-memory ring, and a WebSocket stream for remote observers.
package sink

import "github.com/pulseprobe/pulse/internal/beat"

// Sink is an output destination for heartbeat messages.
//
// Open is called once before the first write; a failed Open is fatal
// to the probe. Write errors are non-fatal and reported per tick.
// Flush and Close are called during shutdown; Close implies a final
// flush and must tolerate being called on a sink that never opened.
type Sink interface {
	Name() string
	Open() error
	Write(m *beat.Message) error
	Flush() error
	Close() error
}

// Recorder is implemented by sinks that retain messages and can hand
// them back, such as the in-memory ring. Tests and diagnostic dumps
// use it; the probe itself never reads from its sinks.
type Recorder interface {
	Recent(n int) []*beat.Message
	Len() int
}
