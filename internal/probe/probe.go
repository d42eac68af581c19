// Package probe implements the heartbeat loop at the core of pulse.
//
// A Probe owns an ordered set of sinks for its entire lifetime. Run
// opens every sink, emits a start marker, then ticks: compose the
// heartbeat for this tick, write it to the sinks in configuration
// order, sleep the interval. The sleep is the only suspension point
// and is interruptible through the context; cancellation is observed
// cooperatively at the top of each iteration and during the sleep,
// never by force mid-write.
//
// Sink write failures are reported and skipped; the loop keeps ticking
// even if every sink is failing, so a supervisor that only checks
// process liveness still sees a healthy child. Only a sink that fails
// to initialize aborts the probe, before the first tick.
//
// Example usage:
//
//	p, err := probe.New(probe.Options{
//		Interval: 3 * time.Second,
//		Sinks:    []sink.Sink{sink.NewStdoutSink()},
//		Compose:  probe.HeartbeatCompose("Hello, World!"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = p.RunWithSignalHandling()
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
	"github.com/pulseprobe/pulse/internal/logging"
	"github.com/pulseprobe/pulse/internal/metrics"
	"github.com/pulseprobe/pulse/internal/sink"
)

// State represents the lifecycle state of a probe.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateInterrupted State = "interrupted"
	StateFaulted     State = "faulted"
	StateStopped     State = "stopped"
)

// Marker lines bracketing the probe's output.
const (
	StartedMarker = "Service started"
	StoppedMarker = "Service stopped!"
)

// Emission is one message produced by a tick. A nil Target fans the
// message out to every configured sink in order; a non-nil Target
// addresses exactly one sink, which the flood variant uses to pair
// payload blocks with their stream.
type Emission struct {
	Message *beat.Message
	Target  sink.Sink
}

// ComposeFunc builds the emissions for one tick. The tick counter
// starts at 1.
type ComposeFunc func(tick int64) []Emission

// HeartbeatCompose returns a composer producing one timestamped text
// heartbeat per tick, fanned out to all sinks.
func HeartbeatCompose(text string) ComposeFunc {
	return func(tick int64) []Emission {
		return []Emission{{Message: beat.New(text)}}
	}
}

// FloodCompose returns a composer producing one fixed-fill payload
// block plus marker line per target per tick.
func FloodCompose(size int, sizeLabel string, targets []FloodTarget) ComposeFunc {
	return func(tick int64) []Emission {
		emissions := make([]Emission, 0, len(targets))
		for _, t := range targets {
			marker := fmt.Sprintf("Wrote %s to %s", sizeLabel, t.Sink.Name())
			emissions = append(emissions, Emission{
				Message: beat.NewPayload(size, t.Fill, marker),
				Target:  t.Sink,
			})
		}
		return emissions
	}
}

// FloodTarget pairs a sink with its payload fill byte.
type FloodTarget struct {
	Sink sink.Sink
	Fill byte
}

// Options configures a Probe. The sink list may be empty, producing a
// probe that loops and sleeps without observable I/O.
type Options struct {
	Interval time.Duration
	Sinks    []sink.Sink
	Compose  ComposeFunc

	// ErrorSink, when set, receives an ERROR line for every sink write
	// failure. It must also appear in Sinks if its output should be
	// flushed and closed with the rest.
	ErrorSink sink.Sink

	Logger  *logging.Logger
	Monitor *metrics.Monitor
}

// Probe drives the heartbeat loop and owns all sinks.
type Probe struct {
	interval  time.Duration
	sinks     []sink.Sink
	compose   ComposeFunc
	errorSink sink.Sink
	logger    *logging.Logger
	monitor   *metrics.Monitor

	mu     sync.RWMutex
	state  State
	opened []sink.Sink
	ticks  int64

	shutdownOnce sync.Once
}

// New creates a probe from the given options.
func New(opts Options) (*Probe, error) {
	if opts.Interval < 0 {
		return nil, errors.ConfigError(
			fmt.Sprintf("interval must be non-negative, got %v", opts.Interval), nil)
	}
	if opts.Compose == nil {
		return nil, errors.ConfigError("compose function is required", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	monitor := opts.Monitor
	if monitor == nil {
		monitor = metrics.NewMonitor()
	}
	monitor.SetLogger(logger.Logger)

	return &Probe{
		interval:  opts.Interval,
		sinks:     opts.Sinks,
		compose:   opts.Compose,
		errorSink: opts.ErrorSink,
		logger:    logger,
		monitor:   monitor,
		state:     StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (p *Probe) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Ticks returns the number of completed ticks.
func (p *Probe) Ticks() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks
}

func (p *Probe) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run executes the heartbeat loop until the context is cancelled.
// It returns nil after a graceful interrupt and a *errors.ProbeError
// if a sink failed to initialize before the first tick. Shutdown runs
// on every exit path.
func (p *Probe) Run(ctx context.Context) error {
	if s := p.State(); s != StateIdle {
		return errors.InternalError("ALREADY_RAN", fmt.Sprintf("probe cannot run from state %q", s), nil)
	}

	// Initialize all sinks before the first tick. Any failure here is
	// fatal; sinks opened so far are still released.
	for _, s := range p.sinks {
		if err := s.Open(); err != nil {
			p.setState(StateFaulted)
			initErr := errors.SinkInitError(s.Name(), err)
			p.logger.LogError(ctx, "Sink initialization failed", initErr)
			p.Shutdown()
			return initErr
		}
		p.mu.Lock()
		p.opened = append(p.opened, s)
		p.mu.Unlock()
	}

	p.setState(StateRunning)
	defer p.Shutdown()

	p.logger.Info("Probe started",
		slog.Duration("interval", p.interval),
		slog.Int("sinks", len(p.sinks)),
	)
	p.writeAll(beat.New(StartedMarker))

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.setState(StateInterrupted)
			p.logger.Info("Interrupt received, stopping probe")
			return nil
		default:
		}

		p.tick()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.interval)

		select {
		case <-ctx.Done():
			p.setState(StateInterrupted)
			p.logger.Info("Interrupt received, stopping probe")
			return nil
		case <-timer.C:
		}
	}
}

// tick composes and writes the emissions for one iteration.
func (p *Probe) tick() {
	t := metrics.NewTimer(p.monitor)
	defer t.Stop()

	p.mu.Lock()
	p.ticks++
	n := p.ticks
	p.mu.Unlock()

	for _, e := range p.compose(n) {
		if e.Target != nil {
			p.write(e.Target, e.Message)
			continue
		}
		p.writeAll(e.Message)
	}
}

// writeAll fans a message out to every sink in configuration order.
// Every sink is attempted regardless of earlier failures in the same
// tick.
func (p *Probe) writeAll(m *beat.Message) {
	for _, s := range p.sinks {
		p.write(s, m)
	}
}

// write delivers a message to one sink. A failure is recorded,
// reported through the diagnostic logger and the error sink, and
// otherwise swallowed: write errors never escape the tick loop.
func (p *Probe) write(s sink.Sink, m *beat.Message) {
	err := s.Write(m)
	p.monitor.RecordWrite(s.Name(), m.Size(), err)
	if err == nil {
		return
	}

	writeErr := errors.SinkWriteError(s.Name(), err)
	p.logger.LogError(context.Background(), "Sink write failed", writeErr)

	if p.errorSink != nil && p.errorSink != s {
		// Best effort only; a failing error sink cannot be reported
		// anywhere else.
		_ = p.errorSink.Write(beat.NewError(writeErr.Error()))
	}
}

// Shutdown releases every opened sink exactly once: the terminal
// marker is written, then each sink is flushed and closed in
// configuration order. A second call is a no-op and the marker is
// never emitted twice.
func (p *Probe) Shutdown() {
	p.shutdownOnce.Do(func() {
		start := time.Now()

		p.mu.RLock()
		opened := make([]sink.Sink, len(p.opened))
		copy(opened, p.opened)
		p.mu.RUnlock()

		stopped := beat.New(StoppedMarker)
		for _, s := range opened {
			if err := s.Write(stopped); err != nil {
				p.logger.LogError(context.Background(), "Failed to write stop marker",
					errors.SinkWriteError(s.Name(), err))
			}
		}

		for _, s := range opened {
			if err := s.Flush(); err != nil {
				p.logger.LogError(context.Background(), "Failed to flush sink",
					errors.SinkWriteError(s.Name(), err))
			}
		}

		for _, s := range opened {
			if err := s.Close(); err != nil {
				p.logger.LogError(context.Background(), "Failed to close sink",
					errors.SinkWriteError(s.Name(), err))
			}
		}

		p.logger.LogTiming(context.Background(), "shutdown", start,
			slog.Int64("ticks", p.Ticks()),
			slog.Int("sinks", len(opened)),
		)
		p.setState(StateStopped)
	})
}

// RunWithSignalHandling runs the probe until SIGINT or SIGTERM.
func (p *Probe) RunWithSignalHandling() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			p.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return p.Run(ctx)
}

// Monitor returns the metrics monitor backing this probe.
func (p *Probe) Monitor() *metrics.Monitor {
	return p.monitor
}
