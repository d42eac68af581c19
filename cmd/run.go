package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseprobe/pulse/internal/logging"
	"github.com/pulseprobe/pulse/internal/metrics"
	"github.com/pulseprobe/pulse/internal/probe"
	"github.com/pulseprobe/pulse/internal/sink"
)

var (
	// Run command flags
	runInterval   time.Duration
	runMessage    string
	runLogFile    string
	runNoStdout   bool
	runStderr     bool
	runMemorySize int
	runWSURL      string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [--interval DURATION] [--message TEXT] [--log-file PATH]",
	Short: "Run the heartbeat loop",
	Long: `Run the heartbeat loop.

Once per interval the probe composes a timestamped heartbeat line and
writes it to every configured sink in order:

  20060102 15:04:05.000 [INFO] => Hello, World!

A "Service started" line is emitted first, and a final
"Service stopped!" line is guaranteed to be the last durable entry
after an interrupt. The parent directory of a log file sink is created
if it does not exist.

Per-sink write failures are reported and skipped; the loop keeps
ticking even when every sink is failing, so supervisors that only
watch process liveness see a healthy child.`,
	Example: `  # Heartbeat to stdout every 3 seconds
  pulse run

  # Heartbeat to stdout and an append log
  pulse run --interval 3s --log-file /var/log/pulse/test.log

  # UTF-8 payload text on stderr only
  pulse run --no-stdout --stderr --message "同时也感觉没有想象的那么好用"

  # Stream heartbeats to a remote observer
  pulse run --ws-url ws://localhost:8765/beats`,
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between heartbeats (overrides config, default 3s)")
	runCmd.Flags().StringVar(&runMessage, "message", "", "heartbeat message text (overrides config)")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "append heartbeat lines to this file")
	runCmd.Flags().BoolVar(&runNoStdout, "no-stdout", false, "disable the stdout sink")
	runCmd.Flags().BoolVar(&runStderr, "stderr", false, "enable the stderr sink")
	runCmd.Flags().IntVar(&runMemorySize, "memory-size", 0, "retain the last N heartbeats in memory")
	runCmd.Flags().StringVar(&runWSURL, "ws-url", "", "stream heartbeats to this ws:// endpoint")
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	// Flags override config file values
	interval := cfg.Probe.Interval
	if cmd.Flags().Changed("interval") {
		interval = runInterval
	}
	message := cfg.Probe.Message
	if runMessage != "" {
		message = runMessage
	}
	logFile := cfg.Sinks.File
	if runLogFile != "" {
		logFile = runLogFile
	}
	memorySize := cfg.Sinks.MemoryCapacity
	if runMemorySize > 0 {
		memorySize = runMemorySize
	}
	wsURL := cfg.Sinks.WebSocketURL
	if runWSURL != "" {
		wsURL = runWSURL
	}

	useStdout := cfg.Sinks.Stdout && !runNoStdout
	useStderr := cfg.Sinks.Stderr || runStderr

	if interval < 0 {
		return fmt.Errorf("interval must be non-negative, got %v", interval)
	}

	logger, err := logging.NewProbeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	// Assemble sinks in a stable configuration order: console streams
	// first, then file, memory and remote observers.
	var sinks []sink.Sink
	var errorSink sink.Sink

	if useStdout {
		sinks = append(sinks, sink.NewStdoutSink())
	}
	if useStderr {
		s := sink.NewStderrSink()
		sinks = append(sinks, s)
		errorSink = s
	}
	if logFile != "" {
		sinks = append(sinks, sink.NewFileSink(logFile))
	}
	if memorySize > 0 {
		sinks = append(sinks, sink.NewRingSink(memorySize))
	}
	if wsURL != "" {
		sinks = append(sinks, sink.NewWebSocketSink(wsURL))
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Starting heartbeat probe...\n")
		fmt.Fprintf(os.Stderr, "Interval: %v\n", interval)
		fmt.Fprintf(os.Stderr, "Message: %s\n", message)
		fmt.Fprintf(os.Stderr, "Sinks: %d\n", len(sinks))
	}

	monitor := metrics.NewMonitor()

	p, err := probe.New(probe.Options{
		Interval:  interval,
		Sinks:     sinks,
		Compose:   probe.HeartbeatCompose(message),
		ErrorSink: errorSink,
		Logger:    logger,
		Monitor:   monitor,
	})
	if err != nil {
		return err
	}

	err = p.RunWithSignalHandling()

	if verbose || cfg.Logging.Verbose {
		monitor.LogSummary(cmd.Context())
	}

	return err
}
