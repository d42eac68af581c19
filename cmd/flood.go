package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseprobe/pulse/internal/config"
	"github.com/pulseprobe/pulse/internal/logging"
	"github.com/pulseprobe/pulse/internal/probe"
	"github.com/pulseprobe/pulse/internal/sink"
)

var (
	// Flood command flags
	floodInterval time.Duration
	floodSize     string
	floodNoStderr bool
)

// floodCmd represents the flood command
var floodCmd = &cobra.Command{
	Use:   "flood [--size SIZE] [--interval DURATION]",
	Short: "Flood stdout and stderr with fixed-size payload blocks",
	Long: `Flood stdout and stderr with fixed-size payload blocks.

Once per interval the probe writes one payload block per stream ('a'
fill on stdout, 'b' fill on stderr), each immediately followed by a
marker line confirming the write size and target stream:

  Wrote 1MB to stdout

This exercises a supervisor's pipe handling under sustained output
pressure. The loop runs until SIGINT/SIGTERM.`,
	Example: `  # 1 MiB per stream every 5 seconds
  pulse flood

  # Smaller blocks, faster cadence
  pulse flood --size 64KB --interval 1s

  # stdout only
  pulse flood --no-stderr`,
	RunE: floodCommand,
}

func init() {
	rootCmd.AddCommand(floodCmd)

	floodCmd.Flags().DurationVar(&floodInterval, "interval", 0, "time between payload writes (overrides config, default 5s)")
	floodCmd.Flags().StringVar(&floodSize, "size", "", "payload block size per stream, e.g. 1MB or 64KB (overrides config)")
	floodCmd.Flags().BoolVar(&floodNoStderr, "no-stderr", false, "disable the stderr flood target")
}

func floodCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	interval := cfg.Flood.Interval
	if cmd.Flags().Changed("interval") {
		interval = floodInterval
	}
	sizeLabel := cfg.Flood.PayloadSize
	if floodSize != "" {
		sizeLabel = floodSize
	}

	size, err := config.ParseSize(sizeLabel)
	if err != nil {
		return fmt.Errorf("invalid payload size %q: %w", sizeLabel, err)
	}
	if interval < 0 {
		return fmt.Errorf("interval must be non-negative, got %v", interval)
	}

	logger, err := logging.NewProbeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	stdout := sink.NewStdoutSink()
	sinks := []sink.Sink{stdout}
	targets := []probe.FloodTarget{
		{Sink: stdout, Fill: cfg.Flood.StdoutFill[0]},
	}

	if !floodNoStderr {
		stderr := sink.NewStderrSink()
		sinks = append(sinks, stderr)
		targets = append(targets, probe.FloodTarget{Sink: stderr, Fill: cfg.Flood.StderrFill[0]})
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Starting flood probe...\n")
		fmt.Fprintf(os.Stderr, "Payload: %s (%d bytes) per stream\n", sizeLabel, size)
		fmt.Fprintf(os.Stderr, "Interval: %v\n", interval)
	}

	p, err := probe.New(probe.Options{
		Interval: interval,
		Sinks:    sinks,
		Compose:  probe.FloodCompose(int(size), sizeLabel, targets),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	return p.RunWithSignalHandling()
}
