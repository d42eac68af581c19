package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulseprobe/pulse/internal/config"
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Global configuration
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "pulse - heartbeat probe for process supervisors",
	Long: `pulse is a predictable long-running child process for exercising
process supervisors and service wrappers.

It emits periodic timestamped heartbeat output to configurable sinks
(console streams, an append-only log file, a remote WebSocket observer),
and terminates cleanly on SIGINT/SIGTERM, flushing all output and
writing a final "Service stopped!" marker as its last durable line.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $PULSE_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configPath := configFile

	if configPath == "" {
		// Check for PULSE_CONFIG environment variable
		if envConfig := os.Getenv("PULSE_CONFIG"); envConfig != "" {
			configPath = envConfig
		}
		// Otherwise let config package handle auto-discovery
	}

	// Load configuration
	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Override verbose setting from command line flag if provided
	if verbose {
		appConfig.Logging.Verbose = true
		appConfig.Logging.Level = "debug"
	}

	if verbose || appConfig.Logging.Verbose {
		if configPath != "" {
			fmt.Fprintf(os.Stderr, "Loaded configuration from: %s\n", configPath)
		} else {
			fmt.Fprintf(os.Stderr, "Using default configuration\n")
		}
	}
}

// GetConfig returns the global configuration
// This should be called after cobra initialization
func GetConfig() *config.Config {
	if appConfig == nil {
		// Fallback to default config if not initialized
		return config.DefaultConfig()
	}
	return appConfig
}
