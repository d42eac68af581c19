package main

import (
	"os"

	"github.com/pulseprobe/pulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
