// Command usrlbench builds regions from a YAML config and drives
// throughput/latency benchmarks against them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLogger() (*zap.SugaredLogger, error) {
	config := zap.NewDevelopmentConfig()
	config.Development = false
	config.Level.SetLevel(zap.InfoLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("usrlbench: build logger: %w", err)
	}
	return logger.Sugar(), nil
}

var rootCmd = &cobra.Command{
	Use:   "usrlbench",
	Short: "Build and benchmark usrl-core shared-memory topics",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
