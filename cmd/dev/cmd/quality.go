package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// step wraps a devtool quality step in a command that reports its duration.
func step(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := run(); err != nil {
				return fmt.Errorf("failed to run %s: %w", what, err)
			}
			slog.Info("step finished", "step", use, "took", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return step("test", "Run unit tests, engine and sink tests use simulated devices", "tests", func() error { return test.Test() })
}

func LintCmd() *cobra.Command {
	return step("lint", "Run linting", "linting", func() error { return test.Lint() })
}

// IntegrationTestCmd runs the tests that need real iio hardware or brokers.
func IntegrationTestCmd() *cobra.Command {
	return step("integration-test", "Run integration testing against iio devices and brokers", "integration testing", func() error { return test.Integ() })
}
