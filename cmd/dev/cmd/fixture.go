package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mklimuk/sensorhal"
)

// FixtureCmd writes a fake iio device tree so the cli can be run against
// regular files on a development machine.
func FixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Create a fake iio device for local runs",
		Long: `Create a sysfs like directory for one iio device and a regular file standing
in for its character device. A regular file always polls readable so the
engine reads the raw attributes on every cycle.

Example:
  dev fixture --dir tmp/iio --kind accelerometer
  sensors stream --sysfs tmp/iio/iio:device0 --dev tmp/iio/dev --period 100ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return fmt.Errorf("could not get dir flag: %w", err)
			}
			name, err := cmd.Flags().GetString("kind")
			if err != nil {
				return fmt.Errorf("could not get kind flag: %w", err)
			}
			freqs, err := cmd.Flags().GetStringSlice("freq")
			if err != nil {
				return fmt.Errorf("could not get freq flag: %w", err)
			}
			kind, err := sensorhal.ParseKind(name)
			if err != nil {
				return err
			}
			sysfs := filepath.Join(dir, "iio:device0")
			err = WriteFixture(sysfs, filepath.Join(dir, "dev"), kind, freqs)
			if err != nil {
				return err
			}
			slog.Info("fixture created", "sysfs", sysfs, "kind", kind)
			return nil
		},
	}
	cmd.Flags().String("dir", "tmp/iio", "fixture directory")
	cmd.Flags().String("kind", "accelerometer", "sensor kind")
	cmd.Flags().StringSlice("freq", []string{"12.5", "25", "50", "100", "200"}, "advertised sampling frequencies")
	return cmd
}

// WriteFixture lays out the attributes the iio device reads.
func WriteFixture(sysfs, dev string, kind sensorhal.Kind, freqs []string) error {
	if len(freqs) == 0 {
		return fmt.Errorf("no sampling frequencies given")
	}
	ch := kind.Channel()
	files := map[string]string{
		"name":                            "fixture-" + ch,
		"sampling_frequency":              freqs[0],
		"sampling_frequency_available":    strings.Join(freqs, " "),
		filepath.Join("buffer", "enable"): "0",
	}
	switch kind.Axes() {
	case 3:
		for i, axis := range []string{"x", "y", "z"} {
			files[fmt.Sprintf("in_%s_%s_raw", ch, axis)] = fmt.Sprint(i * 100)
		}
	case 1:
		files[fmt.Sprintf("in_%s_raw", ch)] = "250"
	default:
		return fmt.Errorf("%w: %s", sensorhal.ErrUnknownKind, kind)
	}
	for name, content := range files {
		path := filepath.Join(sysfs, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("could not create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}
	}
	if err := os.WriteFile(dev, nil, 0o644); err != nil {
		return fmt.Errorf("could not create %s: %w", dev, err)
	}
	return nil
}
