// Package iio implements the sensor device on top of the Linux industrial
// I/O subsystem: attributes under /sys/bus/iio/devices/iio:deviceN and the
// data character device /dev/iio:deviceN.
package iio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mklimuk/sensorhal"
)

const (
	SysfsRoot = "/sys/bus/iio/devices"
	DevRoot   = "/dev"
)

var _ sensorhal.Device = &Device{}

var axes = []string{"x", "y", "z"}

// Device is one IIO device bound to a sensor kind.
type Device struct {
	sysfs string
	dev   string
	kind  sensorhal.Kind
}

func NewDevice(sysfsDir, devPath string, kind sensorhal.Kind) *Device {
	return &Device{sysfs: sysfsDir, dev: devPath, kind: kind}
}

// FromIndex uses the default locations of iio:device<n>.
func FromIndex(n int, kind sensorhal.Kind) *Device {
	name := fmt.Sprintf("iio:device%d", n)
	return NewDevice(filepath.Join(SysfsRoot, name), filepath.Join(DevRoot, name), kind)
}

func (d *Device) SysfsDir() string {
	return d.sysfs
}

func (d *Device) DevPath() string {
	return d.dev
}

// ReadName returns the driver name of the device.
func (d *Device) ReadName() (string, error) {
	b, err := os.ReadFile(filepath.Join(d.sysfs, "name"))
	if err != nil {
		return "", fmt.Errorf("could not read device name: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// attr returns the channel specific attribute path when it exists and the
// shared one otherwise; drivers expose either form.
func (d *Device) attr(name string) string {
	specific := filepath.Join(d.sysfs, fmt.Sprintf("in_%s_%s", d.kind.Channel(), name))
	if _, err := os.Stat(specific); err == nil {
		return specific
	}
	return filepath.Join(d.sysfs, name)
}

func (d *Device) AvailableFrequencies(ctx context.Context) ([]float64, error) {
	path := d.attr("sampling_frequency_available")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	freqs, err := ParseFrequencies(string(b))
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return freqs, nil
}

func (d *Device) WriteFrequency(ctx context.Context, hz float64) error {
	path := d.attr("sampling_frequency")
	return writeAttr(path, strconv.FormatFloat(hz, 'f', -1, 64))
}

func (d *Device) SetPowerState(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return writeAttr(filepath.Join(d.sysfs, "buffer", "enable"), value)
}

// readSample reads the raw channel attributes of the bound kind. Light
// sensors without a raw node fall back to the processed input value.
func (d *Device) readSample() (sensorhal.RawSample, error) {
	var raw sensorhal.RawSample
	ch := d.kind.Channel()
	switch d.kind.Axes() {
	case 3:
		for i, axis := range axes {
			v, err := readInt(filepath.Join(d.sysfs, fmt.Sprintf("in_%s_%s_raw", ch, axis)))
			if err != nil {
				return raw, err
			}
			raw[i] = v
		}
	case 1:
		v, err := readInt(filepath.Join(d.sysfs, fmt.Sprintf("in_%s_raw", ch)))
		if errors.Is(err, os.ErrNotExist) {
			v, err = readInt(filepath.Join(d.sysfs, fmt.Sprintf("in_%s_input", ch)))
		}
		if err != nil {
			return raw, err
		}
		raw[0] = v
	default:
		return raw, fmt.Errorf("%w: %s", sensorhal.ErrUnknownKind, d.kind)
	}
	return raw, nil
}

// ParseFrequencies parses a whitespace separated list of frequencies as
// found in sampling_frequency_available.
func ParseFrequencies(s string) ([]float64, error) {
	fields := strings.Fields(s)
	freqs := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frequency %q: %w", f, err)
		}
		freqs = append(freqs, v)
	}
	return freqs, nil
}

func readInt(path string) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("could not read %s: %w", path, err)
	}
	s := strings.TrimSpace(string(b))
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v, nil
	}
	// processed values may carry a fraction
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return int64(math.Round(f)), nil
}

func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	_, err = f.WriteString(value)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("could not write %q to %s: %w", value, path, err)
	}
	return nil
}
