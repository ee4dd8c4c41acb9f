package iio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhal"
)

// fakeTree writes attribute files into a temporary sysfs directory.
func fakeTree(t *testing.T, attrs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range attrs {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestParseFrequencies(t *testing.T) {
	tests := []struct {
		given    string
		expected []float64
	}{
		{"12.5 25 50 100 200 400 800 1600\n", []float64{12.5, 25, 50, 100, 200, 400, 800, 1600}},
		{"  1.5625\t3.125 ", []float64{1.5625, 3.125}},
		{"\n", []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.given, func(t *testing.T) {
			freqs, err := ParseFrequencies(tt.given)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, freqs)
		})
	}
	_, err := ParseFrequencies("10 fast")
	assert.Error(t, err)
}

func TestDevice_AvailableFrequencies(t *testing.T) {
	ctx := context.Background()
	dir := fakeTree(t, map[string]string{
		"in_accel_sampling_frequency_available": "10 20 50\n",
		"sampling_frequency_available":          "1 2\n",
	})
	freqs, err := NewDevice(dir, "", sensorhal.KindAccelerometer).AvailableFrequencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 50}, freqs)

	// no magnetometer specific node, shared attribute is used
	freqs, err = NewDevice(dir, "", sensorhal.KindMagneticField).AvailableFrequencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, freqs)

	_, err = NewDevice(t.TempDir(), "", sensorhal.KindAccelerometer).AvailableFrequencies(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDevice_WriteFrequency(t *testing.T) {
	ctx := context.Background()
	dir := fakeTree(t, map[string]string{
		"in_accel_sampling_frequency": "10\n",
		"sampling_frequency":          "1\n",
	})
	require.NoError(t, NewDevice(dir, "", sensorhal.KindAccelerometer).WriteFrequency(ctx, 12.5))
	assert.Equal(t, "12.5", readFile(t, filepath.Join(dir, "in_accel_sampling_frequency")))

	require.NoError(t, NewDevice(dir, "", sensorhal.KindMagneticField).WriteFrequency(ctx, 20))
	assert.Equal(t, "20", readFile(t, filepath.Join(dir, "sampling_frequency")))
}

func TestDevice_SetPowerState(t *testing.T) {
	ctx := context.Background()
	dir := fakeTree(t, map[string]string{"buffer/enable": "0\n"})
	d := NewDevice(dir, "", sensorhal.KindAccelerometer)
	require.NoError(t, d.SetPowerState(ctx, true))
	assert.Equal(t, "1", readFile(t, filepath.Join(dir, "buffer", "enable")))
	require.NoError(t, d.SetPowerState(ctx, false))
	assert.Equal(t, "0", readFile(t, filepath.Join(dir, "buffer", "enable")))

	err := NewDevice(t.TempDir(), "", sensorhal.KindAccelerometer).SetPowerState(ctx, true)
	assert.Error(t, err)
}

func TestDevice_ReadSample(t *testing.T) {
	dir := fakeTree(t, map[string]string{
		"name":                 "fxos8700\n",
		"in_accel_x_raw":       "12\n",
		"in_accel_y_raw":       "-40\n",
		"in_accel_z_raw":       "1962\n",
		"in_illuminance_input": "321.6\n",
	})
	d := NewDevice(dir, "", sensorhal.KindAccelerometer)
	name, err := d.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "fxos8700", name)

	raw, err := d.readSample()
	require.NoError(t, err)
	assert.Equal(t, sensorhal.RawSample{12, -40, 1962}, raw)

	raw, err = NewDevice(dir, "", sensorhal.KindLight).readSample()
	require.NoError(t, err)
	assert.Equal(t, sensorhal.RawSample{322, 0, 0}, raw)

	_, err = NewDevice(dir, "", sensorhal.KindMagneticField).readSample()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromIndex(t *testing.T) {
	d := FromIndex(3, sensorhal.KindLight)
	assert.Equal(t, "/sys/bus/iio/devices/iio:device3", d.SysfsDir())
	assert.Equal(t, "/dev/iio:device3", d.DevPath())
}
