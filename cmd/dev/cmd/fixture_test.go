package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhal"
	"github.com/mklimuk/sensorhal/iio"
)

func TestWriteFixture(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sysfs := filepath.Join(dir, "iio:device0")
	require.NoError(t, WriteFixture(sysfs, filepath.Join(dir, "dev"), sensorhal.KindMagneticField, []string{"10", "20"}))

	d := iio.NewDevice(sysfs, filepath.Join(dir, "dev"), sensorhal.KindMagneticField)
	freqs, err := d.AvailableFrequencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, freqs)
	name, err := d.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "fixture-magn", name)
	require.NoError(t, d.SetPowerState(ctx, true))

	assert.Error(t, WriteFixture(sysfs, filepath.Join(dir, "dev"), sensorhal.KindLight, nil))
	assert.ErrorIs(t, WriteFixture(sysfs, filepath.Join(dir, "dev"), sensorhal.KindMetaData, []string{"1"}), sensorhal.ErrUnknownKind)
}
