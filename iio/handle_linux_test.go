//go:build linux

package iio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhal"
)

func TestHandle_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := fakeTree(t, map[string]string{
		"in_magn_x_raw": "1\n",
		"in_magn_y_raw": "2\n",
		"in_magn_z_raw": "3\n",
		"chardev":       "",
	})
	// a regular file stands in for the character device, it always polls readable
	d := NewDevice(dir, filepath.Join(dir, "chardev"), sensorhal.KindMagneticField)
	h, err := d.Open(ctx)
	require.NoError(t, err)

	ready, err := h.WaitReady(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, sensorhal.ReadyData, ready)

	raw, err := h.ReadRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, sensorhal.RawSample{1, 2, 3}, raw)

	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Close(), ErrHandleClosed)
	_, err = h.WaitReady(time.Millisecond)
	assert.ErrorIs(t, err, ErrHandleClosed)
	_, err = h.ReadRaw(ctx)
	assert.ErrorIs(t, err, ErrHandleClosed)
}

func TestHandle_OpenMissing(t *testing.T) {
	d := NewDevice(t.TempDir(), filepath.Join(t.TempDir(), "iio:device9"), sensorhal.KindAccelerometer)
	_, err := d.Open(context.Background())
	assert.Error(t, err)
}

func TestHandle_CanceledRead(t *testing.T) {
	dir := fakeTree(t, map[string]string{"chardev": ""})
	h, err := NewDevice(dir, filepath.Join(dir, "chardev"), sensorhal.KindLight).Open(context.Background())
	require.NoError(t, err)
	defer func() { _ = h.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.ReadRaw(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
