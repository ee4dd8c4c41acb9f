package simulated

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhal"
)

func TestDevice(t *testing.T) {
	ctx := context.Background()
	d := NewDevice(WithFrequencies(25, 5), WithReady(Immediate), WithSample(Counter))
	assert.Equal(t, float64(5), d.Rate())

	freqs, err := d.AvailableFrequencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 5}, freqs)

	require.NoError(t, d.WriteFrequency(ctx, 25))
	assert.Equal(t, float64(25), d.Rate())
	require.NoError(t, d.SetPowerState(ctx, true))

	h, err := d.Open(ctx)
	require.NoError(t, err)
	ready, err := h.WaitReady(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, sensorhal.ReadyData, ready)
	for n := int64(1); n <= 3; n++ {
		raw, err := h.ReadRaw(ctx)
		require.NoError(t, err)
		assert.Equal(t, sensorhal.RawSample{n, n, n}, raw)
	}
	require.NoError(t, h.Close())

	_, err = h.ReadRaw(ctx)
	assert.ErrorIs(t, err, ErrHandleClosed)
	assert.ErrorIs(t, h.Close(), ErrHandleClosed)

	assert.Equal(t, Stats{
		FrequencyReads:  1,
		FrequencyWrites: []float64{25},
		PowerWrites:     []bool{true},
		Opens:           1,
		Closes:          1,
		Polls:           1,
		Reads:           3,
		UseAfterClose:   2,
	}, d.Stats())
}

func TestDevice_Errors(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("failure")
	d := NewDevice(WithOpenError(failure), WithPowerError(failure), WithWriteError(failure))
	_, err := d.Open(ctx)
	assert.ErrorIs(t, err, failure)
	assert.ErrorIs(t, d.SetPowerState(ctx, true), failure)
	assert.ErrorIs(t, d.WriteFrequency(ctx, 50), failure)
	assert.Equal(t, float64(1), d.Rate())
	assert.Equal(t, []float64{50}, d.Stats().FrequencyWrites)
}

func TestPaced(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		rate     float64
		expected sensorhal.Readiness
	}{
		{"data within timeout", 50 * time.Millisecond, 200, sensorhal.ReadyData},
		{"slower than timeout", 5 * time.Millisecond, 10, sensorhal.ReadyTimeout},
		{"not programmed", time.Millisecond, 0, sensorhal.ReadyTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready, err := Paced(tt.timeout, tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ready)
		})
	}
}
