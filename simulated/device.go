// Package simulated provides a Device that needs no hardware. Its behaviour
// is driven by functions, the way the environment mocks work, and it records
// every call so tests can assert on the device traffic.
package simulated

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mklimuk/sensorhal"
)

var ErrHandleClosed = errors.New("simulated: data handle used after close")

// SampleBehaviorFunc produces the n-th raw sample (n starts at 1).
type SampleBehaviorFunc func(ctx context.Context, n int) (sensorhal.RawSample, error)

// ReadyBehaviorFunc decides the outcome of a readiness wait. rate is the
// currently programmed frequency in Hz.
type ReadyBehaviorFunc func(timeout time.Duration, rate float64) (sensorhal.Readiness, error)

type Opts struct {
	Frequencies []float64
	Sample      SampleBehaviorFunc
	Ready       ReadyBehaviorFunc
	OpenErr     error
	PowerErr    error
	WriteErr    error
}

type Opt func(*Opts)

func WithFrequencies(hz ...float64) Opt {
	return func(o *Opts) {
		o.Frequencies = hz
	}
}

func WithSample(behavior SampleBehaviorFunc) Opt {
	return func(o *Opts) {
		o.Sample = behavior
	}
}

func WithReady(behavior ReadyBehaviorFunc) Opt {
	return func(o *Opts) {
		o.Ready = behavior
	}
}

func WithOpenError(err error) Opt {
	return func(o *Opts) {
		o.OpenErr = err
	}
}

func WithPowerError(err error) Opt {
	return func(o *Opts) {
		o.PowerErr = err
	}
}

func WithWriteError(err error) Opt {
	return func(o *Opts) {
		o.WriteErr = err
	}
}

// Stats is a snapshot of the traffic seen by a Device.
type Stats struct {
	FrequencyReads  int
	FrequencyWrites []float64
	PowerWrites     []bool
	Opens           int
	Closes          int
	Polls           int
	Reads           int
	UseAfterClose   int
}

// Device is a simulated IIO device.
//
// Example usage:
//
//	// gravity on the z axis, samples paced at the programmed rate
//	dev := NewDevice(WithFrequencies(10, 20, 50))
//
//	// failing reads
//	dev := NewDevice(WithSample(func(ctx context.Context, n int) (sensorhal.RawSample, error) {
//		return sensorhal.RawSample{}, fmt.Errorf("bus error")
//	}))
type Device struct {
	mx     sync.Mutex
	config Opts
	rate   float64
	seq    int
	stats  Stats
}

func NewDevice(opts ...Opt) *Device {
	config := Opts{
		Frequencies: []float64{1, 10, 25, 50, 100},
		Sample:      Gravity,
		Ready:       Paced,
	}
	for _, opt := range opts {
		opt(&config)
	}
	d := &Device{config: config}
	if len(config.Frequencies) > 0 {
		d.rate = slices.Min(config.Frequencies)
	}
	return d
}

// SetFrequencies changes the advertised frequencies, like a driver switching
// ranges at runtime.
func (d *Device) SetFrequencies(hz ...float64) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.config.Frequencies = hz
}

func (d *Device) Stats() Stats {
	d.mx.Lock()
	defer d.mx.Unlock()
	s := d.stats
	s.FrequencyWrites = slices.Clone(d.stats.FrequencyWrites)
	s.PowerWrites = slices.Clone(d.stats.PowerWrites)
	return s
}

// Rate is the last frequency written to the device.
func (d *Device) Rate() float64 {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.rate
}

func (d *Device) AvailableFrequencies(ctx context.Context) ([]float64, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.stats.FrequencyReads++
	return slices.Clone(d.config.Frequencies), nil
}

func (d *Device) WriteFrequency(ctx context.Context, hz float64) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.stats.FrequencyWrites = append(d.stats.FrequencyWrites, hz)
	if d.config.WriteErr != nil {
		return d.config.WriteErr
	}
	d.rate = hz
	return nil
}

func (d *Device) SetPowerState(ctx context.Context, enabled bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.stats.PowerWrites = append(d.stats.PowerWrites, enabled)
	return d.config.PowerErr
}

func (d *Device) Open(ctx context.Context) (sensorhal.DataHandle, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.config.OpenErr != nil {
		return nil, d.config.OpenErr
	}
	d.stats.Opens++
	return &handle{dev: d}, nil
}

type handle struct {
	dev    *Device
	closed bool
}

func (h *handle) WaitReady(timeout time.Duration) (sensorhal.Readiness, error) {
	h.dev.mx.Lock()
	if h.closed {
		h.dev.stats.UseAfterClose++
		h.dev.mx.Unlock()
		return sensorhal.ReadyTimeout, ErrHandleClosed
	}
	h.dev.stats.Polls++
	rate := h.dev.rate
	ready := h.dev.config.Ready
	h.dev.mx.Unlock()
	return ready(timeout, rate)
}

func (h *handle) ReadRaw(ctx context.Context) (sensorhal.RawSample, error) {
	h.dev.mx.Lock()
	if h.closed {
		h.dev.stats.UseAfterClose++
		h.dev.mx.Unlock()
		return sensorhal.RawSample{}, ErrHandleClosed
	}
	h.dev.stats.Reads++
	h.dev.seq++
	n := h.dev.seq
	sample := h.dev.config.Sample
	h.dev.mx.Unlock()
	return sample(ctx, n)
}

func (h *handle) Close() error {
	h.dev.mx.Lock()
	defer h.dev.mx.Unlock()
	if h.closed {
		h.dev.stats.UseAfterClose++
		return ErrHandleClosed
	}
	h.closed = true
	h.dev.stats.Closes++
	return nil
}

// Gravity is a device lying flat: 1 g on the z axis for the accelerometer
// scale.
func Gravity(ctx context.Context, n int) (sensorhal.RawSample, error) {
	return sensorhal.RawSample{0, 0, 1962}, nil
}

// Counter returns n on every channel.
func Counter(ctx context.Context, n int) (sensorhal.RawSample, error) {
	return sensorhal.RawSample{int64(n), int64(n), int64(n)}, nil
}

// Paced signals data once per period of the programmed rate, timing out if
// the next sample is further away than timeout.
func Paced(timeout time.Duration, rate float64) (sensorhal.Readiness, error) {
	if rate <= 0 {
		time.Sleep(timeout)
		return sensorhal.ReadyTimeout, nil
	}
	period := time.Duration(float64(time.Second) / rate)
	if period > timeout {
		time.Sleep(timeout)
		return sensorhal.ReadyTimeout, nil
	}
	time.Sleep(period)
	return sensorhal.ReadyData, nil
}

// Immediate reports data without blocking.
func Immediate(timeout time.Duration, rate float64) (sensorhal.Readiness, error) {
	return sensorhal.ReadyData, nil
}
