package sensorhal

import (
	"context"
	"fmt"
	"time"
)

var ErrEmptyFrequencyTable = fmt.Errorf("device advertises no usable sampling frequencies")

// Readiness is the outcome of a readiness wait on the data handle.
type Readiness int

const (
	ReadyTimeout Readiness = iota
	ReadyData
)

func (r Readiness) String() string {
	switch r {
	case ReadyData:
		return "ready"
	default:
		return "timeout"
	}
}

// RawSample is one unscaled record read from the device. Single channel
// sensors only fill the first value.
type RawSample [3]int64

// Device is the per-sensor view of an industrial-I/O device: its sysfs
// attribute tree and its data character device.
type Device interface {
	AvailableFrequencies(ctx context.Context) ([]float64, error)
	WriteFrequency(ctx context.Context, hz float64) error
	SetPowerState(ctx context.Context, enabled bool) error
	Open(ctx context.Context) (DataHandle, error)
}

// DataHandle is an open data channel of a Device.
type DataHandle interface {
	// WaitReady blocks until the device signals data or timeout elapses.
	WaitReady(timeout time.Duration) (Readiness, error)
	ReadRaw(ctx context.Context) (RawSample, error)
	Close() error
}
