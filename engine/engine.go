// Package engine runs one IIO sensor: it negotiates the sampling rate, keeps
// the enable/mode state machine and owns the background worker that polls the
// device and delivers events to the framework sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/mklimuk/sensorhal"
	"github.com/mklimuk/sensorhal/freq"
)

var ErrClosed = errors.New("sensor engine closed")

// processStart anchors event timestamps of engines running on the wall clock
// so that events from different sensors share one timeline.
var processStart = time.Now()

type Opts struct {
	Logger         *slog.Logger
	Clock          clock.Clock
	TimeoutDivisor int
}

type Opt func(*Opts)

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = logger
	}
}

// WithClock replaces the clock used for timestamps and back-off waits.
func WithClock(clk clock.Clock) Opt {
	return func(o *Opts) {
		o.Clock = clk
	}
}

// WithPollTimeoutDivisor sets the fraction of the sampling period the worker
// waits for device readiness. Default is 2 (half the period) to leave room
// for conversion and delivery within one period.
func WithPollTimeoutDivisor(divisor int) Opt {
	return func(o *Opts) {
		o.TimeoutDivisor = divisor
	}
}

// Engine is a single sensor instance. Control methods are safe for
// concurrent use; the engine owns exactly one worker goroutine which is
// started by New and joined by Close.
type Engine struct {
	desc   sensorhal.Descriptor
	dev    sensorhal.Device
	sink   sensorhal.Sink
	logger *slog.Logger
	clock  clock.Clock
	origin time.Time
	config Opts

	st *state

	background context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New reads the frequency table of dev, derives the delay bounds of the
// descriptor and starts the worker. The sensor starts disabled in normal mode.
func New(ctx context.Context, desc sensorhal.Descriptor, dev sensorhal.Device, sink sensorhal.Sink, opts ...Opt) (*Engine, error) {
	config := Opts{
		TimeoutDivisor: 2,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.TimeoutDivisor < 1 {
		return nil, fmt.Errorf("invalid poll timeout divisor %d", config.TimeoutDivisor)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	origin := processStart
	if config.Clock == nil {
		config.Clock = clock.New()
	} else {
		origin = config.Clock.Now()
	}
	if _, err := desc.Kind.Convert(sensorhal.RawSample{}); err != nil {
		return nil, fmt.Errorf("could not create sensor %q: %w", desc.Name, err)
	}

	available, err := dev.AvailableFrequencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read sampling frequencies of %q: %w", desc.Name, err)
	}
	table, err := freq.NewTable(available)
	if err != nil {
		return nil, fmt.Errorf("could not create sensor %q: %w", desc.Name, err)
	}
	desc.MinDelay = table.MinDelay()
	desc.MaxDelay = table.MaxDelay()

	background, cancel := context.WithCancel(context.Background())
	e := &Engine{
		desc:       desc,
		dev:        dev,
		sink:       sink,
		logger:     config.Logger.With("sensor", desc.Name, "handle", desc.Handle),
		clock:      config.Clock,
		origin:     origin,
		config:     config,
		st:         newState(table),
		background: background,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	e.logger.Debug("sensor created", "kind", desc.Kind, "frequencies", table,
		"min_delay", desc.MinDelay, "max_delay", desc.MaxDelay)
	go e.run()
	return e, nil
}

// Descriptor returns a copy of the sensor description.
func (e *Engine) Descriptor() sensorhal.Descriptor {
	return e.desc
}

func (e *Engine) SupportsDataInjection() bool {
	return e.desc.Flags.Has(sensorhal.FlagDataInjection)
}

func (e *Engine) IsWakeUp() bool {
	return e.desc.Flags.Has(sensorhal.FlagWakeUp)
}

func (e *Engine) Enabled() bool {
	return e.st.isEnabled()
}

func (e *Engine) Mode() sensorhal.Mode {
	return e.st.currentMode()
}

// SamplingPeriod is the last negotiated period, zero until Batch is called.
func (e *Engine) SamplingPeriod() time.Duration {
	return e.st.currentPeriod()
}

func (e *Engine) Phase() Phase {
	return e.st.currentPhase()
}

// Activate enables or disables the sensor. A failure to open the data
// handle is logged and the sensor is still recorded as enabled; the worker
// keeps retrying without delivering data until the sensor is re-activated.
// The open or power-state error is returned after the state is committed.
func (e *Engine) Activate(ctx context.Context, enable bool) error {
	changed, released, err := e.st.setEnabled(enable,
		func() (sensorhal.DataHandle, error) {
			h, err := e.dev.Open(ctx)
			if err != nil {
				e.logger.Error("could not open data handle", "error", err)
				return nil, fmt.Errorf("could not open data handle: %w", err)
			}
			return h, nil
		},
		func(on bool) error {
			err := e.dev.SetPowerState(ctx, on)
			if err != nil {
				e.logger.Error("could not set power state", "enabled", on, "error", err)
				return fmt.Errorf("could not set power state: %w", err)
			}
			return nil
		})
	if !changed {
		return err
	}
	if released != nil {
		if cerr := released.Close(); cerr != nil {
			e.logger.Warn("could not close data handle", "error", cerr)
		}
	}
	e.logger.Info("sensor activation changed", "enabled", enable)
	return err
}

// Batch requests a sampling period. The request is clamped to the supported
// delay bounds and the device is only reprogrammed when the clamped period
// differs from the active one. The worker is woken even if writing the
// frequency fails.
func (e *Engine) Batch(ctx context.Context, period time.Duration) error {
	clamped := freq.Clamp(period, e.desc.MinDelay, e.desc.MaxDelay)
	var selected float64
	changed, err := e.st.setPeriod(clamped, func(current freq.Table) (freq.Table, error) {
		table := e.refreshTable(ctx, current)
		f := table.SelectPeriod(clamped)
		selected = freq.Hz(f)
		err := e.dev.WriteFrequency(ctx, selected)
		if err != nil {
			e.logger.Error("could not write sampling frequency", "frequency", f, "error", err)
			return table, fmt.Errorf("could not write sampling frequency %s: %w", f, err)
		}
		return table, nil
	})
	if changed {
		e.logger.Debug("sampling period negotiated", "requested", period, "period", clamped, "frequency_hz", selected)
	}
	return err
}

// refreshTable re-reads the advertised frequencies. The previous table is
// kept if the device cannot provide a usable one.
func (e *Engine) refreshTable(ctx context.Context, current freq.Table) freq.Table {
	available, err := e.dev.AvailableFrequencies(ctx)
	if err != nil {
		e.logger.Warn("could not refresh sampling frequencies", "error", err)
		return current
	}
	table, err := freq.NewTable(available)
	if err != nil {
		e.logger.Warn("device advertised unusable sampling frequencies", "frequencies", available, "error", err)
		return current
	}
	return table
}

// SetOperationMode switches between live sampling and data injection.
func (e *Engine) SetOperationMode(mode sensorhal.Mode) {
	if e.st.setMode(mode) {
		e.logger.Info("operation mode changed", "mode", mode)
	}
}

// InjectEvent accepts metadata and environment records unconditionally.
// Samples are forwarded to the sink only if the sensor supports data
// injection and is in data injection mode.
func (e *Engine) InjectEvent(ev sensorhal.Event) error {
	if ev.IsMetadata() {
		e.logger.Debug("environment record accepted", "kind", ev.Kind)
		return nil
	}
	if !e.SupportsDataInjection() {
		return fmt.Errorf("inject into %q: %w", e.desc.Name, sensorhal.ErrInvalidOperation)
	}
	if mode := e.st.currentMode(); mode != sensorhal.ModeDataInjection {
		return fmt.Errorf("inject into %q in %s mode: %w", e.desc.Name, mode, sensorhal.ErrBadValue)
	}
	e.sink.PostEvents([]sensorhal.Event{ev}, e.IsWakeUp())
	return nil
}

// Flush delivers a flush complete marker on the caller's goroutine. The
// engine does not batch, so nothing precedes the marker.
func (e *Engine) Flush() error {
	if e.desc.Flags.Has(sensorhal.FlagOneShot) {
		return fmt.Errorf("flush one-shot sensor %q: %w", e.desc.Name, sensorhal.ErrBadValue)
	}
	if !e.st.isEnabled() {
		return fmt.Errorf("flush disabled sensor %q: %w", e.desc.Name, sensorhal.ErrBadValue)
	}
	e.sink.PostEvents([]sensorhal.Event{{
		SensorHandle: e.desc.Handle,
		Kind:         sensorhal.KindMetaData,
		Timestamp:    e.now(),
		Payload:      sensorhal.MetaData{What: sensorhal.MetaFlushComplete},
	}}, e.IsWakeUp())
	return nil
}

// Close stops the worker, waits for it to exit and only then releases the
// data handle and powers the device down. Worst case latency is one poll
// timeout. Close is idempotent.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		wasEnabled := e.st.requestStop()
		e.cancel()
		<-e.done
		var err error
		for _, h := range e.st.release() {
			err = multierr.Append(err, h.Close())
		}
		if wasEnabled {
			err = multierr.Append(err, e.dev.SetPowerState(ctx, false))
		}
		if err != nil {
			e.closeErr = fmt.Errorf("could not release sensor %q: %w", e.desc.Name, err)
		}
		e.logger.Debug("sensor closed")
	})
	return e.closeErr
}

// Done is closed once the worker has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) now() int64 {
	return int64(e.clock.Since(e.origin))
}
