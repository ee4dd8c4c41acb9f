// Package sink holds the event sinks the engine can deliver to.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/sensorhal"
)

var (
	_ sensorhal.Sink = &LogSink{}
	_ sensorhal.Sink = &Recorder{}
	_ sensorhal.Sink = Fanout{}
)

// LogSink writes every event as a structured log record.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

func (s *LogSink) PostEvents(events []sensorhal.Event, wakeUp bool) {
	for _, ev := range events {
		s.logger.Log(context.Background(), s.level, "sensor event", EventAttrs(ev, wakeUp)...)
	}
}

// EventAttrs flattens an event into slog key/value pairs.
func EventAttrs(ev sensorhal.Event, wakeUp bool) []any {
	attrs := []any{"sensor", ev.SensorHandle, "kind", ev.Kind.String(), "timestamp", ev.Timestamp}
	switch p := ev.Payload.(type) {
	case sensorhal.Vector:
		attrs = append(attrs, "x", p.X, "y", p.Y, "z", p.Z)
	case sensorhal.Scalar:
		attrs = append(attrs, "value", float64(p))
	case sensorhal.MetaData:
		attrs = append(attrs, "meta", p.What.String())
	case sensorhal.AdditionalInfo:
		attrs = append(attrs, "values", p.Values)
	}
	if wakeUp {
		attrs = append(attrs, "wake_up", true)
	}
	return attrs
}

// Fanout delivers to several sinks in order.
type Fanout []sensorhal.Sink

func (f Fanout) PostEvents(events []sensorhal.Event, wakeUp bool) {
	for _, s := range f {
		s.PostEvents(events, wakeUp)
	}
}

// Recorder keeps every delivered event in memory.
type Recorder struct {
	mx      sync.Mutex
	events  []sensorhal.Event
	wakeUps []bool
	// closed and replaced on every delivery
	posted chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{posted: make(chan struct{})}
}

func (r *Recorder) PostEvents(events []sensorhal.Event, wakeUp bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	for range events {
		r.wakeUps = append(r.wakeUps, wakeUp)
	}
	r.events = append(r.events, events...)
	close(r.posted)
	r.posted = make(chan struct{})
}

func (r *Recorder) Events() []sensorhal.Event {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]sensorhal.Event, len(r.events))
	copy(out, r.events)
	return out
}

// WakeUps returns the wake-up flag each event was delivered with.
func (r *Recorder) WakeUps() []bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]bool, len(r.wakeUps))
	copy(out, r.wakeUps)
	return out
}

func (r *Recorder) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.events)
}

func (r *Recorder) Reset() {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.events = nil
	r.wakeUps = nil
}

// Wait blocks until at least n events were recorded or timeout elapses.
func (r *Recorder) Wait(n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		r.mx.Lock()
		count := len(r.events)
		posted := r.posted
		r.mx.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-posted:
		case <-timer.C:
			return false
		}
	}
}
