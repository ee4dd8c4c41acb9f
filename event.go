package sensorhal

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Mode is the operating mode of a sensor.
type Mode int

const (
	ModeNormal Mode = iota
	ModeDataInjection
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDataInjection:
		return "data_injection"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MetaType identifies a metadata record.
type MetaType int

const (
	MetaFlushComplete MetaType = iota + 1
)

func (t MetaType) String() string {
	if t == MetaFlushComplete {
		return "flush_complete"
	}
	return fmt.Sprintf("meta(%d)", int(t))
}

// Payload is the event body. The set of implementations is closed.
type Payload interface {
	payload()
}

// Vector is a 3-axis sample in physical units.
type Vector struct {
	r3.Vector
}

// Scalar is a single channel sample in physical units.
type Scalar float64

// MetaData is a metadata record such as flush completion.
type MetaData struct {
	What MetaType
}

// AdditionalInfo carries operating environment data pushed by the framework.
type AdditionalInfo struct {
	Values []float64
}

func (Vector) payload()         {}
func (Scalar) payload()         {}
func (MetaData) payload()       {}
func (AdditionalInfo) payload() {}

// Event is a finished sensor event. Timestamp is in nanoseconds on a
// monotonic timeline.
type Event struct {
	SensorHandle int32
	Kind         Kind
	Timestamp    int64
	Payload      Payload
}

// IsMetadata reports whether the event is a metadata or environment record
// rather than a sample.
func (e Event) IsMetadata() bool {
	switch e.Kind {
	case KindMetaData, KindAdditionalInfo:
		return true
	}
	switch e.Payload.(type) {
	case MetaData, AdditionalInfo:
		return true
	}
	return false
}

// Sink receives finished events. Delivery is fire-and-forget and may happen
// from several goroutines at once.
type Sink interface {
	PostEvents(events []Event, wakeUp bool)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(events []Event, wakeUp bool)

func (f SinkFunc) PostEvents(events []Event, wakeUp bool) {
	f(events, wakeUp)
}
