package sensorhal

import (
	"strings"
	"time"
)

// Flag is the sensor capability bit set.
type Flag uint32

const (
	FlagWakeUp Flag = 1 << iota
	FlagOneShot
	FlagDataInjection
)

func (f Flag) Has(other Flag) bool {
	return f&other == other
}

func (f Flag) String() string {
	var parts []string
	if f.Has(FlagWakeUp) {
		parts = append(parts, "wake_up")
	}
	if f.Has(FlagOneShot) {
		parts = append(parts, "one_shot")
	}
	if f.Has(FlagDataInjection) {
		parts = append(parts, "data_injection")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Descriptor describes a sensor instance. MinDelay and MaxDelay are derived
// from the advertised sampling frequencies when the engine is built.
type Descriptor struct {
	Handle     int32
	Name       string
	Kind       Kind
	Power      float32 // mA
	MaxRange   float32
	Resolution float32
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Flags      Flag
}

// NewDescriptor returns a descriptor with the default physical metadata of
// the given kind. The supported drivers do not expose power, range or
// resolution nodes.
func NewDescriptor(handle int32, name string, kind Kind, flags Flag) Descriptor {
	d := Descriptor{
		Handle: handle,
		Name:   name,
		Kind:   kind,
		Flags:  flags,
		Power:  0.001,
	}
	switch kind {
	case KindAccelerometer:
		d.MaxRange = 39.20
		d.Resolution = 0.01
	case KindMagneticField:
		d.MaxRange = 900.00
		d.Resolution = 0.01
	case KindLight:
		d.MaxRange = 65535
		d.Resolution = 1.0
	}
	return d
}
