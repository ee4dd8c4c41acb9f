package sensorhal

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Kind is the closed set of sensor types known to the engine.
type Kind int

const (
	KindAccelerometer Kind = iota + 1
	KindMagneticField
	KindLight
	// event-only kinds
	KindMetaData
	KindAdditionalInfo
)

var ErrUnknownKind = fmt.Errorf("unknown sensor kind")

func (k Kind) String() string {
	switch k {
	case KindAccelerometer:
		return "accelerometer"
	case KindMagneticField:
		return "magnetic_field"
	case KindLight:
		return "light"
	case KindMetaData:
		return "meta_data"
	case KindAdditionalInfo:
		return "additional_info"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the String form and the short names used on the command line.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "accelerometer", "accel", "acc":
		return KindAccelerometer, nil
	case "magnetic_field", "magn", "mag":
		return KindMagneticField, nil
	case "light", "illuminance":
		return KindLight, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Channel is the IIO channel prefix used in attribute names (in_<channel>_...).
func (k Kind) Channel() string {
	switch k {
	case KindAccelerometer:
		return "accel"
	case KindMagneticField:
		return "magn"
	case KindLight:
		return "illuminance"
	default:
		return ""
	}
}

// Axes is the number of raw fields a sample of this kind carries.
func (k Kind) Axes() int {
	switch k {
	case KindAccelerometer, KindMagneticField:
		return 3
	case KindLight:
		return 1
	default:
		return 0
	}
}

// Scale converts raw counts into physical units. The accelerometer scale
// node is not reliable on the supported parts so a fixed factor is used that
// keeps the output within the expected range; magnetometer scale is the value
// of in_magn_scale.
func (k Kind) Scale() float64 {
	switch k {
	case KindAccelerometer:
		return 0.005
	case KindMagneticField:
		return 0.000244
	case KindLight:
		return 1.0
	default:
		return 0
	}
}

// Convert applies the kind specific scale factor and field layout.
func (k Kind) Convert(raw RawSample) (Payload, error) {
	scale := k.Scale()
	switch k.Axes() {
	case 3:
		return Vector{r3.Vector{
			X: float64(raw[0]) * scale,
			Y: float64(raw[1]) * scale,
			Z: float64(raw[2]) * scale,
		}}, nil
	case 1:
		return Scalar(float64(raw[0]) * scale), nil
	default:
		return nil, fmt.Errorf("%w: %s carries no samples", ErrUnknownKind, k)
	}
}
