package sink

import (
	"encoding/json"
	"fmt"

	"github.com/mklimuk/sensorhal"
)

type wireEvent struct {
	Sensor    int32       `json:"sensor"`
	Kind      string      `json:"kind"`
	Timestamp int64       `json:"timestamp_ns"`
	WakeUp    bool        `json:"wake_up,omitempty"`
	Vector    *[3]float64 `json:"vector,omitempty"`
	Value     *float64    `json:"value,omitempty"`
	Meta      string      `json:"meta,omitempty"`
	Values    []float64   `json:"values,omitempty"`
}

// EncodeEvent renders an event as JSON for the broker sinks.
func EncodeEvent(ev sensorhal.Event, wakeUp bool) ([]byte, error) {
	w := wireEvent{
		Sensor:    ev.SensorHandle,
		Kind:      ev.Kind.String(),
		Timestamp: ev.Timestamp,
		WakeUp:    wakeUp,
	}
	switch p := ev.Payload.(type) {
	case sensorhal.Vector:
		w.Vector = &[3]float64{p.X, p.Y, p.Z}
	case sensorhal.Scalar:
		v := float64(p)
		w.Value = &v
	case sensorhal.MetaData:
		w.Meta = p.What.String()
	case sensorhal.AdditionalInfo:
		w.Values = p.Values
	case nil:
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
	return json.Marshal(w)
}
