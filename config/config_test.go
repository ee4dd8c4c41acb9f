package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhal"
)

const sample = `
sensors:
  - handle: 1
    name: accel
    kind: accelerometer
    sysfs: /sys/bus/iio/devices/iio:device0
    flags: [wake_up, data_injection]
    period: 20ms
  - handle: 2
    name: magn
    kind: magn
    sysfs: /sys/bus/iio/devices/iio:device1
    device: /dev/iio:device1
mqtt:
  broker: tcp://localhost:1883
  topic_prefix: sensors
kafka:
  brokers: [localhost:9092]
  topic: sensor-events
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, c.Sensors, 2)
	assert.Equal(t, 20*time.Millisecond, c.Sensors[0].Period)
	assert.Equal(t, "/dev/iio:device1", c.Sensors[1].Device)
	assert.Equal(t, &MQTT{Broker: "tcp://localhost:1883", TopicPrefix: "sensors"}, c.MQTT)
	assert.Equal(t, &Kafka{Brokers: []string{"localhost:9092"}, Topic: "sensor-events"}, c.Kafka)

	desc, err := c.Sensors[0].Descriptor()
	require.NoError(t, err)
	assert.Equal(t, sensorhal.KindAccelerometer, desc.Kind)
	assert.Equal(t, sensorhal.FlagWakeUp|sensorhal.FlagDataInjection, desc.Flags)
	assert.Equal(t, int32(1), desc.Handle)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Sensors, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	sensor := func(mod func(*Sensor)) Sensor {
		s := Sensor{Handle: 1, Name: "accel", Kind: "accel", Sysfs: "/sys/bus/iio/devices/iio:device0"}
		if mod != nil {
			mod(&s)
		}
		return s
	}
	tests := []struct {
		name  string
		given Config
	}{
		{"no sensors", Config{}},
		{"no name", Config{Sensors: []Sensor{sensor(func(s *Sensor) { s.Name = "" })}}},
		{"duplicate handle", Config{Sensors: []Sensor{sensor(nil), sensor(func(s *Sensor) { s.Name = "other" })}}},
		{"no sysfs", Config{Sensors: []Sensor{sensor(func(s *Sensor) { s.Sysfs = "" })}}},
		{"unknown kind", Config{Sensors: []Sensor{sensor(func(s *Sensor) { s.Kind = "gyro" })}}},
		{"unknown flag", Config{Sensors: []Sensor{sensor(func(s *Sensor) { s.Flags = []string{"continuous"} })}}},
		{"negative period", Config{Sensors: []Sensor{sensor(func(s *Sensor) { s.Period = -time.Second })}}},
		{"mqtt without broker", Config{Sensors: []Sensor{sensor(nil)}, MQTT: &MQTT{}}},
		{"kafka without topic", Config{Sensors: []Sensor{sensor(nil)}, Kafka: &Kafka{Brokers: []string{"k:9092"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.given.Validate(), ErrInvalidConfig)
		})
	}
	valid := Config{Sensors: []Sensor{sensor(nil)}}
	assert.NoError(t, valid.Validate())
}

func TestBuildInfo(t *testing.T) {
	assert.Equal(t, "latest-unknown-none", BuildInfo())
}
