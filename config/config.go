// Package config loads the sensor set of a device from YAML and carries the
// build information injected at link time.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensorhal"
)

// set by the build tool
var (
	Version = "latest"
	Commit  = "none"
	Date    = "unknown"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// BuildInfo is the version string reported by the CLI.
func BuildInfo() string {
	return fmt.Sprintf("%s-%s-%s", Version, Date, Commit)
}

type Config struct {
	Sensors []Sensor `yaml:"sensors"`
	MQTT    *MQTT    `yaml:"mqtt,omitempty"`
	Kafka   *Kafka   `yaml:"kafka,omitempty"`
}

// Sensor binds a sensor handle to an IIO device. Device defaults to
// /dev/<basename of sysfs>.
type Sensor struct {
	Handle int32         `yaml:"handle"`
	Name   string        `yaml:"name"`
	Kind   string        `yaml:"kind"`
	Sysfs  string        `yaml:"sysfs"`
	Device string        `yaml:"device,omitempty"`
	Flags  []string      `yaml:"flags,omitempty"`
	Period time.Duration `yaml:"period,omitempty"`
}

type MQTT struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a configuration.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if len(c.Sensors) == 0 {
		return fmt.Errorf("%w: no sensors defined", ErrInvalidConfig)
	}
	handles := make(map[int32]string, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("%w: sensor %d has no name", ErrInvalidConfig, i)
		}
		if prev, ok := handles[s.Handle]; ok {
			return fmt.Errorf("%w: handle %d used by %q and %q", ErrInvalidConfig, s.Handle, prev, s.Name)
		}
		handles[s.Handle] = s.Name
		if s.Sysfs == "" {
			return fmt.Errorf("%w: sensor %q has no sysfs directory", ErrInvalidConfig, s.Name)
		}
		if s.Period < 0 {
			return fmt.Errorf("%w: sensor %q has negative period", ErrInvalidConfig, s.Name)
		}
		if _, err := s.Descriptor(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt broker not set", ErrInvalidConfig)
	}
	if c.Kafka != nil && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("%w: kafka needs brokers and a topic", ErrInvalidConfig)
	}
	return nil
}

// Descriptor builds the sensor descriptor of the entry.
func (s Sensor) Descriptor() (sensorhal.Descriptor, error) {
	kind, err := sensorhal.ParseKind(s.Kind)
	if err != nil {
		return sensorhal.Descriptor{}, fmt.Errorf("sensor %q: %w", s.Name, err)
	}
	flags, err := ParseFlags(s.Flags)
	if err != nil {
		return sensorhal.Descriptor{}, fmt.Errorf("sensor %q: %w", s.Name, err)
	}
	return sensorhal.NewDescriptor(s.Handle, s.Name, kind, flags), nil
}

func ParseFlags(names []string) (sensorhal.Flag, error) {
	var flags sensorhal.Flag
	for _, n := range names {
		switch n {
		case "wake_up":
			flags |= sensorhal.FlagWakeUp
		case "one_shot":
			flags |= sensorhal.FlagOneShot
		case "data_injection":
			flags |= sensorhal.FlagDataInjection
		default:
			return 0, fmt.Errorf("unknown flag %q", n)
		}
	}
	return flags, nil
}
