// Package command holds the sensor setup shared by the sensors CLI commands.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/mklimuk/sensorhal"
	"github.com/mklimuk/sensorhal/config"
	"github.com/mklimuk/sensorhal/engine"
	"github.com/mklimuk/sensorhal/iio"
	"github.com/mklimuk/sensorhal/simulated"
	"github.com/mklimuk/sensorhal/sink"
)

// SensorFlags select the sensors either from a config file or a single
// device given on the command line.
var SensorFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "sensor configuration file",
	},
	&cli.IntFlag{
		Name:    "index",
		Aliases: []string{"n"},
		Usage:   "iio device index",
	},
	&cli.StringFlag{
		Name:  "sysfs",
		Usage: "sysfs directory of the iio device, overrides --index",
	},
	&cli.StringFlag{
		Name:  "dev",
		Usage: "data character device, defaults to /dev/<sysfs name>",
	},
	&cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Value:   "accelerometer",
		Usage:   "sensor kind: accelerometer, magnetic_field, light",
	},
	&cli.StringSliceFlag{
		Name:  "flag",
		Usage: "sensor flags: wake_up, one_shot, data_injection",
	},
	&cli.DurationFlag{
		Name:    "period",
		Aliases: []string{"p"},
		Usage:   "requested sampling period",
	},
	&cli.BoolFlag{
		Name:  "simulate",
		Usage: "use simulated devices instead of iio",
	},
}

// SinkFlags select where streamed events go.
var SinkFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "sink",
		Value: cli.NewStringSlice("console"),
		Usage: "event sinks: console, mqtt, kafka",
	},
	&cli.StringFlag{
		Name:  "mqtt-broker",
		Usage: "mqtt broker url, overrides the config file",
	},
	&cli.StringFlag{
		Name:  "mqtt-prefix",
		Value: "sensors",
		Usage: "mqtt topic prefix",
	},
	&cli.StringSliceFlag{
		Name:  "kafka-broker",
		Usage: "kafka broker address, overrides the config file",
	},
	&cli.StringFlag{
		Name:  "kafka-topic",
		Value: "sensor-events",
		Usage: "kafka topic",
	},
}

// LoadConfig reads --config or builds a single sensor configuration from
// the device flags. --period applies to every sensor without one.
func LoadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		sysfs := c.String("sysfs")
		if sysfs == "" {
			sysfs = iio.FromIndex(c.Int("index"), 0).SysfsDir()
		}
		cfg = &config.Config{Sensors: []config.Sensor{{
			Handle: 1,
			Name:   filepath.Base(sysfs),
			Kind:   c.String("kind"),
			Sysfs:  sysfs,
			Device: c.String("dev"),
			Flags:  c.StringSlice("flag"),
		}}}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if period := c.Duration("period"); period > 0 {
		for i := range cfg.Sensors {
			if cfg.Sensors[i].Period == 0 {
				cfg.Sensors[i].Period = period
			}
		}
	}
	return cfg, nil
}

// OpenDevice returns the device backing a configured sensor.
func OpenDevice(s config.Sensor, simulate bool) (sensorhal.Device, error) {
	kind, err := sensorhal.ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	if simulate {
		sample := simulated.Gravity
		if kind != sensorhal.KindAccelerometer {
			sample = simulated.Counter
		}
		return simulated.NewDevice(simulated.WithSample(sample)), nil
	}
	if _, err := os.Stat(s.Sysfs); err != nil {
		return nil, fmt.Errorf("could not find iio device: %w", err)
	}
	dev := s.Device
	if dev == "" {
		dev = filepath.Join(iio.DevRoot, filepath.Base(s.Sysfs))
	}
	return iio.NewDevice(s.Sysfs, dev, kind), nil
}

// NewSink builds the sinks named by --sink. The returned function releases
// broker connections.
func NewSink(c *cli.Context, cfg *config.Config) (sensorhal.Sink, func() error, error) {
	var sinks sink.Fanout
	var closers []func() error
	closeAll := func() error {
		var err error
		for _, closer := range closers {
			err = multierr.Append(err, closer())
		}
		return err
	}
	for _, name := range c.StringSlice("sink") {
		switch name {
		case "console":
			sinks = append(sinks, sink.NewLogSink(slog.Default(), slog.LevelInfo))
		case "mqtt":
			broker, prefix := c.String("mqtt-broker"), c.String("mqtt-prefix")
			if cfg.MQTT != nil {
				if broker == "" {
					broker = cfg.MQTT.Broker
				}
				if !c.IsSet("mqtt-prefix") && cfg.MQTT.TopicPrefix != "" {
					prefix = cfg.MQTT.TopicPrefix
				}
			}
			if broker == "" {
				return nil, nil, multierr.Append(fmt.Errorf("mqtt sink needs a broker"), closeAll())
			}
			client, err := sink.DialMQTT(broker, fmt.Sprintf("sensors-%d", os.Getpid()), 5*time.Second)
			if err != nil {
				return nil, nil, multierr.Append(err, closeAll())
			}
			s := sink.NewMQTTSink(client, prefix, slog.Default())
			sinks = append(sinks, s)
			closers = append(closers, func() error {
				s.Close()
				return nil
			})
		case "kafka":
			brokers, topic := c.StringSlice("kafka-broker"), c.String("kafka-topic")
			if cfg.Kafka != nil {
				if len(brokers) == 0 {
					brokers = cfg.Kafka.Brokers
				}
				if !c.IsSet("kafka-topic") {
					topic = cfg.Kafka.Topic
				}
			}
			if len(brokers) == 0 {
				return nil, nil, multierr.Append(fmt.Errorf("kafka sink needs brokers"), closeAll())
			}
			s := sink.NewKafkaSink(brokers, topic, slog.Default())
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		default:
			return nil, nil, multierr.Append(fmt.Errorf("unknown sink %q", name), closeAll())
		}
	}
	return sinks, closeAll, nil
}

// StartEngines creates one engine per configured sensor and negotiates the
// configured period. Engines already started are closed on failure.
func StartEngines(ctx context.Context, cfg *config.Config, s sensorhal.Sink, simulate bool) ([]*engine.Engine, error) {
	engines := make([]*engine.Engine, 0, len(cfg.Sensors))
	for _, sc := range cfg.Sensors {
		e, err := startEngine(ctx, sc, s, simulate)
		if err != nil {
			return nil, multierr.Append(err, CloseEngines(ctx, engines))
		}
		engines = append(engines, e)
	}
	return engines, nil
}

func startEngine(ctx context.Context, sc config.Sensor, s sensorhal.Sink, simulate bool) (*engine.Engine, error) {
	desc, err := sc.Descriptor()
	if err != nil {
		return nil, err
	}
	dev, err := OpenDevice(sc, simulate)
	if err != nil {
		return nil, fmt.Errorf("sensor %q: %w", sc.Name, err)
	}
	e, err := engine.New(ctx, desc, dev, s)
	if err != nil {
		return nil, err
	}
	if sc.Period > 0 {
		if err := e.Batch(ctx, sc.Period); err != nil {
			slog.Warn("could not negotiate sampling period", "sensor", sc.Name, "error", err)
		}
	}
	return e, nil
}

func CloseEngines(ctx context.Context, engines []*engine.Engine) error {
	var err error
	for _, e := range engines {
		err = multierr.Append(err, e.Close(ctx))
	}
	return err
}
