package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/golang/geo/r3"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorhal"
	"github.com/mklimuk/sensorhal/cmd/sensors/command"
	"github.com/mklimuk/sensorhal/cmd/sensors/console"
	"github.com/mklimuk/sensorhal/engine"
	"github.com/mklimuk/sensorhal/sink"
)

var shellCommands = []string{"activate", "batch", "mode", "inject", "flush", "status", "quiet", "help", "quit"}

const shellHelp = `activate on|off    enable or disable the sensor
batch <period>     request a sampling period, e.g. 20ms
mode normal|inject switch the operation mode
inject x [y z]     inject a sample (data injection mode only)
flush              request a flush complete marker
status             show the sensor state
quiet on|off       mute event output
quit               close the sensor and exit`

var consoleCmd = cli.Command{
	Name:    "console",
	Aliases: []string{"c"},
	Usage:   "drive a single sensor from an interactive prompt",
	Flags: slices.Concat(command.SensorFlags, []cli.Flag{
		&cli.IntFlag{
			Name:  "handle",
			Usage: "sensor handle to drive when the config file holds several",
		},
	}),
	Action: func(c *cli.Context) error {
		cfg, err := command.LoadConfig(c)
		if err != nil {
			return console.Exit(1, "could not load sensors: %s", console.Red(err))
		}
		sc := cfg.Sensors[0]
		if c.IsSet("handle") {
			found := false
			for _, s := range cfg.Sensors {
				if s.Handle == int32(c.Int("handle")) {
					sc, found = s, true
				}
			}
			if !found {
				return console.Exit(1, "no sensor with handle %d", c.Int("handle"))
			}
		}
		cfg.Sensors = cfg.Sensors[:0]
		cfg.Sensors = append(cfg.Sensors, sc)

		shell, err := console.NewShell(fmt.Sprintf("%s> ", sc.Name), shellCommands...)
		if err != nil {
			return console.Exit(1, "could not open prompt: %s", console.Red(err))
		}
		defer func() { _ = shell.Close() }()

		s := &session{start: time.Now()}
		engines, err := command.StartEngines(c.Context, cfg, s, c.Bool("simulate"))
		if err != nil {
			return console.Exit(1, "could not start sensor: %s", console.Red(err))
		}
		s.engine = engines[0]
		defer func() {
			if err := s.engine.Close(context.Background()); err != nil {
				console.Errorf("could not close sensor: %s", err)
			}
		}()
		console.Print(shellHelp)

		for {
			line, err := shell.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			quit, err := s.execute(c.Context, line)
			if err != nil {
				console.Errorf("%s (%s)", err, console.Yellow(sensorhal.ResultOf(err)))
				continue
			}
			if !quit {
				continue
			}
			if s.engine.Enabled() {
				answer, err := shell.YesOrNo("sensor is active, quit anyway?")
				if err != nil || answer != console.Yes {
					continue
				}
			}
			return nil
		}
	},
}

var errUsage = errors.New("usage")

// session executes prompt commands against one engine and prints the events
// it delivers.
type session struct {
	engine *engine.Engine
	start  time.Time
	quiet  atomic.Bool
}

func (s *session) PostEvents(events []sensorhal.Event, wakeUp bool) {
	if s.quiet.Load() {
		return
	}
	for _, ev := range events {
		console.Printf("%s %s\n", console.Green(ev.Kind), formatAttrs(sink.EventAttrs(ev, wakeUp)))
	}
}

func formatAttrs(attrs []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(attrs); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", attrs[i], attrs[i+1])
	}
	return b.String()
}

// execute runs one prompt line and reports whether the user asked to quit.
func (s *session) execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]
	switch fields[0] {
	case "activate":
		on, err := parseSwitch(args)
		if err != nil {
			return false, err
		}
		return false, s.engine.Activate(ctx, on)
	case "batch":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: batch <period>", errUsage)
		}
		period, err := time.ParseDuration(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid period: %w", err)
		}
		if err := s.engine.Batch(ctx, period); err != nil {
			return false, err
		}
		console.Infof("sampling period %s", console.White(s.engine.SamplingPeriod()))
	case "mode":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: mode normal|inject", errUsage)
		}
		switch args[0] {
		case "normal":
			s.engine.SetOperationMode(sensorhal.ModeNormal)
		case "inject":
			s.engine.SetOperationMode(sensorhal.ModeDataInjection)
		default:
			return false, fmt.Errorf("%w: mode normal|inject", errUsage)
		}
	case "inject":
		ev, err := s.injected(args)
		if err != nil {
			return false, err
		}
		if err := s.engine.InjectEvent(ev); err != nil {
			return false, err
		}
		console.Infof("injected (%s)", console.Green(sensorhal.ResultOK))
	case "flush":
		return false, s.engine.Flush()
	case "status":
		desc := s.engine.Descriptor()
		console.PInfof(console.PictoPin, "%s %s handle=%d flags=%s", console.Bold(desc.Name), desc.Kind, desc.Handle, desc.Flags)
		console.Printf("  enabled=%t mode=%s phase=%s period=%s delay=[%s, %s]\n",
			s.engine.Enabled(), s.engine.Mode(), s.engine.Phase(), s.engine.SamplingPeriod(), desc.MinDelay, desc.MaxDelay)
	case "quiet":
		on, err := parseSwitch(args)
		if err != nil {
			return false, err
		}
		s.quiet.Store(on)
	case "help":
		console.Print(shellHelp)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return false, nil
}

func (s *session) injected(args []string) (sensorhal.Event, error) {
	desc := s.engine.Descriptor()
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return sensorhal.Event{}, fmt.Errorf("invalid value %q: %w", a, err)
		}
		values[i] = v
	}
	ev := sensorhal.Event{
		SensorHandle: desc.Handle,
		Kind:         desc.Kind,
		Timestamp:    int64(time.Since(s.start)),
	}
	switch {
	case desc.Kind.Axes() == 3 && len(values) == 3:
		ev.Payload = sensorhal.Vector{Vector: r3.Vector{X: values[0], Y: values[1], Z: values[2]}}
	case desc.Kind.Axes() == 1 && len(values) == 1:
		ev.Payload = sensorhal.Scalar(values[0])
	default:
		return sensorhal.Event{}, fmt.Errorf("%w: %s takes %d values", errUsage, desc.Kind, desc.Kind.Axes())
	}
	return ev, nil
}

func parseSwitch(args []string) (bool, error) {
	if len(args) == 1 {
		switch args[0] {
		case "on", "1", "true":
			return true, nil
		case "off", "0", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: expected on|off", errUsage)
}
