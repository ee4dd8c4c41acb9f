package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/mklimuk/sensorhal/cmd/sensors/command"
	"github.com/mklimuk/sensorhal/cmd/sensors/console"
)

var streamCmd = cli.Command{
	Name:    "stream",
	Aliases: []string{"s"},
	Usage:   "activate the sensors and stream their events until interrupted",
	Flags: slices.Concat(command.SensorFlags, command.SinkFlags, []cli.Flag{
		&cli.DurationFlag{
			Name:    "duration",
			Aliases: []string{"d"},
			Usage:   "stop after the given time, 0 streams until interrupted",
		},
	}),
	Action: func(c *cli.Context) error {
		cfg, err := command.LoadConfig(c)
		if err != nil {
			return console.Exit(1, "could not load sensors: %s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if d := c.Duration("duration"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		events, closeSink, err := command.NewSink(c, cfg)
		if err != nil {
			return console.Exit(1, "could not create sink: %s", console.Red(err))
		}
		engines, err := command.StartEngines(ctx, cfg, events, c.Bool("simulate"))
		if err != nil {
			_ = closeSink()
			return console.Exit(1, "could not start sensors: %s", console.Red(err))
		}
		for _, e := range engines {
			if err := e.Activate(ctx, true); err != nil {
				console.Warnf("sensor %s: %s", e.Descriptor().Name, err)
			}
			console.Debugf("sensor %s active, period %s", e.Descriptor().Name, e.SamplingPeriod())
		}
		console.PInfof(console.PictoSensor, "streaming %d sensors", len(engines))
		<-ctx.Done()

		// the stream context is done, teardown gets a fresh one
		err = multierr.Append(command.CloseEngines(context.Background(), engines), closeSink())
		if err != nil {
			return console.Exit(1, "could not stop sensors: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "done")
		return nil
	},
}
