package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorhal/cmd/sensors/command"
	"github.com/mklimuk/sensorhal/cmd/sensors/console"
	"github.com/mklimuk/sensorhal/freq"
)

var freqCmd = cli.Command{
	Name:    "freq",
	Aliases: []string{"f"},
	Usage:   "show the sampling frequencies of the sensors and negotiate --period against them",
	Flags:   command.SensorFlags,
	Action: func(c *cli.Context) error {
		cfg, err := command.LoadConfig(c)
		if err != nil {
			return console.Exit(1, "could not load sensors: %s", console.Red(err))
		}
		for _, s := range cfg.Sensors {
			dev, err := command.OpenDevice(s, c.Bool("simulate"))
			if err != nil {
				console.Errorf("sensor %s: %s", s.Name, err)
				continue
			}
			available, err := dev.AvailableFrequencies(c.Context)
			if err != nil {
				console.Errorf("sensor %s: %s", s.Name, err)
				continue
			}
			table, err := freq.NewTable(available)
			if err != nil {
				console.Errorf("sensor %s: %s", s.Name, err)
				continue
			}
			console.PInfof(console.PictoSensor, "%s (%s, handle %d)", console.Bold(s.Name), s.Kind, s.Handle)
			console.Printf("  frequencies: %s\n", console.White(table))
			console.Printf("  min delay:   %s\n", console.White(table.MinDelay()))
			console.Printf("  max delay:   %s\n", console.White(table.MaxDelay()))
			if s.Period > 0 {
				period, selected := table.Negotiate(s.Period)
				console.Printf("  requested %s (%s): period %s at %s\n",
					s.Period, freq.FrequencyOf(s.Period), console.Green(period), console.Green(selected))
			}
		}
		return nil
	},
}
