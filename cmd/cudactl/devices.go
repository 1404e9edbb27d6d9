package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

func devicesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List the devices the driver reports",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-banner", Usage: "Skip the banner"},
		},
		Action: func(c *cli.Context) (err error) {
			m, err := e.manager()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, m.Close()) }()

			names, err := m.Devices()
			if err != nil {
				return err
			}
			w := c.App.Writer
			if !c.Bool("no-banner") {
				fmt.Fprintln(w, figure.NewFigure("cudabind", "", true).String())
			}
			fmt.Fprintf(w, "Driver: %s\n", m.Driver())
			for i, name := range names {
				marker := " "
				if i == m.DeviceInfo().Index {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %d  %s\n", marker, i, name)
			}
			return nil
		},
	}
}
