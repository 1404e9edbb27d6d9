package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

func bandwidthCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "bandwidth",
		Usage: "Measure host/device copy throughput",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "size", Value: 16 << 20, Usage: "Bytes per copy"},
			&cli.IntFlag{Name: "iterations", Value: 8, Usage: "Copies per measurement"},
		},
		Action: func(c *cli.Context) (err error) {
			m, err := e.manager()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, m.Close()) }()

			results, err := m.Bandwidth(c.Int64("size"), c.Int("iterations"))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIRECTION\tMODE\tBYTES\tELAPSED\tGB/s")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\n", r.Direction, r.Mode, r.Bytes, r.Elapsed, r.GBps())
			}
			return tw.Flush()
		},
	}
}
