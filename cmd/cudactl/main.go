package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fxnlabs/cudabind/internal/config"
	"github.com/fxnlabs/cudabind/internal/gpu"
	"github.com/fxnlabs/cudabind/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// env is filled in by the app's Before hook and shared by every command.
type env struct {
	home   string
	driver string
	cfg    *config.Config
	log    *zap.Logger
}

func (e *env) manager() (*gpu.Manager, error) {
	return gpu.NewManager(e.cfg, e.log)
}

func newApp() *cli.App {
	e := &env{}
	return &cli.App{
		Name:  "cudactl",
		Usage: "Drive compute devices through the cudabind driver binding",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "home",
				Value:       config.GetDefaultConfigHome(),
				Usage:       "Path to the cudabind home directory or a config file",
				EnvVars:     []string{"CUDABIND_HOME"},
				Destination: &e.home,
			},
			&cli.StringFlag{
				Name:        "driver",
				Usage:       "Override driver.kind (auto, native or sim)",
				EnvVars:     []string{"CUDABIND_DRIVER"},
				Destination: &e.driver,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			e.cfg, err = config.LoadConfig(e.home)
			if errors.Is(err, fs.ErrNotExist) {
				e.cfg, err = config.Default(), nil
			}
			if err != nil {
				return err
			}
			if e.driver != "" {
				e.cfg.Driver.Kind = config.DriverKind(e.driver)
				if err := e.cfg.Validate(); err != nil {
					return err
				}
			}
			zapLogger, err := logger.FromConfig(e.cfg)
			if err != nil {
				return err
			}
			e.log = zapLogger.Named("cudactl")
			return nil
		},
		After: func(c *cli.Context) error {
			if e.log != nil {
				_ = e.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			initCommand(e),
			devicesCommand(e),
			vecAddCommand(e),
			matMulCommand(e),
			bandwidthCommand(e),
			serveCommand(e),
		},
	}
}

func initCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default config.yaml into the home directory",
		Action: func(c *cli.Context) error {
			path, err := config.InitHome(e.home)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "config: %s\n", path)
			return nil
		},
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
