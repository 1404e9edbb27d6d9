package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fxnlabs/cudabind/internal/config"
	"github.com/fxnlabs/cudabind/internal/gpu"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func serveCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Hold the device open and expose metrics over HTTP",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "probe-interval", Value: 30 * time.Second, Usage: "How often to run a fill kernel probe; 0 disables it"},
		},
		Action: func(c *cli.Context) error {
			app := fx.New(serveOptions(e.cfg, e.log, c.Duration("probe-interval")))
			app.Run()
			return app.Err()
		},
	}
}

func serveOptions(cfg *config.Config, log *zap.Logger, probe time.Duration) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: log.Named("fx")} }),
		gpu.Module,
		fx.Provide(newMux),
		fx.Invoke(func(lc fx.Lifecycle, mux *http.ServeMux) {
			startServer(lc, cfg.Metrics.ListenAddress, mux, log)
		}),
		fx.Invoke(func(lc fx.Lifecycle, m *gpu.Manager) {
			startProbe(lc, m, probe, log)
		}),
	)
}

func newMux(m *gpu.Manager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.DeviceInfo())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := m.VectorAdd([]float32{1}, []float32{2}); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func startServer(lc fx.Lifecycle, addr string, handler http.Handler, log *zap.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			log.Info("serving metrics", zap.String("address", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

const probeLen = 64

// startProbe runs a small kernel every interval so device faults surface in
// the logs and the launch metrics.
func startProbe(lc fx.Lifecycle, m *gpu.Manager, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						out, err := m.Fill(probeLen, 1)
						if err == nil && out[probeLen-1] != 1 {
							err = fmt.Errorf("fill probe read back %v", out[probeLen-1])
						}
						if err != nil {
							log.Warn("device probe failed", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			<-done
			return nil
		},
	})
}
