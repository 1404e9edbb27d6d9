package gpu

import (
	"fmt"
	"time"

	"github.com/fxnlabs/cudabind/cuda"
	"github.com/fxnlabs/cudabind/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// BandwidthResult is one measured transfer configuration.
type BandwidthResult struct {
	Direction string        `json:"direction"`
	Mode      string        `json:"mode"`
	Bytes     int64         `json:"bytes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// GBps returns the measured throughput in gigabytes per second.
func (r BandwidthResult) GBps() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds() / 1e9
}

// Bandwidth times iterations host-to-device and device-to-host copies of size
// bytes, synchronously and on a stream.
func (m *Manager) Bandwidth(size int64, iterations int) ([]BandwidthResult, error) {
	if size <= 0 || iterations <= 0 {
		return nil, fmt.Errorf("%w: size %d, iterations %d", cuda.ErrInvalidArgument, size, iterations)
	}
	host := make([]byte, size)
	for i := range host {
		host[i] = byte(i)
	}

	var results []BandwidthResult
	err := m.do(func() (err error) {
		buf, err := cuda.Allocate(size)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, buf.Release()) }()
		s, err := cuda.CreateStream()
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, s.Release()) }()

		for _, run := range []struct {
			direction, mode string
			copy            func() error
		}{
			{"htod", "sync", func() error { return cuda.CopyToDevice(buf, host) }},
			{"dtoh", "sync", func() error { return cuda.CopyToHost(buf, host) }},
			{"htod", "async", func() error { return queued(s, iterations, func() (*cuda.Transfer, error) { return cuda.CopyToDeviceAsync(buf, host, s) }) }},
			{"dtoh", "async", func() error { return queued(s, iterations, func() (*cuda.Transfer, error) { return cuda.CopyToHostAsync(buf, host, s) }) }},
		} {
			n := iterations
			if run.mode == "async" {
				n = 1
			}
			start := time.Now()
			for i := 0; i < n; i++ {
				if err := run.copy(); err != nil {
					return err
				}
			}
			r := BandwidthResult{
				Direction: run.direction,
				Mode:      run.mode,
				Bytes:     size * int64(iterations),
				Elapsed:   time.Since(start),
			}
			metrics.TransferBandwidth.WithLabelValues(r.Direction, r.Mode).Set(r.GBps())
			m.log.Debug("bandwidth measured",
				zap.String("direction", r.Direction),
				zap.String("mode", r.Mode),
				zap.Float64("gbps", r.GBps()))
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// queued enqueues n transfers on s, waits for the stream once and completes them all.
func queued(s *cuda.Stream, n int, enqueue func() (*cuda.Transfer, error)) (err error) {
	pending := make([]*cuda.Transfer, 0, n)
	defer func() {
		err = multierr.Append(err, s.Sync())
		for _, t := range pending {
			err = multierr.Append(err, t.Finish())
		}
	}()
	for i := 0; i < n; i++ {
		t, err := enqueue()
		if err != nil {
			return err
		}
		pending = append(pending, t)
	}
	return nil
}
