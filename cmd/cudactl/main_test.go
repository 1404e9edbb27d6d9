package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxnlabs/cudabind/internal/config"
	"github.com/fxnlabs/cudabind/internal/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// run executes cudactl against the simulated driver with a fresh home and
// returns what it wrote to stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	argv := append([]string{"cudactl", "--home", t.TempDir(), "--driver", "sim"}, args...)
	require.NoError(t, app.Run(argv), out.String())
	return out.String()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Driver.Kind = config.DriverSim
	cfg.Logger.Verbosity = "error"
	cfg.Metrics.ListenAddress = "127.0.0.1:0"
	return cfg
}

func TestInit(t *testing.T) {
	home := t.TempDir()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"cudactl", "--home", home, "init"}))

	path := filepath.Join(home, config.FileName)
	assert.Contains(t, out.String(), path)
	cfg, err := config.LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, config.DriverAuto, cfg.Driver.Kind)

	// A second init leaves the existing file alone.
	require.NoError(t, os.WriteFile(path, []byte("driver:\n  kind: sim\n"), 0o644))
	require.NoError(t, newApp().Run([]string{"cudactl", "--home", home, "init"}))
	cfg, err = config.LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSim, cfg.Driver.Kind)
}

func TestBadDriverFlag(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"cudactl", "--home", t.TempDir(), "--driver", "opencl", "devices"})
	assert.Error(t, err)
}

func TestDevices(t *testing.T) {
	out := run(t, "devices")
	assert.Contains(t, out, "Driver: sim")
	assert.Contains(t, out, "* 0  Simulated Device 0")

	quiet := run(t, "devices", "--no-banner")
	assert.Less(t, len(quiet), len(out))
}

func TestVecAdd(t *testing.T) {
	out := run(t, "vecadd")
	assert.Contains(t, out, "c[0] = 3\n")
	assert.Contains(t, out, "c[9] = 3\n")
	assert.Contains(t, out, "verified 1024 elements")
}

func TestMatMul(t *testing.T) {
	out := run(t, "matmul", "--m", "20", "--k", "7", "--n", "13")
	assert.Contains(t, out, "20x7x13 verified")
	assert.Contains(t, out, "sim")
}

func TestMatMulFreivalds(t *testing.T) {
	out := run(t, "matmul", "--m", "33", "--k", "12", "--n", "18", "--verify", "freivalds")
	assert.Contains(t, out, "33x12x18 verified")
}

func TestMatMulUnknownVerification(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"cudactl", "--home", t.TempDir(), "--driver", "sim",
		"matmul", "--m", "2", "--k", "2", "--n", "2", "--verify", "eyeball"})
	assert.ErrorContains(t, err, `unknown verification "eyeball"`)
}

func TestBandwidth(t *testing.T) {
	out := run(t, "bandwidth", "--size", "4096", "--iterations", "2")
	assert.Contains(t, out, "DIRECTION")
	for _, row := range []string{`htod\s+sync`, `dtoh\s+sync`, `htod\s+async`, `dtoh\s+async`} {
		assert.Regexp(t, row, out)
	}
}

func TestServeLifecycle(t *testing.T) {
	cfg := testConfig()
	app := fxtest.New(t, serveOptions(cfg, zap.NewNop(), 10*time.Millisecond))
	app.RequireStart()
	time.Sleep(30 * time.Millisecond)
	app.RequireStop()
}

func TestMux(t *testing.T) {
	m, err := gpu.NewManager(testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	srv := httptest.NewServer(newMux(m))
	t.Cleanup(srv.Close)

	tests := []struct {
		path string
		code int
	}{
		{"/metrics", http.StatusOK},
		{"/device", http.StatusOK},
		{"/healthz", http.StatusOK},
		{"/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/device")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info gpu.DeviceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "sim", info.Driver)
	assert.Equal(t, "Simulated Device 0", info.Name)
	assert.Equal(t, 1, info.Devices)
}
