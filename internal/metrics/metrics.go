package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cudabind_transfer_bytes_total",
		Help: "Bytes moved by memcpy entry points",
	}, []string{"direction", "mode"})

	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cudabind_transfers_total",
		Help: "Number of memcpy calls issued",
	}, []string{"direction", "mode"})

	Allocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cudabind_allocations_total",
		Help: "Device buffers allocated",
	})

	// DeviceMemoryBytes tracks bytes held by live buffers allocated through this process.
	DeviceMemoryBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cudabind_device_memory_bytes",
		Help: "Device memory currently held by live buffers",
	})

	KernelLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cudabind_kernel_launches_total",
		Help: "Kernel launches by result",
	}, []string{"result"})

	DriverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cudabind_driver_errors_total",
		Help: "Failures reported by native entry points",
	}, []string{"op"})

	// Workload metrics recorded by the device manager.
	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cudabind_kernel_duration_ms",
		Help:    "Wall time from launch to synchronize in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 20),
	}, []string{"kernel"})

	TransferBandwidth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cudabind_transfer_bandwidth_gbps",
		Help: "Bandwidth measured by the last bandwidth run in GB/s",
	}, []string{"direction", "mode"})
)
