package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "device_kernel_duration_seconds",
		Help:    "Histogram of device kernel execution times",
		Buckets: prometheus.DefBuckets,
	}, []string{"kernel"})

	KernelInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "device_kernel_invocations_total",
		Help: "Total number of device kernel launches",
	}, []string{"kernel"})

	RegionAllocatedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "device_region_allocated_bytes",
		Help: "Current bytes allocated per memory region",
	}, []string{"region"})

	TilizeElementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_codec_elements_total",
		Help: "Total elements moved through the tile codec",
	}, []string{"direction"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "numerical_instability_total",
		Help: "Total number of NaN/Inf values detected in kernel output",
	}, []string{"kernel", "type"})

	ConformanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conformance_runs_total",
		Help: "Conformance scenario outcomes",
	}, []string{"scenario", "result"})
)

// ObserveKernel records one kernel launch with its wall duration.
func ObserveKernel(name string, seconds float64) {
	KernelInvocations.WithLabelValues(name).Inc()
	KernelDuration.WithLabelValues(name).Observe(seconds)
}
