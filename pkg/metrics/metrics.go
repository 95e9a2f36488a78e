package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Per-container gauges. They are registered and exported, but no code
	// in the agent sets them, so a scrape reports no samples for them.
	ContainerCPUUsagePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_container_cpu_usage_percent",
			Help: "Container CPU usage percentage as reported by the runtime",
		},
		[]string{"container_id", "name"},
	)

	ContainerMemoryUsageBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_container_memory_usage_bytes",
			Help: "Container memory usage in bytes",
		},
		[]string{"container_id", "name"},
	)

	ContainerMemoryLimitBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_container_memory_limit_bytes",
			Help: "Container memory limit in bytes",
		},
		[]string{"container_id", "name"},
	)

	ContainerNetworkRxBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_container_network_rx_bytes",
			Help: "Container network bytes received",
		},
		[]string{"container_id", "name"},
	)

	ContainerNetworkTxBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_container_network_tx_bytes",
			Help: "Container network bytes transmitted",
		},
		[]string{"container_id", "name"},
	)

	// Daemon-wide container-count gauges. No code in the agent sets them
	// (runtime.Info is not called), so they stay at zero.
	DaemonContainersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_docker_containers_running",
			Help: "Number of running containers reported by the container engine",
		},
	)

	DaemonContainersStopped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_docker_containers_stopped",
			Help: "Number of stopped containers reported by the container engine",
		},
	)

	DaemonContainersPaused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_docker_containers_paused",
			Help: "Number of paused containers reported by the container engine",
		},
	)

	// Node resource gauges, refreshed alongside each heartbeat.
	NodeAvailableCPUCores = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_node_available_cpu_cores",
			Help: "Available CPU cores on this node at last probe",
		},
	)

	NodeAvailableMemoryMiB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_node_available_memory_mib",
			Help: "Available memory in MiB on this node at last probe",
		},
	)

	// Dispatcher/reconciler operational metrics.
	WorkloadLaunchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_workload_launches_total",
			Help: "Total number of workload launch requests accepted",
		},
	)

	PendingWorkloadsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_pending_workloads",
			Help: "Number of workloads still pending visibility in the runtime",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_reconcile_duration_seconds",
			Help:    "Time taken to produce the unified container view",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ContainerCPUUsagePercent,
		ContainerMemoryUsageBytes,
		ContainerMemoryLimitBytes,
		ContainerNetworkRxBytes,
		ContainerNetworkTxBytes,
		DaemonContainersRunning,
		DaemonContainersStopped,
		DaemonContainersPaused,
		NodeAvailableCPUCores,
		NodeAvailableMemoryMiB,
		WorkloadLaunchesTotal,
		PendingWorkloadsGauge,
		ReconcileDuration,
	)
}

// Handler returns the Prometheus scrape handler mounted at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing operations into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time into the histogram vec
// child selected by labels.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
