// Package metrics provides Prometheus metrics for ipweaver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names use the ipweaver_ prefix.
const (
	Namespace = "ipweaver"
)

var (
	// BuildInfo exposes build metadata as a constant gauge.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "go_version"})

	// CyclesTotal counts reconcile cycles by outcome (success, degraded, error, skipped).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cycles_total",
		Help:      "Total number of reconcile cycles by outcome",
	}, []string{"outcome"})

	// CycleDuration tracks how long a full reconcile cycle takes.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of reconcile cycles in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	// IPLookupsTotal counts public IP discovery attempts by family and outcome.
	IPLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ip_lookups_total",
		Help:      "Total number of public IP lookups by family and outcome",
	}, []string{"family", "outcome"})

	// APIRequestsTotal counts provider API calls by operation and outcome.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total number of provider API requests by operation and outcome",
	}, []string{"operation", "outcome"})

	// RecordsCreatedTotal counts DNS records created by record type.
	RecordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_created_total",
		Help:      "Total number of DNS records created by type",
	}, []string{"type"})

	// RecordsUpdatedTotal counts DNS records updated by record type.
	RecordsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_updated_total",
		Help:      "Total number of DNS records updated by type",
	}, []string{"type"})

	// RecordsFailedTotal counts failed record operations by type and operation.
	RecordsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_failed_total",
		Help:      "Total number of failed record operations by type and operation",
	}, []string{"type", "operation"})

	// RecordIDHeld reports whether a cached record ID is currently held per type.
	RecordIDHeld = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "record_id_held",
		Help:      "Whether a record ID is currently cached (1) or not (0) per record type",
	}, []string{"type"})

	// VerifyChecksTotal counts resolver verification probes by outcome.
	VerifyChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "verify_checks_total",
		Help:      "Total number of DNS propagation checks by outcome",
	}, []string{"outcome"})
)

// SetBuildInfo records the build metadata gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
