// Package metrics provides Prometheus metrics for shelfd operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Trash metrics
	TrashOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfd_trash_operations_total",
			Help: "Total number of trash operations",
		},
		[]string{"operation", "status"}, // operation: "soft_delete", "restore", "purge"
	)

	TrashedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfd_trash_bytes",
			Help: "Bytes currently held in quarantine",
		},
	)

	// Version metrics
	VersionSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfd_version_snapshots_total",
			Help: "Total number of version snapshots",
		},
		[]string{"status"}, // "success", "skipped_size", "failure"
	)

	VersionEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfd_version_evictions_total",
			Help: "Total number of version entries evicted by the retention cap",
		},
	)

	// Share link metrics
	ShareCreationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfd_share_creations_total",
			Help: "Total number of share links created",
		},
	)

	ShareAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfd_share_access_total",
			Help: "Total number of share access attempts",
		},
		[]string{"status"}, // "success", "not_found", "expired", "quota_exhausted", "unauthorized", "forbidden"
	)

	// Metadata store metrics
	MetadataFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfd_metadata_flushes_total",
			Help: "Total number of metadata document flushes",
		},
		[]string{"status"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfd_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
)
