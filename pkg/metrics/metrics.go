package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitework"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route, method and status."},
		[]string{"route", "method", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency by route.", Buckets: prometheus.DefBuckets},
		[]string{"route"},
	)
	PermissionDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "permission_denied_total", Help: "Requests denied by the permission gate."},
		[]string{"permission"},
	)
	ApprovalActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "approval_actions_total", Help: "Recorded approval actions by type."},
		[]string{"action"},
	)
	CleanupOrphaned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cleanup_orphaned_objects_total", Help: "Orphaned objects found by bucket."},
		[]string{"bucket"},
	)
	CleanupDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cleanup_deleted_objects_total", Help: "Orphaned objects deleted by bucket."},
		[]string{"bucket"},
	)
	CleanupErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cleanup_errors_total", Help: "Cleanup failures by bucket."},
		[]string{"bucket"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total", Help: "List cache lookups by resource and result."},
		[]string{"resource", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPDuration)
	reg.MustRegister(PermissionDenied)
	reg.MustRegister(ApprovalActions)
	reg.MustRegister(CleanupOrphaned)
	reg.MustRegister(CleanupDeleted)
	reg.MustRegister(CleanupErrors)
	reg.MustRegister(CacheLookups)
}
