// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for go-passkey operations.
// It exposes ceremony counters, performance histograms, HTTP metrics, and resource
// gauges to enable monitoring of passkey server health and performance.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics
	Namespace = "passkey"

	// Label names
	LabelOperation  = "operation"
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelPath       = "path"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpBeginRegistration    = "begin_registration"
	OpCompleteRegistration = "complete_registration"
	OpBeginAssertion       = "begin_assertion"
	OpCompleteAssertion    = "complete_assertion"
	OpTokenMint            = "token_mint"
	OpTokenVerify          = "token_verify"
)

var (
	// enabled controls whether metrics are recorded
	enabled atomic.Bool

	// CeremonyTotal counts WebAuthn ceremony operations by outcome
	CeremonyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremony_operations_total",
			Help:      "Total number of WebAuthn ceremony operations",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// CeremonyDuration tracks ceremony operation latency
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of WebAuthn ceremony operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelOperation},
	)

	// TokensIssuedTotal counts access tokens minted after successful ceremonies
	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_issued_total",
			Help:      "Total number of access tokens issued",
		},
	)

	// ChallengesActive tracks the number of pending ceremony challenges
	ChallengesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "challenges_active",
			Help:      "Number of pending ceremony challenges awaiting completion",
		},
	)

	// UsersTotal tracks the number of registered users
	UsersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "users_total",
			Help:      "Number of registered users",
		},
	)

	// CredentialsTotal tracks the number of stored credentials
	CredentialsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "credentials_total",
			Help:      "Number of stored credentials",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status class
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// ActiveConnections tracks in-flight HTTP requests
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Goroutines tracks the current goroutine count
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks currently allocated heap memory
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks memory obtained from the OS
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks cumulative GC pause time
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative garbage collection pause time in seconds",
		},
	)

	// ServerUptime tracks how long the server has been running
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds",
		},
	)
)

func init() {
	// Metrics are enabled by default and can be disabled via configuration.
	enabled.Store(true)
}

// Enable turns on metrics recording
func Enable() {
	enabled.Store(true)
}

// Disable turns off metrics recording
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics recording is enabled
func IsEnabled() bool {
	return enabled.Load()
}

// RecordCeremony records a ceremony operation with its outcome and duration
func RecordCeremony(operation string, err error, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	CeremonyTotal.WithLabelValues(operation, status).Inc()
	CeremonyDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTokenIssued records a successful token mint
func RecordTokenIssued() {
	if !IsEnabled() {
		return
	}
	TokensIssuedTotal.Inc()
}

// SetChallengesActive updates the pending challenge gauge
func SetChallengesActive(count int) {
	if !IsEnabled() {
		return
	}
	ChallengesActive.Set(float64(count))
}

// SetUsersTotal updates the registered user gauge
func SetUsersTotal(count int) {
	if !IsEnabled() {
		return
	}
	UsersTotal.Set(float64(count))
}

// SetCredentialsTotal updates the stored credential gauge
func SetCredentialsTotal(count int) {
	if !IsEnabled() {
		return
	}
	CredentialsTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request with its response code and duration
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// statusClass buckets HTTP status codes into their class (2xx, 4xx, ...)
// to keep label cardinality bounded.
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
