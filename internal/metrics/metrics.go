// Package metrics provides Prometheus metrics for the keyring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "keyring"

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks the number of in-flight HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// UnlockAttempts counts unlock attempts by result.
	UnlockAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlock_attempts_total",
			Help:      "Total number of unlock attempts",
		},
		[]string{"result"}, // "success", "already_unlocked", "initialized", "wrong_password", "error"
	)

	// Locks counts lock transitions by reason.
	Locks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locks_total",
			Help:      "Total number of session locks",
		},
		[]string{"reason"}, // "explicit", "keyring_idle", "outside_idle", "inconsistent", "reset"
	)

	// VaultWrites counts vault log append attempts by result.
	VaultWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vault_writes_total",
			Help:      "Total number of vault log writes",
		},
		[]string{"result"}, // "appended", "deduplicated", "error"
	)

	// Signatures counts signing requests by kind and result.
	Signatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Total number of signing requests",
		},
		[]string{"kind", "result"},
	)

	// EncryptionOperations counts vault encryption operations.
	EncryptionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encryption_operations_total",
			Help:      "Total number of vault encryption/decryption operations",
		},
		[]string{"operation"}, // "encrypt" or "decrypt"
	)

	// KeyringsTotal tracks the number of keyrings held by the unlocked session.
	KeyringsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keyrings_total",
			Help:      "Number of keyrings loaded in the session",
		},
	)

	// VisibleAddressesTotal tracks the number of non-hidden addresses.
	VisibleAddressesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visible_addresses_total",
			Help:      "Number of visible addresses across all keyrings",
		},
	)

	// SessionUnlocked is 1 while the session is unlocked.
	SessionUnlocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_unlocked",
			Help:      "Whether the keyring session is unlocked",
		},
	)

	// DatabaseConnections tracks database connection pool stats.
	DatabaseConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections",
			Help:      "Database connection pool statistics",
		},
		[]string{"state"}, // "in_use", "idle", "max_open"
	)
)
