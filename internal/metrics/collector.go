package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot is a point-in-time view of the session used to refresh gauges.
type Snapshot struct {
	Unlocked         bool
	Keyrings         int
	VisibleAddresses int
}

// Source supplies snapshots to the collector.
type Source interface {
	MetricsSnapshot() Snapshot
}

// StartCollector periodically refreshes the session gauges from src and, when
// pool is non-nil, the database connection pool stats. It blocks until ctx is
// cancelled.
func StartCollector(ctx context.Context, src Source, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on startup
	collectMetrics(src, pool)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collectMetrics(src, pool)
		}
	}
}

func collectMetrics(src Source, pool *pgxpool.Pool) {
	if pool != nil {
		collectDatabaseStats(pool)
	}
	if src == nil {
		return
	}

	snap := src.MetricsSnapshot()
	Observe(snap)
	slog.Debug("session metrics collected",
		"unlocked", snap.Unlocked,
		"keyrings", snap.Keyrings,
		"visible_addresses", snap.VisibleAddresses,
	)
}

// Observe writes a snapshot to the session gauges.
func Observe(snap Snapshot) {
	if snap.Unlocked {
		SessionUnlocked.Set(1)
	} else {
		SessionUnlocked.Set(0)
	}
	KeyringsTotal.Set(float64(snap.Keyrings))
	VisibleAddressesTotal.Set(float64(snap.VisibleAddresses))
}

// collectDatabaseStats updates database connection pool metrics.
func collectDatabaseStats(pool *pgxpool.Pool) {
	stats := pool.Stat()

	DatabaseConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
	DatabaseConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DatabaseConnections.WithLabelValues("max_open").Set(float64(stats.MaxConns()))
}
