package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sendnodes-io/sendwallet-sub000/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks map[string]store.Pinger
}

// NewHealthHandler creates a new HealthHandler. Each named check is pinged
// by the readiness probe.
func NewHealthHandler(checks map[string]store.Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// RedisCheck adapts a Redis client to store.Pinger.
func RedisCheck(client *redis.Client) store.Pinger {
	return redisPinger{client}
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Liveness handles the /health endpoint (basic liveness check).
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Readiness handles the /ready endpoint (checks all dependencies).
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]string)
	allHealthy := true

	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			slog.Error("health check failed", "service", name, "error", err)
			services[name] = "unhealthy"
			allHealthy = false
		} else {
			services[name] = "healthy"
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
