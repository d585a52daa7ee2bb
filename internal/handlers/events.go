package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/logging"
)

// DefaultKeepAlive is the interval between SSE comment pings.
const DefaultKeepAlive = 15 * time.Second

// EventsHandler streams bus notifications as server-sent events.
type EventsHandler struct {
	bus       *events.Bus
	keepAlive time.Duration
	buffer    int
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(bus *events.Bus, keepAlive time.Duration) *EventsHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &EventsHandler{bus: bus, keepAlive: keepAlive, buffer: 64}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := logging.Logger(r.Context())
	rc := http.NewResponseController(w)

	// The stream outlives the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && err != http.ErrNotSupported {
		log.Warn("failed to clear write deadline", "error", err)
	}

	ch, cancel := h.bus.Subscribe(h.buffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Error("event stream not supported", "error", err)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Error("failed to encode event", "kind", e.Kind, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
