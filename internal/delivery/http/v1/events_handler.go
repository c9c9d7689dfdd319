package v1

import (
	"fmt"
	"net/http"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/notify"
	"storefront-cart/pkg/logger"

	"github.com/goccy/go-json"
)

// Subscriber is the observer side of the notification broker.
type Subscriber interface {
	Subscribe(fn func(domain.Event)) (unsubscribe func())
}

// EventsHandler streams cart notifications as server-sent events so the UI can re-read
// the cart whenever it changes.
type EventsHandler struct {
	events    Subscriber
	heartbeat time.Duration
	buffer    int
}

func NewEventsHandler(events Subscriber, heartbeat time.Duration) *EventsHandler {
	return &EventsHandler{events: events, heartbeat: heartbeat, buffer: 32}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	forward, ch := notify.Buffer(h.buffer)
	unsubscribe := h.events.Subscribe(forward)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	var tick <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	log := logger.WithContext(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("kind", ev.Kind).Msg("Failed to encode event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
