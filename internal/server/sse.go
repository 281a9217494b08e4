package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/raggrid/rag-grid/internal/bus"
)

// sseKeepAlive is how often an idle stream gets a comment frame so
// intermediaries do not drop the connection.
const sseKeepAlive = 15 * time.Second

// handleSSEEvents streams engine events (column completions, evaluation
// results, catalog resets) to the client as server-sent events with JSON
// data frames.
func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	eventChan := make(chan bus.Event, 16)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topics := []string{
		bus.TopicColumnCompleted,
		bus.TopicEvaluationDone,
		bus.TopicCatalogReset,
	}
	for _, topic := range topics {
		err := s.bus.Subscribe(ctx, topic, func(ctx context.Context, event bus.Event) error {
			select {
			case eventChan <- event:
			default:
				// A slow client drops events rather than stalling the bus;
				// it can refetch the snapshot at any time.
			}
			return nil
		})
		if err != nil {
			s.log.Error("subscribing to events failed", "topic", topic, "error", err)
		}
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
