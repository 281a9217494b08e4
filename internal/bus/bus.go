// Package bus provides event bus implementations for engine notifications.
package bus

import (
	"context"
	"time"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// Type is the event type, usually the topic it was published on.
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created.
	Timestamp int64 `json:"timestamp"`

	// Epoch is the catalog epoch the event belongs to. Consumers can
	// discard events from epochs they no longer care about.
	Epoch int `json:"epoch"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, source string, epoch int, payload any) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Epoch:     epoch,
		Payload:   payload,
	}
}

// Topics published by the engine.
const (
	// TopicColumnCompleted fires when a column gains its last missing
	// selection (or re-resolves after a manual edit).
	TopicColumnCompleted = "grid.column.completed"

	// TopicEvaluationDone fires when an evaluation record transitions
	// to Done or Error.
	TopicEvaluationDone = "grid.evaluation.done"

	// TopicCatalogReset fires when the dimension catalog is replaced
	// and all grid state is cleared.
	TopicCatalogReset = "grid.catalog.reset"
)
