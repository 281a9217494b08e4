package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	b := NewMemoryBus(nil)
	defer b.Close()

	var mu sync.Mutex
	var received []Event

	err := b.Subscribe(context.Background(), TopicColumnCompleted, func(ctx context.Context, e Event) error {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	event := NewEvent(TopicColumnCompleted, "selection", 1, map[string]int{"column": 4})
	if err := b.Publish(context.Background(), TopicColumnCompleted, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if !b.Drain(time.Second) {
		t.Fatal("handlers did not drain")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	if received[0].Type != TopicColumnCompleted || received[0].Epoch != 1 {
		t.Errorf("event = %+v", received[0])
	}
}

func TestMemoryBusNoSubscribers(t *testing.T) {
	b := NewMemoryBus(nil)
	defer b.Close()

	// Publishing to a topic with no subscribers is not an error.
	err := b.Publish(context.Background(), TopicEvaluationDone, NewEvent(TopicEvaluationDone, "engine", 0, nil))
	if err != nil {
		t.Errorf("Publish() error = %v, want nil", err)
	}
}

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus(nil)
	defer b.Close()

	var mu sync.Mutex
	counts := make(map[string]int)

	for _, name := range []string{"a", "b", "c"} {
		name := name
		b.Subscribe(context.Background(), TopicCatalogReset, func(ctx context.Context, e Event) error {
			mu.Lock()
			counts[name]++
			mu.Unlock()
			return nil
		})
	}

	b.Publish(context.Background(), TopicCatalogReset, NewEvent(TopicCatalogReset, "engine", 2, nil))

	if !b.Drain(time.Second) {
		t.Fatal("handlers did not drain")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"a", "b", "c"} {
		if counts[name] != 1 {
			t.Errorf("subscriber %s received %d events, want 1", name, counts[name])
		}
	}
}

func TestMemoryBusClosed(t *testing.T) {
	b := NewMemoryBus(nil)
	b.Close()

	if err := b.Publish(context.Background(), TopicColumnCompleted, Event{}); err == nil {
		t.Error("Publish() on closed bus succeeded, want error")
	}
	if err := b.Subscribe(context.Background(), TopicColumnCompleted, nil); err == nil {
		t.Error("Subscribe() on closed bus succeeded, want error")
	}
}

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{"a:9092,b:9092", []string{"a:9092", "b:9092"}},
		{" a:9092 , b:9092 ", []string{"a:9092", "b:9092"}},
		{",,", nil},
	}

	for _, tt := range tests {
		got := ParseBrokers(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("ParseBrokers(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseBrokers(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
