package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	unsub := bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventTurnReceived)
	defer unsub()

	bus.Publish(NewEvent(EventTurnReceived, SourceOrchestrator, map[string]any{"message": "hi"}, "s1"))
	bus.Publish(NewEvent(EventToolInvoked, SourceExecutor, nil, "s1")) // filtered out

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 event, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].SessionID != "s1" {
		t.Errorf("session id = %q, want s1", received[0].SessionID)
	}
	if received[0].Type != EventTurnReceived {
		t.Errorf("type = %q, want %q", received[0].Type, EventTurnReceived)
	}
}

func TestBusHistory(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	for i := 0; i < 6; i++ {
		bus.Publish(NewEvent(EventTurnResponded, SourceOrchestrator, map[string]any{"n": i}, "s1"))
	}

	// Wait for dispatch to drain.
	deadline := time.Now().Add(time.Second)
	for len(bus.History(10)) < 4 {
		if time.Now().After(deadline) {
			t.Fatal("history never filled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	history := bus.History(10)
	if len(history) != 4 {
		t.Fatalf("expected ring buffer cap of 4, got %d", len(history))
	}
	// Oldest entries were overwritten.
	if history[0].Payload["n"].(int) != 2 {
		t.Errorf("oldest retained event n = %v, want 2", history[0].Payload["n"])
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(4)
	bus.Close()
	// Must not panic.
	bus.Publish(NewEvent(EventTurnReceived, SourceGateway, nil, ""))
}
