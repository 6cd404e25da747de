// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	toast := NewToast("✅ Pedido #1 criado com sucesso!", ToastSuccess)
	if err := bus.Publish(toast); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		var got Toast
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got.Type != TypeDashboardMessage {
			t.Errorf("got.Type = %q, want %q", got.Type, TypeDashboardMessage)
		}
		if got.MessageType != "show_toast" || got.ToastType != ToastSuccess {
			t.Errorf("unexpected toast: %+v", got)
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

type captureBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *captureBroadcaster) BroadcastRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, data)
}

func (c *captureBroadcaster) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestForwarder_DeliversToHub(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	hub := &captureBroadcaster{}
	fwd, err := NewForwarder(bus, hub)
	if err != nil {
		t.Fatalf("NewForwarder() error = %v", err)
	}

	// Published before Serve starts draining: the subscription is taken at
	// construction time, so nothing published after NewForwarder may be lost.
	update := NewNotificationUpdate(3)
	if err := bus.Publish(update); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fwd.Serve(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for hub.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for forwarded message")
		case <-time.After(10 * time.Millisecond):
		}
	}

	var got NotificationUpdate
	if err := json.Unmarshal(hub.payloads[0], &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want 3", got.UnreadCount)
	}
	if fwd.Forwarded() != 1 {
		t.Errorf("Forwarded() = %d, want 1", fwd.Forwarded())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop on cancel")
	}
}

func TestForwarder_RequiresDependencies(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	if _, err := NewForwarder(nil, &captureBroadcaster{}); err == nil {
		t.Error("NewForwarder(nil bus) should fail")
	}
	if _, err := NewForwarder(bus, nil); err == nil {
		t.Error("NewForwarder(nil hub) should fail")
	}
}

func TestNewHistoryUpdate_EmptyNotNull(t *testing.T) {
	data, err := json.Marshal(NewHistoryUpdate(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["pedidos"] == nil {
		t.Error("pedidos should encode as [] not null")
	}
	if _, ok := decoded["pedidos"].([]any); !ok {
		t.Errorf("pedidos = %T, want array", decoded["pedidos"])
	}
}
