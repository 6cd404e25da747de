// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package events

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bancada/bancada/internal/logging"
)

// Broadcaster fans raw JSON out to every connected dashboard client.
// This keeps the forwarder decoupled from the hub implementation.
type Broadcaster interface {
	BroadcastRaw(data []byte)
}

// Forwarder drains the dashboard topic and hands every message to the hub.
// It runs under the supervision tree; Serve blocks until ctx is cancelled
// or the bus closes.
type Forwarder struct {
	hub      Broadcaster
	messages <-chan *message.Message

	messagesForwarded atomic.Int64
}

// NewForwarder creates a forwarder between bus and hub. The subscription is
// taken here, not in Serve: the gochannel transport drops messages published
// while no subscriber exists, so the subscription must be live before any
// mutation site can publish. Messages published before Serve starts draining
// are buffered by the bus.
func NewForwarder(bus *Bus, hub Broadcaster) (*Forwarder, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	messages, err := bus.Subscribe(context.Background())
	if err != nil {
		return nil, fmt.Errorf("subscribe dashboard topic: %w", err)
	}
	return &Forwarder{hub: hub, messages: messages}, nil
}

// Serve consumes the dashboard topic until ctx is cancelled. Broadcast never
// fails from the forwarder's perspective: delivery to slow clients is the
// hub's problem, so every message is acked immediately.
func (f *Forwarder) Serve(ctx context.Context) error {
	logging.Info().Msg("Event forwarder started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-f.messages:
			if !ok {
				logging.Info().Msg("Event forwarder stopped: bus closed")
				return nil
			}
			f.hub.BroadcastRaw(msg.Payload)
			f.messagesForwarded.Add(1)
			msg.Ack()
		}
	}
}

// Forwarded reports how many messages have been handed to the hub.
func (f *Forwarder) Forwarded() int64 {
	return f.messagesForwarded.Load()
}

func (f *Forwarder) String() string {
	return "event-forwarder"
}
