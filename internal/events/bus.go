// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/bancada/bancada/internal/logging"
)

// TopicDashboard is the single shared fan-out topic. All dashboard viewers
// belong to it for the lifetime of their connection.
const TopicDashboard = "dashboard_updates"

// Bus is the in-process pub/sub layer between mutation sites and the
// WebSocket hub. Payloads are fully formed wire messages; the bus never
// inspects them.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus creates an in-memory bus. bufferSize bounds the per-subscriber
// output channel; a zero value makes publishing block on slow subscribers.
func NewBus(bufferSize int) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: int64(bufferSize),
			},
			newWatermillLogger(),
		),
	}
}

// Publish marshals v and publishes it to the dashboard topic.
func (b *Bus) Publish(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(TopicDashboard, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of dashboard messages. The subscription ends
// when ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, TopicDashboard)
}

// Close shuts down the bus and terminates all subscriptions.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// watermillLogger bridges watermill's logging to zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Error().Err(err).Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{fields: l.fields.Add(fields)}
}
