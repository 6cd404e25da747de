// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/bancada/bancada/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: This ensures clients can be sorted in a consistent order for
// broadcast operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub. Each
// client runs one read and one write goroutine for the lifetime of its
// connection; inbound commands are handed to the router.
type Client struct {
	// id is a unique identifier for this client, used for deterministic ordering.
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	router  *Router
	limiter *rate.Limiter
}

// NewClient creates a new Client with a unique deterministic ID. limiter
// bounds inbound command throughput per connection; nil disables limiting.
func NewClient(hub *Hub, conn *websocket.Conn, router *Router, limiter *rate.Limiter) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		router:  router,
		limiter: limiter,
	}
}

// ID returns the client's unique identifier for deterministic ordering
func (c *Client) ID() uint64 {
	return c.id
}

// SendJSON marshals v and queues it for direct delivery to this client
// only. Delivery is best-effort: a full send buffer drops the message.
func (c *Client) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal direct message")
		return
	}
	select {
	case c.send <- data:
	default:
		logging.Warn().Uint64("client_id", c.id).Msg("client send buffer full, dropping direct message")
	}
}

// readPump pumps messages from the websocket connection to the router.
// A failing command never terminates the connection; only read errors do.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.router.onRateLimited(c)
			continue
		}

		c.router.onMessage(ctx, c, raw)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start registers the client with the hub, begins reading and writing, and
// pushes the initial full state so the client needs no delta history.
func (c *Client) Start(ctx context.Context) {
	c.hub.Register <- c
	go c.writePump()
	c.router.onConnect(ctx, c)
	go c.readPump(ctx)
}
