// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub is the connection registry for the dashboard group. It tracks live
// clients and fans messages out to every member. Delivery is best-effort:
// no acknowledgment, no retry, no queuing for disconnected members.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext starts the hub with context support for graceful shutdown.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected clients are gracefully closed
//  2. The method returns ctx.Err()
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast messages
//
// A registration that completes before a broadcast call is guaranteed to
// receive that broadcast; registrations racing a broadcast may miss it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: Handle broadcast messages or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnectedClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnectedClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all connected clients and logs structured
// shutdown information. ctx.Err() is NOT logged as an error because context
// cancellation is expected behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()
	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// broadcastToClients sends a message to all connected clients in a
// deterministic order.
// DETERMINISM: Sorts clients by ID so delivery order is reproducible.
func (h *Hub) broadcastToClients(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	// Track clients to remove (can't modify map during iteration)
	var toRemove []*Client

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Channel full or closed, mark for removal
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSDroppedMessages.Inc()
	}
	metrics.WSConnectedClients.Set(float64(len(h.clients)))
}

// closeAllClients gracefully closes all connected WebSocket clients.
// DETERMINISM: Closes clients in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnectedClients.Set(0)
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// BroadcastRaw fans raw JSON bytes out to every connected client. This is
// the path the event forwarder uses; payloads are fully formed wire
// messages and pass through untouched.
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
		metrics.RecordBroadcast(peekMessageType(data))
	default:
		metrics.WSDroppedMessages.Inc()
		logging.Warn().Msg("broadcast channel full, dropping raw message")
	}
}

// BroadcastJSON marshals v and fans it out to every connected client.
func (h *Hub) BroadcastJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal broadcast message")
		return
	}
	h.BroadcastRaw(data)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// peekMessageType extracts the envelope type for metrics without decoding
// the full payload.
func peekMessageType(data []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
		return "unknown"
	}
	return envelope.Type
}
