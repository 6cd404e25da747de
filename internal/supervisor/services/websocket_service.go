// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package services

import (
	"context"
)

// ContextHub interface matches *websocket.Hub's RunWithContext method.
//
// This interface allows the WebSocketHubService to work with the Hub
// without importing the websocket package, avoiding circular dependencies.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService wraps the dashboard WebSocket hub as a supervised
// service.
//
// The hub's RunWithContext method already implements the suture.Service
// pattern, so this wrapper simply delegates to it and provides a name
// for logging.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

// NewWebSocketHubService creates a new WebSocket hub service wrapper.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service. It delegates to hub.RunWithContext,
// which returns ctx.Err() on normal shutdown after closing all clients.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (w *WebSocketHubService) String() string {
	return w.name
}
