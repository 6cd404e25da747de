// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package models

import "time"

// Notification is an operational message surfaced in the dashboard bell.
// The read flag is the only mutable field; notifications are never
// auto-deleted. JSON field names match what the frontend renders.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"titulo"`
	Message   string    `json:"mensagem"`
	Kind      string    `json:"tipo"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"lida"`
	CreatedAt time.Time `json:"data_criacao"`
}

// Notification kinds emitted by the order lifecycle. Kind is a free-form
// classification tag; these are the values the system itself produces.
const (
	NotificationKindOrderCreated = "order_created"
	NotificationKindOrderStatus  = "order_status"
)
