// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package events carries dashboard state changes from mutation sites to the
// WebSocket fan-out. Every mutation publishes a fully formed wire message to
// the shared topic; a forwarder subscribes and broadcasts it to all connected
// dashboard clients. REST handlers and WebSocket commands share this one path,
// so every viewer converges on the same state regardless of where a change
// originated.
package events

import (
	"github.com/bancada/bancada/internal/models"
)

// Wire message types understood by the dashboard frontend.
const (
	TypeDashboardUpdate    = "dashboard_update"
	TypeDashboardMessage   = "dashboard_message"
	TypeNotificationUpdate = "notification.update"
	TypeNotificationNew    = "notification.new"
	TypeNotificationsList  = "notifications.list"
	TypeHistoryUpdate      = "historico_update"
)

// Toast severities.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// DashboardUpdate carries a full dashboard snapshot.
type DashboardUpdate struct {
	Type string                   `json:"type"`
	Data models.DashboardSnapshot `json:"data"`
}

// NewDashboardUpdate wraps a snapshot in its wire envelope.
func NewDashboardUpdate(snapshot models.DashboardSnapshot) DashboardUpdate {
	return DashboardUpdate{Type: TypeDashboardUpdate, Data: snapshot}
}

// Toast is a transient user-facing message rendered by every client.
type Toast struct {
	Type         string `json:"type"`
	MessageType  string `json:"message_type"`
	ToastMessage string `json:"toast_message"`
	ToastType    string `json:"toast_type"`
}

// NewToast builds a show_toast message with the given severity.
func NewToast(text, severity string) Toast {
	return Toast{
		Type:         TypeDashboardMessage,
		MessageType:  "show_toast",
		ToastMessage: text,
		ToastType:    severity,
	}
}

// NotificationUpdate carries only the fresh unread count.
type NotificationUpdate struct {
	Type        string `json:"type"`
	UnreadCount int    `json:"unread_count"`
}

// NewNotificationUpdate wraps an unread count in its wire envelope.
func NewNotificationUpdate(unread int) NotificationUpdate {
	return NotificationUpdate{Type: TypeNotificationUpdate, UnreadCount: unread}
}

// NotificationNew announces a freshly created notification together with the
// recomputed unread count.
type NotificationNew struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
	UnreadCount  int                 `json:"unread_count"`
}

// NewNotificationNew wraps a notification in its wire envelope.
func NewNotificationNew(n models.Notification, unread int) NotificationNew {
	return NotificationNew{Type: TypeNotificationNew, Notification: n, UnreadCount: unread}
}

// NotificationsList carries the recent notifications plus the unread count.
type NotificationsList struct {
	Type          string                `json:"type"`
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// NewNotificationsList wraps a notification listing in its wire envelope.
func NewNotificationsList(notifications []models.Notification, unread int) NotificationsList {
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return NotificationsList{Type: TypeNotificationsList, Notifications: notifications, UnreadCount: unread}
}

// HistoryUpdate carries the full order history with resolved piece details.
type HistoryUpdate struct {
	Type   string                     `json:"type"`
	Orders []models.OrderHistoryEntry `json:"pedidos"`
}

// NewHistoryUpdate wraps an order history in its wire envelope.
func NewHistoryUpdate(orders []models.OrderHistoryEntry) HistoryUpdate {
	if orders == nil {
		orders = []models.OrderHistoryEntry{}
	}
	return HistoryUpdate{Type: TypeHistoryUpdate, Orders: orders}
}
