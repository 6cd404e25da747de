// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package metrics provides Prometheus instrumentation for the sync hub:
// websocket connections and broadcasts, inbound command dispatch, order
// lifecycle activity, notification accounting, and store latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket metrics
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bancada_ws_connected_clients",
			Help: "Current number of connected dashboard clients",
		},
	)

	WSBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bancada_ws_broadcasts_total",
			Help: "Total number of group broadcasts by message type",
		},
		[]string{"message_type"},
	)

	WSDroppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bancada_ws_dropped_messages_total",
			Help: "Messages dropped because a client send buffer was full",
		},
	)

	// Command dispatch metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bancada_commands_total",
			Help: "Inbound websocket commands by type and outcome",
		},
		[]string{"command", "outcome"}, // outcome: "ok", "validation", "conflict", "invalid_transition", "not_found", "internal", "rate_limited"
	)

	// Order lifecycle metrics
	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bancada_orders_created_total",
			Help: "Total number of orders successfully created",
		},
	)

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bancada_order_transitions_total",
			Help: "Order status transitions by target status",
		},
		[]string{"to_status"},
	)

	AdmissionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bancada_admission_conflicts_total",
			Help: "Order creations rejected because a pending order already existed",
		},
	)

	// Notification metrics
	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bancada_notifications_created_total",
			Help: "Total number of notifications created",
		},
	)

	UnreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bancada_unread_notifications",
			Help: "Current unread notification count (recomputed, never incremented)",
		},
	)

	// Store metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bancada_store_op_duration_seconds",
			Help:    "Duration of Badger store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bancada_store_op_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation"},
	)
)

// ObserveStoreOp records the duration of a store operation and counts the
// error if one occurred. Intended for use with defer:
//
//	defer metrics.ObserveStoreOp("create_order", time.Now(), &err)
func ObserveStoreOp(operation string, start time.Time, err *error) {
	StoreOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil && *err != nil {
		StoreOpErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCommand counts an inbound command dispatch outcome.
func RecordCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordBroadcast counts a group broadcast by message type.
func RecordBroadcast(messageType string) {
	WSBroadcastsTotal.WithLabelValues(messageType).Inc()
}
