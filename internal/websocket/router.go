// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package websocket

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/dashboard"
	"github.com/bancada/bancada/internal/events"
	"github.com/bancada/bancada/internal/lifecycle"
	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/metrics"
	"github.com/bancada/bancada/internal/notify"
	"github.com/bancada/bancada/internal/store"
)

// Client -> server command types.
const (
	CommandCreateOrder          = "create_order"
	CommandProcessPendingOrder  = "process_pending_order"
	CommandCancelOrder          = "cancel_order"
	CommandMarkNotificationRead = "mark_notification_read"
	CommandMarkAllRead          = "mark_all_notifications_read"
	CommandFetchNotifications   = "fetch_notifications"
	CommandFetchUnreadCount     = "fetch_unread_count"
	CommandPing                 = "ping"
)

// Router turns inbound client envelopes into state mutations and pushes the
// initial full state on connect. All errors are recovered here: a failing
// command is answered with a toast and never terminates the connection.
type Router struct {
	lifecycle  *lifecycle.Manager
	notifier   *notify.Center
	aggregator *dashboard.Aggregator
	bus        *events.Bus
	cfg        config.DashboardConfig
}

// NewRouter creates a message router.
func NewRouter(lc *lifecycle.Manager, notifier *notify.Center, agg *dashboard.Aggregator, bus *events.Bus, cfg config.DashboardConfig) *Router {
	return &Router{
		lifecycle:  lc,
		notifier:   notifier,
		aggregator: agg,
		bus:        bus,
		cfg:        cfg,
	}
}

// onConnect pushes the full dashboard snapshot, the notification summary,
// and the complete order history directly to the new client. The protocol
// is self-healing: a reconnecting client needs no delta history, only this
// full state.
func (r *Router) onConnect(ctx context.Context, c *Client) {
	snapshot, err := r.aggregator.ComputeSnapshot(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("failed to compute initial snapshot")
		c.SendJSON(events.NewToast("❌ Erro ao carregar o dashboard. Recarregue a página.", events.ToastError))
	} else {
		c.SendJSON(events.NewDashboardUpdate(*snapshot))
	}

	notifications, unread, err := r.notifier.List(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("failed to list initial notifications")
	} else {
		c.SendJSON(events.NewNotificationsList(notifications, unread))
	}

	history, err := r.aggregator.ComputeHistory(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("failed to compute initial history")
	} else {
		c.SendJSON(events.NewHistoryUpdate(history))
	}
}

// onMessage parses an inbound envelope and dispatches on its type. Unknown
// types are logged and ignored, never fatal.
func (r *Router) onMessage(ctx context.Context, c *Client, raw []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logging.Warn().Err(err).Msg("discarding malformed websocket message")
		return
	}

	switch envelope.Type {
	case CommandCreateOrder:
		r.handleCreateOrder(ctx, c, raw)
	case CommandProcessPendingOrder:
		r.handleProcessPending(ctx, c, raw)
	case CommandCancelOrder:
		r.handleCancelOrder(ctx, c, raw)
	case CommandMarkNotificationRead:
		r.handleMarkRead(ctx, c, raw)
	case CommandMarkAllRead:
		r.handleMarkAllRead(ctx, c)
	case CommandFetchNotifications:
		r.handleFetchNotifications(ctx, c)
	case CommandFetchUnreadCount:
		r.handleFetchUnreadCount(ctx, c)
	case CommandPing:
		c.SendJSON(map[string]string{"type": "pong"})
	default:
		logging.Debug().Str("type", envelope.Type).Msg("ignoring unknown websocket message type")
	}
}

func (r *Router) onRateLimited(c *Client) {
	metrics.RecordCommand("any", "rate_limited")
	c.SendJSON(events.NewToast("Muitos comandos em sequência. Aguarde um momento.", events.ToastError))
}

func (r *Router) handleCreateOrder(ctx context.Context, c *Client, raw []byte) {
	assemblies, err := ParseOrderPayload(r.cfg, raw)
	if err != nil {
		metrics.RecordCommand(CommandCreateOrder, "validation")
		c.SendJSON(events.NewToast(err.Error(), events.ToastError))
		return
	}

	if _, err := r.lifecycle.Create(ctx, assemblies); err != nil {
		r.reportError(c, CommandCreateOrder, err)
		return
	}
	metrics.RecordCommand(CommandCreateOrder, "ok")
}

func (r *Router) handleProcessPending(ctx context.Context, c *Client, raw []byte) {
	orderID, ok, err := parseOrderID(raw)
	if err != nil {
		metrics.RecordCommand(CommandProcessPendingOrder, "validation")
		c.SendJSON(events.NewToast(err.Error(), events.ToastError))
		return
	}
	if !ok {
		// No explicit id: advance the current pending order.
		pending, pErr := r.lifecycle.Pending(ctx)
		if pErr != nil {
			r.reportError(c, CommandProcessPendingOrder, pErr)
			return
		}
		orderID = pending.ID
	}

	if _, err := r.lifecycle.Advance(ctx, orderID); err != nil {
		r.reportError(c, CommandProcessPendingOrder, err)
		return
	}
	metrics.RecordCommand(CommandProcessPendingOrder, "ok")
}

func (r *Router) handleCancelOrder(ctx context.Context, c *Client, raw []byte) {
	orderID, ok, err := parseOrderID(raw)
	if err != nil || !ok {
		metrics.RecordCommand(CommandCancelOrder, "validation")
		c.SendJSON(events.NewToast("Pedido não informado.", events.ToastError))
		return
	}

	if _, err := r.lifecycle.Cancel(ctx, orderID); err != nil {
		r.reportError(c, CommandCancelOrder, err)
		return
	}
	metrics.RecordCommand(CommandCancelOrder, "ok")
}

func (r *Router) handleMarkRead(ctx context.Context, c *Client, raw []byte) {
	var payload struct {
		NotificationID string `json:"notification_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.NotificationID == "" {
		metrics.RecordCommand(CommandMarkNotificationRead, "validation")
		c.SendJSON(events.NewToast("Notificação não informada.", events.ToastError))
		return
	}

	if _, err := r.notifier.MarkRead(ctx, payload.NotificationID); err != nil {
		r.reportError(c, CommandMarkNotificationRead, err)
		return
	}
	metrics.RecordCommand(CommandMarkNotificationRead, "ok")
}

func (r *Router) handleMarkAllRead(ctx context.Context, c *Client) {
	if _, err := r.notifier.MarkAllRead(ctx); err != nil {
		r.reportError(c, CommandMarkAllRead, err)
		return
	}
	metrics.RecordCommand(CommandMarkAllRead, "ok")
}

func (r *Router) handleFetchNotifications(ctx context.Context, c *Client) {
	notifications, unread, err := r.notifier.List(ctx)
	if err != nil {
		r.reportError(c, CommandFetchNotifications, err)
		return
	}
	metrics.RecordCommand(CommandFetchNotifications, "ok")
	c.SendJSON(events.NewNotificationsList(notifications, unread))
}

func (r *Router) handleFetchUnreadCount(ctx context.Context, c *Client) {
	unread, err := r.notifier.UnreadCount(ctx)
	if err != nil {
		r.reportError(c, CommandFetchUnreadCount, err)
		return
	}
	metrics.RecordCommand(CommandFetchUnreadCount, "ok")
	c.SendJSON(events.NewNotificationUpdate(unread))
}

// reportError maps a failed command to its toast and metric outcome.
// Expected failures go only to the requester; unexpected ones are logged
// with context and announced group-wide without detail.
func (r *Router) reportError(c *Client, command string, err error) {
	var vErr *lifecycle.ValidationError
	switch {
	case errors.As(err, &vErr):
		metrics.RecordCommand(command, "validation")
		c.SendJSON(events.NewToast(vErr.Reason, events.ToastError))

	case errors.Is(err, store.ErrPendingOrderExists):
		metrics.RecordCommand(command, "conflict")
		c.SendJSON(events.NewToast("Já existe um pedido pendente. Aguarde o processamento.", events.ToastError))

	case errors.Is(err, lifecycle.ErrInvalidTransition):
		metrics.RecordCommand(command, "invalid_transition")
		c.SendJSON(events.NewToast("O pedido não pode mudar para esse status.", events.ToastError))

	case errors.Is(err, store.ErrOrderNotFound):
		metrics.RecordCommand(command, "not_found")
		c.SendJSON(events.NewToast("Pedido não encontrado.", events.ToastError))

	case errors.Is(err, store.ErrNotificationNotFound):
		metrics.RecordCommand(command, "not_found")
		c.SendJSON(events.NewToast("Notificação não encontrada.", events.ToastError))

	default:
		metrics.RecordCommand(command, "internal")
		logging.Error().Err(err).Str("command", command).Msg("command failed")
		r.publishGeneric()
	}
}

func (r *Router) publishGeneric() {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(events.NewToast("❌ Erro interno. Tente novamente.", events.ToastError)); err != nil {
		logging.Error().Err(err).Msg("failed to publish generic error toast")
	}
}

// ParseOrderPayload accepts both payload conventions: a "pecas" matrix, or
// the flat peca1..pecaN fields the order form has always submitted. Field
// values may be JSON numbers or strings. The REST order endpoint shares
// this parser so both transports accept identical bodies.
func ParseOrderPayload(cfg config.DashboardConfig, raw []byte) ([][]int, error) {
	var matrixPayload struct {
		Assemblies [][]json.Number `json:"pecas"`
	}
	if err := json.Unmarshal(raw, &matrixPayload); err == nil && len(matrixPayload.Assemblies) > 0 {
		assemblies := make([][]int, 0, len(matrixPayload.Assemblies))
		for _, row := range matrixPayload.Assemblies {
			ids := make([]int, 0, len(row))
			for _, n := range row {
				id, convErr := strconv.Atoi(n.String())
				if convErr != nil {
					return nil, fmt.Errorf("ID de peça inválido: %q. Deve ser um número.", n.String())
				}
				ids = append(ids, id)
			}
			assemblies = append(assemblies, ids)
		}
		return assemblies, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("Corpo da mensagem JSON inválido.")
	}

	slots := cfg.SlotCount()
	flat := make([]int, 0, slots)
	for i := 1; i <= slots; i++ {
		value, present := fields[fmt.Sprintf("peca%d", i)]
		if !present {
			return nil, fmt.Errorf("Peça %d não fornecida.", i)
		}
		id, convErr := parseFlexibleInt(value)
		if convErr != nil {
			return nil, fmt.Errorf("ID de peça inválido: %s. Deve ser um número.", string(value))
		}
		flat = append(flat, id)
	}

	assemblies := make([][]int, 0, cfg.AssemblyCount)
	for i := 0; i < slots; i += cfg.AssemblySize {
		assemblies = append(assemblies, flat[i:i+cfg.AssemblySize])
	}
	return assemblies, nil
}

// parseOrderID reads an order_id that may be a JSON number or string. ok is
// false when the field is absent.
func parseOrderID(raw []byte) (int64, bool, error) {
	var payload struct {
		OrderID json.RawMessage `json:"order_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, false, fmt.Errorf("Corpo da mensagem JSON inválido.")
	}
	if len(payload.OrderID) == 0 {
		return 0, false, nil
	}
	id, err := parseFlexibleInt64(payload.OrderID)
	if err != nil {
		return 0, false, fmt.Errorf("ID de pedido inválido: %s.", string(payload.OrderID))
	}
	return id, true, nil
}

func parseFlexibleInt(raw json.RawMessage) (int, error) {
	id, err := parseFlexibleInt64(raw)
	return int(id), err
}

func parseFlexibleInt64(raw json.RawMessage) (int64, error) {
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, err
	}
	return strconv.ParseInt(asString, 10, 64)
}
