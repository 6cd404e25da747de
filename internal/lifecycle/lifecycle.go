// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package lifecycle drives orders through their status state machine and
// enforces the single-pending-order admission rule. All transitions are
// client-triggered and forward-only.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/dashboard"
	"github.com/bancada/bancada/internal/events"
	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/metrics"
	"github.com/bancada/bancada/internal/models"
	"github.com/bancada/bancada/internal/notify"
	"github.com/bancada/bancada/internal/store"
)

// Manager validates order creation and drives status transitions. Every
// successful mutation emits a notification and republishes the recomputed
// dashboard state to all viewers.
type Manager struct {
	store      *store.Store
	notifier   *notify.Center
	aggregator *dashboard.Aggregator
	bus        *events.Bus
	cfg        config.DashboardConfig
}

// New creates a lifecycle manager.
func New(st *store.Store, notifier *notify.Center, agg *dashboard.Aggregator, bus *events.Bus, cfg config.DashboardConfig) *Manager {
	return &Manager{
		store:      st,
		notifier:   notifier,
		aggregator: agg,
		bus:        bus,
		cfg:        cfg,
	}
}

// Create validates the assemblies and admits a new pending order. The
// no-existing-pending check and the insert are one atomic store operation;
// a concurrent winner surfaces as store.ErrPendingOrderExists. On success a
// notification is created and the snapshot, history, and a success toast
// are broadcast to every viewer.
func (m *Manager) Create(ctx context.Context, assemblies [][]int) (*models.Order, error) {
	if err := m.validate(ctx, assemblies); err != nil {
		return nil, err
	}

	order, err := m.store.CreateOrderIfNoPending(ctx, assemblies)
	if err != nil {
		if errors.Is(err, store.ErrPendingOrderExists) {
			metrics.AdmissionConflicts.Inc()
		}
		return nil, err
	}
	metrics.OrdersCreated.Inc()
	logging.Info().Int64("order_id", order.ID).Msg("Order created")

	if m.notifier != nil {
		_, _, nErr := m.notifier.Create(ctx,
			"Novo Pedido",
			fmt.Sprintf("Pedido #%d criado", order.ID),
			models.NotificationKindOrderCreated,
			"/pedidos/historico",
		)
		if nErr != nil {
			logging.Error().Err(nErr).Int64("order_id", order.ID).Msg("Failed to create order notification")
		}
	}

	m.publishState(ctx)
	m.publish(events.NewToast(fmt.Sprintf("✅ Pedido #%d criado com sucesso!", order.ID), events.ToastSuccess))
	return order, nil
}

// Pending returns the order currently holding the admission slot, or
// store.ErrOrderNotFound when none does.
func (m *Manager) Pending(ctx context.Context) (*models.Order, error) {
	return m.store.GetPendingOrder(ctx)
}

// Advance moves an order one step forward: pending to in_progress, or
// in_progress to completed. Terminal states reject the transition and
// leave the order unchanged.
func (m *Manager) Advance(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var next models.OrderStatus
	switch order.Status {
	case models.OrderStatusPending:
		next = models.OrderStatusInProgress
	case models.OrderStatusInProgress:
		next = models.OrderStatusCompleted
	default:
		return nil, &InvalidTransitionError{OrderID: orderID, From: order.Status, To: ""}
	}

	return m.transition(ctx, order, next)
}

// Cancel moves an order to cancelled. Only pending and in_progress orders
// may be cancelled.
func (m *Manager) Cancel(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusPending, models.OrderStatusInProgress:
	default:
		return nil, &InvalidTransitionError{OrderID: orderID, From: order.Status, To: models.OrderStatusCancelled}
	}

	return m.transition(ctx, order, models.OrderStatusCancelled)
}

func (m *Manager) transition(ctx context.Context, order *models.Order, next models.OrderStatus) (*models.Order, error) {
	updated, err := m.store.UpdateOrderStatus(ctx, order.ID, next)
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(next)).Inc()
	logging.Info().
		Int64("order_id", updated.ID).
		Str("from", string(order.Status)).
		Str("to", string(next)).
		Msg("Order status updated")

	if m.notifier != nil {
		_, _, nErr := m.notifier.Create(ctx,
			"Status Atualizado",
			fmt.Sprintf("Pedido #%d agora está %s", updated.ID, statusLabel(next)),
			models.NotificationKindOrderStatus,
			"/pedidos/historico",
		)
		if nErr != nil {
			logging.Error().Err(nErr).Int64("order_id", updated.ID).Msg("Failed to create status notification")
		}
	}

	m.publishState(ctx)
	return updated, nil
}

// validate runs every creation check before any store mutation: total slot
// count, per-assembly size, piece existence, and no duplicate piece within
// one assembly. Duplicates across different assemblies are allowed.
func (m *Manager) validate(ctx context.Context, assemblies [][]int) error {
	if len(assemblies) != m.cfg.AssemblyCount {
		return &ValidationError{
			Reason: fmt.Sprintf("Pedido deve ter %d montagens, recebeu %d", m.cfg.AssemblyCount, len(assemblies)),
		}
	}

	for idx, assembly := range assemblies {
		assemblyNo := idx + 1
		if len(assembly) != m.cfg.AssemblySize {
			return &ValidationError{
				Assembly: assemblyNo,
				Reason: fmt.Sprintf("Montagem %d deve ter %d peças, recebeu %d",
					assemblyNo, m.cfg.AssemblySize, len(assembly)),
			}
		}

		seen := make(map[int]struct{}, len(assembly))
		for _, pieceID := range assembly {
			if _, dup := seen[pieceID]; dup {
				return &ValidationError{
					Assembly: assemblyNo,
					Reason:   fmt.Sprintf("Peças repetidas na montagem %d. Cada montagem deve ter peças únicas.", assemblyNo),
				}
			}
			seen[pieceID] = struct{}{}

			if _, err := m.store.GetPiece(ctx, pieceID); err != nil {
				if errors.Is(err, store.ErrPieceNotFound) {
					return &ValidationError{
						Assembly: assemblyNo,
						Reason:   fmt.Sprintf("Peça com ID \"%d\" não encontrada na definição de peças.", pieceID),
					}
				}
				return fmt.Errorf("check piece %d: %w", pieceID, err)
			}
		}
	}
	return nil
}

// publishState broadcasts a fresh snapshot and history after a committed
// mutation. Broadcast failures are logged, never propagated: the client
// recovers by reconnecting for a full snapshot.
func (m *Manager) publishState(ctx context.Context) {
	if m.aggregator == nil || m.bus == nil {
		return
	}

	snapshot, err := m.aggregator.ComputeSnapshot(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to recompute dashboard snapshot")
	} else {
		m.publish(events.NewDashboardUpdate(*snapshot))
	}

	history, err := m.aggregator.ComputeHistory(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to recompute order history")
	} else {
		m.publish(events.NewHistoryUpdate(history))
	}
}

func (m *Manager) publish(v any) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(v); err != nil {
		logging.Error().Err(err).Msg("Failed to publish dashboard event")
	}
}

func statusLabel(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusPending:
		return "pendente"
	case models.OrderStatusInProgress:
		return "em andamento"
	case models.OrderStatusCompleted:
		return "concluído"
	case models.OrderStatusCancelled:
		return "cancelado"
	default:
		return string(status)
	}
}
