// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package dashboard derives the viewer-facing state. Snapshots and history
// are always recomputed in full from the store, never cached or maintained
// incrementally, so every broadcast reflects committed ground truth.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/models"
	"github.com/bancada/bancada/internal/store"
)

// Aggregator computes dashboard snapshots and order history.
type Aggregator struct {
	store     *store.Store
	threshold int
}

// New creates an aggregator using the dashboard configuration's low-stock
// threshold.
func New(st *store.Store, cfg *config.DashboardConfig) *Aggregator {
	return &Aggregator{store: st, threshold: cfg.LowStockThreshold}
}

// ComputeSnapshot recomputes the full dashboard state: status counts, the
// pending order reference, and per-shape stock with low-stock flags. A piece
// with no stock record counts as quantity zero.
func (a *Aggregator) ComputeSnapshot(ctx context.Context) (*models.DashboardSnapshot, error) {
	counts, err := a.store.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	snapshot := &models.DashboardSnapshot{
		InProgressCount: counts[models.OrderStatusInProgress],
		CompletedCount:  counts[models.OrderStatusCompleted],
		TotalCount:      total,
		StockInfo:       make(map[models.ShapeType]models.StockInfo),
	}

	pending, err := a.store.GetPendingOrder(ctx)
	switch {
	case err == nil:
		snapshot.PendingOrder = &models.PendingOrderRef{
			ID:        pending.ID,
			CreatedAt: pending.CreatedAt.Format(models.HistoryTimeFormat),
		}
	case errors.Is(err, store.ErrOrderNotFound):
		// No pending order is a normal state.
	default:
		return nil, fmt.Errorf("get pending order: %w", err)
	}

	pieces, err := a.store.ListPieces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}
	for _, piece := range pieces {
		quantity, stockErr := a.store.GetStockFor(ctx, piece.ID)
		if stockErr != nil {
			return nil, fmt.Errorf("stock for piece %d: %w", piece.ID, stockErr)
		}
		snapshot.StockInfo[piece.Shape] = models.StockInfo{
			Name:       piece.Name,
			Quantity:   quantity,
			IsLowStock: quantity < a.threshold,
		}
	}

	return snapshot, nil
}

// ComputeHistory returns every order, newest first, with piece ids resolved
// to shapes and display names. Pieces missing from the catalog resolve to
// the unknown placeholders rather than failing the whole listing.
func (a *Aggregator) ComputeHistory(ctx context.Context) ([]models.OrderHistoryEntry, error) {
	orders, err := a.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	pieces, err := a.store.ListPieces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}
	catalog := make(map[int]models.Piece, len(pieces))
	for _, p := range pieces {
		catalog[p.ID] = p
	}

	entries := make([]models.OrderHistoryEntry, 0, len(orders))
	for _, order := range orders {
		entry := models.OrderHistoryEntry{
			ID:        order.ID,
			Status:    order.Status,
			CreatedAt: order.CreatedAt.Format(models.HistoryTimeFormat),
		}
		for _, assembly := range order.Assemblies {
			for _, pieceID := range assembly {
				entry.PieceIDs = append(entry.PieceIDs, pieceID)
				if piece, ok := catalog[pieceID]; ok {
					entry.PieceShapes = append(entry.PieceShapes, piece.Shape)
					entry.PieceNames = append(entry.PieceNames, piece.Name)
				} else {
					entry.PieceShapes = append(entry.PieceShapes, models.ShapeUnknown)
					entry.PieceNames = append(entry.PieceNames, models.UnknownPieceName)
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
