// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package models

// StockInfo is the per-shape stock entry of a dashboard snapshot.
type StockInfo struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	IsLowStock bool   `json:"is_low_stock"`
}

// PendingOrderRef identifies the single order currently admitted in the
// pending state, if any.
type PendingOrderRef struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"data"`
}

// DashboardSnapshot is the full, freshly recomputed dashboard state. It is
// derived on demand and never persisted or incrementally cached; every field
// is recomputed from the store on each request.
type DashboardSnapshot struct {
	InProgressCount int                     `json:"em_andamento_count"`
	CompletedCount  int                     `json:"concluido_count"`
	TotalCount      int                     `json:"total_count"`
	PendingOrder    *PendingOrderRef        `json:"pending_order"`
	StockInfo       map[ShapeType]StockInfo `json:"stock_info"`
}

// OrderHistoryEntry is one row of the historico_update payload: an order with
// its piece references resolved to names and shapes for display.
type OrderHistoryEntry struct {
	ID          int64       `json:"id"`
	Status      OrderStatus `json:"status"`
	PieceIDs    []int       `json:"pecas_list_ids"`
	PieceShapes []ShapeType `json:"pecas_list_shapes"`
	PieceNames  []string    `json:"pecas_list_names"`
	CreatedAt   string      `json:"data"`
}

// HistoryTimeFormat renders order timestamps the way the dashboard history
// has always displayed them.
const HistoryTimeFormat = "02/01/2006 15:04"
