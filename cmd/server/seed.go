// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package main

import (
	"context"
	"fmt"

	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/models"
	"github.com/bancada/bancada/internal/store"
)

// initialStockQuantity is the stock level each piece starts with on a
// fresh database.
const initialStockQuantity = 10

// defaultCatalog is the fixed three-piece catalog the dashboard operates
// on. Piece IDs are stable and referenced by order assemblies.
var defaultCatalog = []models.Piece{
	{ID: 1, Name: "Círculo", Shape: models.ShapeCircle, ColorHex: "#e74c3c"},
	{ID: 2, Name: "Hexágono", Shape: models.ShapeHexagon, ColorHex: "#f1c40f"},
	{ID: 3, Name: "Quadrado", Shape: models.ShapeSquare, ColorHex: "#3498db"},
}

// seedCatalog creates the piece catalog and initial stock on first run.
// On an already-seeded database it does nothing.
func seedCatalog(ctx context.Context, st *store.Store) error {
	existing, err := st.ListPieces(ctx)
	if err != nil {
		return fmt.Errorf("list pieces: %w", err)
	}
	if len(existing) > 0 {
		logging.Info().Int("pieces", len(existing)).Msg("Piece catalog already seeded")
		return nil
	}

	for _, p := range defaultCatalog {
		piece := p
		if err := st.CreatePiece(ctx, &piece); err != nil {
			return fmt.Errorf("create piece %d: %w", piece.ID, err)
		}
		if err := st.SetStock(ctx, piece.ID, initialStockQuantity); err != nil {
			return fmt.Errorf("set stock for piece %d: %w", piece.ID, err)
		}
	}
	logging.Info().
		Int("pieces", len(defaultCatalog)).
		Int("quantity", initialStockQuantity).
		Msg("Piece catalog seeded")
	return nil
}
