// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package models defines the domain records and the wire payloads exchanged
// with dashboard clients.
package models

// ShapeType identifies the geometric form of a catalog piece. The values are
// wire-visible and kept in the vocabulary the dashboard frontend renders.
type ShapeType string

const (
	ShapeCircle  ShapeType = "circulo"
	ShapeHexagon ShapeType = "hexagono"
	ShapeSquare  ShapeType = "quadrado"

	// ShapeUnknown is resolved for piece ids that no longer exist in the
	// catalog when rendering order history.
	ShapeUnknown ShapeType = "unknown"
)

// Valid reports whether s is a member of the closed shape enumeration.
func (s ShapeType) Valid() bool {
	switch s {
	case ShapeCircle, ShapeHexagon, ShapeSquare:
		return true
	default:
		return false
	}
}

// Piece is an immutable catalog entry for an interchangeable component.
// Pieces are created once at setup time with externally assigned ids;
// name and shape type are unique across the catalog.
type Piece struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Shape    ShapeType `json:"tipo"`
	ColorHex string    `json:"color_hex"`
}

// UnknownPieceName is resolved for piece ids missing from the catalog,
// matching what history rendering has always shown.
const UnknownPieceName = "Peça Desconhecida"
