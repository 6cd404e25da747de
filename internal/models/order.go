// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package models

import "time"

// OrderStatus is the named order state enumeration. Historical revisions of
// the system used Portuguese strings and, in places, integer codes with
// inconsistent orderings; this enumeration is the single normalized form.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a member of the status enumeration.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order is a unit of work composed of fixed-size assemblies of piece
// references. Orders advance through a forward-only status lifecycle and are
// never deleted in normal operation.
type Order struct {
	ID int64 `json:"id"`

	// Assemblies holds the ordered piece-id groups. Piece ids must be
	// distinct within one assembly; repetition across assemblies is allowed.
	Assemblies [][]int `json:"pecas"`

	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"data"`
}

// FlatPieceIDs returns the piece ids of all assemblies as one flat list, in
// assembly order.
func (o *Order) FlatPieceIDs() []int {
	var flat []int
	for _, assembly := range o.Assemblies {
		flat = append(flat, assembly...)
	}
	return flat
}
