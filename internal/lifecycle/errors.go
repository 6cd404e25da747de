// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package lifecycle

import (
	"errors"
	"fmt"

	"github.com/bancada/bancada/internal/models"
)

// ErrInvalidTransition is returned when an advance or cancel is requested
// from a state that does not permit it. The order is left unchanged.
var ErrInvalidTransition = errors.New("invalid order status transition")

// ValidationError reports which order-creation check failed. Nothing is
// committed when validation fails.
type ValidationError struct {
	// Assembly is the 1-based assembly index the failure refers to,
	// or 0 when the failure is not tied to one assembly.
	Assembly int
	Reason   string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InvalidTransitionError wraps ErrInvalidTransition with the states involved.
type InvalidTransitionError struct {
	OrderID int64
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
