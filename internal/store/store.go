// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package store provides durable CRUD for pieces, stock, orders, and
// notifications on BadgerDB.
//
// Badger's serializable transactions supply the one atomic primitive the
// system depends on: CreateOrderIfNoPending checks the pending-order marker
// and inserts the new order in a single transaction, so two concurrent
// creations can never both observe "no pending order" and both commit.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/logging"
)

// Sentinel errors returned by store operations.
var (
	ErrPieceNotFound        = errors.New("piece not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrPendingOrderExists is the admission-control rejection: an order is
	// already in the pending state.
	ErrPendingOrderExists = errors.New("a pending order already exists")
)

// Key prefixes for BadgerDB storage. Order records use a zero-padded
// sequence so prefix iteration yields creation order; bookkeeping keys live
// under a separate prefix to keep record scans clean.
const (
	pieceKeyPrefix        = "piece:"
	stockKeyPrefix        = "stock:"
	orderKeyPrefix        = "order:"
	notificationKeyPrefix = "notification:"

	orderSeqKey     = "meta:order_seq"
	pendingOrderKey = "meta:pending_order"
)

// Store is the durable record store backing the dashboard.
type Store struct {
	db *badger.DB
}

// New opens (or creates) the Badger database described by cfg.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open Badger database. Used by tests.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}
