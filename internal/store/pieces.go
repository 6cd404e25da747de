// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/bancada/bancada/internal/metrics"
	"github.com/bancada/bancada/internal/models"
)

func pieceKey(id int) []byte {
	return []byte(pieceKeyPrefix + strconv.Itoa(id))
}

func stockKey(pieceID int) []byte {
	return []byte(stockKeyPrefix + strconv.Itoa(pieceID))
}

// CreatePiece stores a catalog piece. Name and shape uniqueness are checked
// against the existing catalog; creating a piece whose id already exists
// with identical fields is a no-op, which keeps startup seeding idempotent.
func (s *Store) CreatePiece(ctx context.Context, piece *models.Piece) (err error) {
	defer metrics.ObserveStoreOp("create_piece", time.Now(), &err)

	data, err := json.Marshal(piece)
	if err != nil {
		return fmt.Errorf("marshal piece: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if item, getErr := txn.Get(pieceKey(piece.ID)); getErr == nil {
			return item.Value(func(val []byte) error {
				var existing models.Piece
				if uErr := json.Unmarshal(val, &existing); uErr != nil {
					return fmt.Errorf("unmarshal existing piece: %w", uErr)
				}
				if existing == *piece {
					return nil
				}
				return fmt.Errorf("piece id %d already exists with different fields", piece.ID)
			})
		} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("check piece %d: %w", piece.ID, getErr)
		}

		// Uniqueness of name and shape across the catalog.
		existing, listErr := listPiecesTxn(txn)
		if listErr != nil {
			return listErr
		}
		for _, p := range existing {
			if p.Name == piece.Name {
				return fmt.Errorf("piece name %q already in use by id %d", piece.Name, p.ID)
			}
			if p.Shape == piece.Shape {
				return fmt.Errorf("shape %q already in use by id %d", piece.Shape, p.ID)
			}
		}

		return txn.Set(pieceKey(piece.ID), data)
	})
	return err
}

// GetPiece retrieves a catalog piece by id.
func (s *Store) GetPiece(ctx context.Context, id int) (piece *models.Piece, err error) {
	defer metrics.ObserveStoreOp("get_piece", time.Now(), &err)

	var p models.Piece
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(pieceKey(id))
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return ErrPieceNotFound
		}
		if getErr != nil {
			return fmt.Errorf("get piece %d: %w", id, getErr)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPieces returns the full piece catalog ordered by id.
func (s *Store) ListPieces(ctx context.Context) (pieces []models.Piece, err error) {
	defer metrics.ObserveStoreOp("list_pieces", time.Now(), &err)

	err = s.db.View(func(txn *badger.Txn) error {
		pieces, err = listPiecesTxn(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pieces, nil
}

func listPiecesTxn(txn *badger.Txn) ([]models.Piece, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var pieces []models.Piece
	prefix := []byte(pieceKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var p models.Piece
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
		if err != nil {
			return nil, fmt.Errorf("unmarshal piece: %w", err)
		}
		pieces = append(pieces, p)
	}

	// Keys are string-sorted; sort numerically by id for a stable catalog.
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].ID < pieces[j].ID })
	return pieces, nil
}

// SetStock records the stock quantity for a piece.
func (s *Store) SetStock(ctx context.Context, pieceID, quantity int) (err error) {
	defer metrics.ObserveStoreOp("set_stock", time.Now(), &err)

	return s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(pieceKey(pieceID)); errors.Is(getErr, badger.ErrKeyNotFound) {
			return ErrPieceNotFound
		} else if getErr != nil {
			return fmt.Errorf("check piece %d: %w", pieceID, getErr)
		}
		return txn.Set(stockKey(pieceID), []byte(strconv.Itoa(quantity)))
	})
}

// GetStockFor returns the stock quantity for a piece. A piece with no stock
// record is treated as quantity zero.
func (s *Store) GetStockFor(ctx context.Context, pieceID int) (quantity int, err error) {
	defer metrics.ObserveStoreOp("get_stock", time.Now(), &err)

	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(stockKey(pieceID))
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			quantity = 0
			return nil
		}
		if getErr != nil {
			return fmt.Errorf("get stock for piece %d: %w", pieceID, getErr)
		}
		return item.Value(func(val []byte) error {
			q, convErr := strconv.Atoi(string(val))
			if convErr != nil {
				return fmt.Errorf("corrupt stock record for piece %d: %w", pieceID, convErr)
			}
			quantity = q
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return quantity, nil
}
