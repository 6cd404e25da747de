// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/bancada/bancada/internal/metrics"
	"github.com/bancada/bancada/internal/models"
)

func orderKey(id int64) []byte {
	// Zero-padded so lexicographic key order matches creation order.
	return []byte(fmt.Sprintf("%s%020d", orderKeyPrefix, id))
}

// CreateOrderIfNoPending persists a new order with status pending, but only
// if no pending order currently exists. The existence check and the insert
// run in a single serializable transaction, so two concurrent callers can
// never both succeed: the loser observes either the pending marker or a
// transaction conflict, and both map to ErrPendingOrderExists.
func (s *Store) CreateOrderIfNoPending(ctx context.Context, assemblies [][]int) (order *models.Order, err error) {
	defer metrics.ObserveStoreOp("create_order", time.Now(), &err)

	var created models.Order
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get([]byte(pendingOrderKey)); getErr == nil {
			return ErrPendingOrderExists
		} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("check pending marker: %w", getErr)
		}

		id, seqErr := nextOrderID(txn)
		if seqErr != nil {
			return seqErr
		}

		created = models.Order{
			ID:         id,
			Assemblies: assemblies,
			Status:     models.OrderStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		data, mErr := json.Marshal(&created)
		if mErr != nil {
			return fmt.Errorf("marshal order: %w", mErr)
		}
		if setErr := txn.Set(orderKey(id), data); setErr != nil {
			return setErr
		}
		return txn.Set([]byte(pendingOrderKey), []byte(strconv.FormatInt(id, 10)))
	})
	if errors.Is(err, badger.ErrConflict) {
		err = ErrPendingOrderExists
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func nextOrderID(txn *badger.Txn) (int64, error) {
	var next int64 = 1
	item, err := txn.Get([]byte(orderSeqKey))
	if err == nil {
		vErr := item.Value(func(val []byte) error {
			cur, pErr := strconv.ParseInt(string(val), 10, 64)
			if pErr != nil {
				return fmt.Errorf("corrupt order sequence: %w", pErr)
			}
			next = cur + 1
			return nil
		})
		if vErr != nil {
			return 0, vErr
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("read order sequence: %w", err)
	}
	if err := txn.Set([]byte(orderSeqKey), []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// GetOrder retrieves an order by id.
func (s *Store) GetOrder(ctx context.Context, id int64) (order *models.Order, err error) {
	defer metrics.ObserveStoreOp("get_order", time.Now(), &err)

	var o models.Order
	err = s.db.View(func(txn *badger.Txn) error {
		return getOrderTxn(txn, id, &o)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func getOrderTxn(txn *badger.Txn, id int64, out *models.Order) error {
	item, err := txn.Get(orderKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("get order %d: %w", id, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// GetPendingOrder returns the current pending order, or ErrOrderNotFound
// when none exists.
func (s *Store) GetPendingOrder(ctx context.Context) (order *models.Order, err error) {
	defer metrics.ObserveStoreOp("get_pending_order", time.Now(), &err)

	var o models.Order
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(pendingOrderKey))
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return ErrOrderNotFound
		}
		if getErr != nil {
			return fmt.Errorf("read pending marker: %w", getErr)
		}
		var id int64
		if vErr := item.Value(func(val []byte) error {
			parsed, pErr := strconv.ParseInt(string(val), 10, 64)
			if pErr != nil {
				return fmt.Errorf("corrupt pending marker: %w", pErr)
			}
			id = parsed
			return nil
		}); vErr != nil {
			return vErr
		}
		return getOrderTxn(txn, id, &o)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns all orders, newest first.
func (s *Store) ListOrders(ctx context.Context) (orders []models.Order, err error) {
	defer metrics.ObserveStoreOp("list_orders", time.Now(), &err)

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last possible key under the prefix.
		seek := append([]byte(orderKeyPrefix), 0xff)
		prefix := []byte(orderKeyPrefix)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var o models.Order
			if vErr := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &o)
			}); vErr != nil {
				return fmt.Errorf("unmarshal order: %w", vErr)
			}
			orders = append(orders, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus sets a new status on an order. Moving an order out of
// pending clears the pending marker in the same transaction, so the next
// creation attempt sees a free slot atomically.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (order *models.Order, err error) {
	defer metrics.ObserveStoreOp("update_order_status", time.Now(), &err)

	var o models.Order
	err = s.db.Update(func(txn *badger.Txn) error {
		if getErr := getOrderTxn(txn, id, &o); getErr != nil {
			return getErr
		}
		wasPending := o.Status == models.OrderStatusPending
		o.Status = status

		data, mErr := json.Marshal(&o)
		if mErr != nil {
			return fmt.Errorf("marshal order: %w", mErr)
		}
		if setErr := txn.Set(orderKey(id), data); setErr != nil {
			return setErr
		}
		if wasPending && status != models.OrderStatusPending {
			if delErr := txn.Delete([]byte(pendingOrderKey)); delErr != nil {
				return delErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOrdersByStatus tallies all orders grouped by status.
func (s *Store) CountOrdersByStatus(ctx context.Context) (counts map[models.OrderStatus]int, err error) {
	defer metrics.ObserveStoreOp("count_orders", time.Now(), &err)

	counts = make(map[models.OrderStatus]int)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(orderKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var o models.Order
			if vErr := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &o)
			}); vErr != nil {
				return fmt.Errorf("unmarshal order: %w", vErr)
			}
			counts[o.Status]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
