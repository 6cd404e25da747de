// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/bancada/bancada/internal/metrics"
	"github.com/bancada/bancada/internal/models"
)

func notificationKey(id string) []byte {
	return []byte(notificationKeyPrefix + id)
}

// CreateNotification persists a notification record.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) (err error) {
	defer metrics.ObserveStoreOp("create_notification", time.Now(), &err)

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notificationKey(n.ID), data)
	})
}

// GetNotification retrieves a notification by id.
func (s *Store) GetNotification(ctx context.Context, id string) (n *models.Notification, err error) {
	defer metrics.ObserveStoreOp("get_notification", time.Now(), &err)

	var out models.Notification
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(notificationKey(id))
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return ErrNotificationNotFound
		}
		if getErr != nil {
			return fmt.Errorf("get notification %s: %w", id, getErr)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNotifications returns every stored notification in no particular
// order. Callers sort and trim the full set themselves.
func (s *Store) ListNotifications(ctx context.Context) (notifications []models.Notification, err error) {
	defer metrics.ObserveStoreOp("list_notifications", time.Now(), &err)

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notificationKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n models.Notification
			if vErr := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); vErr != nil {
				return fmt.Errorf("unmarshal notification: %w", vErr)
			}
			notifications = append(notifications, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// UpdateNotificationRead sets the read flag on a notification. Setting the
// flag to a value it already holds is a no-op rather than an error.
func (s *Store) UpdateNotificationRead(ctx context.Context, id string, read bool) (err error) {
	defer metrics.ObserveStoreOp("update_notification_read", time.Now(), &err)

	return s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get(notificationKey(id))
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return ErrNotificationNotFound
		}
		if getErr != nil {
			return fmt.Errorf("get notification %s: %w", id, getErr)
		}
		var n models.Notification
		if vErr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		}); vErr != nil {
			return vErr
		}
		if n.Read == read {
			return nil
		}
		n.Read = read
		data, mErr := json.Marshal(&n)
		if mErr != nil {
			return fmt.Errorf("marshal notification: %w", mErr)
		}
		return txn.Set(notificationKey(id), data)
	})
}

// MarkAllNotificationsRead flips every unread notification to read in one
// transaction and reports how many records changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context) (changed int, err error) {
	defer metrics.ObserveStoreOp("mark_all_read", time.Now(), &err)

	err = s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		type pending struct {
			key  []byte
			data []byte
		}
		var writes []pending

		prefix := []byte(notificationKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n models.Notification
			if vErr := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); vErr != nil {
				return fmt.Errorf("unmarshal notification: %w", vErr)
			}
			if n.Read {
				continue
			}
			n.Read = true
			data, mErr := json.Marshal(&n)
			if mErr != nil {
				return fmt.Errorf("marshal notification: %w", mErr)
			}
			writes = append(writes, pending{key: notificationKey(n.ID), data: data})
		}

		for _, w := range writes {
			if setErr := txn.Set(w.key, w.data); setErr != nil {
				return setErr
			}
		}
		changed = len(writes)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
