// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

// Package notify implements the notification center. The unread count is
// never stored or incremented: every operation recomputes it from the full
// set of notification records, so it cannot drift from ground truth no
// matter how operations interleave across connections.
package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bancada/bancada/internal/events"
	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/metrics"
	"github.com/bancada/bancada/internal/models"
	"github.com/bancada/bancada/internal/store"
)

// DefaultListLimit caps the notifications returned by List when the
// configured limit is not positive.
const DefaultListLimit = 10

// Center creates notifications, recomputes unread counts, and publishes the
// resulting events to the dashboard topic.
type Center struct {
	store *store.Store
	bus   *events.Bus
	limit int
}

// New creates a notification center. limit bounds List results; values
// below 1 fall back to DefaultListLimit.
func New(st *store.Store, bus *events.Bus, limit int) *Center {
	if limit < 1 {
		limit = DefaultListLimit
	}
	return &Center{store: st, bus: bus, limit: limit}
}

// Create persists a new unread notification, recomputes the unread count,
// and publishes both a notification.new and a notification.update event.
// It returns the created record together with the fresh count.
func (c *Center) Create(ctx context.Context, title, message, kind, link string) (*models.Notification, int, error) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Kind:      kind,
		Link:      link,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.CreateNotification(ctx, n); err != nil {
		return nil, 0, fmt.Errorf("create notification: %w", err)
	}
	metrics.NotificationsCreated.Inc()

	unread, err := c.UnreadCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	c.publish(events.NewNotificationNew(*n, unread))
	c.publish(events.NewNotificationUpdate(unread))
	return n, unread, nil
}

// MarkRead flips a notification to read and returns the fresh unread count.
// Marking an already-read notification mutates nothing but still recomputes
// and publishes the count, so a client resending after a lost ack converges.
// An unknown id returns store.ErrNotificationNotFound.
func (c *Center) MarkRead(ctx context.Context, id string) (int, error) {
	if err := c.store.UpdateNotificationRead(ctx, id, true); err != nil {
		return 0, err
	}
	unread, err := c.UnreadCount(ctx)
	if err != nil {
		return 0, err
	}
	c.publish(events.NewNotificationUpdate(unread))
	return unread, nil
}

// MarkAllRead marks every unread notification read in one bulk operation.
// The resulting unread count is always zero; calling it on an already-empty
// set is safe.
func (c *Center) MarkAllRead(ctx context.Context) (int, error) {
	changed, err := c.store.MarkAllNotificationsRead(ctx)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		logging.Debug().Int("changed", changed).Msg("Marked all notifications read")
	}
	metrics.UnreadNotifications.Set(0)
	c.publish(events.NewNotificationUpdate(0))
	return 0, nil
}

// List returns the most recent notifications, newest first, truncated to
// the configured limit, together with the current unread count. Sorting and
// truncation happen here over the full fetch.
func (c *Center) List(ctx context.Context) ([]models.Notification, int, error) {
	all, err := c.store.ListNotifications(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	unread := 0
	for _, n := range all {
		if !n.Read {
			unread++
		}
	}
	metrics.UnreadNotifications.Set(float64(unread))

	if len(all) > c.limit {
		all = all[:c.limit]
	}
	return all, unread, nil
}

// UnreadCount recomputes the unread count from the full notification set.
func (c *Center) UnreadCount(ctx context.Context) (int, error) {
	all, err := c.store.ListNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	unread := 0
	for _, n := range all {
		if !n.Read {
			unread++
		}
	}
	metrics.UnreadNotifications.Set(float64(unread))
	return unread, nil
}

func (c *Center) publish(v any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(v); err != nil {
		logging.Error().Err(err).Msg("Failed to publish notification event")
	}
}
