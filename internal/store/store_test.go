// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/bancada/bancada/internal/models"
)

// Helper to create an in-memory BadgerDB backed Store
func createTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}

	s := NewWithDB(db)
	cleanup := func() {
		s.Close()
	}
	return s, cleanup
}

func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	pieces := []models.Piece{
		{ID: 1, Name: "Círculo", Shape: models.ShapeCircle, ColorHex: "#e74c3c"},
		{ID: 2, Name: "Hexágono", Shape: models.ShapeHexagon, ColorHex: "#3498db"},
		{ID: 3, Name: "Quadrado", Shape: models.ShapeSquare, ColorHex: "#2ecc71"},
	}
	for i := range pieces {
		if err := s.CreatePiece(ctx, &pieces[i]); err != nil {
			t.Fatalf("CreatePiece(%d) error = %v", pieces[i].ID, err)
		}
	}
}

func TestStore_CreatePiece_Idempotent(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := models.Piece{ID: 1, Name: "Círculo", Shape: models.ShapeCircle, ColorHex: "#e74c3c"}
	if err := s.CreatePiece(ctx, &p); err != nil {
		t.Fatalf("CreatePiece() error = %v", err)
	}
	if err := s.CreatePiece(ctx, &p); err != nil {
		t.Fatalf("CreatePiece() second call error = %v", err)
	}

	conflicting := models.Piece{ID: 1, Name: "Outro", Shape: models.ShapeSquare}
	if err := s.CreatePiece(ctx, &conflicting); err == nil {
		t.Fatal("CreatePiece() with same id and different fields should fail")
	}
}

func TestStore_CreatePiece_UniqueShape(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.CreatePiece(ctx, &models.Piece{ID: 1, Name: "Círculo", Shape: models.ShapeCircle}); err != nil {
		t.Fatalf("CreatePiece() error = %v", err)
	}
	err := s.CreatePiece(ctx, &models.Piece{ID: 2, Name: "Outro Círculo", Shape: models.ShapeCircle})
	if err == nil {
		t.Fatal("CreatePiece() with duplicate shape should fail")
	}
}

func TestStore_GetPiece_NotFound(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()

	_, err := s.GetPiece(context.Background(), 99)
	if !errors.Is(err, ErrPieceNotFound) {
		t.Fatalf("GetPiece() error = %v, want ErrPieceNotFound", err)
	}
}

func TestStore_ListPieces_Ordered(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	seedCatalog(t, s)

	pieces, err := s.ListPieces(context.Background())
	if err != nil {
		t.Fatalf("ListPieces() error = %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("ListPieces() returned %d pieces, want 3", len(pieces))
	}
	for i, p := range pieces {
		if p.ID != i+1 {
			t.Errorf("pieces[%d].ID = %d, want %d", i, p.ID, i+1)
		}
	}
}

func TestStore_Stock(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	seedCatalog(t, s)
	ctx := context.Background()

	// Missing stock record reads as zero.
	q, err := s.GetStockFor(ctx, 1)
	if err != nil {
		t.Fatalf("GetStockFor() error = %v", err)
	}
	if q != 0 {
		t.Errorf("GetStockFor() = %d, want 0", q)
	}

	if err := s.SetStock(ctx, 1, 7); err != nil {
		t.Fatalf("SetStock() error = %v", err)
	}
	q, err = s.GetStockFor(ctx, 1)
	if err != nil {
		t.Fatalf("GetStockFor() error = %v", err)
	}
	if q != 7 {
		t.Errorf("GetStockFor() = %d, want 7", q)
	}

	if err := s.SetStock(ctx, 42, 1); !errors.Is(err, ErrPieceNotFound) {
		t.Fatalf("SetStock() for unknown piece error = %v, want ErrPieceNotFound", err)
	}
}

func TestStore_CreateOrderIfNoPending(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	assemblies := [][]int{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
	order, err := s.CreateOrderIfNoPending(ctx, assemblies)
	if err != nil {
		t.Fatalf("CreateOrderIfNoPending() error = %v", err)
	}
	if order.ID != 1 {
		t.Errorf("order.ID = %d, want 1", order.ID)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("order.Status = %q, want pending", order.Status)
	}

	// Second creation while a pending order exists must be rejected.
	_, err = s.CreateOrderIfNoPending(ctx, assemblies)
	if !errors.Is(err, ErrPendingOrderExists) {
		t.Fatalf("CreateOrderIfNoPending() error = %v, want ErrPendingOrderExists", err)
	}

	// Clearing the pending order frees the slot and the sequence advances.
	if _, err := s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusInProgress); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	second, err := s.CreateOrderIfNoPending(ctx, assemblies)
	if err != nil {
		t.Fatalf("CreateOrderIfNoPending() after release error = %v", err)
	}
	if second.ID != 2 {
		t.Errorf("second.ID = %d, want 2", second.ID)
	}
}

func TestStore_CreateOrderIfNoPending_Concurrent(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	assemblies := [][]int{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateOrderIfNoPending(ctx, assemblies)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrPendingOrderExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful creations = %d, want exactly 1", ok)
	}
	if conflicts != attempts-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
	}
}

func TestStore_GetPendingOrder(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.GetPendingOrder(ctx)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("GetPendingOrder() error = %v, want ErrOrderNotFound", err)
	}

	created, err := s.CreateOrderIfNoPending(ctx, [][]int{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}})
	if err != nil {
		t.Fatalf("CreateOrderIfNoPending() error = %v", err)
	}
	pending, err := s.GetPendingOrder(ctx)
	if err != nil {
		t.Fatalf("GetPendingOrder() error = %v", err)
	}
	if pending.ID != created.ID {
		t.Errorf("pending.ID = %d, want %d", pending.ID, created.ID)
	}
}

func TestStore_UpdateOrderStatus_NotFound(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()

	_, err := s.UpdateOrderStatus(context.Background(), 99, models.OrderStatusCompleted)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("UpdateOrderStatus() error = %v, want ErrOrderNotFound", err)
	}
}

func TestStore_ListOrders_NewestFirst(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	assemblies := [][]int{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
	for i := 0; i < 3; i++ {
		o, err := s.CreateOrderIfNoPending(ctx, assemblies)
		if err != nil {
			t.Fatalf("CreateOrderIfNoPending() error = %v", err)
		}
		if _, err := s.UpdateOrderStatus(ctx, o.ID, models.OrderStatusCompleted); err != nil {
			t.Fatalf("UpdateOrderStatus() error = %v", err)
		}
	}

	orders, err := s.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("ListOrders() returned %d orders, want 3", len(orders))
	}
	for i := 1; i < len(orders); i++ {
		if orders[i-1].ID < orders[i].ID {
			t.Errorf("orders not newest first: %d before %d", orders[i-1].ID, orders[i].ID)
		}
	}
}

func TestStore_CountOrdersByStatus(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	assemblies := [][]int{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
	first, _ := s.CreateOrderIfNoPending(ctx, assemblies)
	s.UpdateOrderStatus(ctx, first.ID, models.OrderStatusCompleted)
	second, _ := s.CreateOrderIfNoPending(ctx, assemblies)
	s.UpdateOrderStatus(ctx, second.ID, models.OrderStatusInProgress)

	counts, err := s.CountOrdersByStatus(ctx)
	if err != nil {
		t.Fatalf("CountOrdersByStatus() error = %v", err)
	}
	if counts[models.OrderStatusCompleted] != 1 {
		t.Errorf("completed = %d, want 1", counts[models.OrderStatusCompleted])
	}
	if counts[models.OrderStatusInProgress] != 1 {
		t.Errorf("in_progress = %d, want 1", counts[models.OrderStatusInProgress])
	}
}

func TestStore_Notifications(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	n := &models.Notification{
		ID:      "n-1",
		Title:   "Novo Pedido",
		Message: "Pedido #1 criado",
		Kind:    models.NotificationKindOrderCreated,
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}

	got, err := s.GetNotification(ctx, "n-1")
	if err != nil {
		t.Fatalf("GetNotification() error = %v", err)
	}
	if got.Title != n.Title || got.Read {
		t.Errorf("GetNotification() = %+v", got)
	}

	if err := s.UpdateNotificationRead(ctx, "n-1", true); err != nil {
		t.Fatalf("UpdateNotificationRead() error = %v", err)
	}
	// Marking an already-read notification again is a no-op.
	if err := s.UpdateNotificationRead(ctx, "n-1", true); err != nil {
		t.Fatalf("UpdateNotificationRead() repeat error = %v", err)
	}
	got, _ = s.GetNotification(ctx, "n-1")
	if !got.Read {
		t.Error("notification not marked read")
	}

	if err := s.UpdateNotificationRead(ctx, "missing", true); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("UpdateNotificationRead() error = %v, want ErrNotificationNotFound", err)
	}
}

func TestStore_MarkAllNotificationsRead(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n := &models.Notification{ID: string(rune('a' + i)), Title: "t", Message: "m"}
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification() error = %v", err)
		}
	}
	s.UpdateNotificationRead(ctx, "a", true)

	changed, err := s.MarkAllNotificationsRead(ctx)
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead() error = %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	changed, err = s.MarkAllNotificationsRead(ctx)
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead() repeat error = %v", err)
	}
	if changed != 0 {
		t.Errorf("changed on repeat = %d, want 0", changed)
	}
}
