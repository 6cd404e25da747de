// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type mockHTTPServer struct {
	listenErr    error
	shutdownErr  error
	shutdownSeen atomic.Bool
	release      chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{release: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.shutdownSeen.Store(true)
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if !server.shutdownSeen.Load() {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServerService_ListenFailure(t *testing.T) {
	server := newMockHTTPServer()
	server.listenErr = errors.New("bind: address already in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() should propagate listen failures")
	}
}

func TestHTTPServerService_String(t *testing.T) {
	svc := NewHTTPServerService(newMockHTTPServer(), 0)
	if svc.String() != "http-server" {
		t.Errorf("String() = %q, want %q", svc.String(), "http-server")
	}
}

type mockHub struct {
	served atomic.Bool
}

func (m *mockHub) RunWithContext(ctx context.Context) error {
	m.served.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService_DelegatesToHub(t *testing.T) {
	hub := &mockHub{}
	svc := NewWebSocketHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if !hub.served.Load() {
		t.Error("hub.RunWithContext was not called")
	}
}
