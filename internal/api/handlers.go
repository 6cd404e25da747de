// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/dashboard"
	"github.com/bancada/bancada/internal/lifecycle"
	"github.com/bancada/bancada/internal/logging"
	"github.com/bancada/bancada/internal/notify"
	"github.com/bancada/bancada/internal/store"
	ws "github.com/bancada/bancada/internal/websocket"
)

const maxRequestBody = 64 * 1024

// Handler serves the REST endpoints and the WebSocket upgrade. The REST
// order endpoints mirror the WebSocket commands: both delegate to the same
// lifecycle manager, so broadcasts reach every dashboard either way.
type Handler struct {
	cfg        *config.Config
	store      *store.Store
	lifecycle  *lifecycle.Manager
	aggregator *dashboard.Aggregator
	notifier   *notify.Center
	hub        *ws.Hub
	wsRouter   *ws.Router
}

// NewHandler creates an API handler.
func NewHandler(cfg *config.Config, st *store.Store, lc *lifecycle.Manager, agg *dashboard.Aggregator, notifier *notify.Center, hub *ws.Hub, wsRouter *ws.Router) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      st,
		lifecycle:  lc,
		aggregator: agg,
		notifier:   notifier,
		hub:        hub,
		wsRouter:   wsRouter,
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browsers
// always send Origin; an empty header is rejected because allowing it
// would bypass CORS entirely.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.cfg == nil {
		return true
	}

	for _, allowedOrigin := range h.cfg.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection, registers it with the hub, and pushes
// the initial full dashboard state.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	// CommandsPerSecond == 0 disables the limiter entirely; a zero-rate
	// rate.Limiter would reject every command instead.
	var limiter *rate.Limiter
	if h.cfg.Security.CommandsPerSecond > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(h.cfg.Security.CommandsPerSecond),
			h.cfg.Security.CommandBurst,
		)
	}
	client := ws.NewClient(h.hub, conn, h.wsRouter, limiter)
	// The request context ends when this handler returns; the client
	// outlives it and is torn down by the hub on disconnect or shutdown.
	client.Start(context.Background())
}

// CreateOrder admits a new order over REST. The body accepts the same
// payload as the create_order WebSocket command.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		rw.BadRequest("Corpo da requisição ilegível.")
		return
	}

	assemblies, err := ws.ParseOrderPayload(h.cfg.Dashboard, body)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	order, err := h.lifecycle.Create(r.Context(), assemblies)
	if err != nil {
		h.writeOrderError(rw, err)
		return
	}

	rw.Created(map[string]any{
		"message":   "Pedido criado com sucesso!",
		"pedido_id": strconv.FormatInt(order.ID, 10),
	})
}

// ListOrders returns the full order history with resolved piece details.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	history, err := h.aggregator.ComputeHistory(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to compute order history")
		rw.InternalError("Erro ao carregar o histórico de pedidos.")
		return
	}
	rw.Success(history)
}

// AdvanceOrder moves an order one step forward.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("ID de pedido inválido.")
		return
	}

	order, err := h.lifecycle.Advance(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(rw, err)
		return
	}
	rw.Success(order)
}

// CancelOrder cancels a pending or in-progress order.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("ID de pedido inválido.")
		return
	}

	order, err := h.lifecycle.Cancel(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(rw, err)
		return
	}
	rw.Success(order)
}

// ListPieces returns the piece catalog.
func (h *Handler) ListPieces(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	pieces, err := h.store.ListPieces(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to list pieces")
		rw.InternalError("Erro ao carregar as peças.")
		return
	}
	rw.Success(pieces)
}

// Dashboard returns the current snapshot, the same payload pushed over the
// WebSocket on connect.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	snapshot, err := h.aggregator.ComputeSnapshot(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to compute dashboard snapshot")
		rw.InternalError("Erro ao carregar o dashboard.")
		return
	}
	rw.Success(snapshot)
}

// Health reports process liveness and the connected client count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"status":  "ok",
		"clients": h.hub.GetClientCount(),
	})
}

func (h *Handler) writeOrderError(rw *ResponseWriter, err error) {
	var vErr *lifecycle.ValidationError
	switch {
	case errors.As(err, &vErr):
		rw.ValidationFailed(vErr.Reason)
	case errors.Is(err, store.ErrPendingOrderExists):
		rw.Conflict("Já existe um pedido pendente.")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		rw.UnprocessableEntity(ErrCodeInvalidTransition, "O pedido não pode mudar para esse status.")
	case errors.Is(err, store.ErrOrderNotFound):
		rw.NotFound("Pedido não encontrado.")
	default:
		logging.Error().Err(err).Msg("order operation failed")
		rw.InternalError("Ocorreu um erro interno.")
	}
}
