// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"

	"github.com/bancada/bancada/internal/config"
	"github.com/bancada/bancada/internal/dashboard"
	"github.com/bancada/bancada/internal/events"
	"github.com/bancada/bancada/internal/lifecycle"
	"github.com/bancada/bancada/internal/models"
	"github.com/bancada/bancada/internal/notify"
	"github.com/bancada/bancada/internal/store"
	ws "github.com/bancada/bancada/internal/websocket"
)

type testEnv struct {
	handler *Handler
	store   *store.Store
	hub     *ws.Hub
	bus     *events.Bus
	server  *httptest.Server
	cancel  context.CancelFunc
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	st := store.NewWithDB(db)

	cfg := &config.Config{
		Dashboard: config.DashboardConfig{
			AssemblyCount:     3,
			AssemblySize:      3,
			LowStockThreshold: 2,
			NotificationLimit: 10,
		},
		Security: config.SecurityConfig{
			CORSOrigins:       []string{"*"},
			CommandsPerSecond: 100,
			CommandBurst:      200,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := events.NewBus(64)
	hub := ws.NewHub()
	go hub.RunWithContext(ctx)

	forwarder, err := events.NewForwarder(bus, hub)
	if err != nil {
		t.Fatalf("NewForwarder() error = %v", err)
	}
	go forwarder.Serve(ctx)

	notifier := notify.New(st, bus, cfg.Dashboard.NotificationLimit)
	agg := dashboard.New(st, &cfg.Dashboard)
	lc := lifecycle.New(st, notifier, agg, bus, cfg.Dashboard)
	wsRouter := ws.NewRouter(lc, notifier, agg, bus, cfg.Dashboard)
	handler := NewHandler(cfg, st, lc, agg, notifier, hub, wsRouter)

	for _, p := range []models.Piece{
		{ID: 1, Name: "Círculo", Shape: models.ShapeCircle},
		{ID: 2, Name: "Hexágono", Shape: models.ShapeHexagon},
		{ID: 3, Name: "Quadrado", Shape: models.ShapeSquare},
	} {
		piece := p
		if err := st.CreatePiece(ctx, &piece); err != nil {
			t.Fatalf("CreatePiece(%d) error = %v", piece.ID, err)
		}
	}

	server := httptest.NewServer(handler.Routes())
	env := &testEnv{
		handler: handler,
		store:   st,
		hub:     hub,
		bus:     bus,
		server:  server,
		cancel:  cancel,
	}
	t.Cleanup(func() {
		server.Close()
		cancel()
		bus.Close()
		st.Close()
	})
	return env
}

func orderBody() string {
	return `{"peca1":"1","peca2":"2","peca3":"3",` +
		`"peca4":"1","peca5":"3","peca6":"2",` +
		`"peca7":"2","peca8":"1","peca9":"3"}`
}

func postJSON(t *testing.T, url, body string) (*http.Response, APIResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	defer resp.Body.Close()
	var decoded APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, APIResponse) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	var decoded APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestAPI_CreateOrder(t *testing.T) {
	env := createTestEnv(t)

	resp, decoded := postJSON(t, env.server.URL+"/api/v1/orders", orderBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if !decoded.Success {
		t.Errorf("success = false: %+v", decoded.Error)
	}

	data := decoded.Data.(map[string]any)
	if data["pedido_id"] != "1" {
		t.Errorf("pedido_id = %v, want \"1\"", data["pedido_id"])
	}
}

func TestAPI_CreateOrder_Conflict(t *testing.T) {
	env := createTestEnv(t)

	postJSON(t, env.server.URL+"/api/v1/orders", orderBody())
	resp, decoded := postJSON(t, env.server.URL+"/api/v1/orders", orderBody())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != ErrCodeConflict {
		t.Errorf("error = %+v, want CONFLICT", decoded.Error)
	}
}

func TestAPI_CreateOrder_Validation(t *testing.T) {
	env := createTestEnv(t)

	body := `{"pecas":[[1,1,2],[1,2,3],[1,2,3]]}`
	resp, decoded := postJSON(t, env.server.URL+"/api/v1/orders", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v, want VALIDATION_FAILED", decoded.Error)
	}
}

func TestAPI_AdvanceAndCancel(t *testing.T) {
	env := createTestEnv(t)

	postJSON(t, env.server.URL+"/api/v1/orders", orderBody())

	resp, decoded := postJSON(t, env.server.URL+"/api/v1/orders/1/advance", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance status = %d, want 200", resp.StatusCode)
	}
	order := decoded.Data.(map[string]any)
	if order["status"] != string(models.OrderStatusInProgress) {
		t.Errorf("status = %v, want in_progress", order["status"])
	}

	resp, _ = postJSON(t, env.server.URL+"/api/v1/orders/1/cancel", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", resp.StatusCode)
	}

	// Cancelled is terminal.
	resp, decoded = postJSON(t, env.server.URL+"/api/v1/orders/1/advance", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("advance after cancel status = %d, want 422", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != ErrCodeInvalidTransition {
		t.Errorf("error = %+v, want INVALID_TRANSITION", decoded.Error)
	}
}

func TestAPI_AdvanceNotFound(t *testing.T) {
	env := createTestEnv(t)

	resp, _ := postJSON(t, env.server.URL+"/api/v1/orders/99/advance", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAPI_ListPiecesAndOrders(t *testing.T) {
	env := createTestEnv(t)

	resp, decoded := getJSON(t, env.server.URL+"/api/v1/pieces")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pieces status = %d, want 200", resp.StatusCode)
	}
	if pieces := decoded.Data.([]any); len(pieces) != 3 {
		t.Errorf("pieces = %d, want 3", len(pieces))
	}

	postJSON(t, env.server.URL+"/api/v1/orders", orderBody())
	resp, decoded = getJSON(t, env.server.URL+"/api/v1/orders")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("orders status = %d, want 200", resp.StatusCode)
	}
	orders := decoded.Data.([]any)
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	entry := orders[0].(map[string]any)
	if len(entry["pecas_list_ids"].([]any)) != 9 {
		t.Errorf("pecas_list_ids = %v, want 9 entries", entry["pecas_list_ids"])
	}
}

func TestAPI_Dashboard(t *testing.T) {
	env := createTestEnv(t)

	resp, decoded := getJSON(t, env.server.URL+"/api/v1/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	snapshot := decoded.Data.(map[string]any)
	if snapshot["total_count"].(float64) != 0 {
		t.Errorf("total_count = %v, want 0", snapshot["total_count"])
	}
}

func TestAPI_Health(t *testing.T) {
	env := createTestEnv(t)

	resp, decoded := getJSON(t, env.server.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if decoded.Data.(map[string]any)["status"] != "ok" {
		t.Errorf("health data = %v", decoded.Data)
	}
}

func dialWS(t *testing.T, env *testEnv) *gorilla.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{env.server.URL}}
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSMessage(t *testing.T, conn *gorilla.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("websocket read error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal websocket message: %v", err)
	}
	return decoded
}

func TestAPI_WebSocket_InitialState(t *testing.T) {
	env := createTestEnv(t)
	conn := dialWS(t, env)

	wantTypes := []string{
		events.TypeDashboardUpdate,
		events.TypeNotificationsList,
		events.TypeHistoryUpdate,
	}
	for _, want := range wantTypes {
		msg := readWSMessage(t, conn)
		if msg["type"] != want {
			t.Errorf("message type = %v, want %q", msg["type"], want)
		}
	}
}

func TestAPI_WebSocket_RejectsMissingOrigin(t *testing.T) {
	env := createTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	_, resp, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without Origin should fail")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestAPI_WebSocket_ZeroRateDisablesLimiter(t *testing.T) {
	env := createTestEnv(t)
	env.handler.cfg.Security.CommandsPerSecond = 0
	env.handler.cfg.Security.CommandBurst = 0

	conn := dialWS(t, env)
	for i := 0; i < 3; i++ {
		readWSMessage(t, conn)
	}

	// With the limiter disabled every command must be served, never
	// answered with a rate-limit toast.
	for i := 0; i < 5; i++ {
		if err := conn.WriteMessage(gorilla.TextMessage, []byte(`{"type":"fetch_unread_count"}`)); err != nil {
			t.Fatalf("websocket write error = %v", err)
		}
		msg := readWSMessage(t, conn)
		if msg["type"] != events.TypeNotificationUpdate {
			t.Fatalf("message %d type = %v, want notification.update", i, msg["type"])
		}
	}
}

func TestAPI_RESTMutationReachesWebSocketClients(t *testing.T) {
	env := createTestEnv(t)
	conn := dialWS(t, env)

	// Drain the initial state push.
	for i := 0; i < 3; i++ {
		readWSMessage(t, conn)
	}

	// A REST creation must fan out to connected dashboards.
	postJSON(t, env.server.URL+"/api/v1/orders", orderBody())

	seen := map[string]bool{}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg := readWSMessage(t, conn)
		seen[msg["type"].(string)] = true
		if seen[events.TypeDashboardUpdate] && seen[events.TypeHistoryUpdate] && seen[events.TypeNotificationNew] {
			break
		}
	}
	for _, want := range []string{events.TypeDashboardUpdate, events.TypeHistoryUpdate, events.TypeNotificationNew} {
		if !seen[want] {
			t.Errorf("websocket client never saw %q after REST mutation (saw %v)", want, seen)
		}
	}
}

func TestAPI_WebSocketCommandRoundTrip(t *testing.T) {
	env := createTestEnv(t)
	conn := dialWS(t, env)
	for i := 0; i < 3; i++ {
		readWSMessage(t, conn)
	}

	if err := conn.WriteMessage(gorilla.TextMessage, []byte(`{"type":"fetch_unread_count"}`)); err != nil {
		t.Fatalf("websocket write error = %v", err)
	}

	msg := readWSMessage(t, conn)
	if msg["type"] != events.TypeNotificationUpdate {
		t.Fatalf("message type = %v, want notification.update", msg["type"])
	}
	if msg["unread_count"].(float64) != 0 {
		t.Errorf("unread_count = %v, want 0", msg["unread_count"])
	}
}
