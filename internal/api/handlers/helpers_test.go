package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/backend"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

const testFixtures = `
commands:
  get_websocket_status:
    responses:
      - value: {status: connected, subscriptions: [RELIANCE, INFY]}
  get_market_data:
    responses:
      - value:
          - {symbol: RELIANCE, ltp: "2500.50", volume: 1000, bid: "2500.40", ask: "2500.55", timestamp: "09:15:01"}
          - {symbol: INFY, ltp: "1450.00", volume: 500, bid: "1449.90", ask: "1450.05", timestamp: "09:15:01"}
  get_positions:
    responses:
      - value:
          - {symbol: RELIANCE, product: MIS, quantity: 10, average_price: "2490.00", current_price: "2500.50", pnl: "105.00"}
  get_orders:
    responses:
      - value:
          - {order_id: "A1", symbol: TCS, side: BUY, order_type: LIMIT, quantity: 5, price: "3885.00", status: OPEN}
  place_quick_order:
    responses:
      - value: {success: true, data: {order_id: "A2", status: PENDING}}
  cancel_order:
    responses:
      - value: {success: true, data: {order_id: "A1", status: CANCELLED}}
  close_position:
    responses:
      - value: {success: false, error: "No open position for symbol", code: NO_POSITION}
  start_trading:
    responses:
      - value: {success: true}
  emergency_stop:
    responses:
      - error: "Unauthorized: session expired"
  reconnect_websocket:
    responses:
      - error: "connection refused"
`

// deskEnv is a running cache over the mock backend
type deskEnv struct {
	mock  *backend.MockTransport
	inv   *invoker.Invoker
	hub   *realtime.Hub
	cache *realtime.Cache
}

func newDeskEnv(t *testing.T) *deskEnv {
	t.Helper()

	fixtures, err := backend.ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)

	env := &deskEnv{
		mock: backend.NewMockTransport(fixtures),
		hub:  realtime.NewHub(),
	}
	env.inv = invoker.New(env.mock,
		invoker.WithTimeout(2*time.Second),
		invoker.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
	env.cache = realtime.New(env.inv,
		realtime.WithConfig(realtime.Config{DataInterval: time.Hour, StatusInterval: time.Hour, HiddenFactor: 5}),
		realtime.WithLifecycle(env.hub),
	)
	require.NoError(t, env.cache.Start(context.Background()))
	t.Cleanup(env.cache.Stop)
	return env
}

// refreshed loads every source into the cache
func (e *deskEnv) refreshed(t *testing.T) *deskEnv {
	t.Helper()
	require.NoError(t, e.cache.Refresh(context.Background()))
	return e
}

// routes mounts handlers the way the API router does
func (e *deskEnv) routes() http.Handler {
	desk := NewDeskHandler(e.cache, e.hub, e.inv, nil)
	trading := NewTradingHandler(e.cache)

	r := chi.NewRouter()
	r.Get("/quotes", desk.GetQuotes)
	r.Get("/quotes/{symbol}", desk.GetQuote)
	r.Get("/positions", desk.GetPositions)
	r.Get("/orders", desk.GetOrders)
	r.Get("/status", desk.GetStatus)
	r.Get("/stats", desk.GetStats)
	r.Post("/refresh", desk.Refresh)
	r.Put("/visibility", desk.SetVisibility)
	r.Post("/orders", trading.PlaceOrder)
	r.Delete("/orders/{order_id}", trading.CancelOrder)
	r.Post("/positions/{symbol}/close", trading.ClosePosition)
	r.Post("/trading/{action}", trading.Trading)
	r.Post("/connection/{action}", trading.Connection)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// envelope is the success/error body shape
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Count   *int   `json:"count"`
		Message string `json:"message"`
	} `json:"meta"`
	Error struct {
		Code    string `json:"code"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Details string `json:"details"`
		Fields  []struct {
			Field string `json:"field"`
		} `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
