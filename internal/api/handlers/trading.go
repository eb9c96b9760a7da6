package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/response"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

// ==============================================================================
// TradingHandler - trading and connection actions
// ==============================================================================

// TradingHandler forwards trading actions to the backend
type TradingHandler struct {
	cache *realtime.Cache
}

// NewTradingHandler creates a new TradingHandler
func NewTradingHandler(cache *realtime.Cache) *TradingHandler {
	return &TradingHandler{cache: cache}
}

type action func(ctx context.Context) (json.RawMessage, error)

// PlaceOrder places a quick order
// POST /api/v1/orders
func (h *TradingHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var order realtime.QuickOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}

	if fields := validateOrder(order); len(fields) > 0 {
		response.ValidationError(w, r, fields)
		return
	}

	body, err := h.cache.PlaceQuickOrder(r.Context(), order)
	if err != nil {
		response.CommandFailed(w, r, err)
		return
	}
	response.Accepted(w, r, body, "order submitted")
}

// CancelOrder cancels an order
// DELETE /api/v1/orders/{order_id}
func (h *TradingHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	h.run(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.cache.CancelOrder(ctx, orderID)
	})
}

// ClosePosition squares off a position
// POST /api/v1/positions/{symbol}/close
func (h *TradingHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	h.run(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.cache.ClosePosition(ctx, symbol)
	})
}

// Trading runs start / stop / emergency-stop
// POST /api/v1/trading/{action}
func (h *TradingHandler) Trading(w http.ResponseWriter, r *http.Request) {
	actions := map[string]action{
		"start":          h.cache.StartTrading,
		"stop":           h.cache.StopTrading,
		"emergency-stop": h.cache.EmergencyStop,
	}
	h.dispatch(w, r, actions)
}

// Connection runs connect / disconnect / reconnect
// POST /api/v1/connection/{action}
func (h *TradingHandler) Connection(w http.ResponseWriter, r *http.Request) {
	actions := map[string]action{
		"connect":    h.cache.Connect,
		"disconnect": h.cache.Disconnect,
		"reconnect":  h.cache.Reconnect,
	}
	h.dispatch(w, r, actions)
}

func (h *TradingHandler) dispatch(w http.ResponseWriter, r *http.Request, actions map[string]action) {
	name := chi.URLParam(r, "action")
	fn, ok := actions[name]
	if !ok {
		response.NotFound(w, r, "unknown action "+name)
		return
	}
	h.run(w, r, fn)
}

func (h *TradingHandler) run(w http.ResponseWriter, r *http.Request, fn action) {
	body, err := fn(r.Context())
	if err != nil {
		response.CommandFailed(w, r, err)
		return
	}
	response.Success(w, r, body)
}

func validateOrder(o realtime.QuickOrder) []response.FieldError {
	var fields []response.FieldError

	if strings.TrimSpace(o.Symbol) == "" {
		fields = append(fields, response.FieldError{Field: "symbol", Message: "required"})
	}
	switch strings.ToUpper(o.Side) {
	case "BUY", "SELL":
	default:
		fields = append(fields, response.FieldError{Field: "side", Message: "must be BUY or SELL"})
	}
	if o.Quantity <= 0 {
		fields = append(fields, response.FieldError{Field: "quantity", Message: "must be positive"})
	}
	switch strings.ToUpper(o.OrderType) {
	case "", "MARKET":
	case "LIMIT":
		if o.Price == nil || !o.Price.IsPositive() {
			fields = append(fields, response.FieldError{Field: "price", Message: "required for LIMIT orders"})
		}
	default:
		fields = append(fields, response.FieldError{Field: "order_type", Message: "must be MARKET or LIMIT"})
	}

	return fields
}
