package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/response"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/journal"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

// ==============================================================================
// DeskHandler - cache snapshots, refresh, visibility and stats
// ==============================================================================

// DeskHandler serves read access to the realtime cache
type DeskHandler struct {
	cache   *realtime.Cache
	hub     *realtime.Hub
	invoker *invoker.Invoker  // optional, for stats
	journal *journal.Recorder // optional, for stats
	streams *StreamHandler    // optional, for stats
}

// NewDeskHandler creates a new DeskHandler
func NewDeskHandler(cache *realtime.Cache, hub *realtime.Hub, inv *invoker.Invoker, rec *journal.Recorder) *DeskHandler {
	return &DeskHandler{
		cache:   cache,
		hub:     hub,
		invoker: inv,
		journal: rec,
	}
}

// SetStreams includes stream client counts in GET /api/v1/stats
func (h *DeskHandler) SetStreams(s *StreamHandler) {
	h.streams = s
}

// GetQuotes returns all cached quotes
// GET /api/v1/quotes
func (h *DeskHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	quotes := h.cache.Quotes()
	response.SuccessList(w, r, quotes, len(quotes))
}

// GetQuote returns one cached quote
// GET /api/v1/quotes/{symbol}
func (h *DeskHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	quote, ok := h.cache.Quote(symbol)
	if !ok {
		response.NotFound(w, r, "no quote for "+symbol)
		return
	}
	response.Success(w, r, quote)
}

// GetPositions returns all cached positions
// GET /api/v1/positions
func (h *DeskHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.cache.Positions()
	response.SuccessList(w, r, positions, len(positions))
}

// GetOrders returns all cached orders
// GET /api/v1/orders
func (h *DeskHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.cache.Orders()
	response.SuccessList(w, r, orders, len(orders))
}

// GetStatus returns the connection status
// GET /api/v1/status
func (h *DeskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response.Success(w, r, h.cache.ConnectionStatus())
}

// Refresh fetches all sources now
// POST /api/v1/refresh
func (h *DeskHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Refresh(r.Context()); err != nil {
		if errors.Is(err, realtime.ErrNotRunning) {
			response.Unavailable(w, r, err.Error())
			return
		}
		response.Error(w, r, http.StatusInternalServerError, response.ErrCodeInternalServer, err.Error())
		return
	}
	response.SuccessWithMessage(w, r, h.cache.GetStats(), "refreshed")
}

// VisibilityRequest is the PUT /api/v1/visibility body
type VisibilityRequest struct {
	Visible *bool `json:"visible"`
}

// SetVisibility reports UI visibility to the lifecycle hub
// PUT /api/v1/visibility
func (h *DeskHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if req.Visible == nil {
		response.ValidationError(w, r, []response.FieldError{{Field: "visible", Message: "required"}})
		return
	}

	h.hub.SetVisible(*req.Visible)
	response.Success(w, r, map[string]bool{"visible": h.hub.Visible()})
}

// GetStats returns cache, invoker and journal statistics
// GET /api/v1/stats
func (h *DeskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"cache": h.cache.GetStats(),
	}
	if h.invoker != nil {
		stats["invoker"] = h.invoker.GetStats()
	}
	if h.journal != nil {
		stats["journal"] = h.journal.GetStats()
	}
	if h.streams != nil {
		stats["streams"] = h.streams.GetStats()
	}
	response.Success(w, r, stats)
}
