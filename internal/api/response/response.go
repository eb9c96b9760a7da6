package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/middleware"
)

// SuccessResponse represents a successful API response
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// Meta represents metadata in response
type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Count     *int      `json:"count,omitempty"`
}

// Success sends a successful response with data
func Success(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusOK, SuccessResponse{
		Data: data,
		Meta: newMeta(r),
	})
}

// SuccessWithMessage sends a successful response with data and message
func SuccessWithMessage(w http.ResponseWriter, r *http.Request, data any, message string) {
	meta := newMeta(r)
	meta.Message = message
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: meta})
}

// SuccessList sends a successful response with list data and count
func SuccessList(w http.ResponseWriter, r *http.Request, data any, count int) {
	meta := newMeta(r)
	meta.Count = &count
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: meta})
}

// Accepted sends a 202 Accepted response
func Accepted(w http.ResponseWriter, r *http.Request, data any, message string) {
	meta := newMeta(r)
	meta.Message = message
	JSON(w, http.StatusAccepted, SuccessResponse{Data: data, Meta: meta})
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func newMeta(r *http.Request) Meta {
	return Meta{
		RequestID: middleware.GetRequestID(r),
		Timestamp: time.Now(),
	}
}
