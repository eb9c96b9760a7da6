package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/middleware"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
)

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code      string       `json:"code"`
	Kind      string       `json:"kind,omitempty"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	RequestID string       `json:"request_id"`
	Timestamp time.Time    `json:"timestamp"`
	Fields    []FieldError `json:"fields,omitempty"`
}

// FieldError represents a field-level validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeInvalidParameter   = "INVALID_PARAMETER"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnavailable        = "SERVICE_UNAVAILABLE"
	ErrCodeBackendError       = "BACKEND_ERROR"
	ErrCodeBackendTimeout     = "BACKEND_TIMEOUT"
	ErrCodeBackendAuth        = "BACKEND_UNAUTHORIZED"
	ErrCodeBackendRejected    = "BACKEND_REJECTED"
	ErrCodeBackendInvalidArgs = "BACKEND_INVALID_ARGUMENTS"
)

// Error sends an error response
func Error(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	write(w, r, statusCode, ErrorDetail{Code: code, Message: message})
}

// ValidationError sends a validation error response with field errors
func ValidationError(w http.ResponseWriter, r *http.Request, fields []FieldError) {
	write(w, r, http.StatusBadRequest, ErrorDetail{
		Code:    ErrCodeValidation,
		Message: "Request validation failed",
		Fields:  fields,
	})
}

// BadRequest sends a 400 Bad Request error
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// NotFound sends a 404 Not Found error
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, ErrCodeNotFound, message)
}

// Unavailable sends a 503 Service Unavailable error
func Unavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// CommandFailed maps a backend command failure to an HTTP error by kind
func CommandFailed(w http.ResponseWriter, r *http.Request, err error) {
	var cmdErr *command.CommandError
	if !errors.As(err, &cmdErr) {
		Error(w, r, http.StatusInternalServerError, ErrCodeInternalServer, err.Error())
		return
	}

	status, code := StatusForKind(cmdErr.Kind)
	if cmdErr.Code != "" {
		code = cmdErr.Code
	}

	write(w, r, status, ErrorDetail{
		Code:    code,
		Kind:    cmdErr.Kind.String(),
		Message: cmdErr.Message,
		Details: cmdErr.Command(),
	})
}

// StatusForKind returns the HTTP status and default code for an error kind
func StatusForKind(kind command.Kind) (int, string) {
	switch kind {
	case command.KindValidation:
		return http.StatusBadRequest, ErrCodeBackendInvalidArgs
	case command.KindAuthentication:
		return http.StatusUnauthorized, ErrCodeBackendAuth
	case command.KindTrading:
		return http.StatusUnprocessableEntity, ErrCodeBackendRejected
	case command.KindNetwork:
		return http.StatusGatewayTimeout, ErrCodeBackendTimeout
	default:
		return http.StatusBadGateway, ErrCodeBackendError
	}
}

func write(w http.ResponseWriter, r *http.Request, statusCode int, detail ErrorDetail) {
	detail.RequestID = middleware.GetRequestID(r)
	detail.Timestamp = time.Now()

	event := log.Warn()
	if statusCode >= 500 {
		event = log.Error()
	}
	event.
		Str("request_id", detail.RequestID).
		Str("error_code", detail.Code).
		Str("message", detail.Message).
		Int("status", statusCode).
		Msg("API error response")

	JSON(w, statusCode, ErrorResponse{Error: detail})
}
