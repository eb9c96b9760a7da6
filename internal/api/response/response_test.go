package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
)

func TestCommandFailed(t *testing.T) {
	tests := []struct {
		kind   command.Kind
		status int
	}{
		{command.KindValidation, http.StatusBadRequest},
		{command.KindAuthentication, http.StatusUnauthorized},
		{command.KindTrading, http.StatusUnprocessableEntity},
		{command.KindNetwork, http.StatusGatewayTimeout},
		{command.KindUnknown, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := command.NewError(tt.kind, "nope", "", map[string]any{"command": command.ClosePosition})
			rec := httptest.NewRecorder()
			CommandFailed(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind.String(), body.Error.Kind)
			assert.Equal(t, "nope", body.Error.Message)
			assert.Equal(t, command.ClosePosition, body.Error.Details)
		})
	}

	t.Run("backend code wins", func(t *testing.T) {
		err := command.NewError(command.KindTrading, "no position", "NO_POSITION", nil)
		rec := httptest.NewRecorder()
		CommandFailed(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)
		assert.Contains(t, rec.Body.String(), `"code":"NO_POSITION"`)
	})

	t.Run("untyped error is internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CommandFailed(rec, httptest.NewRequest(http.MethodPost, "/", nil), errors.New("x"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSuccessList(t *testing.T) {
	rec := httptest.NewRecorder()
	SuccessList(rec, httptest.NewRequest(http.MethodGet, "/", nil), []string{}, 0)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, rec.Body.Bytes(), "data")))
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func mustField(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[field]
}
