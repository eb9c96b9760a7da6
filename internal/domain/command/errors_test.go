package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"Authentication failed", KindAuthentication},
		{"UNAUTHORIZED", KindAuthentication},
		{"invalid credentials supplied", KindAuthentication},
		{"Validation error: qty", KindValidation},
		{"invalid input for price", KindValidation},
		{"400 Bad Request", KindValidation},
		{"trading is halted", KindTrading},
		{"Order rejected by RMS", KindTrading},
		{"no open position for INFY", KindTrading},
		{"network unreachable", KindNetwork},
		{"connection reset by peer", KindNetwork},
		{"read timeout", KindNetwork},
		{"", KindUnknown},
		{"disk full", KindUnknown},
		// families are checked in order: authentication wins over network
		{"unauthorized connection", KindAuthentication},
		// trading wins over network
		{"order connection timeout", KindTrading},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg))
		})
	}
}

func TestCommandError(t *testing.T) {
	ctx := map[string]any{"command": GetOrders}
	err := NewError(KindNetwork, "connection refused", "ECONNREFUSED", ctx)

	t.Run("matches kind sentinel only", func(t *testing.T) {
		assert.ErrorIs(t, err, ErrNetwork)
		assert.NotErrorIs(t, err, ErrTrading)
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("refresh: %w", err)
		assert.ErrorIs(t, wrapped, ErrNetwork)
		assert.Equal(t, KindNetwork, KindOf(wrapped))
	})

	t.Run("context is a copy", func(t *testing.T) {
		ctx["command"] = "mutated"
		got := err.Context()
		got["extra"] = true
		assert.Equal(t, GetOrders, err.Context()["command"])
		assert.NotContains(t, err.Context(), "extra")
	})

	t.Run("message", func(t *testing.T) {
		assert.Equal(t, "network error [get_orders]: connection refused (code=ECONNREFUSED)", err.Error())
	})

	t.Run("KindOf plain error", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(errors.New("x")))
	})
}

func TestFromFailure(t *testing.T) {
	raw := errors.New("Order placement failed")
	err := FromFailure(raw, PlaceQuickOrder, map[string]any{"symbol": "TCS"})

	assert.Equal(t, KindTrading, err.Kind)
	assert.ErrorIs(t, err, raw)
	assert.Equal(t, PlaceQuickOrder, err.Command())

	t.Run("already typed errors pass through", func(t *testing.T) {
		typed := NewError(KindValidation, "bad", "", nil)
		assert.Same(t, typed, FromFailure(fmt.Errorf("wrap: %w", typed), GetOrders, nil))
	})
}

func TestTimeout(t *testing.T) {
	err := Timeout(StartTrading, 50*time.Millisecond)

	assert.Equal(t, KindNetwork, err.Kind)
	assert.Equal(t, StartTrading, err.Context()["command"])
	assert.Equal(t, int64(50), err.Context()["timeoutMs"])
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		isEnv  bool
		expect Envelope
	}{
		{"bare array", `[1,2]`, false, Envelope{}},
		{"bare string", `"ok"`, false, Envelope{}},
		{"object without success", `{"status":"connected"}`, false, Envelope{}},
		{"non-bool success", `{"success":"yes"}`, false, Envelope{}},
		{"success", `{"success":true,"data":[1]}`, true, Envelope{Success: true, Data: json.RawMessage(`[1]`)}},
		{"failure", `{"success":false,"error":"nope","code":"E1"}`, true, Envelope{Error: "nope", Code: "E1"}},
		{"empty", ``, false, Envelope{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := ParseEnvelope(json.RawMessage(tt.body))
			require.Equal(t, tt.isEnv, ok)
			assert.Equal(t, tt.expect, env)
		})
	}
}

func TestKindText(t *testing.T) {
	b, err := json.Marshal(map[string]Kind{"kind": KindTrading})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"TRADING"}`, string(b))

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("network")))
	assert.Equal(t, KindNetwork, k)
}

func TestIsMutation(t *testing.T) {
	for _, name := range []string{StartTrading, StopTrading, EmergencyStop, PlaceQuickOrder, CancelOrder, ClosePosition} {
		assert.True(t, IsMutation(name), name)
	}
	for _, name := range []string{GetMarketData, GetPositions, GetOrders, GetWebSocketStatus} {
		assert.False(t, IsMutation(name), name)
	}
}
