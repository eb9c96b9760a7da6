package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/backend"
)

// sseReader reads "event:" names from an SSE body
type sseReader struct {
	scanner *bufio.Scanner
}

func (s *sseReader) next(t *testing.T) (string, string) {
	t.Helper()
	var event string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			return event, strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended: %v", s.scanner.Err())
	return "", ""
}

func TestStreamHandler_SSE(t *testing.T) {
	env := newDeskEnv(t).refreshed(t)
	stream := NewStreamHandler(env.cache, nil)

	srv := httptest.NewServer(http.HandlerFunc(stream.StreamEvents))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := &sseReader{scanner: bufio.NewScanner(resp.Body)}

	// Snapshot: status, quotes, positions, orders
	var got []string
	for i := 0; i < 5; i++ {
		event, _ := r.next(t)
		got = append(got, event)
	}
	assert.Equal(t, []string{"connection_status", "market_data", "market_data", "position_update", "order_update"}, got)

	// Live: a changed quote arrives after the snapshot
	env.mock.Script(command.GetMarketData, backend.CommandFixture{Responses: []backend.Response{{
		Value: []map[string]any{{"symbol": "RELIANCE", "ltp": "2501.00", "volume": 1100, "bid": "2500.90", "ask": "2501.05", "timestamp": "09:15:02"}},
	}}})
	require.NoError(t, env.cache.Refresh(context.Background()))

	event, data := r.next(t)
	assert.Equal(t, "market_data", event)

	var ev struct {
		Data market.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "RELIANCE", ev.Data.Symbol)
	assert.Equal(t, "2501", ev.Data.LTP.String())

	cancel()
	assert.Eventually(t, func() bool { return stream.GetStats().Clients == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamHandler_SSETypeFilter(t *testing.T) {
	env := newDeskEnv(t).refreshed(t)
	stream := NewStreamHandler(env.cache, nil)

	srv := httptest.NewServer(http.HandlerFunc(stream.StreamEvents))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?types=order_update", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	r := &sseReader{scanner: bufio.NewScanner(resp.Body)}
	event, data := r.next(t)
	assert.Equal(t, "order_update", event)
	assert.Contains(t, data, `"order_id":"A1"`)
}

func TestStreamHandler_WebSocket(t *testing.T) {
	env := newDeskEnv(t).refreshed(t)
	stream := NewStreamHandler(env.cache, func(origin string) bool {
		return origin == "" || origin == "http://desk.local"
	})

	srv := httptest.NewServer(http.HandlerFunc(stream.StreamWebSocket))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("filtered snapshot", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://desk.local"}}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?types=connection_status,position_update", header)
		require.NoError(t, err)
		defer conn.Close()

		var ev struct {
			Type market.EventType `json:"type"`
		}
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, market.EventConnectionStatus, ev.Type)

		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, market.EventPositionUpdate, ev.Type)
		assert.Equal(t, int64(1), stream.GetStats().Clients)
	})

	t.Run("foreign origin is rejected", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	assert.Eventually(t, func() bool { return stream.GetStats().Clients == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandler_DropsWhenFull(t *testing.T) {
	env := newDeskEnv(t).refreshed(t)
	stream := NewStreamHandler(env.cache, nil)

	s := stream.open(httptest.NewRequest(http.MethodGet, "/stream", nil))
	defer stream.close(s)

	// Nobody drains s.C; fill it past capacity with synthetic deliveries
	for i := 0; i < streamBufferSize; i++ {
		select {
		case s.C <- market.Event{Type: market.EventMarketData}:
		default:
		}
	}
	env.mock.Script(command.GetOrders, backend.CommandFixture{Responses: []backend.Response{{
		Value: []map[string]any{{"order_id": "A1", "symbol": "TCS", "side": "BUY", "quantity": 5, "status": "FILLED", "filled_quantity": 5}},
	}}})
	require.NoError(t, env.cache.Refresh(context.Background()))

	assert.Positive(t, stream.GetStats().Dropped)
	assert.Len(t, s.C, streamBufferSize)
	assert.NotEmpty(t, s.backlog)
}

func TestStreamHandler_LargeSnapshotIsNotTruncated(t *testing.T) {
	const symbols = streamBufferSize + 476

	env := newDeskEnv(t)
	quotes := make([]map[string]any, 0, symbols)
	for i := 0; i < symbols; i++ {
		quotes = append(quotes, map[string]any{"symbol": fmt.Sprintf("SYM%04d", i), "ltp": i + 1, "volume": 100})
	}
	env.mock.Script(command.GetMarketData, backend.CommandFixture{Responses: []backend.Response{{Value: quotes}}})
	env.refreshed(t)
	require.Len(t, env.cache.Quotes(), symbols)

	stream := NewStreamHandler(env.cache, nil)

	t.Run("backlog holds the whole snapshot", func(t *testing.T) {
		s := stream.open(httptest.NewRequest(http.MethodGet, "/stream?types=market_data", nil))
		defer stream.close(s)

		assert.Len(t, s.backlog, symbols)
		assert.Empty(t, s.C)
		assert.Zero(t, stream.GetStats().Dropped)
	})

	t.Run("SSE client receives every quote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(stream.StreamEvents))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "?types=market_data")
		require.NoError(t, err)
		defer resp.Body.Close()

		r := &sseReader{scanner: bufio.NewScanner(resp.Body)}
		seen := make(map[string]bool, symbols)
		for len(seen) < symbols {
			event, data := r.next(t)
			require.Equal(t, "market_data", event)

			var ev struct {
				Data market.Quote `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			seen[ev.Data.Symbol] = true
		}
		assert.Zero(t, stream.GetStats().Dropped)
	})
}

func TestParseTypes(t *testing.T) {
	assert.Empty(t, parseTypes(""))
	assert.Equal(t, map[market.EventType]bool{
		market.EventMarketData: true,
		market.EventError:      true,
	}, parseTypes("market_data, error,"))
}

func TestStreamHandler_Shutdown(t *testing.T) {
	env := newDeskEnv(t)
	stream := NewStreamHandler(env.cache, nil)

	srv := httptest.NewServer(http.HandlerFunc(stream.StreamEvents))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Drain the snapshot
	r := &sseReader{scanner: bufio.NewScanner(resp.Body)}
	event, _ := r.next(t)
	assert.Equal(t, "connection_status", event)

	stream.Shutdown()
	stream.Shutdown()

	assert.Eventually(t, func() bool { return stream.GetStats().Clients == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamHandler_WebSocketShutdownSendsClose(t *testing.T) {
	env := newDeskEnv(t)
	stream := NewStreamHandler(env.cache, nil)

	srv := httptest.NewServer(http.HandlerFunc(stream.StreamWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev struct {
		Type market.EventType `json:"type"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, market.EventConnectionStatus, ev.Type)

	stream.Shutdown()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return stream.GetStats().Clients == 0 }, time.Second, 10*time.Millisecond)
}
