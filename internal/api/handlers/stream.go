package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

// ==============================================================================
// StreamHandler - SSE and WebSocket fan-out of cache events
// ==============================================================================

const (
	streamBufferSize = 1024
	keepAliveEvery   = 30 * time.Second
	wsWriteWait      = 10 * time.Second
)

// StreamHandler streams cache events to browser clients.
// Each connected client is one cache subscriber.
type StreamHandler struct {
	cache       *realtime.Cache
	checkOrigin func(origin string) bool

	done      chan struct{}
	closeOnce sync.Once

	clients atomic.Int64
	dropped atomic.Int64
}

// NewStreamHandler creates a new stream handler.
// checkOrigin gates WebSocket upgrades; nil allows every origin.
func NewStreamHandler(cache *realtime.Cache, checkOrigin func(origin string) bool) *StreamHandler {
	return &StreamHandler{
		cache:       cache,
		checkOrigin: checkOrigin,
		done:        make(chan struct{}),
	}
}

// Shutdown ends every open stream; register it with http.Server.RegisterOnShutdown
func (h *StreamHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.done) })
}

// StreamStats holds stream statistics
type StreamStats struct {
	Clients int64 `json:"clients"`
	Dropped int64 `json:"dropped"`
}

// GetStats returns stream statistics
func (h *StreamHandler) GetStats() StreamStats {
	return StreamStats{
		Clients: h.clients.Load(),
		Dropped: h.dropped.Load(),
	}
}

// eventStream buffers events between the cache's synchronous delivery and a slow client.
// The subscribe-time snapshot is kept whole in backlog; live events go through C,
// and when C is full the event is dropped, never blocking the cache.
type eventStream struct {
	C       chan market.Event
	backlog []market.Event
	sub     *realtime.Subscription
	types   map[market.EventType]bool // empty: all types

	mu        sync.Mutex
	replaying bool
}

func (h *StreamHandler) open(r *http.Request) *eventStream {
	s := &eventStream{
		C:         make(chan market.Event, streamBufferSize),
		types:     parseTypes(r.URL.Query().Get("types")),
		replaying: true,
	}

	s.sub = h.cache.Subscribe(func(ev market.Event) {
		if len(s.types) > 0 && !s.types[ev.Type] {
			return
		}

		s.mu.Lock()
		if s.replaying {
			s.backlog = append(s.backlog, ev)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		select {
		case s.C <- ev:
		default:
			h.dropped.Add(1)
		}
	})

	// Subscribe has replayed the snapshot; later events are live
	s.mu.Lock()
	s.replaying = false
	s.mu.Unlock()

	h.clients.Add(1)
	return s
}

func (h *StreamHandler) close(s *eventStream) {
	s.sub.Unsubscribe()
	h.clients.Add(-1)
}

// ==============================================================================
// SSE
// ==============================================================================

// StreamEvents streams cache events via SSE
// GET /api/v1/stream?types=market_data,order_update
func (h *StreamHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// The server's WriteTimeout would cut the stream
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("SSE: cannot clear write deadline")
	}

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := h.open(r)
	defer h.close(stream)

	log.Info().
		Str("remote", r.RemoteAddr).
		Str("subscription", stream.sub.ID()).
		Msg("SSE: client connected")

	for _, ev := range stream.backlog {
		if err := sendEvent(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info().
				Str("remote", r.RemoteAddr).
				Msg("SSE: client disconnected")
			return

		case <-h.done:
			return

		case ev := <-stream.C:
			if err := sendEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

// sendEvent writes one SSE frame
func sendEvent(w http.ResponseWriter, ev market.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("SSE: failed to marshal event")
		return nil
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// ==============================================================================
// WebSocket
// ==============================================================================

// StreamWebSocket streams cache events as JSON text frames
// GET /api/v1/ws?types=market_data
func (h *StreamHandler) StreamWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if h.checkOrigin == nil {
				return true
			}
			return h.checkOrigin(r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WS: upgrade failed")
		return
	}
	defer conn.Close()

	stream := h.open(r)
	defer h.close(stream)

	log.Info().
		Str("remote", r.RemoteAddr).
		Str("subscription", stream.sub.ID()).
		Msg("WS: client connected")

	for _, ev := range stream.backlog {
		if err := writeJSON(conn, ev); err != nil {
			log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("WS: snapshot write failed")
			return
		}
	}

	// Reader: the client sends nothing we act on; reading detects close and handles pongs
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(4096)
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("WS: cannot clear read deadline")
			return
		}
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(keepAliveEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Info().Str("remote", r.RemoteAddr).Msg("WS: client disconnected")
			return

		case <-r.Context().Done():
			return

		case <-h.done:
			if err := conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait)); err != nil {
				log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("WS: close frame failed")
			}
			return

		case ev := <-stream.C:
			if err := writeJSON(conn, ev); err != nil {
				log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("WS: write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// writeJSON writes one event frame within wsWriteWait
func writeJSON(conn *websocket.Conn, ev market.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

// parseTypes parses a comma-separated event type filter
func parseTypes(s string) map[market.EventType]bool {
	types := make(map[market.EventType]bool)
	for _, part := range strings.Split(s, ",") {
		t := strings.TrimSpace(part)
		if t != "" {
			types[market.EventType(t)] = true
		}
	}
	return types
}
