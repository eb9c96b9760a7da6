package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
)

// fakeBackend answers Call from per-command handlers; unknown commands return null
type fakeBackend struct {
	mu       sync.Mutex
	handlers map[string]func(ctx context.Context) (json.RawMessage, error)
	calls    map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		handlers: make(map[string]func(ctx context.Context) (json.RawMessage, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeBackend) Call(ctx context.Context, name string, args any, opts ...invoker.CallOption) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[name]++
	h := f.handlers[name]
	f.mu.Unlock()

	if h == nil {
		return json.RawMessage(`null`), nil
	}
	return h(ctx)
}

func (f *fakeBackend) set(name, body string) {
	f.handle(name, func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	})
}

func (f *fakeBackend) fail(name, msg string) {
	f.handle(name, func(context.Context) (json.RawMessage, error) {
		return nil, command.FromFailure(errors.New(msg), name, nil)
	})
}

func (f *fakeBackend) handle(name string, h func(ctx context.Context) (json.RawMessage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// recorder collects delivered events
type recorder struct {
	mu     sync.Mutex
	events []market.Event
}

func (r *recorder) handle(ev market.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []market.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]market.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofType(typ market.EventType) []market.Event {
	var out []market.Event
	for _, ev := range r.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// manualConfig keeps timers out of the way so tests drive fetches with Refresh
func manualConfig() Config {
	return Config{DataInterval: time.Hour, StatusInterval: time.Hour, HiddenFactor: 5}
}

func startCache(t *testing.T, backend Caller, opts ...Option) *Cache {
	t.Helper()
	c := New(backend, append([]Option{WithConfig(manualConfig())}, opts...)...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}
