package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
	"golang.org/x/sync/singleflight"
)

// ==============================================================================
// Cache - polled, diffed mirror of backend trading state
// ==============================================================================

// Caller invokes backend commands (satisfied by *invoker.Invoker)
type Caller interface {
	Call(ctx context.Context, name string, args any, opts ...invoker.CallOption) (json.RawMessage, error)
}

// Config holds polling configuration
type Config struct {
	DataInterval   time.Duration // quotes, positions, orders
	StatusInterval time.Duration // connection status
	HiddenFactor   int           // quote interval multiplier while hidden
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		DataInterval:   time.Second,
		StatusInterval: 5 * time.Second,
		HiddenFactor:   5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DataInterval <= 0 {
		c.DataInterval = def.DataInterval
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = def.StatusInterval
	}
	if c.HiddenFactor <= 0 {
		c.HiddenFactor = def.HiddenFactor
	}
	return c
}

// Cache keeps the latest quotes, positions, orders and connection status and
// notifies subscribers only about records that actually changed.
//
// Lock order: runMu, then emitMu, then mu. emitMu serializes apply+publish with
// the subscribe snapshot so a subscriber never sees a change before the snapshot
// that contains it.
type Cache struct {
	caller    Caller
	config    Config
	lifecycle Lifecycle
	broker    *broker
	sf        singleflight.Group

	runMu  sync.Mutex
	emitMu sync.Mutex
	mu     sync.RWMutex

	// State (mu)
	quotes    *store[market.Quote]
	positions *store[market.Position]
	orders    *store[market.Order]
	status    market.ConnectionStatus
	isRunning bool
	gen       uint64
	applied   map[string]uint64 // source → seq of the last applied fetch

	visible atomic.Bool

	// Control (runMu)
	fetchCtx    context.Context
	loopCtx     context.Context
	cancel      context.CancelFunc
	dataCancel  context.CancelFunc
	wg          sync.WaitGroup
	removeHooks []func()

	fetchSeq atomic.Uint64

	// Metrics
	ticks         atomic.Int64
	fetches       atomic.Int64
	fetchFailures atomic.Int64
	discarded     atomic.Int64
	evicted       atomic.Int64
}

// Option configures a Cache
type Option func(*Cache)

// WithConfig sets polling configuration
func WithConfig(cfg Config) Option {
	return func(c *Cache) { c.config = cfg.withDefaults() }
}

// WithLifecycle attaches the cache to host visibility and teardown hooks
func WithLifecycle(l Lifecycle) Option {
	return func(c *Cache) { c.lifecycle = l }
}

// New creates a new Cache
func New(caller Caller, opts ...Option) *Cache {
	c := &Cache{
		caller:    caller,
		config:    DefaultConfig(),
		broker:    newBroker(),
		quotes:    newStore[market.Quote](),
		positions: newStore[market.Position](),
		orders:    newStore[market.Order](),
		status:    market.Disconnected(),
		applied:   make(map[string]uint64),
	}
	c.visible.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ==============================================================================
// Lifecycle
// ==============================================================================

// Start performs an initial status check and begins polling.
// ctx bounds backend calls for the whole run; Stop ends polling. Starting a
// running cache is a no-op.
func (c *Cache) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		log.Warn().Msg("Realtime cache already running")
		return nil
	}
	c.isRunning = true
	c.gen++
	c.status = market.Disconnected()
	c.mu.Unlock()

	log.Info().
		Dur("data_interval", c.config.DataInterval).
		Dur("status_interval", c.config.StatusInterval).
		Msg("Starting realtime cache...")

	c.fetchCtx = ctx
	c.loopCtx, c.cancel = context.WithCancel(ctx)

	c.visible.Store(true)
	if c.lifecycle != nil {
		c.visible.Store(c.lifecycle.Visible())
		c.removeHooks = append(c.removeHooks,
			c.lifecycle.OnVisibilityChange(c.setVisible),
			c.lifecycle.OnTeardown(c.Stop),
		)
	}

	c.checkStatus(ctx, fetchShared)

	c.startLoop(c.loopCtx, c.config.StatusInterval, func() {
		go c.checkStatus(c.fetchCtx, fetchShared)
	})
	c.startDataLoop()

	log.Info().Bool("visible", c.visible.Load()).Msg("✅ Realtime cache started")
	return nil
}

// Stop cancels all timers, removes lifecycle hooks and resets the cache to
// empty and disconnected. No event is delivered after Stop returns; fetches
// still in flight complete but their results are discarded.
func (c *Cache) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.RLock()
	running := c.isRunning
	c.mu.RUnlock()
	if !running {
		return
	}

	log.Info().Msg("Stopping realtime cache...")

	if c.cancel != nil {
		c.cancel()
	}
	for _, remove := range c.removeHooks {
		remove()
	}
	c.removeHooks = nil

	c.emitMu.Lock()
	c.mu.Lock()
	c.isRunning = false
	c.gen++
	c.quotes.clear()
	c.positions.clear()
	c.orders.clear()
	c.status = market.Disconnected()
	c.mu.Unlock()
	c.emitMu.Unlock()

	c.wg.Wait()
	c.dataCancel = nil

	log.Info().Msg("✅ Realtime cache stopped")
}

// IsRunning returns whether the cache is polling
func (c *Cache) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}

// Visible reports whether the host currently reports the UI as visible
func (c *Cache) Visible() bool {
	return c.visible.Load()
}

// ==============================================================================
// Subscribe
// ==============================================================================

// Subscribe registers fn and synchronously replays the current snapshot to it:
// connection status, then every cached quote, position and order.
// Handlers are called in registration order.
func (c *Cache) Subscribe(fn Handler) *Subscription {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	sub := c.broker.add(fn)

	c.mu.RLock()
	snapshot := c.snapshotEvents()
	c.mu.RUnlock()

	for _, ev := range snapshot {
		if !sub.Active() {
			break
		}
		c.broker.deliver(sub, ev)
	}

	return sub
}

// snapshotEvents requires mu
func (c *Cache) snapshotEvents() []market.Event {
	now := time.Now()
	events := make([]market.Event, 0, 1+c.quotes.len()+c.positions.len()+c.orders.len())

	events = append(events, market.Event{Type: market.EventConnectionStatus, Data: c.status.Clone(), At: now})
	for _, q := range c.quotes.list() {
		events = append(events, market.Event{Type: market.EventMarketData, Data: q, At: now})
	}
	for _, p := range c.positions.list() {
		events = append(events, market.Event{Type: market.EventPositionUpdate, Data: p, At: now})
	}
	for _, o := range c.orders.list() {
		events = append(events, market.Event{Type: market.EventOrderUpdate, Data: o, At: now})
	}
	return events
}

// ==============================================================================
// Accessors
// ==============================================================================

// Quotes returns all cached quotes in first-seen order
func (c *Cache) Quotes() []market.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quotes.list()
}

// Quote returns the cached quote for symbol
func (c *Cache) Quote(symbol string) (market.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quotes.get(symbol)
}

// Positions returns all cached positions
func (c *Cache) Positions() []market.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positions.list()
}

// Position returns the cached position for symbol
func (c *Cache) Position(symbol string) (market.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positions.get(symbol)
}

// Orders returns all cached orders
func (c *Cache) Orders() []market.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orders.list()
}

// Order returns the cached order by id
func (c *Cache) Order(orderID string) (market.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orders.get(orderID)
}

// ConnectionStatus returns the current connection status
func (c *Cache) ConnectionStatus() market.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Clone()
}

// Stats holds cache statistics
type Stats struct {
	Running       bool   `json:"running"`
	Visible       bool   `json:"visible"`
	Quotes        int    `json:"quotes"`
	Positions     int    `json:"positions"`
	Orders        int    `json:"orders"`
	Subscribers   int    `json:"subscribers"`
	Ticks         int64  `json:"ticks"`
	Fetches       int64  `json:"fetches"`
	FetchFailures int64  `json:"fetch_failures"`
	Discarded     int64  `json:"discarded"`
	Evicted       int64  `json:"evicted"`
	Published     int64  `json:"published"`
	Delivered     int64  `json:"delivered"`
	Status        string `json:"status"`
}

// GetStats returns cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Running:       c.isRunning,
		Visible:       c.visible.Load(),
		Quotes:        c.quotes.len(),
		Positions:     c.positions.len(),
		Orders:        c.orders.len(),
		Subscribers:   c.broker.count(),
		Ticks:         c.ticks.Load(),
		Fetches:       c.fetches.Load(),
		FetchFailures: c.fetchFailures.Load(),
		Discarded:     c.discarded.Load(),
		Evicted:       c.evicted.Load(),
		Published:     c.broker.published.Load(),
		Delivered:     c.broker.delivered.Load(),
		Status:        string(c.status.Status),
	}
}
