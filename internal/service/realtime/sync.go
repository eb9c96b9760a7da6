package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"golang.org/x/sync/errgroup"
)

// ==============================================================================
// Fetch, diff and fan-out
// ==============================================================================

// Refresh fetches all four sources now, regardless of the polling schedule, and
// waits for them. Each source gets its own backend call; an overlapping poll
// fetch is not joined, and its older result is discarded if it lands later.
// Fetch failures are reported as error events, not returned.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	var g errgroup.Group
	g.Go(func() error { return c.syncQuotes(ctx, fetchFresh) })
	g.Go(func() error { return c.syncPositions(ctx, fetchFresh) })
	g.Go(func() error { return c.syncOrders(ctx, fetchFresh) })
	g.Go(func() error { return c.checkStatus(ctx, fetchFresh) })

	if err := g.Wait(); err != nil {
		log.Debug().Err(err).Msg("Realtime: refresh completed with failures")
	}
	return nil
}

func (c *Cache) syncQuotes(ctx context.Context, mode fetchMode) error {
	t, ok := c.begin(command.GetMarketData)
	if !ok {
		return ErrNotRunning
	}

	records, err := fetch[[]market.QuoteRecord](ctx, c, command.GetMarketData, mode)
	if err != nil {
		c.fail(t, err)
		return err
	}

	quotes := make([]market.Quote, 0, len(records))
	for _, r := range records {
		quotes = append(quotes, r.Normalize())
	}

	c.apply(t, func(at time.Time) []market.Event {
		changed, evicted := diff(c.quotes, quotes)
		c.evicted.Add(int64(evicted))
		return toEvents(market.EventMarketData, changed, at)
	})
	return nil
}

func (c *Cache) syncPositions(ctx context.Context, mode fetchMode) error {
	t, ok := c.begin(command.GetPositions)
	if !ok {
		return ErrNotRunning
	}

	records, err := fetch[[]market.PositionRecord](ctx, c, command.GetPositions, mode)
	if err != nil {
		c.fail(t, err)
		return err
	}

	positions := make([]market.Position, 0, len(records))
	for _, r := range records {
		positions = append(positions, r.Normalize())
	}

	c.apply(t, func(at time.Time) []market.Event {
		changed, evicted := diff(c.positions, positions)
		c.evicted.Add(int64(evicted))
		return toEvents(market.EventPositionUpdate, changed, at)
	})
	return nil
}

func (c *Cache) syncOrders(ctx context.Context, mode fetchMode) error {
	t, ok := c.begin(command.GetOrders)
	if !ok {
		return ErrNotRunning
	}

	records, err := fetch[[]market.OrderRecord](ctx, c, command.GetOrders, mode)
	if err != nil {
		c.fail(t, err)
		return err
	}

	orders := make([]market.Order, 0, len(records))
	for _, r := range records {
		orders = append(orders, r.Normalize())
	}

	c.apply(t, func(at time.Time) []market.Event {
		changed, evicted := diff(c.orders, orders)
		c.evicted.Add(int64(evicted))
		return toEvents(market.EventOrderUpdate, changed, at)
	})
	return nil
}

// checkStatus re-derives the connection status. A failed check becomes a
// failed status (and an error event).
func (c *Cache) checkStatus(ctx context.Context, mode fetchMode) error {
	t, ok := c.begin(command.GetWebSocketStatus)
	if !ok {
		return ErrNotRunning
	}

	rec, err := fetch[market.StatusRecord](ctx, c, command.GetWebSocketStatus, mode)

	var next market.ConnectionStatus
	if err != nil {
		c.fetchFailures.Add(1)
		log.Warn().Err(err).Msg("Realtime: status check failed")
		next = market.Failed(err)
	} else {
		next = rec.Normalize()
	}

	c.apply(t, func(at time.Time) []market.Event {
		prev := c.status
		c.status = next

		var events []market.Event
		if !next.SameAs(prev) {
			events = append(events, market.Event{Type: market.EventConnectionStatus, Data: next.Clone(), At: at})
		}
		if err != nil {
			events = append(events, market.NewErrorEvent(command.GetWebSocketStatus, err))
		}
		return events
	})
	return err
}

// ==============================================================================
// Internal Methods
// ==============================================================================

// fetchMode selects whether a fetch may join an identical one already in flight
type fetchMode int

const (
	fetchShared fetchMode = iota // poll ticks: coalesce with an in-flight call
	fetchFresh                   // Refresh: always a new backend call
)

// ticket identifies one fetch: the run it belongs to and its start order
type ticket struct {
	source string
	gen    uint64
	seq    uint64
}

// begin issues a ticket for a fetch of source, and false when stopped
func (c *Cache) begin(source string) (ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ticket{source: source, gen: c.gen, seq: c.fetchSeq.Add(1)}, c.isRunning
}

// apply runs change under the state lock and publishes its events, unless the
// cache was stopped (or restarted) since the fetch began, or a fetch of the same
// source that started later has already been applied.
func (c *Cache) apply(t ticket, change func(at time.Time) []market.Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if !c.isRunning || c.gen != t.gen || c.applied[t.source] > t.seq {
		c.mu.Unlock()
		c.discarded.Add(1)
		return
	}
	c.applied[t.source] = t.seq
	events := change(time.Now())
	c.mu.Unlock()

	c.broker.publish(events)
}

// fail records a fetch failure and emits an error event
func (c *Cache) fail(t ticket, err error) {
	c.fetchFailures.Add(1)

	log.Warn().
		Err(err).
		Str("command", t.source).
		Msg("Realtime: fetch failed")

	c.apply(t, func(time.Time) []market.Event {
		return []market.Event{market.NewErrorEvent(t.source, err)}
	})
}

// fetch calls a read command and decodes its payload. Shared fetches of the
// same command share one backend call; fresh fetches never join one.
func fetch[T any](ctx context.Context, c *Cache, name string, mode fetchMode) (T, error) {
	var out T

	c.fetches.Add(1)

	var body json.RawMessage
	if mode == fetchFresh {
		raw, err := c.caller.Call(ctx, name, nil)
		if err != nil {
			return out, err
		}
		body = raw
	} else {
		v, err, _ := c.sf.Do(name, func() (any, error) {
			return c.caller.Call(ctx, name, nil)
		})
		if err != nil {
			return out, err
		}
		body, _ = v.(json.RawMessage)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return out, nil
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, command.NewError(
			command.KindValidation,
			fmt.Sprintf("decode %s response: %v", name, err),
			"DECODE_FAILED",
			map[string]any{"command": name},
		)
	}
	return out, nil
}

func toEvents[T any](typ market.EventType, items []T, at time.Time) []market.Event {
	if len(items) == 0 {
		return nil
	}
	events := make([]market.Event, 0, len(items))
	for _, item := range items {
		events = append(events, market.Event{Type: typ, Data: item, At: at})
	}
	return events
}
