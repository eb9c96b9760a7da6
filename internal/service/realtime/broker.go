package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
)

// ==============================================================================
// Broker - callback fan-out for cache events
// ==============================================================================

// Handler receives cache events. It runs on the goroutine that applied the change
// and must not call Subscribe, Stop or Start synchronously.
type Handler func(market.Event)

// Subscription is a registered Handler
type Subscription struct {
	id     string
	fn     Handler
	active atomic.Bool
	broker *broker
}

// ID returns the subscription id
func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe removes the subscription. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.broker.remove(s)
}

// Active reports whether the subscription still receives events
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

// broker keeps subscribers in registration order
type broker struct {
	mu   sync.RWMutex
	subs []*Subscription

	// Metrics
	published atomic.Int64
	delivered atomic.Int64
}

func newBroker() *broker {
	return &broker{}
}

func (b *broker) add(fn Handler) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		fn:     fn,
		broker: b,
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	total := len(b.subs)
	b.mu.Unlock()

	log.Debug().
		Str("subscription_id", sub.id).
		Int("total_subs", total).
		Msg("Realtime: new subscription")

	return sub
}

func (b *broker) remove(sub *Subscription) {
	b.mu.Lock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			break
		}
	}
	total := len(b.subs)
	b.mu.Unlock()

	log.Debug().
		Str("subscription_id", sub.id).
		Int("total_subs", total).
		Msg("Realtime: subscription removed")
}

func (b *broker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// publish delivers events to every active subscriber, each event to all
// subscribers before the next event.
func (b *broker) publish(events []market.Event) {
	if len(events) == 0 {
		return
	}

	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, ev := range events {
		b.published.Add(1)
		for _, sub := range subs {
			if !sub.active.Load() {
				continue
			}
			b.deliver(sub, ev)
		}
	}
}

// deliver runs one handler; a panicking handler does not break delivery to the others
func (b *broker) deliver(sub *Subscription, ev market.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("subscription_id", sub.id).
				Str("event", string(ev.Type)).
				Msg("Realtime: subscriber panicked")
		}
	}()

	sub.fn(ev)
	b.delivered.Add(1)
}
