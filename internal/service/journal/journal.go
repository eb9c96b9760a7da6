package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
)

// ==============================================================================
// Recorder - coalescing journal of cache events
// ==============================================================================

var (
	// ErrUnsupportedEvent is returned for events the journal cannot key
	ErrUnsupportedEvent = errors.New("journal: unsupported event")
)

// Entry is one journaled change: the latest payload for (Kind, Key)
type Entry struct {
	Kind    market.EventType `json:"kind"`
	Key     string           `json:"key"`
	Payload json.RawMessage  `json:"payload"`
	At      time.Time        `json:"at"`
}

// Repository persists journal entries
type Repository interface {
	SaveEntries(ctx context.Context, entries []Entry) error
}

// Config holds recorder configuration
type Config struct {
	FlushInterval time.Duration // default: 1s
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{FlushInterval: time.Second}
}

// Recorder buffers the latest event per key and writes batches to a Repository
// on an interval. A failed batch stays pending and is retried on the next flush
// unless a newer entry for the same key has arrived meanwhile.
type Recorder struct {
	mu      sync.Mutex
	pending map[string]Entry // kind:key → latest entry

	repo          Repository
	flushInterval time.Duration

	// Metrics
	received atomic.Int64
	flushed  atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRecorder creates a new Recorder
func NewRecorder(repo Repository, config Config) *Recorder {
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Recorder{
		pending:       make(map[string]Entry),
		repo:          repo,
		flushInterval: config.FlushInterval,
	}
}

// Start starts the flush loop
func (r *Recorder) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.flushLoop()

	log.Info().
		Dur("flush_interval", r.flushInterval).
		Msg("Journal recorder started")
}

// Stop stops the flush loop and writes what is still pending
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		log.Error().Err(err).Int("pending", r.Pending()).Msg("Journal final flush failed")
	}

	log.Info().
		Int64("total_received", r.received.Load()).
		Int64("total_flushed", r.flushed.Load()).
		Int64("total_failed", r.failed.Load()).
		Msg("Journal recorder stopped")
}

// Handle enqueues an event. Non-blocking; usable directly as a cache subscriber.
func (r *Recorder) Handle(ev market.Event) {
	entry, err := toEntry(ev)
	if err != nil {
		r.skipped.Add(1)
		log.Debug().Err(err).Str("event", string(ev.Type)).Msg("Journal: event skipped")
		return
	}

	r.received.Add(1)

	r.mu.Lock()
	r.pending[string(entry.Kind)+":"+entry.Key] = entry
	r.mu.Unlock()
}

// Flush writes pending entries now
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return nil
	}
	batch := make([]Entry, 0, len(r.pending))
	for _, e := range r.pending {
		batch = append(batch, e)
	}
	r.pending = make(map[string]Entry)
	r.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool {
		if !batch[i].At.Equal(batch[j].At) {
			return batch[i].At.Before(batch[j].At)
		}
		if batch[i].Kind != batch[j].Kind {
			return batch[i].Kind < batch[j].Kind
		}
		return batch[i].Key < batch[j].Key
	})

	if err := r.repo.SaveEntries(ctx, batch); err != nil {
		r.failed.Add(1)
		r.requeue(batch)
		return err
	}

	r.flushed.Add(int64(len(batch)))

	log.Debug().Int("entries", len(batch)).Msg("Journal flushed")
	return nil
}

// Pending returns the number of buffered entries
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stats holds recorder statistics
type Stats struct {
	Received int64 `json:"received"`
	Flushed  int64 `json:"flushed"`
	Failed   int64 `json:"failed"`
	Skipped  int64 `json:"skipped"`
	Pending  int   `json:"pending"`
}

// GetStats returns recorder statistics
func (r *Recorder) GetStats() Stats {
	return Stats{
		Received: r.received.Load(),
		Flushed:  r.flushed.Load(),
		Failed:   r.failed.Load(),
		Skipped:  r.skipped.Load(),
		Pending:  r.Pending(),
	}
}

// ==============================================================================
// Internal Methods
// ==============================================================================

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.Flush(r.ctx); err != nil {
				log.Error().Err(err).Int("pending", r.Pending()).Msg("Journal flush failed")
			}
		}
	}
}

// requeue puts a failed batch back, keeping newer entries that arrived meanwhile
func (r *Recorder) requeue(batch []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range batch {
		key := string(e.Kind) + ":" + e.Key
		if _, newer := r.pending[key]; newer {
			continue
		}
		r.pending[key] = e
	}
}

func toEntry(ev market.Event) (Entry, error) {
	var key string
	switch d := ev.Data.(type) {
	case market.Quote:
		key = d.Symbol
	case market.Position:
		key = d.Symbol
	case market.Order:
		key = d.OrderID
	case market.ConnectionStatus:
		key = "connection"
	case market.ErrorEvent:
		key = d.Source
	default:
		return Entry{}, ErrUnsupportedEvent
	}

	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return Entry{}, err
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	return Entry{Kind: ev.Type, Key: key, Payload: payload, At: at}, nil
}
