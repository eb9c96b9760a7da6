package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
)

// ==============================================================================
// Invoker - timeout, envelope normalization, typed errors and retry around a Transport
// ==============================================================================

// DefaultTimeout bounds a single attempt when neither the invoker nor the call sets one
const DefaultTimeout = 30 * time.Second

// Transport is the raw "invoke a named backend command" primitive.
// It returns the response body as JSON, or a transport-level failure.
type Transport interface {
	Invoke(ctx context.Context, name string, args any) (json.RawMessage, error)
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, name string, args any) (json.RawMessage, error)

// Invoke calls f
func (f TransportFunc) Invoke(ctx context.Context, name string, args any) (json.RawMessage, error) {
	return f(ctx, name, args)
}

// Invoker wraps a Transport with per-call timeout, response normalization,
// typed error classification and backoff retry for idempotent calls
type Invoker struct {
	transport Transport
	timeout   time.Duration
	policy    RetryPolicy
	sleep     func(ctx context.Context, d time.Duration) error
	logger    zerolog.Logger

	// Metrics
	calls    atomic.Int64
	attempts atomic.Int64
	retries  atomic.Int64
	timeouts atomic.Int64
	failures atomic.Int64
}

// Option configures an Invoker
type Option func(*Invoker)

// WithTimeout sets the default per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(inv *Invoker) { inv.timeout = d }
}

// WithRetryPolicy sets the default retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(inv *Invoker) { inv.policy = p }
}

// WithSleep replaces the backoff wait
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(inv *Invoker) { inv.sleep = sleep }
}

// WithLogger sets the logger for retry warnings (default: the global logger)
func WithLogger(l zerolog.Logger) Option {
	return func(inv *Invoker) { inv.logger = l }
}

// New creates a new Invoker
func New(transport Transport, opts ...Option) *Invoker {
	inv := &Invoker{
		transport: transport,
		timeout:   DefaultTimeout,
		policy:    DefaultRetryPolicy(),
		sleep:     sleepContext,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// ==============================================================================
// Call options
// ==============================================================================

type callOptions struct {
	timeout   time.Duration
	retryable bool
	policy    RetryPolicy
}

// CallOption overrides invoker defaults for one call
type CallOption func(*callOptions)

// Timeout overrides the per-attempt timeout
func Timeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// Retryable enables or disables retry for the call (default: enabled).
// Trading mutations must pass Retryable(false).
func Retryable(retryable bool) CallOption {
	return func(o *callOptions) { o.retryable = retryable }
}

// Policy overrides the retry policy for the call
func Policy(p RetryPolicy) CallOption {
	return func(o *callOptions) { o.policy = p }
}

// ==============================================================================
// Public API
// ==============================================================================

// Call invokes a backend command and returns the unwrapped payload.
// Every failure is a *command.CommandError.
func (inv *Invoker) Call(ctx context.Context, name string, args any, opts ...CallOption) (json.RawMessage, error) {
	co := callOptions{
		timeout:   inv.timeout,
		retryable: true,
		policy:    inv.policy,
	}
	for _, opt := range opts {
		opt(&co)
	}

	inv.calls.Add(1)

	maxAttempts := 1
	if co.retryable {
		maxAttempts = co.policy.attempts()
	}

	var lastErr *command.CommandError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := co.policy.Delay(attempt - 2)
			inv.retries.Add(1)

			inv.logger.Warn().
				Str("command", name).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying backend command")

			if err := inv.sleep(ctx, delay); err != nil {
				break
			}
		}

		body, err := inv.attempt(ctx, name, args, co.timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !co.retryable || !co.policy.Retryable(err.Kind) || ctx.Err() != nil {
			break
		}
	}

	inv.failures.Add(1)
	return nil, lastErr
}

// Invoke calls a backend command and decodes the payload into T.
// An empty or null payload yields the zero value of T.
func Invoke[T any](ctx context.Context, inv *Invoker, name string, args any, opts ...CallOption) (T, error) {
	var out T

	body, err := inv.Call(ctx, name, args, opts...)
	if err != nil {
		return out, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, command.NewError(
			command.KindValidation,
			fmt.Sprintf("decode %s response: %v", name, err),
			"DECODE_FAILED",
			map[string]any{"command": name},
		)
	}

	return out, nil
}

// Stats holds invoker counters
type Stats struct {
	Calls    int64 `json:"calls"`
	Attempts int64 `json:"attempts"`
	Retries  int64 `json:"retries"`
	Timeouts int64 `json:"timeouts"`
	Failures int64 `json:"failures"`
}

// GetStats returns invoker statistics
func (inv *Invoker) GetStats() Stats {
	return Stats{
		Calls:    inv.calls.Load(),
		Attempts: inv.attempts.Load(),
		Retries:  inv.retries.Load(),
		Timeouts: inv.timeouts.Load(),
		Failures: inv.failures.Load(),
	}
}

// ==============================================================================
// Internal Methods
// ==============================================================================

type result struct {
	body json.RawMessage
	err  error
}

// attempt races one transport call against the timeout.
// A call that loses the race is abandoned; its result is dropped.
func (inv *Invoker) attempt(ctx context.Context, name string, args any, timeout time.Duration) (json.RawMessage, *command.CommandError) {
	inv.attempts.Add(1)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		body, err := inv.transport.Invoke(callCtx, name, args)
		done <- result{body: body, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, command.FromFailure(res.err, name, args)
		}
		return normalize(res.body, name, args)

	case <-expired:
		inv.timeouts.Add(1)
		return nil, command.Timeout(name, timeout)

	case <-ctx.Done():
		return nil, command.FromFailure(ctx.Err(), name, args)
	}
}

// normalize unwraps an envelope response; bare values pass through
func normalize(body json.RawMessage, name string, args any) (json.RawMessage, *command.CommandError) {
	env, ok := command.ParseEnvelope(body)
	if !ok {
		return body, nil
	}
	if !env.Success {
		return nil, command.FromEnvelope(env, name, args)
	}
	return env.Data, nil
}
