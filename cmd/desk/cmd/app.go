package cmd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/backend"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/pkg/config"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

// newInvoker builds the backend transport and wraps it in an Invoker
func newInvoker(cfg *config.Config) (*invoker.Invoker, error) {
	transport, err := backend.New(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("create backend transport: %w", err)
	}

	policy, err := retryPolicy(cfg.Invoker)
	if err != nil {
		return nil, err
	}

	return invoker.New(transport,
		invoker.WithTimeout(cfg.Invoker.Timeout),
		invoker.WithRetryPolicy(policy),
		invoker.WithLogger(log.With().Str("component", "invoker").Logger()),
	), nil
}

// retryPolicy converts retry settings; kinds are parsed case-insensitively
func retryPolicy(c config.InvokerConfig) (invoker.RetryPolicy, error) {
	kinds := make([]command.Kind, 0, len(c.RetryableErrors))
	for _, name := range c.RetryableErrors {
		var k command.Kind
		_ = k.UnmarshalText([]byte(name))
		if k == command.KindUnknown && !strings.EqualFold(name, command.KindUnknown.String()) {
			return invoker.RetryPolicy{}, fmt.Errorf("RETRY_ERROR_KINDS: unknown error kind %q", name)
		}
		kinds = append(kinds, k)
	}

	return invoker.RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		BaseDelay:      c.BaseDelay,
		MaxDelay:       c.MaxDelay,
		Multiplier:     c.Multiplier,
		RetryableKinds: kinds,
	}, nil
}

// newCache builds the realtime cache over inv, driven by hub
func newCache(cfg *config.Config, inv *invoker.Invoker, hub *realtime.Hub) *realtime.Cache {
	return realtime.New(inv,
		realtime.WithConfig(realtime.Config{
			DataInterval:   cfg.Sync.DataInterval,
			StatusInterval: cfg.Sync.StatusInterval,
			HiddenFactor:   cfg.Sync.HiddenFactor,
		}),
		realtime.WithLifecycle(hub),
	)
}
