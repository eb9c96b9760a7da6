package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ==============================================================================
// Polling timers and visibility
// ==============================================================================

// startLoop calls tick every interval until ctx is cancelled.
// tick must not block; fetches are started on their own goroutines.
func (c *Cache) startLoop(ctx context.Context, interval time.Duration, tick func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.ticks.Add(1)
				tick()
			}
		}
	}()
}

// startDataLoop starts the full-rate data timer when visible, or the reduced
// quotes-only timer when hidden. Requires runMu.
func (c *Cache) startDataLoop() {
	if c.dataCancel != nil {
		c.dataCancel()
	}

	var ctx context.Context
	ctx, c.dataCancel = context.WithCancel(c.loopCtx)

	if c.visible.Load() {
		c.startLoop(ctx, c.config.DataInterval, c.pollData)
		return
	}

	reduced := c.config.DataInterval * time.Duration(c.config.HiddenFactor)
	c.startLoop(ctx, reduced, c.pollQuotes)

	log.Debug().Dur("interval", reduced).Msg("Realtime: reduced polling")
}

// pollData fetches the three data sources independently; a failing source does
// not hold up the others.
func (c *Cache) pollData() {
	ctx := c.fetchCtx
	go c.syncQuotes(ctx, fetchShared)
	go c.syncPositions(ctx, fetchShared)
	go c.syncOrders(ctx, fetchShared)
}

func (c *Cache) pollQuotes() {
	go c.syncQuotes(c.fetchCtx, fetchShared)
}

// setVisible swaps the data timer for the reduced one (or back). Becoming
// visible also triggers an immediate refresh.
func (c *Cache) setVisible(visible bool) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if !c.IsRunning() || c.visible.Load() == visible {
		return
	}
	c.visible.Store(visible)

	log.Info().Bool("visible", visible).Msg("Realtime: visibility changed")

	c.startDataLoop()

	if visible {
		ctx := c.fetchCtx
		go func() {
			if err := c.Refresh(ctx); err != nil {
				log.Debug().Err(err).Msg("Realtime: refresh on visible skipped")
			}
		}()
	}
}
