package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

var (
	watchTypes  []string
	watchHidden bool
)

// watchCmd prints cache events
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print realtime cache events",
	Long: `Runs the realtime cache and prints every event as one JSON line.

Examples:
  go run ./cmd/desk watch
  go run ./cmd/desk watch --types market_data,order_update
  go run ./cmd/desk watch --hidden      # reduced quotes-only polling`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchTypes, "types", nil, "event types to print (default: all)")
	watchCmd.Flags().BoolVar(&watchHidden, "hidden", false, "poll as if the UI were hidden")
}

func runWatch(cmd *cobra.Command, args []string) error {
	inv, err := newInvoker(cfg)
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	hub.SetVisible(!watchHidden)
	cache := newCache(cfg, inv, hub)

	filter := make(map[market.EventType]bool, len(watchTypes))
	for _, t := range watchTypes {
		filter[market.EventType(t)] = true
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	sub := cache.Subscribe(func(ev market.Event) {
		if len(filter) > 0 && !filter[ev.Type] {
			return
		}
		if err := out.Encode(ev); err != nil {
			log.Error().Err(err).Msg("Failed to print event")
		}
	})
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("start realtime cache: %w", err)
	}
	defer hub.Teardown()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan

	stats := cache.GetStats()
	log.Info().
		Int64("events", stats.Published).
		Int("quotes", stats.Quotes).
		Msg("👋 Watch stopped")
	return nil
}
