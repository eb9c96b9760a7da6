package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
)

// ==============================================================================
// Trading passthroughs
//
// Mutations go straight to the backend without retry. They do not touch the
// cache; the next poll picks up their effect.
// ==============================================================================

// QuickOrder is the place_quick_order argument
type QuickOrder struct {
	Symbol    string           `json:"symbol"`
	Side      string           `json:"side"` // BUY / SELL
	Quantity  int64            `json:"quantity"`
	OrderType string           `json:"order_type,omitempty"` // MARKET / LIMIT
	Price     *decimal.Decimal `json:"price,omitempty"`
	Product   string           `json:"product,omitempty"`
}

// PlaceQuickOrder places an order
func (c *Cache) PlaceQuickOrder(ctx context.Context, order QuickOrder) (json.RawMessage, error) {
	order.Side = strings.ToUpper(order.Side)
	order.OrderType = strings.ToUpper(order.OrderType)
	return c.mutate(ctx, command.PlaceQuickOrder, order)
}

// CancelOrder cancels an open order
func (c *Cache) CancelOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	return c.mutate(ctx, command.CancelOrder, map[string]any{"order_id": orderID})
}

// ClosePosition squares off the position in symbol
func (c *Cache) ClosePosition(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.mutate(ctx, command.ClosePosition, map[string]any{"symbol": symbol})
}

// StartTrading starts the backend trading engine
func (c *Cache) StartTrading(ctx context.Context) (json.RawMessage, error) {
	return c.mutate(ctx, command.StartTrading, nil)
}

// StopTrading stops the backend trading engine
func (c *Cache) StopTrading(ctx context.Context) (json.RawMessage, error) {
	return c.mutate(ctx, command.StopTrading, nil)
}

// EmergencyStop halts trading and cancels open orders on the backend
func (c *Cache) EmergencyStop(ctx context.Context) (json.RawMessage, error) {
	return c.mutate(ctx, command.EmergencyStop, nil)
}

// Connect opens the backend market feed
func (c *Cache) Connect(ctx context.Context) (json.RawMessage, error) {
	return c.mutate(ctx, command.ConnectWebSocket, nil)
}

// Disconnect closes the backend market feed
func (c *Cache) Disconnect(ctx context.Context) (json.RawMessage, error) {
	return c.mutate(ctx, command.DisconnectWebSocket, nil)
}

// Reconnect reopens the backend market feed
func (c *Cache) Reconnect(ctx context.Context) (json.RawMessage, error) {
	return c.mutate(ctx, command.ReconnectWebSocket, nil)
}

func (c *Cache) mutate(ctx context.Context, name string, args any) (json.RawMessage, error) {
	body, err := c.caller.Call(ctx, name, args, invoker.Retryable(false))
	if err != nil {
		log.Error().Err(err).Str("command", name).Msg("Trading action failed")
		return nil, err
	}

	log.Info().Str("command", name).Msg("✅ Trading action accepted")
	return body, nil
}
