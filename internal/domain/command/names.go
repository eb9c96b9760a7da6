package command

// Backend command names. These are part of the backend contract and must not change.
const (
	// Read commands (idempotent, safe to retry)
	GetMarketData      = "get_market_data"
	GetPositions       = "get_positions"
	GetOrders          = "get_orders"
	GetWebSocketStatus = "get_websocket_status"

	// Connection commands
	ConnectWebSocket    = "connect_websocket"
	DisconnectWebSocket = "disconnect_websocket"
	ReconnectWebSocket  = "reconnect_websocket"

	// Trading commands
	StartTrading    = "start_trading"
	StopTrading     = "stop_trading"
	EmergencyStop   = "emergency_stop"
	PlaceQuickOrder = "place_quick_order"
	CancelOrder     = "cancel_order"
	ClosePosition   = "close_position"
)

var mutations = map[string]bool{
	ConnectWebSocket:    true,
	DisconnectWebSocket: true,
	ReconnectWebSocket:  true,
	StartTrading:        true,
	StopTrading:         true,
	EmergencyStop:       true,
	PlaceQuickOrder:     true,
	CancelOrder:         true,
	ClosePosition:       true,
}

// IsMutation reports whether a command changes backend state.
// Mutations are never retried: resending after an ambiguous failure may duplicate a side effect.
func IsMutation(name string) bool {
	return mutations[name]
}

// All returns every command name known to the client.
func All() []string {
	return []string{
		GetMarketData, GetPositions, GetOrders, GetWebSocketStatus,
		ConnectWebSocket, DisconnectWebSocket, ReconnectWebSocket,
		StartTrading, StopTrading, EmergencyStop,
		PlaceQuickOrder, CancelOrder, ClosePosition,
	}
}
