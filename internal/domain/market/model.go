package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
)

// ==============================================================================
// Canonical entities
// ==============================================================================

// Quote is the latest market data for one symbol
type Quote struct {
	Symbol        string          `json:"symbol"`
	LTP           decimal.Decimal `json:"ltp"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Open          decimal.Decimal `json:"open"`
	Close         decimal.Decimal `json:"close"`
	Timestamp     string          `json:"timestamp"` // source timestamp, compared verbatim
}

// Key returns the cache key
func (q Quote) Key() string { return q.Symbol }

// SameAs reports whether the fields that gate a market_data notification are equal
func (q Quote) SameAs(prev Quote) bool {
	return q.LTP.Equal(prev.LTP) &&
		q.Volume == prev.Volume &&
		q.Bid.Equal(prev.Bid) &&
		q.Ask.Equal(prev.Ask) &&
		q.Timestamp == prev.Timestamp
}

// Position is an open position
type Position struct {
	Symbol       string          `json:"symbol"`
	Exchange     string          `json:"exchange"`
	Product      string          `json:"product"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
	LastUpdated  string          `json:"last_updated"`
}

// Key returns the cache key
func (p Position) Key() string { return p.Symbol }

// SameAs reports whether the fields that gate a position_update notification are equal
func (p Position) SameAs(prev Position) bool {
	return p.Quantity == prev.Quantity &&
		p.CurrentPrice.Equal(prev.CurrentPrice) &&
		p.PnL.Equal(prev.PnL) &&
		p.LastUpdated == prev.LastUpdated
}

// Order status values reported by the backend
const (
	OrderStatusPending   = "PENDING"
	OrderStatusOpen      = "OPEN"
	OrderStatusPartial   = "PARTIAL"
	OrderStatusFilled    = "FILLED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusRejected  = "REJECTED"
)

// Order is an open order
type Order struct {
	OrderID         string          `json:"order_id"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	OrderType       string          `json:"order_type"`
	Quantity        int64           `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Status          string          `json:"status"`
	FilledQuantity  int64           `json:"filled_quantity"`
	PendingQuantity int64           `json:"pending_quantity"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// Key returns the cache key
func (o Order) Key() string { return o.OrderID }

// SameAs reports whether the fields that gate an order_update notification are equal
func (o Order) SameAs(prev Order) bool {
	return o.Status == prev.Status &&
		o.FilledQuantity == prev.FilledQuantity &&
		o.PendingQuantity == prev.PendingQuantity &&
		o.UpdatedAt == prev.UpdatedAt
}

// ConnectionState is the backend feed connection state
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// IsValid checks if state is one of the known states
func (s ConnectionState) IsValid() bool {
	switch s {
	case StateDisconnected, StateConnecting, StateConnected, StateFailed:
		return true
	default:
		return false
	}
}

// ConnectionStatus is the single process-wide connection status
type ConnectionStatus struct {
	Status        ConnectionState `json:"status"`
	LastConnected *time.Time      `json:"last_connected,omitempty"`
	Error         string          `json:"error,omitempty"`
	Subscriptions []string        `json:"subscriptions,omitempty"`

	// LastConnectedRaw keeps a last_connected value that is not a recognised timestamp
	LastConnectedRaw string `json:"last_connected_raw,omitempty"`
}

// Disconnected returns the initial status
func Disconnected() ConnectionStatus {
	return ConnectionStatus{Status: StateDisconnected}
}

// Failed returns the status recorded when a status check itself fails
func Failed(err error) ConnectionStatus {
	msg := ""
	if err != nil {
		msg = err.Error()
		var cmdErr *command.CommandError
		if errors.As(err, &cmdErr) {
			msg = cmdErr.Message
		}
	}
	return ConnectionStatus{Status: StateFailed, Error: msg}
}

// SameAs reports whether the fields that gate a connection_status notification are equal
func (s ConnectionStatus) SameAs(prev ConnectionStatus) bool {
	if s.Status != prev.Status || s.Error != prev.Error || s.LastConnectedRaw != prev.LastConnectedRaw {
		return false
	}
	switch {
	case s.LastConnected == nil && prev.LastConnected == nil:
		return true
	case s.LastConnected == nil || prev.LastConnected == nil:
		return false
	default:
		return s.LastConnected.Equal(*prev.LastConnected)
	}
}

// Clone returns a deep copy
func (s ConnectionStatus) Clone() ConnectionStatus {
	out := s
	if s.LastConnected != nil {
		t := *s.LastConnected
		out.LastConnected = &t
	}
	if s.Subscriptions != nil {
		out.Subscriptions = append([]string(nil), s.Subscriptions...)
	}
	return out
}

// ==============================================================================
// Wire records (as returned by the backend)
// ==============================================================================

// Text decodes either a JSON string or a JSON number into its textual form
type Text string

// UnmarshalJSON accepts strings, numbers and null
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// QuoteRecord is a raw get_market_data element
type QuoteRecord struct {
	Symbol        string          `json:"symbol"`
	LTP           decimal.Decimal `json:"ltp"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        decimal.Decimal `json:"volume"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Open          decimal.Decimal `json:"open"`
	Close         decimal.Decimal `json:"close"`
	Timestamp     Text            `json:"timestamp"`
}

// Normalize coerces the record into a Quote
func (r QuoteRecord) Normalize() Quote {
	return Quote{
		Symbol:        r.Symbol,
		LTP:           r.LTP,
		Change:        r.Change,
		ChangePercent: r.ChangePercent,
		Volume:        r.Volume.IntPart(),
		Bid:           r.Bid,
		Ask:           r.Ask,
		High:          r.High,
		Low:           r.Low,
		Open:          r.Open,
		Close:         r.Close,
		Timestamp:     string(r.Timestamp),
	}
}

// PositionRecord is a raw get_positions element
type PositionRecord struct {
	Symbol       string          `json:"symbol"`
	Exchange     string          `json:"exchange"`
	Product      string          `json:"product"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
	LastUpdated  Text            `json:"last_updated"`
}

// Normalize coerces the record into a Position.
// pnl_percent is derived from pnl when the backend omits it.
func (r PositionRecord) Normalize() Position {
	p := Position{
		Symbol:       r.Symbol,
		Exchange:     r.Exchange,
		Product:      r.Product,
		Quantity:     r.Quantity.IntPart(),
		AveragePrice: r.AveragePrice,
		CurrentPrice: r.CurrentPrice,
		PnL:          r.PnL,
		PnLPercent:   r.PnLPercent,
		LastUpdated:  string(r.LastUpdated),
	}
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	if p.PnLPercent.IsZero() && !p.PnL.IsZero() && !p.AveragePrice.IsZero() && p.Quantity != 0 {
		cost := p.AveragePrice.Mul(decimal.NewFromInt(p.Quantity)).Abs()
		p.PnLPercent = p.PnL.Div(cost).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return p
}

// OrderRecord is a raw get_orders element
type OrderRecord struct {
	OrderID         string              `json:"order_id"`
	Symbol          string              `json:"symbol"`
	Side            string              `json:"side"`
	OrderType       string              `json:"order_type"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Price           decimal.Decimal     `json:"price"`
	Status          string              `json:"status"`
	FilledQuantity  decimal.Decimal     `json:"filled_quantity"`
	PendingQuantity decimal.NullDecimal `json:"pending_quantity"`
	AveragePrice    decimal.Decimal     `json:"average_price"`
	CreatedAt       Text                `json:"created_at"`
	UpdatedAt       Text                `json:"updated_at"`
}

// Normalize coerces the record into an Order.
// Missing status defaults to PENDING; missing pending quantity is quantity - filled.
func (r OrderRecord) Normalize() Order {
	o := Order{
		OrderID:        r.OrderID,
		Symbol:         r.Symbol,
		Side:           r.Side,
		OrderType:      r.OrderType,
		Quantity:       r.Quantity.IntPart(),
		Price:          r.Price,
		Status:         r.Status,
		FilledQuantity: r.FilledQuantity.IntPart(),
		AveragePrice:   r.AveragePrice,
		CreatedAt:      string(r.CreatedAt),
		UpdatedAt:      string(r.UpdatedAt),
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.OrderType == "" {
		o.OrderType = "MARKET"
	}
	if r.PendingQuantity.Valid {
		o.PendingQuantity = r.PendingQuantity.Decimal.IntPart()
	} else {
		o.PendingQuantity = o.Quantity - o.FilledQuantity
		if o.PendingQuantity < 0 {
			o.PendingQuantity = 0
		}
	}
	if o.UpdatedAt == "" {
		o.UpdatedAt = o.CreatedAt
	}
	return o
}

// StatusRecord is the raw get_websocket_status response
type StatusRecord struct {
	Status        string   `json:"status"`
	Connected     *bool    `json:"connected"`
	LastConnected Text     `json:"last_connected"`
	Error         string   `json:"error"`
	Subscriptions []string `json:"subscriptions"`
}

// Normalize coerces the record into a ConnectionStatus.
// When status is absent or unknown it is derived from the connected flag.
func (r StatusRecord) Normalize() ConnectionStatus {
	s := ConnectionStatus{
		Status:        ConnectionState(strings.ToLower(strings.TrimSpace(r.Status))),
		Error:         r.Error,
		Subscriptions: r.Subscriptions,
	}
	if !s.Status.IsValid() {
		switch {
		case r.Connected != nil && *r.Connected:
			s.Status = StateConnected
		case r.Error != "":
			s.Status = StateFailed
		default:
			s.Status = StateDisconnected
		}
	}
	if raw := strings.TrimSpace(string(r.LastConnected)); raw != "" {
		if t, ok := parseTimestamp(raw); ok {
			s.LastConnected = &t
		} else {
			s.LastConnectedRaw = raw
		}
	}
	return s
}

// timestampLayouts are tried in order; zone-less values are read as UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// epochMillisFrom separates epoch milliseconds from epoch seconds
const epochMillisFrom = 100_000_000_000

// parseTimestamp accepts RFC 3339, zone-less ISO 8601 and epoch seconds or milliseconds
func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n >= epochMillisFrom || n <= -epochMillisFrom {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		sec := decimal.NewFromFloat(f)
		if f >= epochMillisFrom || f <= -epochMillisFrom {
			sec = sec.Div(decimal.NewFromInt(1000))
		}
		nanos := sec.Mul(decimal.NewFromInt(int64(time.Second))).IntPart()
		return time.Unix(0, nanos).UTC(), true
	}
	return time.Time{}, false
}
