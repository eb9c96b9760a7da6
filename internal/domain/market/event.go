package market

import (
	"errors"
	"time"

	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
)

// EventType tags a notification delivered to subscribers
type EventType string

const (
	EventMarketData       EventType = "market_data"
	EventPositionUpdate   EventType = "position_update"
	EventOrderUpdate      EventType = "order_update"
	EventConnectionStatus EventType = "connection_status"
	EventError            EventType = "error"
)

// Event is a tagged {type, data} notification.
// Data holds a Quote, Position, Order, ConnectionStatus or ErrorEvent matching Type.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// ErrorEvent describes a failed fetch or status check
type ErrorEvent struct {
	Source  string       `json:"source"` // command that failed
	Kind    command.Kind `json:"kind"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
}

// NewErrorEvent builds an error event from a fetch failure
func NewErrorEvent(source string, err error) Event {
	data := ErrorEvent{
		Source:  source,
		Kind:    command.KindOf(err),
		Message: err.Error(),
	}
	var cmdErr *command.CommandError
	if errors.As(err, &cmdErr) {
		data.Message = cmdErr.Message
		data.Code = cmdErr.Code
	}
	return Event{Type: EventError, Data: data, At: time.Now()}
}
