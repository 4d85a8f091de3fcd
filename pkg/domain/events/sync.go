package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything that can be dispatched on the event bus. ID is the
// delivery identity; an empty ID opts the event out of deduplication.
type Event interface {
	Type() string
	ID() string
}

// EventTypes maps event type names to constructors, used when decoding
// events from a durable bus.
var EventTypes = map[string]func() Event{
	"SyncPassCompleted":        func() Event { return &SyncPassCompleted{} },
	"SyncPassFailed":           func() Event { return &SyncPassFailed{} },
	"PaymentCurrencyConverted": func() Event { return &PaymentCurrencyConverted{} },
}

// SyncPassCompleted is emitted when an orchestration run finished without error.
type SyncPassCompleted struct {
	EventID    string   `json:"event_id"`
	Forced     bool     `json:"forced"`
	Entities   []string `json:"entities"`
	StartedAt  int64    `json:"started_at"`
	FinishedAt int64    `json:"finished_at"`
}

func (e SyncPassCompleted) Type() string { return "SyncPassCompleted" }
func (e SyncPassCompleted) ID() string   { return e.EventID }

// SyncPassFailed is emitted when an orchestration run failed or was refused
// because the transport was unusable.
type SyncPassFailed struct {
	EventID        string   `json:"event_id"`
	Forced         bool     `json:"forced"`
	Offline        bool     `json:"offline"`
	Reason         string   `json:"reason"`
	FailedEntities []string `json:"failed_entities,omitempty"`
	FinishedAt     int64    `json:"finished_at"`
}

func (e SyncPassFailed) Type() string { return "SyncPassFailed" }
func (e SyncPassFailed) ID() string   { return e.EventID }

// PaymentCurrencyConverted is emitted after a conversion committed locally.
type PaymentCurrencyConverted struct {
	EventID      string `json:"event_id"`
	ConversionID string `json:"conversion_id"`
	PaymentID    string `json:"payment_id"`
	FromCurrency string `json:"from_currency"`
	FromAmount   int64  `json:"from_amount"`
	ToCurrency   string `json:"to_currency"`
	ToAmount     int64  `json:"to_amount"`
	Rate         string `json:"rate"`
	Actor        string `json:"actor"`
	Propagated   bool   `json:"propagated"`
	Timestamp    int64  `json:"timestamp"`
}

func (e PaymentCurrencyConverted) Type() string { return "PaymentCurrencyConverted" }
func (e PaymentCurrencyConverted) ID() string   { return e.EventID }

// NewEventID returns a fresh event id.
func NewEventID() string {
	return uuid.NewString()
}

// Now returns the current time in unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}
