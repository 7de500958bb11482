package domain

import (
	"time"
)

// ButtonConfig is the behavior of one physical button, as configured in the
// spreadsheet. It is an immutable snapshot owned by the config resolver;
// downstream components copy it by value and never mutate it.
type ButtonConfig struct {
	DeviceID    string        `json:"device_id"`
	ButtonIndex int           `json:"button_index"`
	Channel     string        `json:"channel"`
	Template    string        `json:"template"`
	Tab         string        `json:"tab"`
	Enabled     bool          `json:"enabled"`
	RateLimit   time.Duration `json:"rate_limit"`
}

// PressType distinguishes a normal press from a long (test) press.
type PressType string

const (
	PressSingle PressType = "SINGLE"
	PressLong   PressType = "LONG"
)

// Event is the immutable record of a single button press plus the config
// snapshot it resolved to. The attempt counter is the only field that
// changes after creation, and only the transport layer touches it.
type Event struct {
	ID          string       `json:"event_id"`
	DeviceID    string       `json:"device_id"`
	ButtonIndex int          `json:"button_index"`
	PressType   PressType    `json:"press_type"`
	PressedAt   time.Time    `json:"pressed_at"`
	Config      ButtonConfig `json:"config"`
	Attempt     int          `json:"attempt"`

	// StreamMessageID is the queue entry id this event was read as.
	// Transport bookkeeping only, never persisted with the event payload.
	StreamMessageID string `json:"-"`
}

// Sink names used in delivery outcomes.
const (
	SinkMessage = "message"
	SinkLog     = "log"
)

// DeliveryOutcome records the result of delivering one event to one sink.
// It is not an authoritative record of sink state; the spreadsheet row
// itself is the source of truth for the log sink.
type DeliveryOutcome struct {
	EventID  string `json:"event_id"`
	Sink     string `json:"sink"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// StatusReport is the best-effort feedback sent back to the device after a
// dispatch attempt. Final is true once the event will not be redelivered
// (acknowledged or dead-lettered).
type StatusReport struct {
	EventID     string            `json:"event_id"`
	DeviceID    string            `json:"device_id"`
	ButtonIndex int               `json:"button_index"`
	Outcomes    []DeliveryOutcome `json:"outcomes"`
	Final       bool              `json:"final"`
}

// OK reports whether every sink outcome in the report succeeded.
func (r StatusReport) OK() bool {
	for _, o := range r.Outcomes {
		if !o.OK {
			return false
		}
	}
	return len(r.Outcomes) > 0
}
