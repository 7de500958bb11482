package domain

import "context"

// ConfigSource fetches the full configuration table from the external
// spreadsheet. Rows are returned in sheet order; malformed rows are
// rejected at this boundary and never propagate inward.
type ConfigSource interface {
	FetchAll(ctx context.Context) ([]ButtonConfig, error)
}

// ConfigResolver resolves the behavior of one physical button, serving from
// an in-memory snapshot of the table where possible.
type ConfigResolver interface {
	Resolve(ctx context.Context, deviceID string, buttonIndex int) (ButtonConfig, error)
}

// EventQueue is the durable, at-least-once transport between the device
// process and the remote handler. Consumers must tolerate duplicate
// delivery of the same event id.
type EventQueue interface {
	// Enqueue durably submits an event. Local and fast; it does not wait
	// for remote processing.
	Enqueue(ctx context.Context, event Event) error

	// Dequeue reads up to count events for this consumer, including
	// entries reclaimed from consumers that died mid-processing.
	Dequeue(ctx context.Context, count int) ([]Event, error)

	// Requeue schedules another delivery of the event with its attempt
	// counter incremented, and retires the current queue entry.
	Requeue(ctx context.Context, event Event) error

	// Ack marks queue entries as fully processed.
	Ack(ctx context.Context, messageIDs ...string) error

	// MoveToDeadLetter records the event as permanently failed and retires
	// its queue entry so it is never redelivered.
	MoveToDeadLetter(ctx context.Context, event Event, reason string) error
}

// MessageSink posts the formatted notification to the chat service.
type MessageSink interface {
	Deliver(ctx context.Context, event Event) error
}

// LogSink appends a durable log row for the event to the spreadsheet tab
// named in its config.
type LogSink interface {
	Deliver(ctx context.Context, event Event) error
}

// StatusReporter feeds dispatch outcomes back to the device. Delivery is
// best-effort: a failed report is logged by the caller, never escalated.
type StatusReporter interface {
	Report(ctx context.Context, report StatusReport) error
}
