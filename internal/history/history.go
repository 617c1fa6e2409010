package history

import (
	"context"
	"time"
)

// EventType defines the kind of recorded event.
type EventType string

const (
	// EventServerStart records a successful Appium server start.
	EventServerStart EventType = "server_start"
	// EventServerStop records an Appium server stop.
	EventServerStop EventType = "server_stop"
	// EventServerFail records a failed server start attempt.
	EventServerFail EventType = "server_fail"
	// EventRunFinished records a completed automation run.
	EventRunFinished EventType = "run_finished"
)

// Record carries the payload of an event. Server events fill PID and
// Endpoint; run events fill Outcome and Detail.
type Record struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Endpoint  string    `json:"endpoint"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail"`
}

// Event is a single history entry to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (audit/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
