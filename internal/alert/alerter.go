package alert

import (
	"context"
	"errors"
	"time"
)

// Event types raised from a built topology.
const (
	EventMissingNetwork      = "missing_network"
	EventPeeringDisconnected = "peering_disconnected"
	EventStateConflict       = "peering_state_conflict"
)

// Event represents an alert event sent to alerting backends.
type Event struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	EventType string      `json:"event_type"`
	Severity  string      `json:"severity"`
	Network   NetworkRef  `json:"network"`
	Peer      *NetworkRef `json:"peer,omitempty"`
	Impact    *Impact     `json:"impact,omitempty"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// NetworkRef identifies a network inside an alert event.
type NetworkRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Subscription string `json:"subscription,omitempty"`
}

// Impact describes the connected component an event belongs to.
type Impact struct {
	ComponentSize int      `json:"component_size"`
	Networks      []string `json:"networks"`
}

// Alerter defines the interface for sending alert events.
type Alerter interface {
	// Name returns the alerter identifier.
	Name() string

	// Send dispatches an event to the alerting backend.
	Send(ctx context.Context, event Event) error
}

// Multi sends events to multiple alerters.
type Multi struct {
	alerters []Alerter
}

// NewMulti creates a multi-alerter that dispatches to all backends.
func NewMulti(alerters ...Alerter) *Multi {
	return &Multi{alerters: alerters}
}

// Name returns "multi".
func (m *Multi) Name() string {
	return "multi"
}

// Len returns the number of backends.
func (m *Multi) Len() int {
	return len(m.alerters)
}

// Send dispatches the event to every backend, even after a failure, and
// returns the joined errors.
func (m *Multi) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, a := range m.alerters {
		if err := a.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
