package events

import "time"

// Event is a domain fact to be relayed through the outbox.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects events raised by an aggregate until they are drained
// into the outbox alongside the state change.
type EventRecorder struct {
	pending []Event
}

func (r *EventRecorder) Record(e Event) {
	r.pending = append(r.pending, e)
}

// Drain returns and clears the recorded events.
func (r *EventRecorder) Drain() []Event {
	out := r.pending
	r.pending = nil
	return out
}
