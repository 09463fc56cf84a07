package outbox

import (
	"context"
	"encoding/json"
	"time"

	"aparthaven/internal/domain/shared/events"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// EventDocument is one durably queued domain event awaiting relay to the broker.
type EventDocument struct {
	ID         string
	Name       string
	Aggregate  string
	Payload    []byte
	Headers    map[string]string
	OccurredAt time.Time
	Status     Status
	Attempts   int
	NextRetry  time.Time
	ClaimedBy  string
}

// Store persists outbox events next to the state change that produced them.
type Store interface {
	Append(ctx context.Context, docs ...EventDocument) error
	// Claim leases the next due pending event for a worker; nil when none.
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, nextRetry time.Time, reason string) error
}

// EventEncoder renders a domain event into an outbox document payload.
type EventEncoder interface {
	Encode(e events.Event) (EventDocument, error)
}

type JSONEventEncoder struct{}

func (JSONEventEncoder) Encode(e events.Event) (EventDocument, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return EventDocument{}, err
	}
	return EventDocument{
		Name:       e.EventName(),
		Aggregate:  e.AggregateID(),
		Payload:    payload,
		OccurredAt: e.OccurredAt(),
		Status:     StatusPending,
	}, nil
}
