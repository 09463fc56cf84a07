package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aparthaven/internal/app/outbox"
)

// OutboxStore persists domain events for asynchronous relay to the broker.
type OutboxStore struct {
	col *mongo.Collection
}

func NewOutboxStore(db *mongo.Database) *OutboxStore {
	return &OutboxStore{col: db.Collection("outbox_events")}
}

func (s *OutboxStore) Append(ctx context.Context, docs ...outbox.EventDocument) error {
	if len(docs) == 0 {
		return nil
	}
	records := make([]any, 0, len(docs))
	for _, doc := range docs {
		records = append(records, newOutboxDocument(doc))
	}
	_, err := s.col.InsertMany(ctx, records)
	return err
}

// Claim leases the oldest due pending event for the worker. The lease is a
// plain findOneAndUpdate; a crashed worker's claim becomes claimable again
// once its retry time passes.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*outbox.EventDocument, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"status":     string(outbox.StatusPending),
		"next_retry": bson.M{"$lte": now.UnixMilli()},
	}
	update := bson.M{"$set": bson.M{
		"claimed_by": workerID,
		"next_retry": now.Add(time.Minute).UnixMilli(),
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}}).
		SetReturnDocument(options.After)

	var doc outboxDocument
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	event := doc.toEvent()
	return &event, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":  string(outbox.StatusSent),
		"sent_at": time.Now().UTC().UnixMilli(),
	}})
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, nextRetry time.Time, reason string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"next_retry": nextRetry.UnixMilli(),
			"last_error": reason,
		},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

type outboxDocument struct {
	ID         string            `bson:"_id"`
	Name       string            `bson:"name"`
	Aggregate  string            `bson:"aggregate"`
	Payload    []byte            `bson:"payload"`
	Headers    map[string]string `bson:"headers,omitempty"`
	OccurredAt int64             `bson:"occurred_at"`
	Status     string            `bson:"status"`
	Attempts   int               `bson:"attempts"`
	NextRetry  int64             `bson:"next_retry"`
	ClaimedBy  string            `bson:"claimed_by,omitempty"`
	LastError  string            `bson:"last_error,omitempty"`
}

func newOutboxDocument(doc outbox.EventDocument) outboxDocument {
	return outboxDocument{
		ID:         doc.ID,
		Name:       doc.Name,
		Aggregate:  doc.Aggregate,
		Payload:    doc.Payload,
		Headers:    doc.Headers,
		OccurredAt: doc.OccurredAt.UnixMilli(),
		Status:     string(outbox.StatusPending),
		NextRetry:  doc.NextRetry.UnixMilli(),
	}
}

func (d outboxDocument) toEvent() outbox.EventDocument {
	return outbox.EventDocument{
		ID:         d.ID,
		Name:       d.Name,
		Aggregate:  d.Aggregate,
		Payload:    d.Payload,
		Headers:    d.Headers,
		OccurredAt: timestampToTime(d.OccurredAt),
		Status:     outbox.Status(d.Status),
		Attempts:   d.Attempts,
		NextRetry:  timestampToTime(d.NextRetry),
		ClaimedBy:  d.ClaimedBy,
	}
}

var _ outbox.Store = (*OutboxStore)(nil)
