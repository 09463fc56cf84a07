package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
)

// AvailabilityRepository stores one document per (property, calendar day).
// Documents are overwritten, never deleted.
type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection("availability_days")}
}

// EnsureIndexes creates the per-day uniqueness index; call once at startup.
func (r *AvailabilityRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "property_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *AvailabilityRepository) Range(ctx context.Context, id property.PropertyID, from, to time.Time) ([]domainavailability.DayRecord, error) {
	filter := bson.M{
		"property_id": string(id),
		"date": bson.M{
			"$gte": daterange.Key(from),
			"$lte": daterange.Key(to),
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: availability range: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []domainavailability.DayRecord
	for cursor.Next(ctx) {
		var doc availabilityDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: availability decode: %w", err)
		}
		rec, err := doc.toRecord()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, cursor.Err()
}

func (r *AvailabilityRepository) Put(ctx context.Context, id property.PropertyID, rec domainavailability.DayRecord) error {
	doc := newAvailabilityDocument(id, rec)
	filter := bson.M{"property_id": doc.PropertyID, "date": doc.Date}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	if _, err := r.col.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("mongo: availability put: %w", err)
	}
	return nil
}

// Block marks every day of the stay unavailable, keeping the stored price
// and minimum stay of any existing document. A day with no document gets a
// minimal unavailable placeholder. A mid-range failure returns an error;
// retrying re-runs the full span, which is idempotent.
func (r *AvailabilityRepository) Block(ctx context.Context, id property.PropertyID, dr daterange.DateRange, note string) error {
	for _, day := range dr.Days() {
		rec, ok, err := r.day(ctx, id, day)
		if err != nil {
			return fmt.Errorf("mongo: block %s: %w", daterange.Key(day), err)
		}
		if !ok {
			rec = domainavailability.DayRecord{Date: day, MinimumStay: 1}
		}
		if err := r.Put(ctx, id, rec.Blocked(note)); err != nil {
			return fmt.Errorf("mongo: block %s: %w", daterange.Key(day), err)
		}
	}
	return nil
}

func (r *AvailabilityRepository) day(ctx context.Context, id property.PropertyID, day time.Time) (domainavailability.DayRecord, bool, error) {
	var doc availabilityDocument
	err := r.col.FindOne(ctx, bson.M{"property_id": string(id), "date": daterange.Key(day)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domainavailability.DayRecord{}, false, nil
	}
	if err != nil {
		return domainavailability.DayRecord{}, false, err
	}
	rec, err := doc.toRecord()
	if err != nil {
		return domainavailability.DayRecord{}, false, err
	}
	return rec, true, nil
}

type availabilityDocument struct {
	PropertyID  string `bson:"property_id"`
	Date        string `bson:"date"`
	Available   bool   `bson:"available"`
	PriceCents  int64  `bson:"price_cents"`
	Currency    string `bson:"currency"`
	MinimumStay int    `bson:"minimum_stay"`
	InstantBook bool   `bson:"instant_book"`
	Note        string `bson:"note,omitempty"`
}

func newAvailabilityDocument(id property.PropertyID, rec domainavailability.DayRecord) availabilityDocument {
	return availabilityDocument{
		PropertyID:  string(id),
		Date:        daterange.Key(rec.Date),
		Available:   rec.Available,
		PriceCents:  rec.Price.Amount,
		Currency:    rec.Price.Currency,
		MinimumStay: rec.MinimumStay,
		InstantBook: rec.InstantBook,
		Note:        rec.Note,
	}
}

func (d availabilityDocument) toRecord() (domainavailability.DayRecord, error) {
	date, err := daterange.ParseKey(d.Date)
	if err != nil {
		return domainavailability.DayRecord{}, fmt.Errorf("mongo: bad date key %q: %w", d.Date, err)
	}
	return domainavailability.DayRecord{
		Date:        date,
		Available:   d.Available,
		Price:       money.Money{Amount: d.PriceCents, Currency: d.Currency},
		MinimumStay: d.MinimumStay,
		InstantBook: d.InstantBook,
		Note:        d.Note,
	}, nil
}

var _ domainavailability.Repository = (*AvailabilityRepository)(nil)
