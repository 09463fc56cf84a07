package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "aparthaven/internal/domain/booking"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection("bookings")}
}

// EnsureIndexes installs the natural-key unique index that makes booking
// confirmation an upsert: at most one booking per (property, check-in,
// check-out, guest email).
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "property_id", Value: 1},
				{Key: "check_in", Value: 1},
				{Key: "check_out", Value: 1},
				{Key: "guest_email", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "payment_ref", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "block_pending", Value: 1}},
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, models)
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByKey(ctx context.Context, key domainbooking.Key) (*domainbooking.Booking, error) {
	return r.findOne(ctx, keyFilter(key))
}

func (r *BookingRepository) ByPaymentRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"payment_ref": ref})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Upsert inserts the booking unless one with the same natural key exists.
// On a key collision the stored booking is loaded into b and created=false;
// the caller sees exactly the record that won the race.
func (r *BookingRepository) Upsert(ctx context.Context, b *domainbooking.Booking) (bool, error) {
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return false, fmt.Errorf("mongo: booking insert: %w", err)
		}
		existing, lookupErr := r.ByKey(ctx, b.Key())
		if lookupErr != nil {
			return false, fmt.Errorf("mongo: booking lookup after duplicate: %w", lookupErr)
		}
		*b = *existing
		return false, nil
	}
	b.Version = doc.Version
	return true, nil
}

// Save persists mutations with optimistic concurrency on the version field.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, id property.PropertyID) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}})
	return r.findAll(ctx, bson.M{"property_id": string(id)}, opts)
}

func (r *BookingRepository) ListBlockPending(ctx context.Context) ([]*domainbooking.Booking, error) {
	filter := bson.M{"block_pending": true, "state": string(domainbooking.StateConfirmed)}
	return r.findAll(ctx, filter, options.Find())
}

func (r *BookingRepository) findAll(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainbooking.Booking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func keyFilter(key domainbooking.Key) bson.M {
	return bson.M{
		"property_id": string(key.PropertyID),
		"check_in":    daterange.Day(key.CheckIn).UnixMilli(),
		"check_out":   daterange.Day(key.CheckOut).UnixMilli(),
		"guest_email": key.GuestEmail,
	}
}

type bookingDocument struct {
	ID           string `bson:"_id"`
	PropertyID   string `bson:"property_id"`
	CheckIn      int64  `bson:"check_in"`
	CheckOut     int64  `bson:"check_out"`
	GuestName    string `bson:"guest_name"`
	GuestEmail   string `bson:"guest_email"`
	GuestUserID  string `bson:"guest_user_id,omitempty"`
	TotalCents   int64  `bson:"total_cents"`
	OnlineCents  int64  `bson:"online_cents"`
	CashCents    int64  `bson:"cash_cents"`
	Currency     string `bson:"currency"`
	State        string `bson:"state"`
	PaymentRef   string `bson:"payment_ref,omitempty"`
	CashReceived bool   `bson:"cash_received"`
	BlockPending bool   `bson:"block_pending"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
	Version      int64  `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:           string(b.ID),
		PropertyID:   string(b.PropertyID),
		CheckIn:      b.Range.CheckIn.UnixMilli(),
		CheckOut:     b.Range.CheckOut.UnixMilli(),
		GuestName:    b.Guest.Name,
		GuestEmail:   b.Guest.Email,
		GuestUserID:  b.Guest.UserID,
		TotalCents:   b.Total.Amount,
		OnlineCents:  b.Split.Online.Amount,
		CashCents:    b.Split.Cash.Amount,
		Currency:     b.Total.Currency,
		State:        string(b.State),
		PaymentRef:   b.PaymentRef,
		CashReceived: b.CashReceived,
		BlockPending: b.BlockPending,
		CreatedAt:    b.CreatedAt.UnixMilli(),
		UpdatedAt:    b.UpdatedAt.UnixMilli(),
		Version:      b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:         domainbooking.BookingID(d.ID),
		PropertyID: property.PropertyID(d.PropertyID),
		Range: daterange.DateRange{
			CheckIn:  timestampToTime(d.CheckIn),
			CheckOut: timestampToTime(d.CheckOut),
		},
		Guest: domainbooking.Guest{Name: d.GuestName, Email: d.GuestEmail, UserID: d.GuestUserID},
		Total: money.Money{Amount: d.TotalCents, Currency: d.Currency},
		Split: domainbooking.PaymentSplit{
			Online: money.Money{Amount: d.OnlineCents, Currency: d.Currency},
			Cash:   money.Money{Amount: d.CashCents, Currency: d.Currency},
		},
		State:        domainbooking.BookingState(d.State),
		PaymentRef:   d.PaymentRef,
		CashReceived: d.CashReceived,
		BlockPending: d.BlockPending,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
