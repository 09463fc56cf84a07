package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/money"
)

// PropertyRepository reads the property catalog. The catalog is owned by the
// backing store; this service never writes it.
type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection("properties")}
}

func (r *PropertyRepository) ByID(ctx context.Context, id property.PropertyID) (*property.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, property.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

type propertyDocument struct {
	ID             string `bson:"_id"`
	HostID         string `bson:"host_id"`
	Title          string `bson:"title"`
	City           string `bson:"city"`
	BasePriceCents int64  `bson:"base_price_cents"`
	Currency       string `bson:"currency"`
	MinimumStay    int    `bson:"minimum_stay"`
}

func (d propertyDocument) toEntity() *property.Property {
	return &property.Property{
		ID:          property.PropertyID(d.ID),
		HostID:      d.HostID,
		Title:       d.Title,
		City:        d.City,
		BasePrice:   money.Money{Amount: d.BasePriceCents, Currency: d.Currency},
		MinimumStay: d.MinimumStay,
	}
}

var _ property.Catalog = (*PropertyRepository)(nil)
