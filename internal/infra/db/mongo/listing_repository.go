package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "tradepost/internal/domain/listing"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return nil, mapStoreError(err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlisting.Listing) error {
	doc := newListingDocument(l)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return mapStoreError(err)
	}
	return nil
}

type listingDocument struct {
	ID         string  `bson:"_id"`
	SellerID   string  `bson:"seller_id"`
	Title      string  `bson:"title"`
	Status     string  `bson:"status"`
	PriceCents int64   `bson:"price_cents"`
	City       string  `bson:"city,omitempty"`
	Lat        float64 `bson:"lat,omitempty"`
	Lon        float64 `bson:"lon,omitempty"`
	CreatedAt  int64   `bson:"created_at"`
}

func newListingDocument(l *domainlisting.Listing) listingDocument {
	return listingDocument{
		ID:         string(l.ID),
		SellerID:   l.SellerID,
		Title:      l.Title,
		Status:     string(l.Status),
		PriceCents: l.PriceCents,
		City:       l.City,
		Lat:        l.Lat,
		Lon:        l.Lon,
		CreatedAt:  timeToMillis(l.CreatedAt),
	}
}

func (d listingDocument) toDomain() *domainlisting.Listing {
	return &domainlisting.Listing{
		ID:         domainlisting.ID(d.ID),
		SellerID:   d.SellerID,
		Title:      d.Title,
		Status:     domainlisting.Status(d.Status),
		PriceCents: d.PriceCents,
		City:       d.City,
		Lat:        d.Lat,
		Lon:        d.Lon,
		CreatedAt:  millisToTime(d.CreatedAt),
	}
}

var _ domainlisting.Repository = (*ListingRepository)(nil)
