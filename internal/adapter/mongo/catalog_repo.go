package mongo

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"slimmom/internal/domain"
)

// Lookup returns a product from the products collection.
func (s *Store) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	var m productModel
	err := s.db.Collection(colProducts).FindOne(ctx, bson.M{"_id": productID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("lookup product", err)
	}
	rate, err := decimal.NewFromString(m.CaloriesPer100g)
	if err != nil {
		return nil, mapErr("lookup product", err)
	}
	return &domain.Product{ID: m.ID, Title: m.Title, CaloriesPer100g: rate}, nil
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.Collection(colProducts).ReplaceOne(ctx,
		bson.M{"_id": p.ID},
		productModel{ID: p.ID, Title: p.Title, CaloriesPer100g: p.CaloriesPer100g.String()},
		options.Replace().SetUpsert(true),
	)
	return mapErr("put product", err)
}

// DeleteProduct removes a product from the catalog.
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	_, err := s.db.Collection(colProducts).DeleteOne(ctx, bson.M{"_id": productID})
	return mapErr("delete product", err)
}
