package postgres

import (
	"context"
	"database/sql"
	"errors"

	"slimmom/internal/domain"
)

// Lookup returns a product from the products table.
func (d *DB) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, title, calories_per_100g FROM products WHERE id=$1;", productID,
	).Scan(&p.ID, &p.Title, &p.CaloriesPer100g)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("lookup product", err)
	}
	return &p, nil
}

// PutProduct inserts or replaces a product. Existing diary entries keep
// the rate they were created with.
func (d *DB) PutProduct(ctx context.Context, p domain.Product) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO products(id, title, calories_per_100g) VALUES($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, calories_per_100g = EXCLUDED.calories_per_100g;`,
		p.ID, p.Title, p.CaloriesPer100g)
	return mapErr("put product", err)
}

// DeleteProduct removes a product from the catalog.
func (d *DB) DeleteProduct(ctx context.Context, productID string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM products WHERE id=$1;", productID)
	return mapErr("delete product", err)
}
