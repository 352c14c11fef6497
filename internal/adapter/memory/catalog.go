package memory

import (
	"context"
	"sync"

	"slimmom/internal/domain"
)

// Catalog is an in-memory product catalog.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

var _ domain.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog seeded with products.
func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Delete removes a product.
func (c *Catalog) Delete(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, productID)
}

// Lookup returns the product or domain.ErrNotFound.
func (c *Catalog) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// PutProduct adds or replaces a product.
func (c *Catalog) PutProduct(ctx context.Context, p domain.Product) error {
	c.Put(p)
	return nil
}

// DeleteProduct removes a product. Diary entries referencing it keep their
// frozen snapshot.
func (c *Catalog) DeleteProduct(ctx context.Context, productID string) error {
	c.Delete(productID)
	return nil
}
