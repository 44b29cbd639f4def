package repository

import (
	"context"

	"commerce-core/internal/model"
)

// CatalogResolver resolves free-text product names against the local
// products table. A search service can replace it behind the same method.
type CatalogResolver struct {
	products ProductRepository
}

// NewCatalogResolver creates a resolver backed by products.
func NewCatalogResolver(products ProductRepository) *CatalogResolver {
	return &CatalogResolver{products: products}
}

// ResolveProduct returns model.ErrProductNotFound when nothing matches.
func (c *CatalogResolver) ResolveProduct(ctx context.Context, name string) (*model.ResolvedProduct, error) {
	p, err := c.products.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.ErrProductNotFound.WithMessage("no product matches %q", name)
	}
	return p, nil
}
