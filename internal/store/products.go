package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/safar/orderdesk/internal/models"
)

const productColumns = `id, name, price, images, image, image_url, thumbnail, main_image`

// Catalogue is a read-only view of the products table. It is used to
// label order lines for display, never to reprice them.
type Catalogue struct {
	db *sqlx.DB
}

func NewCatalogue(db *sqlx.DB) *Catalogue {
	return &Catalogue{db: db}
}

// Resolve returns the products found among ids. Missing ids are simply
// absent from the map.
func (c *Catalogue) Resolve(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build product query: %w", err)
	}

	var products []models.Product
	if err := c.db.SelectContext(ctx, &products, c.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	for _, p := range products {
		out[p.ID] = p
	}

	return out, nil
}
