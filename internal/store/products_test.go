package store_test

import (
	"context"
	"testing"

	"github.com/safar/orderdesk/internal/database"
	"github.com/safar/orderdesk/internal/store"
)

func TestCatalogueResolve(t *testing.T) {
	db := setupTestDB(t)
	catalogue := store.NewCatalogue(database.Sqlx(db))
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO products (id, name, price, images, image_url) VALUES
			(1, 'Linen Shirt', 650, '[{"url": "https://cdn.example.com/shirt.png", "public_id": "shirt"}]', ''),
			(2, 'Canvas Tote', 300, '"https://cdn.example.com/tote.png"', ''),
			(3, 'Wool Scarf', 900, '{"secure_url": "https://cdn.example.com/scarf.png"}', ''),
			(4, 'Clay Mug', 250, '[]', 'https://cdn.example.com/mug.png')`)
	if err != nil {
		t.Fatalf("Seed products: %v", err)
	}

	products, err := catalogue.Resolve(ctx, []int64{1, 2, 3, 4, 99})
	if err != nil {
		t.Fatalf("Resolve products: %v", err)
	}

	if len(products) != 4 {
		t.Fatalf("Expected 4 products, got %d", len(products))
	}
	if _, ok := products[99]; ok {
		t.Error("Missing product should be absent from the result")
	}

	wantImages := map[int64]string{
		1: "https://cdn.example.com/shirt.png",
		2: "https://cdn.example.com/tote.png",
		3: "https://cdn.example.com/scarf.png",
		4: "",
	}
	for id, want := range wantImages {
		if got := products[id].Images.First(); got != want {
			t.Errorf("Product %d: expected first image %q, got %q", id, want, got)
		}
	}
	if products[1].Images[0].PublicID != "shirt" {
		t.Errorf("Expected public id to survive, got %+v", products[1].Images)
	}
	if products[4].ImageURL != "https://cdn.example.com/mug.png" {
		t.Errorf("Expected legacy image_url, got %q", products[4].ImageURL)
	}
	if products[1].Name != "Linen Shirt" || products[1].Price.String() != "650" {
		t.Errorf("Unexpected product: %+v", products[1])
	}

	empty, err := catalogue.Resolve(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty result for no ids, got %v, %v", empty, err)
	}
}
