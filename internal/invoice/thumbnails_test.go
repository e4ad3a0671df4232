package invoice_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/safar/orderdesk/internal/invoice"
	"github.com/safar/orderdesk/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatINR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"5", "5.00"},
		{"999.5", "999.50"},
		{"1000", "1,000.00"},
		{"12345.678", "12,345.68"},
		{"100000", "1,00,000.00"},
		{"1234567", "12,34,567.00"},
		{"123456789.1", "12,34,56,789.10"},
		{"-2500", "-2,500.00"},
		{"-0.001", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, invoice.FormatINR(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestThumbnailURLPrecedence(t *testing.T) {
	product := &models.Product{
		Images:    models.ImageList{{URL: "https://cdn.example.com/first.png"}, {URL: "https://cdn.example.com/second.png"}},
		ImageURL:  "https://cdn.example.com/legacy.png",
		MainImage: "https://cdn.example.com/main.png",
	}

	item := models.OrderItem{Image: "https://cdn.example.com/override.png", Product: product}
	assert.Equal(t, "https://cdn.example.com/override.png", invoice.ThumbnailURL(item))

	item.Image = "  "
	assert.Equal(t, "https://cdn.example.com/first.png", invoice.ThumbnailURL(item))

	product.Images = nil
	assert.Equal(t, "https://cdn.example.com/legacy.png", invoice.ThumbnailURL(item))

	product.ImageURL = ""
	assert.Equal(t, "https://cdn.example.com/main.png", invoice.ThumbnailURL(item))

	product.MainImage = ""
	assert.Empty(t, invoice.ThumbnailURL(item))
	assert.Empty(t, invoice.ThumbnailURL(models.OrderItem{}))
}

func TestFetchable(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/a.png", true},
		{"http://res.cloudinary.com/demo/image/upload/a.jpg", true},
		{"", false},
		{"not a url", false},
		{"ftp://files.example.com/a.png", false},
		{"data:image/png;base64,AAAA", false},
		{"https://via.placeholder.com/150", false},
		{"https://placehold.co/600x400", false},
		{"https://images.unsplash.com/photo-1", false},
		{"https://fastly.picsum.photos/id/1/200", false},
		{"https://VIA.PLACEHOLDER.COM/150", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, invoice.Fetchable(tt.url))
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(img)
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := invoice.NewHTTPFetcher(time.Second)

	data, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, img, data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "unexpected status 404")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL+"/slow.png")
	assert.Error(t, err)
}
