package invoice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safar/orderdesk/internal/models"
)

// placeholderHosts serve stock or dummy pictures that are never worth
// fetching for a printed invoice.
var placeholderHosts = []string{
	"via.placeholder.com",
	"placeholder.com",
	"placehold.co",
	"placehold.it",
	"dummyimage.com",
	"images.unsplash.com",
	"source.unsplash.com",
	"picsum.photos",
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ThumbnailURL picks the image for a line: the item override, then the
// product's first image, then the legacy single-image fields.
func ThumbnailURL(item models.OrderItem) string {
	candidates := []string{item.Image}
	if item.Product != nil {
		candidates = append(candidates, item.Product.Images.First())
		candidates = append(candidates, item.Product.LegacyImages()...)
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// Fetchable reports whether raw points at a real http(s) image host.
func Fetchable(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range placeholderHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return false
		}
	}
	return true
}

const defaultMaxImageBytes = 5 << 20

type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: defaultMaxImageBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/gif")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch image: larger than %d bytes", f.maxBytes)
	}

	return data, nil
}
