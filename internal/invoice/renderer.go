// Package invoice renders delivered orders as single-page PDF invoices.
package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/models"
	"github.com/shopspring/decimal"
)

type ThumbnailKind string

const (
	ThumbnailImage       ThumbnailKind = "image"
	ThumbnailPlaceholder ThumbnailKind = "placeholder"
)

type Company struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

type Options struct {
	Company      Company
	ShippingFee  decimal.Decimal
	TaxRate      decimal.Decimal
	Location     *time.Location
	FetchTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Company:      Company{Name: "MM Store"},
		ShippingFee:  decimal.NewFromInt(50),
		TaxRate:      decimal.RequireFromString("0.18"),
		Location:     time.UTC,
		FetchTimeout: 5 * time.Second,
	}
}

type Row struct {
	Name         string
	Size         string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineTotal    decimal.Decimal
	ThumbnailURL string
	Thumbnail    ThumbnailKind
	// Rendered is false for lines below the table cutoff.
	Rendered bool
}

// Invoice is the rendered document plus the figures and strings drawn on
// it, so callers can assert on content without parsing PDF.
type Invoice struct {
	Number   string
	OrderID  string
	Filename string
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Rows     []Row
	Texts    []string
	PDF      []byte
}

func (inv *Invoice) RenderedRows() int {
	n := 0
	for _, r := range inv.Rows {
		if r.Rendered {
			n++
		}
	}
	return n
}

func (inv *Invoice) Placeholders() int {
	n := 0
	for _, r := range inv.Rows {
		if r.Rendered && r.Thumbnail == ThumbnailPlaceholder {
			n++
		}
	}
	return n
}

type Renderer struct {
	fetcher ImageFetcher
	opts    Options
}

func NewRenderer(fetcher ImageFetcher, opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultOptions().FetchTimeout
	}
	return &Renderer{fetcher: fetcher, opts: opts}
}

// Render builds the invoice for a delivered order whose items carry their
// products. Once started it runs to completion regardless of ctx
// cancellation; only individual image fetches are bounded.
func (r *Renderer) Render(ctx context.Context, order *models.Order) (*Invoice, error) {
	if order == nil {
		return nil, &RenderError{Err: errors.New("order is nil")}
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvoiceNotAvailable, order.OrderID, order.Status)
	}
	if err := checkRenderable(order); err != nil {
		return nil, &RenderError{OrderID: order.OrderID, Err: err}
	}

	ctx = context.WithoutCancel(ctx)
	inv := r.summarize(order)

	issued := order.UpdatedAt
	if order.DeliveredAt != nil {
		issued = *order.DeliveredAt
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(issued)
	pdf.SetModificationDate(issued)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(inv.Number, true)
	pdf.SetAuthor(r.opts.Company.Name, true)
	pdf.SetCreator("orderdesk", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginX, marginX, marginX)
	pdf.AddPage()

	c := newCanvas(pdf)
	l := layout{c: c, r: r, order: order, inv: inv, issued: issued}
	l.draw(ctx)

	if pdf.Err() {
		return nil, &RenderError{OrderID: order.OrderID, Err: pdf.Error()}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{OrderID: order.OrderID, Err: err}
	}

	inv.Texts = c.texts
	inv.PDF = buf.Bytes()

	log.Debug().
		Str("order_id", order.OrderID).
		Int("rows", len(inv.Rows)).
		Int("rendered_rows", inv.RenderedRows()).
		Int("placeholders", inv.Placeholders()).
		Int("bytes", len(inv.PDF)).
		Msg("invoice: rendered")

	return inv, nil
}

func checkRenderable(order *models.Order) error {
	if order.OrderID == "" {
		return errors.New("order id is empty")
	}
	if len(order.Items) == 0 {
		return errors.New("order has no items")
	}
	for i, item := range order.Items {
		if item.Product == nil {
			return fmt.Errorf("item %d: product %d is not resolved", i, item.ProductID)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %d: quantity %d", i, item.Quantity)
		}
	}
	return nil
}

// summarize derives display figures from the stored snapshot. The grand
// total is always the stored total, even when it disagrees with
// subtotal+tax+shipping.
func (r *Renderer) summarize(order *models.Order) *Invoice {
	inv := &Invoice{
		Number:   "INV-" + order.OrderID,
		OrderID:  order.OrderID,
		Filename: Filename(order.OrderID),
		Shipping: r.opts.ShippingFee,
		Total:    order.TotalAmount,
		Rows:     make([]Row, 0, len(order.Items)),
	}

	subtotal := decimal.Zero
	for _, item := range order.Items {
		line := item.LineTotal()
		subtotal = subtotal.Add(line)
		inv.Rows = append(inv.Rows, Row{
			Name:         item.Product.Name,
			Size:         item.Size,
			UnitPrice:    item.Price,
			Quantity:     item.Quantity,
			LineTotal:    line,
			ThumbnailURL: ThumbnailURL(item),
		})
	}

	inv.Subtotal = subtotal
	inv.Tax = subtotal.Mul(r.opts.TaxRate).Round(2)
	if order.DiscountAmount.Valid {
		inv.Discount = order.DiscountAmount.Decimal
	}

	return inv
}

func Filename(orderID string) string {
	return "invoice-" + orderID + ".pdf"
}
