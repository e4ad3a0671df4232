package invoice

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/models"
)

// Page geometry in millimetres, A4 portrait.
const (
	fontFamily = "Helvetica"

	pageWidth = 210.0
	marginX   = 15.0
	rightEdge = pageWidth - marginX

	headerHeight = 36.0
	partiesTop   = 48.0
	billToX      = 110.0
	cardsTop     = 90.0
	cardHeight   = 16.0
	cardGap      = 4.0
	badgesTop    = 112.0

	tableTop     = 126.0
	headerRowH   = 8.0
	rowHeight    = 16.0
	tableCutoff  = 226.0
	thumbSize    = 12.0
	nameX        = 33.0
	nameWidth    = 85.0
	unitPriceX   = 148.0
	quantityX    = 163.0
	lineTotalX   = rightEdge - 2
	totalsLeft   = 120.0
	totalsTop    = tableCutoff + 6
	totalsLineH  = 6.0
	footerTop    = 282.0
	minCardFont  = 6.0
	cardFontSize = 9.5
)

type rgb struct{ r, g, b int }

var (
	colorInk       = rgb{33, 37, 41}
	colorMuted     = rgb{108, 117, 125}
	colorWhite     = rgb{255, 255, 255}
	colorAccent    = rgb{255, 153, 0}
	colorCard      = rgb{245, 246, 248}
	colorBorder    = rgb{225, 228, 232}
	colorStripe    = rgb{250, 250, 250}
	colorThumbnail = rgb{222, 226, 230}
	colorSuccess   = rgb{40, 167, 69}
	colorWarning   = rgb{255, 193, 7}
	colorDanger    = rgb{220, 53, 69}
)

// canvas records every string it draws alongside the PDF output.
type canvas struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	texts []string
}

func newCanvas(pdf *fpdf.Fpdf) *canvas {
	return &canvas{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (c *canvas) font(style string, size float64) {
	c.pdf.SetFont(fontFamily, style, size)
}

func (c *canvas) textColor(col rgb) {
	c.pdf.SetTextColor(col.r, col.g, col.b)
}

func (c *canvas) fillRect(x, y, w, h float64, col rgb) {
	c.pdf.SetFillColor(col.r, col.g, col.b)
	c.pdf.Rect(x, y, w, h, "F")
}

func (c *canvas) boxRect(x, y, w, h float64, fill, border rgb) {
	c.pdf.SetFillColor(fill.r, fill.g, fill.b)
	c.pdf.SetDrawColor(border.r, border.g, border.b)
	c.pdf.Rect(x, y, w, h, "FD")
}

func (c *canvas) line(x1, y1, x2, y2 float64, col rgb) {
	c.pdf.SetDrawColor(col.r, col.g, col.b)
	c.pdf.SetLineWidth(0.2)
	c.pdf.Line(x1, y1, x2, y2)
}

func (c *canvas) width(s string) float64 {
	return c.pdf.GetStringWidth(c.tr(s))
}

func (c *canvas) text(x, y float64, s string) {
	if s == "" {
		return
	}
	c.texts = append(c.texts, s)
	c.pdf.Text(x, y, c.tr(s))
}

func (c *canvas) textRight(right, y float64, s string) {
	c.text(right-c.width(s), y, s)
}

func (c *canvas) textCenter(center, y float64, s string) {
	c.text(center-c.width(s)/2, y, s)
}

// truncate shortens s with an ellipsis until it fits in w at the current font.
func (c *canvas) truncate(s string, w float64) string {
	if c.width(s) <= w {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimRight(string(runes), " ") + "..."
		if c.width(candidate) <= w {
			return candidate
		}
	}
	return "..."
}

// wrap splits s on spaces into lines no wider than w at the current font.
func (c *canvas) wrap(s string, w float64) []string {
	var lines []string
	var current string
	for _, word := range strings.Fields(s) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && c.width(candidate) > w {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

type layout struct {
	c      *canvas
	r      *Renderer
	order  *models.Order
	inv    *Invoice
	issued time.Time
}

func (l *layout) draw(ctx context.Context) {
	l.header()
	l.parties()
	l.cards()
	l.badges()
	l.table(ctx)
	l.totals()
	l.footer()
}

func (l *layout) header() {
	c := l.c
	company := l.r.opts.Company

	c.fillRect(0, 0, pageWidth, headerHeight, colorInk)
	c.fillRect(marginX, 11, 14, 14, colorAccent)

	c.textColor(colorWhite)
	c.font("B", 12)
	c.textCenter(marginX+7, 20.2, initials(company.Name))

	c.font("B", 18)
	c.text(nameX, 19, company.Name)

	var contact []string
	for _, s := range []string{company.Email, company.Phone} {
		if s != "" {
			contact = append(contact, s)
		}
	}
	c.font("", 8.5)
	c.text(nameX, 26, strings.Join(contact, "  |  "))

	c.font("B", 22)
	c.textRight(rightEdge, 20, "INVOICE")
	c.font("", 9)
	c.textRight(rightEdge, 27, l.inv.Number)
}

func (l *layout) parties() {
	c := l.c
	company := l.r.opts.Company
	addr := l.order.ShippingAddress
	colWidth := billToX - marginX - 10

	c.textColor(colorMuted)
	c.font("B", 9)
	c.text(marginX, partiesTop, "FROM")
	c.text(billToX, partiesTop, "BILL TO")

	y := partiesTop + 6
	c.textColor(colorInk)
	c.font("B", 10.5)
	c.text(marginX, y, company.Name)
	c.font("", 9.5)
	for _, line := range c.wrap(company.Address, colWidth) {
		y += 5
		c.text(marginX, y, line)
	}

	y = partiesTop + 6
	c.font("B", 10.5)
	c.text(billToX, y, addr.Name)
	c.font("", 9.5)
	lines := c.wrap(addr.Address, rightEdge-billToX)
	lines = append(lines, fmt.Sprintf("%s, %s - %s", addr.City, addr.State, addr.Pincode))
	if addr.Landmark != "" {
		lines = append(lines, "Landmark: "+addr.Landmark)
	}
	lines = append(lines, "Phone: "+addr.Phone, "Email: "+addr.Email)
	for _, line := range lines {
		y += 5
		c.text(billToX, y, line)
	}
}

func (l *layout) cards() {
	c := l.c
	loc := l.r.opts.Location
	cards := []struct{ label, value string }{
		{"Invoice No.", l.inv.Number},
		{"Invoice Date", formatDate(l.issued, loc)},
		{"Order Date", formatDate(l.order.CreatedAt, loc)},
		{"Payment Method", paymentMethodLabel(l.order.PaymentMethod)},
	}

	w := (rightEdge - marginX - cardGap*float64(len(cards)-1)) / float64(len(cards))
	for i, card := range cards {
		x := marginX + float64(i)*(w+cardGap)
		c.boxRect(x, cardsTop, w, cardHeight, colorCard, colorBorder)

		c.textColor(colorMuted)
		c.font("", 7.5)
		c.text(x+3, cardsTop+5.5, card.label)

		c.textColor(colorInk)
		size := cardFontSize
		c.font("B", size)
		for c.width(card.value) > w-6 && size > minCardFont {
			size -= 0.5
			c.font("B", size)
		}
		c.text(x+3, cardsTop+12, c.truncate(card.value, w-6))
	}
}

func (l *layout) badges() {
	c := l.c
	x := marginX

	badge := func(label string, fill, ink rgb) {
		c.font("B", 8)
		w := c.width(label) + 8
		c.fillRect(x, badgesTop, w, 7, fill)
		c.textColor(ink)
		c.text(x+4, badgesTop+4.8, label)
		x += w + 3
	}

	badge("ORDER: "+strings.ToUpper(string(l.order.Status)), colorSuccess, colorWhite)

	payment := "PAYMENT: " + strings.ToUpper(string(l.order.PaymentStatus))
	switch l.order.PaymentStatus {
	case models.PaymentStatusCompleted:
		badge(payment, colorSuccess, colorWhite)
	case models.PaymentStatusFailed:
		badge(payment, colorDanger, colorWhite)
	default:
		badge(payment, colorWarning, colorInk)
	}
}

func (l *layout) table(ctx context.Context) {
	c := l.c

	c.fillRect(marginX, tableTop, rightEdge-marginX, headerRowH, colorInk)
	c.textColor(colorWhite)
	c.font("B", 9)
	headerY := tableTop + 5.5
	c.text(marginX+2, headerY, "Item")
	c.textRight(unitPriceX, headerY, "Unit Price")
	c.textCenter(quantityX, headerY, "Qty")
	c.textRight(lineTotalX, headerY, "Total")

	y := tableTop + headerRowH
	for i := range l.inv.Rows {
		row := &l.inv.Rows[i]
		// rows crossing the cutoff are dropped, not flowed to a new page
		if y+rowHeight > tableCutoff {
			continue
		}
		l.tableRow(ctx, i, row, y)
		y += rowHeight
	}

	c.line(marginX, y, rightEdge, y, colorBorder)
}

func (l *layout) tableRow(ctx context.Context, i int, row *Row, y float64) {
	c := l.c
	row.Rendered = true

	if i%2 == 1 {
		c.fillRect(marginX, y, rightEdge-marginX, rowHeight, colorStripe)
	}

	row.Thumbnail = l.thumbnail(ctx, i, row.ThumbnailURL, marginX+2, y+2)

	c.textColor(colorInk)
	c.font("B", 9.5)
	c.text(nameX, y+6.5, c.truncate(row.Name, nameWidth))
	if row.Size != "" {
		c.textColor(colorMuted)
		c.font("", 8)
		c.text(nameX, y+11.5, "Size: "+row.Size)
	}

	c.textColor(colorInk)
	c.font("", 9.5)
	c.textRight(unitPriceX, y+9, money(row.UnitPrice))
	c.textCenter(quantityX, y+9, fmt.Sprintf("%d", row.Quantity))
	c.font("B", 9.5)
	c.textRight(lineTotalX, y+9, money(row.LineTotal))
}

// thumbnail draws the row image or a placeholder block. It never fails
// the document.
func (l *layout) thumbnail(ctx context.Context, i int, url string, x, y float64) ThumbnailKind {
	placeholder := func() ThumbnailKind {
		l.c.fillRect(x, y, thumbSize, thumbSize, colorThumbnail)
		return ThumbnailPlaceholder
	}

	if !Fetchable(url) || l.r.fetcher == nil {
		return placeholder()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.r.opts.FetchTimeout)
	data, err := l.r.fetcher.Fetch(fetchCtx, url)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("order_id", l.order.OrderID).Str("url", url).Msg("invoice: thumbnail fetch failed")
		return placeholder()
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Str("order_id", l.order.OrderID).Str("url", url).Msg("invoice: thumbnail is not a decodable image")
		return placeholder()
	}

	imageType := map[string]string{"png": "PNG", "jpeg": "JPG", "gif": "GIF"}[format]
	if imageType == "" {
		log.Warn().Str("order_id", l.order.OrderID).Str("url", url).Str("format", format).Msg("invoice: unsupported thumbnail format")
		return placeholder()
	}

	name := fmt.Sprintf("thumb-%d", i)
	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf := l.c.pdf
	if info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data)); info == nil || pdf.Err() {
		log.Warn().Err(pdf.Error()).Str("order_id", l.order.OrderID).Str("url", url).Msg("invoice: thumbnail rejected by pdf encoder")
		pdf.ClearError()
		return placeholder()
	}

	pdf.ImageOptions(name, x, y, thumbSize, thumbSize, false, opts, 0, "")
	return ThumbnailImage
}

func (l *layout) totals() {
	c := l.c
	inv := l.inv
	y := totalsTop

	entry := func(label, value string) {
		c.textColor(colorMuted)
		c.font("", 9.5)
		c.text(totalsLeft, y, label)
		c.textColor(colorInk)
		c.textRight(lineTotalX, y, value)
		y += totalsLineH
	}

	entry("Subtotal", money(inv.Subtotal))
	entry("Tax ("+percent(l.r.opts.TaxRate)+")", money(inv.Tax))
	entry("Shipping", money(inv.Shipping))
	if inv.Discount.IsPositive() {
		label := "Discount"
		if l.order.CouponCode != "" {
			label += " (" + l.order.CouponCode + ")"
		}
		entry(label, "- "+money(inv.Discount))
	}

	c.line(totalsLeft, y-3, rightEdge, y-3, colorBorder)
	c.fillRect(totalsLeft-2, y-1, rightEdge-totalsLeft+2, 9, colorAccent)
	c.textColor(colorInk)
	c.font("B", 11.5)
	c.text(totalsLeft, y+5.2, "Total")
	c.textRight(lineTotalX, y+5.2, money(inv.Total))
}

func (l *layout) footer() {
	c := l.c
	c.line(marginX, footerTop-6, rightEdge, footerTop-6, colorBorder)
	c.textColor(colorMuted)
	c.font("", 9)
	c.textCenter(pageWidth/2, footerTop, "Thank you for shopping with "+l.r.opts.Company.Name+"!")
	c.font("", 7.5)
	c.textCenter(pageWidth/2, footerTop+5, "This is a computer-generated invoice and does not require a signature.")
}
