package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	PaymentMethodCOD      PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodRazorpay || m == PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type ShippingAddress struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Landmark string `json:"landmark,omitempty"`
}

type Order struct {
	ID                 int64               `json:"-"`
	OrderID            string              `json:"order_id"`
	UserID             int64               `json:"user_id"`
	Items              []OrderItem         `json:"items"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	DiscountAmount     decimal.NullDecimal `json:"discount_amount"`
	CouponCode         string              `json:"coupon_code,omitempty"`
	ShippingAddress    ShippingAddress     `json:"shipping_address"`
	PaymentMethod      PaymentMethod       `json:"payment_method"`
	PaymentStatus      PaymentStatus       `json:"payment_status"`
	Status             OrderStatus         `json:"status"`
	TrackingNumber     string              `json:"tracking_number,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Version            int                 `json:"version"`
}

// OrderItem carries the price snapshot taken at checkout. Product is
// resolved for display only and never written back.
type OrderItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size,omitempty"`
	Image     string          `json:"image,omitempty"`
	Product   *Product        `json:"product,omitempty"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Product struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Images    ImageList       `json:"images" db:"images"`
	Image     string          `json:"image,omitempty" db:"image"`
	ImageURL  string          `json:"image_url,omitempty" db:"image_url"`
	Thumbnail string          `json:"thumbnail,omitempty" db:"thumbnail"`
	MainImage string          `json:"main_image,omitempty" db:"main_image"`
}

// LegacyImages returns the single-image fields in lookup order.
func (p Product) LegacyImages() []string {
	return []string{p.Image, p.ImageURL, p.Thumbnail, p.MainImage}
}
