package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/database"
	"github.com/safar/orderdesk/internal/models"
	"github.com/safar/orderdesk/internal/store"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Repository interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindByOrderIDForUser(ctx context.Context, orderID string, userID int64) (*models.Order, error)
	Update(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error)
	List(ctx context.Context, filter store.ListFilter) (*store.OffsetPage, error)
}

type Catalogue interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

// Notifier delivers live updates keyed by the owning user. Publish must
// return promptly and never fail the caller.
type Notifier interface {
	Publish(ctx context.Context, event models.OrderEvent)
}

type Options struct {
	Now        func() time.Time
	NewOrderID func(time.Time) string
}

type Service struct {
	repo       Repository
	catalogue  Catalogue
	notifier   Notifier
	now        func() time.Time
	newOrderID func(time.Time) string
}

func NewService(repo Repository, catalogue Catalogue, notifier Notifier, opts Options) *Service {
	s := &Service{
		repo:       repo,
		catalogue:  catalogue,
		notifier:   notifier,
		now:        opts.Now,
		newOrderID: opts.NewOrderID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newOrderID == nil {
		s.newOrderID = NewOrderID
	}
	return s
}

type CreateOrderRequest struct {
	UserID          int64
	Items           []ItemRequest
	ShippingAddress models.ShippingAddress
	PaymentMethod   models.PaymentMethod
	TotalAmount     *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	CouponCode      string
}

type ItemRequest struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
	Size      string
	Image     string
}

func (r CreateOrderRequest) Validate() error {
	if r.UserID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, item := range r.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ProductID <= 0 {
			return &ValidationError{Field: field + ".product_id", Reason: "is required"}
		}
		if item.Quantity < 1 {
			return &ValidationError{Field: field + ".quantity", Reason: "must be at least 1"}
		}
		if item.Price.IsNegative() {
			return &ValidationError{Field: field + ".price", Reason: "must not be negative"}
		}
	}
	if r.TotalAmount == nil {
		return &ValidationError{Field: "total_amount", Reason: "is required"}
	}
	if r.TotalAmount.IsNegative() {
		return &ValidationError{Field: "total_amount", Reason: "must not be negative"}
	}
	if r.DiscountAmount != nil && r.DiscountAmount.IsNegative() {
		return &ValidationError{Field: "discount_amount", Reason: "must not be negative"}
	}
	if !r.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("must be one of razorpay, cod (got %q)", r.PaymentMethod)}
	}

	addr := r.ShippingAddress
	required := []struct {
		field string
		value string
	}{
		{"name", addr.Name},
		{"email", addr.Email},
		{"phone", addr.Phone},
		{"address", addr.Address},
		{"city", addr.City},
		{"state", addr.State},
		{"pincode", addr.Pincode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: "shipping_address." + f.field, Reason: "is required"}
		}
	}

	return nil
}

func initialPaymentStatus(m models.PaymentMethod) models.PaymentStatus {
	if m == models.PaymentMethodRazorpay {
		return models.PaymentStatusCompleted
	}
	return models.PaymentStatusPending
}

// CreateOrder stores the order with the caller's total as given. An id
// collision surfaces as ErrConflict; retrying is up to the caller.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		log.Warn().Err(err).Int64("user_id", req.UserID).Msg("orders: rejected order creation")
		return nil, err
	}

	now := s.now().UTC()
	order := &models.Order{
		OrderID:         s.newOrderID(now),
		UserID:          req.UserID,
		Items:           make([]models.OrderItem, 0, len(req.Items)),
		TotalAmount:     *req.TotalAmount,
		CouponCode:      strings.TrimSpace(req.CouponCode),
		ShippingAddress: trimAddress(req.ShippingAddress),
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   initialPaymentStatus(req.PaymentMethod),
		Status:          models.OrderStatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if req.DiscountAmount != nil {
		order.DiscountAmount = decimal.NewNullDecimal(*req.DiscountAmount)
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Size:      strings.TrimSpace(item.Size),
			Image:     strings.TrimSpace(item.Image),
		})
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		if errors.Is(err, database.ErrDuplicateOrderID) {
			log.Warn().Str("order_id", order.OrderID).Msg("orders: order id collision")
			return nil, fmt.Errorf("%w: order id %s already exists", ErrConflict, order.OrderID)
		}
		if errors.Is(err, database.ErrTransient) {
			log.Warn().Err(err).Str("order_id", order.OrderID).Msg("orders: transient failure inserting order")
			return nil, fmt.Errorf("%w: create order: %w", ErrUnavailable, err)
		}
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("orders: failed to insert order")
		return nil, fmt.Errorf("create order: %w", err)
	}

	log.Info().
		Str("order_id", order.OrderID).
		Int64("user_id", order.UserID).
		Str("total_amount", order.TotalAmount.String()).
		Msg("orders: order created")

	s.publish(ctx, models.EventOrderCreated, order)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string, userID int64) (*models.Order, error) {
	order, err := s.repo.FindByOrderIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, mapRepositoryError(err, orderID)
	}
	return order, nil
}

func (s *Service) GetOrderAdmin(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapRepositoryError(err, orderID)
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	if cursor != "" {
		if _, err := store.DecodeCursor(cursor); err != nil {
			return nil, &ValidationError{Field: "cursor", Reason: "is malformed"}
		}
	}
	page, err := s.repo.ListByUser(ctx, userID, cursor, clampPageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

func (s *Service) ListAllOrders(ctx context.Context, filter store.ListFilter) (*store.OffsetPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", filter.Status)}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PageSize = clampPageSize(filter.PageSize)

	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return page, nil
}

// UpdateStatus is the admin transition. The legality check runs against
// the locked row. Callers that pass ExpectedStatus get first-writer-wins:
// of two racing transitions from the same observed state only one lands.
// Without it, ship then cancel both succeed since shipped -> cancelled is
// legal, so a single winner requires ExpectedStatus.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, opts UpdateStatusOptions) (*models.Order, error) {
	if !newStatus.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}
	if opts.ExpectedStatus != "" && !opts.ExpectedStatus.Valid() {
		return nil, &ValidationError{Field: "expected_status", Reason: fmt.Sprintf("unknown status %q", opts.ExpectedStatus)}
	}
	opts.TrackingNumber = strings.TrimSpace(opts.TrackingNumber)
	opts.Reason = strings.TrimSpace(opts.Reason)

	var previous models.OrderStatus
	order, err := s.repo.Update(ctx, orderID, func(o *models.Order) error {
		previous = o.Status
		return applyTransition(o, newStatus, opts, s.now().UTC())
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			log.Warn().
				Err(err).
				Str("order_id", orderID).
				Bool("terminal", previous.Terminal()).
				Msg("orders: rejected status update")
		}
		return nil, mapRepositoryError(err, orderID)
	}

	log.Info().
		Str("order_id", orderID).
		Str("old_status", previous.String()).
		Str("new_status", newStatus.String()).
		Msg("orders: status updated")

	s.publish(ctx, models.EventOrderUpdated, order)
	return order, nil
}

// CancelOrder is the owner-initiated cancellation.
func (s *Service) CancelOrder(ctx context.Context, orderID string, userID int64, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCustomerCancelReason
	}

	order, err := s.repo.Update(ctx, orderID, func(o *models.Order) error {
		if o.UserID != userID {
			return database.ErrOrderNotFound
		}
		return applyTransition(o, models.OrderStatusCancelled, UpdateStatusOptions{Reason: reason}, s.now().UTC())
	})
	if err != nil {
		return nil, mapRepositoryError(err, orderID)
	}

	log.Info().Str("order_id", orderID).Int64("user_id", userID).Msg("orders: order cancelled by owner")

	s.publish(ctx, models.EventOrderUpdated, order)
	return order, nil
}

// PopulateProducts attaches catalogue entries to each line for display.
// Lines whose product has since been removed get a stand-in name.
func (s *Service) PopulateProducts(ctx context.Context, order *models.Order) error {
	ids := make([]int64, 0, len(order.Items))
	seen := make(map[int64]bool, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.catalogue.Resolve(ctx, ids)
	if err != nil {
		return fmt.Errorf("populate products: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		p, ok := products[item.ProductID]
		if !ok {
			log.Warn().Str("order_id", order.OrderID).Int64("product_id", item.ProductID).Msg("orders: product missing from catalogue")
			p = models.Product{ID: item.ProductID, Name: fmt.Sprintf("Product #%d", item.ProductID)}
		}
		item.Product = &p
	}

	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, models.OrderEvent{
		Type:   eventType,
		UserID: order.UserID,
		Order:  order.Clone(),
	})
}

func mapRepositoryError(err error, orderID string) error {
	switch {
	case errors.Is(err, database.ErrOrderNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, orderID)
	case errors.Is(err, database.ErrConcurrentUpdate):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, orderID)
	case errors.Is(err, database.ErrTransient):
		return fmt.Errorf("%w: order %s: %w", ErrUnavailable, orderID, err)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrValidation):
		return err
	}
	return fmt.Errorf("order %s: %w", orderID, err)
}

func clampPageSize(size int) int {
	if size < 1 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

func trimAddress(a models.ShippingAddress) models.ShippingAddress {
	return models.ShippingAddress{
		Name:     strings.TrimSpace(a.Name),
		Email:    strings.TrimSpace(a.Email),
		Phone:    strings.TrimSpace(a.Phone),
		Address:  strings.TrimSpace(a.Address),
		City:     strings.TrimSpace(a.City),
		State:    strings.TrimSpace(a.State),
		Pincode:  strings.TrimSpace(a.Pincode),
		Landmark: strings.TrimSpace(a.Landmark),
	}
}
