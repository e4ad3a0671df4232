// Package api exposes the order store and invoice renderer over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/invoice"
	"github.com/safar/orderdesk/internal/metrics"
	"github.com/safar/orderdesk/internal/models"
	"github.com/safar/orderdesk/internal/orders"
	"github.com/safar/orderdesk/internal/store"
	"github.com/shopspring/decimal"
)

const createAttempts = 3

type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string, userID int64) (*models.Order, error)
	GetOrderAdmin(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error)
	ListAllOrders(ctx context.Context, filter store.ListFilter) (*store.OffsetPage, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus, opts orders.UpdateStatusOptions) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string, userID int64, reason string) (*models.Order, error)
	PopulateProducts(ctx context.Context, order *models.Order) error
}

type InvoiceRenderer interface {
	Render(ctx context.Context, order *models.Order) (*invoice.Invoice, error)
}

type Handler struct {
	orders   OrderService
	invoices InvoiceRenderer
	metrics  *metrics.ServerMetrics
}

func NewHandler(svc OrderService, invoices InvoiceRenderer, m *metrics.ServerMetrics) *Handler {
	return &Handler{orders: svc, invoices: invoices, metrics: m}
}

// NewRouter wires the public and admin routes behind the common middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/", h.handleCreateOrder)
		r.Get("/", h.handleListOrders)
		r.Get("/{orderID}", h.handleGetOrder)
		r.Post("/{orderID}/cancel", h.handleCancelOrder)
		r.Get("/{orderID}/invoice", h.handleInvoice)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/", h.handleListAllOrders)
		r.Get("/{orderID}", h.handleGetOrderAdmin)
		r.Patch("/{orderID}/status", h.handleUpdateStatus)
		r.Get("/{orderID}/invoice", h.handleAdminInvoice)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("api: request")
	})
}

type itemPayload struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Image     string          `json:"image"`
}

type createOrderPayload struct {
	Items           []itemPayload          `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod   `json:"payment_method"`
	TotalAmount     *decimal.Decimal       `json:"total_amount"`
	DiscountAmount  *decimal.Decimal       `json:"discount_amount"`
	CouponCode      string                 `json:"coupon_code"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := orders.CreateOrderRequest{
		UserID:          userID(r),
		Items:           make([]orders.ItemRequest, 0, len(payload.Items)),
		ShippingAddress: payload.ShippingAddress,
		PaymentMethod:   payload.PaymentMethod,
		TotalAmount:     payload.TotalAmount,
		DiscountAmount:  payload.DiscountAmount,
		CouponCode:      payload.CouponCode,
	}
	for _, item := range payload.Items {
		req.Items = append(req.Items, orders.ItemRequest(item))
	}

	// a fresh order id is drawn on every attempt
	var order *models.Order
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		order, err = h.orders.CreateOrder(r.Context(), req)
		if !errors.Is(err, orders.ErrConflict) {
			break
		}
		log.Warn().Int("attempt", attempt).Int64("user_id", req.UserID).Msg("api: order id collision, retrying")
	}
	if err != nil {
		respondDomainError(w, r, err, "failed to create order")
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.orders.ListOrders(r.Context(), userID(r), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondDomainError(w, r, err, "failed to list orders")
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"), userID(r))
	if err != nil {
		respondDomainError(w, r, err, "failed to get order")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	// the body is optional, including for chunked requests
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), userID(r), payload.Reason)
	if err != nil {
		respondDomainError(w, r, err, "failed to cancel order")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.orders.ListAllOrders(r.Context(), store.ListFilter{
		Status:   models.OrderStatus(q.Get("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondDomainError(w, r, err, "failed to list all orders")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetOrderAdmin(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderAdmin(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, r, err, "failed to get order")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status         models.OrderStatus `json:"status"`
		TrackingNumber string             `json:"tracking_number"`
		Reason         string             `json:"reason"`
		ExpectedStatus models.OrderStatus `json:"expected_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), payload.Status, orders.UpdateStatusOptions{
		TrackingNumber: payload.TrackingNumber,
		Reason:         payload.Reason,
		ExpectedStatus: payload.ExpectedStatus,
	})
	if err != nil {
		respondDomainError(w, r, err, "failed to update order status")
		return
	}

	respondJSON(w, http.StatusOK, order)
}
