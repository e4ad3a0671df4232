package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/invoice"
	"github.com/safar/orderdesk/internal/metrics"
	"github.com/safar/orderdesk/internal/models"
)

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"), userID(r))
	if err != nil {
		respondDomainError(w, r, err, "failed to load order for invoice")
		return
	}
	h.sendInvoice(w, r, order)
}

func (h *Handler) handleAdminInvoice(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderAdmin(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, r, err, "failed to load order for invoice")
		return
	}
	h.sendInvoice(w, r, order)
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request, order *models.Order) {
	if order.Status != models.OrderStatusDelivered {
		h.observeInvoice(metrics.InvoiceUnavailable, 0)
		respondError(w, http.StatusConflict, "invoice is available only for delivered orders")
		return
	}

	if err := h.orders.PopulateProducts(r.Context(), order); err != nil {
		h.observeInvoice(metrics.InvoiceFailed, 0)
		respondDomainError(w, r, err, "failed to resolve invoice products")
		return
	}

	inv, err := h.invoices.Render(r.Context(), order)
	if err != nil {
		if errors.Is(err, invoice.ErrInvoiceNotAvailable) {
			h.observeInvoice(metrics.InvoiceUnavailable, 0)
		} else {
			h.observeInvoice(metrics.InvoiceFailed, 0)
		}
		respondDomainError(w, r, err, "failed to render invoice")
		return
	}
	h.observeInvoice(metrics.InvoiceRendered, inv.Placeholders())

	log.Info().
		Str("order_id", order.OrderID).
		Int("rows", len(inv.Rows)).
		Int("placeholders", inv.Placeholders()).
		Msg("api: invoice generated")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+inv.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(inv.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(inv.PDF); err != nil {
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("api: failed to write invoice")
	}
}

func (h *Handler) observeInvoice(outcome string, placeholders int) {
	if h.metrics != nil {
		h.metrics.ObserveInvoice(outcome, placeholders)
	}
}
