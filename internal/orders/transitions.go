package orders

import (
	"time"

	"github.com/safar/orderdesk/internal/models"
)

const (
	DefaultAdminCancelReason    = "Cancelled by admin"
	DefaultCustomerCancelReason = "Cancelled by customer"
)

var allowedTransitions = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderStatusProcessing: {
		models.OrderStatusShipped:   true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusShipped: {
		models.OrderStatusDelivered: true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusDelivered: {},
	models.OrderStatusCancelled: {},
}

func CanTransition(from, to models.OrderStatus) bool {
	return allowedTransitions[from][to]
}

type UpdateStatusOptions struct {
	TrackingNumber string
	Reason         string
	// ExpectedStatus, when set, is the status the caller last saw. The
	// update fails with a TransitionError if the order has moved on.
	ExpectedStatus models.OrderStatus
}

// applyTransition mutates o in place. It must run against the state the
// repository has locked, never against a stale read.
func applyTransition(o *models.Order, to models.OrderStatus, opts UpdateStatusOptions, now time.Time) error {
	if opts.ExpectedStatus != "" && o.Status != opts.ExpectedStatus {
		return &TransitionError{From: o.Status, To: to}
	}
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: o.Status, To: to}
	}

	switch to {
	case models.OrderStatusShipped:
		if opts.TrackingNumber != "" {
			o.TrackingNumber = opts.TrackingNumber
		}
		o.ShippedAt = &now
	case models.OrderStatusDelivered:
		o.DeliveredAt = &now
		// cash is collected at the door
		if o.PaymentMethod == models.PaymentMethodCOD && o.PaymentStatus == models.PaymentStatusPending {
			o.PaymentStatus = models.PaymentStatusCompleted
		}
	case models.OrderStatusCancelled:
		reason := opts.Reason
		if reason == "" {
			reason = DefaultAdminCancelReason
		}
		o.CancellationReason = reason
	}

	o.Status = to
	o.UpdatedAt = now
	return nil
}
