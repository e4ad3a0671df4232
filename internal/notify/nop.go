package notify

import (
	"context"

	"github.com/safar/orderdesk/internal/models"
)

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.OrderEvent) {}

func (Nop) Close() error { return nil }
