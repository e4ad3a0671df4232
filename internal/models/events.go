package models

const (
	EventOrderCreated = "orderCreated"
	EventOrderUpdated = "orderUpdated"
)

// OrderEvent is published to the channel of the owning user whenever an
// order is created or changes status.
type OrderEvent struct {
	Type   string `json:"event"`
	UserID int64  `json:"user_id"`
	Order  *Order `json:"order"`
}

// Clone returns a deep copy of o, safe to hand to another goroutine.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.ShippedAt != nil {
		t := *o.ShippedAt
		c.ShippedAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}
