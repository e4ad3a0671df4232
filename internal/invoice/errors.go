package invoice

import (
	"errors"
	"fmt"
)

var (
	ErrInvoiceNotAvailable = errors.New("invoice not available")
	ErrRender              = errors.New("invoice render failed")
)

// RenderError is fatal for the whole document; no bytes accompany it.
type RenderError struct {
	OrderID string
	Err     error
}

func (e *RenderError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("render invoice: %v", e.Err)
	}
	return fmt.Sprintf("render invoice for order %s: %v", e.OrderID, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}
