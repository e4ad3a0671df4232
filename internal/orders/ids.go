package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const orderIDPrefix = "MM"

// NewOrderID formats MM<unix millis><0-999>. Uniqueness is enforced by the
// store, not here.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("%s%d%d", orderIDPrefix, now.UnixMilli(), rand.IntN(1000))
}
