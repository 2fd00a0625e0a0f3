package notifier

import (
	"context"
	"log"
	"time"
)

// Event is a fire-and-forget notification emitted on order, escrow, shop and
// coupon state changes. Delivery is best-effort; consumers live outside this
// service.
type Event struct {
	Type        string                 `json:"type"`
	OrderNumber string                 `json:"order_number,omitempty"`
	ShopID      uint                   `json:"shop_id,omitempty"`
	UserID      uint                   `json:"user_id,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

const (
	EventOrderStatusChanged = "order.status_changed"
	EventEscrowFunded       = "escrow.funded"
	EventEscrowDegraded     = "escrow.degraded"
	EventEscrowReleased     = "escrow.released"
	EventEscrowRefunded     = "escrow.refunded"
	EventShopSuspended      = "shop.suspended"
	EventShopReactivated    = "shop.reactivated"
	EventCouponRedeemed     = "coupon.redeemed"
)

// Notifier publishes events to the external notification subsystem. Failures
// are the caller's to log; they must never fail the triggering operation.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the process log. Used when no broker is
// configured and as the default in tests.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	log.Printf("event %s order=%s shop=%d user=%d", event.Type, event.OrderNumber, event.ShopID, event.UserID)
	return nil
}
