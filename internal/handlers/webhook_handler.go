package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/redis"
	"marketplace/internal/services"
	"marketplace/pkg/delivery"

	"github.com/gin-gonic/gin"
)

// DeliveryTracker is the slice of the delivery provider consumed here.
type DeliveryTracker interface {
	TrackDelivery(ctx context.Context, reference string) ([]delivery.TrackingEvent, error)
}

type WebhookHandler struct {
	orderService  services.OrderService
	escrowService services.EscrowService
	tracker       DeliveryTracker
	cache         *redis.Client
	webhookSecret string
	dedupTTL      time.Duration
}

func NewWebhookHandler(
	orderService services.OrderService,
	escrowService services.EscrowService,
	tracker DeliveryTracker,
	cache *redis.Client,
	webhookSecret string,
	dedupTTL time.Duration,
) *WebhookHandler {
	return &WebhookHandler{
		orderService:  orderService,
		escrowService: escrowService,
		tracker:       tracker,
		cache:         cache,
		webhookSecret: webhookSecret,
		dedupTTL:      dedupTTL,
	}
}

type paymentWebhookPayload struct {
	EventID   string `json:"event_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"` // success, failed
}

// HandlePaymentWebhook receives asynchronous status pushes from the payment
// gateway. Deliveries are at-least-once: the event is claimed in Redis before
// processing and already-applied states no-op with 200 so replays are safe.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-Webhook-Secret")), []byte(h.webhookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	var payload paymentWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	eventKey := payload.EventID
	if eventKey == "" {
		eventKey = payload.Reference + ":" + payload.Status
	}

	claimed, err := h.cache.ClaimEvent(c.Request.Context(), eventKey, h.dedupTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !claimed {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	if err := h.processPaymentEvent(c.Request.Context(), &payload); err != nil {
		// Release the claim so the gateway's retry can reprocess.
		if relErr := h.cache.ReleaseEvent(context.Background(), eventKey); relErr != nil {
			log.Printf("failed to release webhook claim %s: %v", eventKey, relErr)
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (h *WebhookHandler) processPaymentEvent(ctx context.Context, payload *paymentWebhookPayload) error {
	order, err := h.orderService.GetOrderByPaymentRef(payload.Reference)
	if err != nil {
		return err
	}

	// Terminal orders take no further webhook-driven changes.
	if models.IsTerminalStatus(models.OrderStatus(order.Status)) {
		return nil
	}

	switch payload.Status {
	case "success":
		if order.Status == string(models.OrderPending) {
			if _, err := h.orderService.Transition(ctx, order.ID, models.OrderConfirmed, "payment confirmed by gateway"); err != nil {
				return err
			}
		}
		return h.escrowService.FundEscrow(ctx, order.ID)
	case "failed":
		if err := h.orderService.MarkPaymentFailed(order.ID); err != nil {
			return err
		}
		if order.CanBeCancelled() {
			_, err := h.orderService.Transition(ctx, order.ID, models.OrderCancelled, "payment failed")
			return err
		}
		return nil
	default:
		log.Printf("ignoring webhook with unknown status %q for %s", payload.Status, payload.Reference)
		return nil
	}
}

// SyncDelivery polls the delivery provider and applies any resulting status
// transition. A shipment already marked delivered is a no-op.
func (h *WebhookHandler) SyncDelivery(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	order, err := h.orderService.GetOrderByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	events, err := h.tracker.TrackDelivery(c.Request.Context(), order.OrderNumber)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "delivery provider unavailable"})
		return
	}

	for _, event := range events {
		if event.Status == "delivered" && order.Status == string(models.OrderShipped) {
			order, err = h.orderService.Transition(c.Request.Context(), order.ID, models.OrderDelivered, "delivery confirmed by provider")
			if err != nil {
				respondError(c, err)
				return
			}
		}
	}

	c.JSON(http.StatusOK, order)
}
