package services

import (
	"context"
	"log"
	"strings"
	"time"

	"marketplace/internal/errs"
	"marketplace/internal/models"
	"marketplace/internal/notifier"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetricsRecomputer is the capability the ledger needs after a terminal
// transition. The shop trust monitor implements it; the ledger never reads
// shop state back.
type MetricsRecomputer interface {
	RecomputeMetrics(ctx context.Context, shopID uint) error
}

type OrderItemInput struct {
	ProductID   uint            `json:"product_id"`
	CategoryID  uint            `json:"category_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type CreateOrderInput struct {
	BuyerID         uint             `json:"buyer_id"`
	SellerID        uint             `json:"seller_id"`
	ShopID          uint             `json:"shop_id"`
	Items           []OrderItemInput `json:"items"`
	ShippingAddress string           `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
	ShippingFee     decimal.Decimal  `json:"shipping_fee"`
	TaxAmount       decimal.Decimal  `json:"tax_amount"`
	CouponCode      string           `json:"coupon_code"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Transition(ctx context.Context, orderID uint, newStatus models.OrderStatus, note string) (*models.Order, error)
	MarkPaymentFailed(orderID uint) error
	GetOrderByID(id uint) (*models.Order, error)
	GetOrderByNumber(orderNumber string) (*models.Order, error)
	GetOrderByPaymentRef(paymentRef string) (*models.Order, error)
	GetOrdersByBuyer(buyerID uint) ([]models.Order, error)
	GetOrdersByShop(shopID uint) ([]models.Order, error)
}

type orderService struct {
	orderRepo     repository.OrderRepository
	couponService CouponService
	metrics       MetricsRecomputer
	events        notifier.Notifier
}

func NewOrderService(orderRepo repository.OrderRepository, couponService CouponService, metrics MetricsRecomputer, events notifier.Notifier) OrderService {
	return &orderService{
		orderRepo:     orderRepo,
		couponService: couponService,
		metrics:       metrics,
		events:        events,
	}
}

// CreateOrder builds the order from its items at checkout. Totals are always
// recomputed here; callers never supply them.
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, errs.Validation("order must contain at least one item")
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	productIDs := make([]uint, 0, len(input.Items))
	categoryIDs := make([]uint, 0, len(input.Items))
	for _, item := range input.Items {
		if item.UnitPrice.IsNegative() {
			return nil, errs.Validation("item %s has a negative unit price", item.ProductName)
		}
		if item.Quantity <= 0 {
			return nil, errs.Validation("item %s has a non-positive quantity", item.ProductName)
		}

		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			CategoryID:  item.CategoryID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    lineTotal,
		})
		productIDs = append(productIDs, item.ProductID)
		categoryIDs = append(categoryIDs, item.CategoryID)
	}

	discount := decimal.Zero
	var appliedCoupon *models.Coupon
	if input.CouponCode != "" {
		coupon, err := s.couponService.GetByCode(input.CouponCode)
		if err != nil {
			return nil, errs.Validation("coupon %s not found", input.CouponCode)
		}

		result, err := s.couponService.Validate(coupon, input.BuyerID, subtotal, input.ShopID, productIDs, categoryIDs)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, errs.Validation("coupon rejected: %s", result.Reason)
		}

		discount = s.couponService.CalculateDiscount(coupon, subtotal)
		if err := s.couponService.MarkUsed(coupon.ID, input.BuyerID, subtotal, discount); err != nil {
			return nil, err
		}
		appliedCoupon = coupon
	}

	order := &models.Order{
		OrderNumber:     generateOrderNumber(),
		BuyerID:         input.BuyerID,
		SellerID:        input.SellerID,
		ShopID:          input.ShopID,
		Items:           items,
		Subtotal:        subtotal,
		ShippingFee:     input.ShippingFee,
		TaxAmount:       input.TaxAmount,
		DiscountAmount:  discount,
		TotalAmount:     subtotal.Add(input.ShippingFee).Add(input.TaxAmount).Sub(discount),
		CouponCode:      input.CouponCode,
		Status:          string(models.OrderPending),
		PaymentStatus:   string(models.PaymentPending),
		PaymentRef:      uuid.NewString(),
		EscrowStatus:    string(models.EscrowPending),
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		Timeline: []models.TimelineEntry{
			{Status: string(models.OrderPending), Note: "order created"},
		},
	}

	if err := s.orderRepo.Create(order); err != nil {
		// The redemption must not outlive a checkout that never produced an
		// order: give the cap capacity back.
		if appliedCoupon != nil {
			if relErr := s.couponService.ReleaseUsage(appliedCoupon.ID, input.BuyerID); relErr != nil {
				log.Printf("failed to release coupon %s after create failure: %v", appliedCoupon.Code, relErr)
			}
		}
		return nil, err
	}

	if appliedCoupon != nil {
		s.emit(ctx, notifier.Event{
			Type:        notifier.EventCouponRedeemed,
			OrderNumber: order.OrderNumber,
			UserID:      input.BuyerID,
			ShopID:      input.ShopID,
			Payload: map[string]interface{}{
				"code":     input.CouponCode,
				"discount": discount.String(),
			},
		})
	}

	return order, nil
}

// Transition moves the order through the status state machine. Illegal moves
// are rejected without touching the order. Terminal transitions trigger a
// best-effort shop metrics recompute that never unwinds the committed change.
func (s *orderService) Transition(ctx context.Context, orderID uint, newStatus models.OrderStatus, note string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(newStatus) {
		return nil, &errs.InvalidTransitionError{From: order.Status, To: string(newStatus)}
	}

	updates := map[string]interface{}{}
	if newStatus == models.OrderDelivered {
		updates["delivered_at"] = time.Now()
	}

	ok, err := s.orderRepo.UpdateStatus(orderID, models.OrderStatus(order.Status), newStatus, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Consistency("order %s was modified concurrently", order.OrderNumber)
	}

	entry := &models.TimelineEntry{
		OrderID: orderID,
		Status:  string(newStatus),
		Note:    note,
	}
	if err := s.orderRepo.AppendTimeline(entry); err != nil {
		log.Printf("failed to append timeline for order %s: %v", order.OrderNumber, err)
	}

	s.emit(ctx, notifier.Event{
		Type:        notifier.EventOrderStatusChanged,
		OrderNumber: order.OrderNumber,
		ShopID:      order.ShopID,
		UserID:      order.BuyerID,
		Payload: map[string]interface{}{
			"from": order.Status,
			"to":   string(newStatus),
		},
	})

	if newStatus == models.OrderCancelled || newStatus == models.OrderDelivered {
		shopID := order.ShopID
		go func() {
			if err := s.metrics.RecomputeMetrics(context.Background(), shopID); err != nil {
				log.Printf("shop %d metrics recompute failed after order %s: %v", shopID, order.OrderNumber, err)
			}
		}()
	}

	return s.orderRepo.GetByID(orderID)
}

// MarkPaymentFailed records a failed payment outcome. The write is guarded on
// payment pending, so replayed gateway deliveries and payments that already
// moved on are a no-op.
func (s *orderService) MarkPaymentFailed(orderID uint) error {
	_, err := s.orderRepo.UpdatePaymentStatus(orderID, models.PaymentPending, map[string]interface{}{
		"payment_status": string(models.PaymentFailed),
	})
	return err
}

func (s *orderService) GetOrderByID(id uint) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

func (s *orderService) GetOrderByNumber(orderNumber string) (*models.Order, error) {
	return s.orderRepo.GetByOrderNumber(orderNumber)
}

func (s *orderService) GetOrderByPaymentRef(paymentRef string) (*models.Order, error) {
	return s.orderRepo.GetByPaymentRef(paymentRef)
}

func (s *orderService) GetOrdersByBuyer(buyerID uint) ([]models.Order, error) {
	return s.orderRepo.GetByBuyerID(buyerID)
}

func (s *orderService) GetOrdersByShop(shopID uint) ([]models.Order, error) {
	return s.orderRepo.GetByShopID(shopID)
}

func (s *orderService) emit(ctx context.Context, event notifier.Event) {
	if err := s.events.Notify(ctx, event); err != nil {
		log.Printf("failed to emit %s event: %v", event.Type, err)
	}
}

func generateOrderNumber() string {
	return "MKT-" + strings.ToUpper(uuid.NewString()[:8])
}
