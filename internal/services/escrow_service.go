package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"marketplace/internal/errs"
	"marketplace/internal/models"
	"marketplace/internal/notifier"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGateway is the slice of the external payment/escrow provider this
// service consumes. pkg/payment implements it.
type PaymentGateway interface {
	InitializePayment(ctx context.Context, reference string, amount decimal.Decimal, customer string) (string, error)
	VerifyPayment(ctx context.Context, reference string) (string, error)
	CreateEscrow(ctx context.Context, reference string, amount decimal.Decimal, customer, seller string) (string, error)
	ReleaseEscrow(ctx context.Context, escrowID string) (string, error)
	Refund(ctx context.Context, reference string, amount *decimal.Decimal) (string, error)
}

const gatewayStatusSuccess = "success"

type EscrowService interface {
	InitializePayment(ctx context.Context, orderID uint) (string, error)
	FundEscrow(ctx context.Context, orderID uint) error
	ReleaseEscrow(ctx context.Context, orderID uint, initiator uint) error
	Refund(ctx context.Context, orderID uint, reason string, initiator uint) error
}

type EscrowConfig struct {
	FeeRate        decimal.Decimal
	GatewayTimeout time.Duration
	RefundWindow   time.Duration
}

type escrowService struct {
	orderRepo       repository.OrderRepository
	transactionRepo repository.TransactionRepository
	userRepo        repository.UserRepository
	gateway         PaymentGateway
	events          notifier.Notifier
	cfg             EscrowConfig
}

func NewEscrowService(
	orderRepo repository.OrderRepository,
	transactionRepo repository.TransactionRepository,
	userRepo repository.UserRepository,
	gateway PaymentGateway,
	events notifier.Notifier,
	cfg EscrowConfig,
) EscrowService {
	return &escrowService{
		orderRepo:       orderRepo,
		transactionRepo: transactionRepo,
		userRepo:        userRepo,
		gateway:         gateway,
		events:          events,
		cfg:             cfg,
	}
}

// InitializePayment opens a gateway payment session for the order total and
// returns the URL the buyer pays at.
func (s *escrowService) InitializePayment(ctx context.Context, orderID uint) (string, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return "", err
	}
	if order.PaymentStatus != string(models.PaymentPending) {
		return "", errs.InvalidState("order %s payment already %s", order.OrderNumber, order.PaymentStatus)
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	paymentURL, err := s.gateway.InitializePayment(tctx, order.PaymentRef, order.TotalAmount, fmt.Sprintf("user:%d", order.BuyerID))
	if err != nil {
		return "", errs.Dependency("payment gateway", err)
	}

	return paymentURL, nil
}

// FundEscrow verifies the payment and opens an escrow hold for the order
// total. When the escrow gateway is unavailable the payment degrades to a
// direct, unprotected settlement and the seller account is flagged for manual
// review. That fallback is a documented policy: checkout must not fail
// because the escrow leg is down.
func (s *escrowService) FundEscrow(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}

	// Webhook replays land here after the escrow is already settled.
	if order.EscrowStatus != string(models.EscrowPending) || order.PaymentStatus != string(models.PaymentPending) {
		return nil
	}

	vctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	status, err := s.gateway.VerifyPayment(vctx, order.PaymentRef)
	if err != nil {
		// A timed-out verification is failed-unknown: commit nothing and let
		// the next webhook delivery reconcile the outcome.
		return errs.Dependency("payment gateway", err)
	}
	if status != gatewayStatusSuccess {
		return errs.InvalidState("payment %s not confirmed (status %s)", order.PaymentRef, status)
	}

	ectx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	escrowID, err := s.gateway.CreateEscrow(ectx, order.PaymentRef, order.TotalAmount,
		fmt.Sprintf("user:%d", order.BuyerID), fmt.Sprintf("user:%d", order.SellerID))
	if err != nil {
		return s.degradeToDirectPayment(ctx, order, err)
	}

	now := time.Now()
	ok, err := s.orderRepo.UpdateEscrowStatus(order.ID, models.EscrowPending, map[string]interface{}{
		"escrow_status":     string(models.EscrowFunded),
		"escrow_reference":  escrowID,
		"escrow_created_at": now,
		"payment_status":    string(models.PaymentEscrowed),
	})
	if err != nil {
		return err
	}
	if !ok {
		// Another delivery of the same confirmation won the race.
		return nil
	}

	// Journaled only by the winner, so replayed deliveries cannot duplicate
	// the payment record.
	if err := s.transactionRepo.Create(paymentJournalEntry(order)); err != nil {
		return err
	}

	s.emit(ctx, notifier.Event{
		Type:        notifier.EventEscrowFunded,
		OrderNumber: order.OrderNumber,
		ShopID:      order.ShopID,
		UserID:      order.BuyerID,
	})
	return nil
}

// paymentJournalEntry records the buyer's captured payment. The reference is
// derived from the gateway payment reference, not generated, so a replayed
// insert trips the journal's unique constraint instead of duplicating the
// record.
func paymentJournalEntry(order *models.Order) *models.Transaction {
	return &models.Transaction{
		UserID:      order.BuyerID,
		OrderID:     &order.ID,
		Type:        string(models.TransactionPayment),
		Amount:      order.TotalAmount,
		Status:      string(models.TransactionSuccessful),
		Reference:   "pay-" + order.PaymentRef,
		Description: fmt.Sprintf("payment for order %s", order.OrderNumber),
	}
}

func (s *escrowService) degradeToDirectPayment(ctx context.Context, order *models.Order, cause error) error {
	log.Printf("escrow creation failed for order %s, degrading to direct payment: %v", order.OrderNumber, cause)

	ok, err := s.orderRepo.UpdatePaymentStatus(order.ID, models.PaymentPending, map[string]interface{}{
		"payment_status": string(models.PaymentPaid),
	})
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent delivery already applied the fallback.
		return nil
	}

	if err := s.transactionRepo.Create(paymentJournalEntry(order)); err != nil {
		return err
	}

	if err := s.userRepo.FlagUnderReview(order.SellerID, models.ReviewEscrowUnavailable); err != nil {
		log.Printf("failed to flag seller %d for review: %v", order.SellerID, err)
	}

	s.emit(ctx, notifier.Event{
		Type:        notifier.EventEscrowDegraded,
		OrderNumber: order.OrderNumber,
		ShopID:      order.ShopID,
		UserID:      order.SellerID,
		Payload:     map[string]interface{}{"cause": cause.Error()},
	})
	return nil
}

// ReleaseEscrow disburses the held amount to the seller minus the platform
// fee, writing payout and fee journal entries. The funded-to-released move is
// a conditional write, so concurrent calls produce exactly one disbursement;
// a gateway failure leaves the order untouched and the call safely retryable.
func (s *escrowService) ReleaseEscrow(ctx context.Context, orderID uint, initiator uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}

	if order.Status != string(models.OrderDelivered) {
		return errs.InvalidState("order %s is %s, not delivered", order.OrderNumber, order.Status)
	}
	if order.EscrowStatus != string(models.EscrowFunded) {
		return errs.InvalidState("order %s escrow is %s, not funded", order.OrderNumber, order.EscrowStatus)
	}

	feeRate := s.cfg.FeeRate
	platformFee := order.TotalAmount.Mul(feeRate).Round(2)
	sellerPayout := order.TotalAmount.Sub(platformFee)

	tctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	// The gateway deduplicates release by escrow id, so simultaneous calls
	// reaching it disburse once; the conditional write below then picks the
	// single journal winner.
	if _, err := s.gateway.ReleaseEscrow(tctx, order.EscrowReference); err != nil {
		return errs.Dependency("escrow gateway", err)
	}

	now := time.Now()
	ok, err := s.orderRepo.UpdateEscrowStatus(order.ID, models.EscrowFunded, map[string]interface{}{
		"escrow_status":      string(models.EscrowReleased),
		"payment_status":     string(models.PaymentPaid),
		"escrow_released_at": now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return errs.InvalidState("order %s escrow already released", order.OrderNumber)
	}

	payout := &models.Transaction{
		UserID:      order.SellerID,
		OrderID:     &order.ID,
		Type:        string(models.TransactionPayout),
		Amount:      sellerPayout,
		Status:      string(models.TransactionSuccessful),
		Reference:   uuid.NewString(),
		Description: fmt.Sprintf("seller payout for order %s", order.OrderNumber),
	}
	if err := s.transactionRepo.Create(payout); err != nil {
		return err
	}

	fee := &models.Transaction{
		UserID:      order.SellerID,
		OrderID:     &order.ID,
		Type:        string(models.TransactionFee),
		Amount:      platformFee,
		Status:      string(models.TransactionSuccessful),
		Reference:   uuid.NewString(),
		Description: fmt.Sprintf("platform fee for order %s", order.OrderNumber),
	}
	if err := s.transactionRepo.Create(fee); err != nil {
		return err
	}

	s.emit(ctx, notifier.Event{
		Type:        notifier.EventEscrowReleased,
		OrderNumber: order.OrderNumber,
		ShopID:      order.ShopID,
		UserID:      initiator,
		Payload: map[string]interface{}{
			"payout": sellerPayout.String(),
			"fee":    platformFee.String(),
		},
	})
	return nil
}

// Refund returns the payment to the buyer. Released escrows cannot be
// refunded; the money has already been disbursed.
func (s *escrowService) Refund(ctx context.Context, orderID uint, reason string, initiator uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}

	if order.PaymentStatus != string(models.PaymentPaid) && order.PaymentStatus != string(models.PaymentEscrowed) {
		return errs.InvalidState("order %s payment is %s, nothing to refund", order.OrderNumber, order.PaymentStatus)
	}
	if order.EscrowStatus == string(models.EscrowReleased) {
		return errs.InvalidState("order %s escrow already released to seller", order.OrderNumber)
	}
	if order.Status == string(models.OrderDelivered) && !order.CanBeRefunded(s.cfg.RefundWindow) {
		return errs.InvalidState("order %s is outside the refund window", order.OrderNumber)
	}

	refund := &models.Transaction{
		UserID:      order.BuyerID,
		OrderID:     &order.ID,
		Type:        string(models.TransactionRefund),
		Amount:      order.TotalAmount,
		Status:      string(models.TransactionPending),
		Reference:   uuid.NewString(),
		Description: fmt.Sprintf("refund for order %s: %s", order.OrderNumber, reason),
	}
	if err := s.transactionRepo.Create(refund); err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	if _, err := s.gateway.Refund(tctx, order.PaymentRef, nil); err != nil {
		if _, markErr := s.transactionRepo.MarkTerminal(refund.Reference, models.TransactionFailed); markErr != nil {
			log.Printf("failed to mark refund %s failed: %v", refund.Reference, markErr)
		}
		return errs.Dependency("payment gateway", err)
	}

	if _, err := s.transactionRepo.MarkTerminal(refund.Reference, models.TransactionSuccessful); err != nil {
		return err
	}

	ok, err := s.orderRepo.UpdateEscrowStatus(order.ID, models.EscrowStatus(order.EscrowStatus), map[string]interface{}{
		"escrow_status":  string(models.EscrowRefunded),
		"payment_status": string(models.PaymentRefunded),
		"status":         string(models.OrderRefunded),
	})
	if err != nil {
		return err
	}
	if !ok {
		return errs.Consistency("order %s changed during refund", order.OrderNumber)
	}

	if err := s.orderRepo.AppendTimeline(&models.TimelineEntry{
		OrderID: order.ID,
		Status:  string(models.OrderRefunded),
		Note:    reason,
	}); err != nil {
		log.Printf("failed to append timeline for order %s: %v", order.OrderNumber, err)
	}

	s.emit(ctx, notifier.Event{
		Type:        notifier.EventEscrowRefunded,
		OrderNumber: order.OrderNumber,
		ShopID:      order.ShopID,
		UserID:      initiator,
		Payload:     map[string]interface{}{"reason": reason},
	})
	return nil
}

func (s *escrowService) emit(ctx context.Context, event notifier.Event) {
	if err := s.events.Notify(ctx, event); err != nil {
		log.Printf("failed to emit %s event: %v", event.Type, err)
	}
}
