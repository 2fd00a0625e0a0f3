package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/notifier"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repository fakes. The conditional updates take the same
// guarded-write decisions the SQL implementations make, under a mutex, so
// concurrency tests exercise the real contract.

type fakeOrderRepo struct {
	mu        sync.Mutex
	nextID    uint
	orders    map[uint]*models.Order
	timeline  []models.TimelineEntry
	createErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: map[uint]*models.Order{}}
}

func (r *fakeOrderRepo) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	order.ID = r.nextID
	r.nextID++
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) GetByID(id uint) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *fakeOrderRepo) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.OrderNumber == orderNumber {
			copied := *order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) GetByPaymentRef(paymentRef string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.PaymentRef == paymentRef {
			copied := *order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) GetByBuyerID(buyerID uint) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var orders []models.Order
	for _, order := range r.orders {
		if order.BuyerID == buyerID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (r *fakeOrderRepo) GetByShopID(shopID uint) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var orders []models.Order
	for _, order := range r.orders {
		if order.ShopID == shopID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (r *fakeOrderRepo) UpdateStatus(orderID uint, from, to models.OrderStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok || order.Status != string(from) {
		return false, nil
	}
	order.Status = string(to)
	applyOrderUpdates(order, updates)
	order.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeOrderRepo) UpdateEscrowStatus(orderID uint, from models.EscrowStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok || order.EscrowStatus != string(from) {
		return false, nil
	}
	applyOrderUpdates(order, updates)
	order.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeOrderRepo) UpdatePaymentStatus(orderID uint, from models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok || order.PaymentStatus != string(from) {
		return false, nil
	}
	applyOrderUpdates(order, updates)
	order.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeOrderRepo) UpdateFields(orderID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyOrderUpdates(order, updates)
	return nil
}

func applyOrderUpdates(order *models.Order, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			order.Status = value.(string)
		case "payment_status":
			order.PaymentStatus = value.(string)
		case "escrow_status":
			order.EscrowStatus = value.(string)
		case "escrow_reference":
			order.EscrowReference = value.(string)
		case "escrow_created_at":
			t := value.(time.Time)
			order.EscrowCreatedAt = &t
		case "escrow_released_at":
			t := value.(time.Time)
			order.EscrowReleasedAt = &t
		case "delivered_at":
			t := value.(time.Time)
			order.DeliveredAt = &t
		}
	}
}

func (r *fakeOrderRepo) AppendTimeline(entry *models.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.CreatedAt = time.Now()
	r.timeline = append(r.timeline, *entry)
	return nil
}

func (r *fakeOrderRepo) GetShopOrderStats(shopID uint) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total, cancelled int64
	for _, order := range r.orders {
		if order.ShopID != shopID {
			continue
		}
		total++
		if order.Status == string(models.OrderCancelled) {
			cancelled++
		}
	}
	return total, cancelled, nil
}

func (r *fakeOrderRepo) GetAverageDeliveryHours(shopID uint) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	var count int
	for _, order := range r.orders {
		if order.ShopID == shopID && order.Status == string(models.OrderDelivered) {
			sum += order.UpdatedAt.Sub(order.CreatedAt).Hours()
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

func (r *fakeOrderRepo) GetShopIDsWithTerminalOrdersSince(since time.Time) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uint]bool{}
	var shopIDs []uint
	for _, order := range r.orders {
		status := models.OrderStatus(order.Status)
		if models.IsTerminalStatus(status) || status == models.OrderDelivered {
			if order.UpdatedAt.After(since) && !seen[order.ShopID] {
				seen[order.ShopID] = true
				shopIDs = append(shopIDs, order.ShopID)
			}
		}
	}
	return shopIDs, nil
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	nextID  uint
	coupons map[uint]*models.Coupon
	usages  []models.CouponUsage
}

func newFakeCouponRepo() *fakeCouponRepo {
	return &fakeCouponRepo{nextID: 1, coupons: map[uint]*models.Coupon{}}
}

func (r *fakeCouponRepo) Create(coupon *models.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon.ID = r.nextID
	r.nextID++
	copied := *coupon
	r.coupons[coupon.ID] = &copied
	return nil
}

func (r *fakeCouponRepo) GetByID(id uint) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *coupon
	return &copied, nil
}

func (r *fakeCouponRepo) GetByCode(code string) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, coupon := range r.coupons {
		if coupon.Code == code {
			copied := *coupon
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCouponRepo) GetByShopID(shopID uint) ([]models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var coupons []models.Coupon
	for _, coupon := range r.coupons {
		if coupon.ShopID != nil && *coupon.ShopID == shopID {
			coupons = append(coupons, *coupon)
		}
	}
	return coupons, nil
}

func (r *fakeCouponRepo) Update(coupon *models.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *coupon
	r.coupons[coupon.ID] = &copied
	return nil
}

func (r *fakeCouponRepo) Deactivate(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	coupon.IsActive = false
	return nil
}

func (r *fakeCouponRepo) IncrementUsage(couponID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[couponID]
	if !ok {
		return false, nil
	}
	if coupon.TotalUsageLimit > 0 && coupon.CurrentUsageCount >= coupon.TotalUsageLimit {
		return false, nil
	}
	coupon.CurrentUsageCount++
	return true, nil
}

func (r *fakeCouponRepo) DecrementUsage(couponID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[couponID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if coupon.CurrentUsageCount > 0 {
		coupon.CurrentUsageCount--
	}
	return nil
}

func (r *fakeCouponRepo) CreateUsage(usage *models.CouponUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages = append(r.usages, *usage)
	return nil
}

func (r *fakeCouponRepo) DeleteLatestUsage(couponID, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.usages) - 1; i >= 0; i-- {
		if r.usages[i].CouponID == couponID && r.usages[i].UserID == userID {
			r.usages = append(r.usages[:i], r.usages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeCouponRepo) CountUsagesByUser(couponID, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, usage := range r.usages {
		if usage.CouponID == couponID && usage.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakeTransactionRepo struct {
	mu           sync.Mutex
	nextID       uint
	transactions []models.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{nextID: 1}
}

func (r *fakeTransactionRepo) Create(transaction *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transaction.ID = r.nextID
	r.nextID++
	r.transactions = append(r.transactions, *transaction)
	return nil
}

func (r *fakeTransactionRepo) GetByReference(reference string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.transactions {
		if r.transactions[i].Reference == reference {
			copied := r.transactions[i]
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTransactionRepo) GetByOrderID(orderID uint) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, transaction := range r.transactions {
		if transaction.OrderID != nil && *transaction.OrderID == orderID {
			out = append(out, transaction)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) GetByUserID(userID uint) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, transaction := range r.transactions {
		if transaction.UserID == userID {
			out = append(out, transaction)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) MarkTerminal(reference string, status models.TransactionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.transactions {
		if r.transactions[i].Reference == reference && r.transactions[i].Status == string(models.TransactionPending) {
			r.transactions[i].Status = string(status)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTransactionRepo) byType(transactionType models.TransactionType) []models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, transaction := range r.transactions {
		if transaction.Type == string(transactionType) {
			out = append(out, transaction)
		}
	}
	return out
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[uint]*models.User{}}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetAll() ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []models.User
	for _, user := range r.users {
		users = append(users, *user)
	}
	return users, nil
}

func (r *fakeUserRepo) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FlagUnderReview(userID uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.AccountStatus = string(models.AccountUnderReview)
	user.ReviewReason = reason
	return nil
}

type fakeShopRepo struct {
	mu     sync.Mutex
	nextID uint
	shops  map[uint]*models.Shop
}

func newFakeShopRepo() *fakeShopRepo {
	return &fakeShopRepo{nextID: 1, shops: map[uint]*models.Shop{}}
}

func (r *fakeShopRepo) Create(shop *models.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shop.ID = r.nextID
	r.nextID++
	copied := *shop
	r.shops[shop.ID] = &copied
	return nil
}

func (r *fakeShopRepo) GetByID(id uint) (*models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shop, ok := r.shops[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *shop
	return &copied, nil
}

func (r *fakeShopRepo) GetAll() ([]models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var shops []models.Shop
	for _, shop := range r.shops {
		shops = append(shops, *shop)
	}
	return shops, nil
}

func (r *fakeShopRepo) Update(shop *models.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *shop
	r.shops[shop.ID] = &copied
	return nil
}

func (r *fakeShopRepo) UpdateMetrics(shopID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shop, ok := r.shops[shopID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "total_orders":
			shop.TotalOrders = int(value.(int64))
		case "cancelled_orders":
			shop.CancelledOrders = int(value.(int64))
		case "cancellation_rate":
			shop.CancellationRate = value.(float64)
		case "average_delivery_time":
			shop.AverageDeliveryTime = value.(float64)
		case "metrics_updated_at":
			t := value.(time.Time)
			shop.MetricsUpdatedAt = &t
		}
	}
	return nil
}

func (r *fakeShopRepo) SetActive(shopID uint, current, target bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shop, ok := r.shops[shopID]
	if !ok || shop.IsActive != current {
		return false, nil
	}
	shop.IsActive = target
	return true, nil
}

// fakeGateway is a configurable payment/escrow gateway double.
type fakeGateway struct {
	mu            sync.Mutex
	verifyStatus  string
	escrowErr     error
	releaseErr    error
	refundErr     error
	initializeErr error
	escrowCalls   int
	releaseCalls  int
	refundCalls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verifyStatus: "success"}
}

func (g *fakeGateway) InitializePayment(_ context.Context, reference string, _ decimal.Decimal, _ string) (string, error) {
	if g.initializeErr != nil {
		return "", g.initializeErr
	}
	return "https://gateway.test/pay/" + reference, nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, _ string) (string, error) {
	return g.verifyStatus, nil
}

func (g *fakeGateway) CreateEscrow(_ context.Context, reference string, _ decimal.Decimal, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.escrowCalls++
	if g.escrowErr != nil {
		return "", g.escrowErr
	}
	return "esc_" + reference, nil
}

func (g *fakeGateway) ReleaseEscrow(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseCalls++
	if g.releaseErr != nil {
		return "", g.releaseErr
	}
	return "released", nil
}

func (g *fakeGateway) Refund(_ context.Context, _ string, _ *decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if g.refundErr != nil {
		return "", g.refundErr
	}
	return "refunded", nil
}

// fakeNotifier records every emitted event.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (n *fakeNotifier) Notify(_ context.Context, event notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) byType(eventType string) []notifier.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifier.Event
	for _, event := range n.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// fakeRecomputer records recompute requests from the ledger.
type fakeRecomputer struct {
	mu      sync.Mutex
	shopIDs []uint
	err     error
	done    chan struct{}
}

func newFakeRecomputer() *fakeRecomputer {
	return &fakeRecomputer{done: make(chan struct{}, 16)}
}

func (f *fakeRecomputer) RecomputeMetrics(_ context.Context, shopID uint) error {
	f.mu.Lock()
	f.shopIDs = append(f.shopIDs, shopID)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeRecomputer) wait(timeout time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

var (
	errGatewayDown = errors.New("gateway unavailable")
	errStoreDown   = errors.New("store unavailable")
)
