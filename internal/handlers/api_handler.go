package handlers

import (
	"net/http"
	"strconv"

	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type APIHandler struct {
	userService   services.UserService
	orderService  services.OrderService
	escrowService services.EscrowService
	couponService services.CouponService
	shopService   services.ShopService
}

func NewAPIHandler(
	userService services.UserService,
	orderService services.OrderService,
	escrowService services.EscrowService,
	couponService services.CouponService,
	shopService services.ShopService,
) *APIHandler {
	return &APIHandler{
		userService:   userService,
		orderService:  orderService,
		escrowService: escrowService,
		couponService: couponService,
		shopService:   shopService,
	}
}

// Checkout creates the order and opens a gateway payment session.
func (h *APIHandler) Checkout(c *gin.Context) {
	var input services.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	paymentURL, err := h.escrowService.InitializePayment(c.Request.Context(), order.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":       order,
		"payment_url": paymentURL,
	})
}

func (h *APIHandler) GetOrder(c *gin.Context) {
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

	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	if buyerParam := c.Query("buyer_id"); buyerParam != "" {
		buyerID, err := strconv.ParseUint(buyerParam, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid buyer_id"})
			return
		}
		orders, err := h.orderService.GetOrdersByBuyer(uint(buyerID))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	if shopParam := c.Query("shop_id"); shopParam != "" {
		shopID, err := strconv.ParseUint(shopParam, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shop_id"})
			return
		}
		orders, err := h.orderService.GetOrdersByShop(uint(shopID))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "buyer_id or shop_id is required"})
}

// UpdateOrderStatus drives the status state machine.
func (h *APIHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, err := h.orderService.Transition(c.Request.Context(), id, models.OrderStatus(req.Status), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ReleaseEscrow disburses a funded escrow after delivery.
func (h *APIHandler) ReleaseEscrow(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		InitiatorID uint `json:"initiator_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.escrowService.ReleaseEscrow(c.Request.Context(), id, req.InitiatorID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

func (h *APIHandler) RefundOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		Reason      string `json:"reason"`
		InitiatorID uint   `json:"initiator_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.escrowService.Refund(c.Request.Context(), id, req.Reason, req.InitiatorID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}

// Coupon endpoints

func (h *APIHandler) CreateCoupon(c *gin.Context) {
	var coupon models.Coupon
	if err := c.ShouldBindJSON(&coupon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.couponService.CreateCoupon(&coupon); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, coupon)
}

func (h *APIHandler) ValidateCoupon(c *gin.Context) {
	var req struct {
		Code        string          `json:"code"`
		UserID      uint            `json:"user_id"`
		OrderAmount decimal.Decimal `json:"order_amount"`
		ShopID      uint            `json:"shop_id"`
		ProductIDs  []uint          `json:"product_ids"`
		CategoryIDs []uint          `json:"category_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	coupon, err := h.couponService.GetByCode(req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.couponService.Validate(coupon, req.UserID, req.OrderAmount, req.ShopID, req.ProductIDs, req.CategoryIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{"valid": result.Valid, "reason": result.Reason}
	if result.Valid {
		response["discount"] = h.couponService.CalculateDiscount(coupon, req.OrderAmount)
	}
	c.JSON(http.StatusOK, response)
}

func (h *APIHandler) DeactivateCoupon(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon id"})
		return
	}

	if err := h.couponService.Deactivate(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// Shop endpoints

func (h *APIHandler) CreateShop(c *gin.Context) {
	var shop models.Shop
	if err := c.ShouldBindJSON(&shop); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	shop.IsActive = true

	if err := h.shopService.CreateShop(&shop); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, shop)
}

func (h *APIHandler) GetShopMetrics(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shop id"})
		return
	}

	metrics, err := h.shopService.GetMetrics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// User endpoints

func (h *APIHandler) RegisterUser(c *gin.Context) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Role        string `json:"role"`
		Password    string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user := &models.User{
		Username:      req.Username,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		Role:          req.Role,
		AccountStatus: string(models.AccountActive),
		IsActive:      true,
	}
	if err := h.userService.CreateUser(user, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	return uint(id), err
}
