// internal/interfaces/http/handlers/razorpay.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/checkout"
	"github.com/your-org/checkout-backend/internal/domain/order"
	"github.com/your-org/checkout-backend/internal/domain/payment"
	"github.com/your-org/checkout-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// RazorpayHandler handles online payment endpoints
type RazorpayHandler struct {
	checkoutService *checkout.Service
	orderService    *order.Service
	gateway         payment.Gateway
	config          *config.Config
	db              *gorm.DB
}

// NewRazorpayHandler creates a new Razorpay handler
func NewRazorpayHandler(checkoutService *checkout.Service, orderService *order.Service, gateway payment.Gateway, cfg *config.Config, db *gorm.DB) *RazorpayHandler {
	return &RazorpayHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
		gateway:         gateway,
		config:          cfg,
		db:              db,
	}
}

// CalculateAmount handles POST /razorpay/calculate-amount
func (h *RazorpayHandler) CalculateAmount(c *gin.Context) {
	var req checkout.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID := optionalUserID(c)
	sessionID := c.GetHeader("X-Session-ID")

	calculation, err := h.checkoutService.CalculateAmount(c.Request.Context(), userID, sessionID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Amount calculated",
		"data":    calculation,
	})
}

// CreateOrder handles POST /razorpay/order/create
func (h *RazorpayHandler) CreateOrder(c *gin.Context) {
	var req checkout.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID := optionalUserID(c)
	sessionID := c.GetHeader("X-Session-ID")

	initiation, err := h.checkoutService.InitiatePayment(c.Request.Context(), userID, sessionID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment initiated",
		"data":    initiation,
	})
}

// settlementRequest is a checkout request plus the gateway callback fields
type settlementRequest struct {
	checkout.CheckoutRequest
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// VerifyPayment handles POST /razorpay/payment/verify/:userId
func (h *RazorpayHandler) VerifyPayment(c *gin.Context) {
	authUserID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	// The path parameter must match the authenticated user
	if pathID, err := strconv.ParseUint(c.Param("userId"), 10, 32); err != nil || uint(pathID) != authUserID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Access denied",
		})
		return
	}

	h.settle(c, &authUserID)
}

// GuestVerifyPayment handles POST /razorpay/payment/guest/verify
func (h *RazorpayHandler) GuestVerifyPayment(c *gin.Context) {
	h.settle(c, nil)
}

func (h *RazorpayHandler) settle(c *gin.Context, userID *uint) {
	var req settlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := c.GetHeader("X-Session-ID")
	outcome := h.checkoutService.SettlePayment(c.Request.Context(), userID, sessionID, &req.CheckoutRequest,
		req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	respondWithOutcome(c, outcome)
}

// PaymentFailure handles POST /razorpay/payment/failure
func (h *RazorpayHandler) PaymentFailure(c *gin.Context) {
	var report payment.FailureReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	outcome := h.checkoutService.ReportPaymentFailure(c.Request.Context(), &report)
	if outcome.IsCancelled() {
		c.JSON(http.StatusOK, gin.H{
			"message": "Payment cancellation recorded",
			"data": gin.H{
				"status": outcome.Status,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment failure recorded",
		"data": gin.H{
			"status": outcome.Status,
			"reason": outcome.Reason,
		},
	})
}

// Webhook handles POST /webhooks/razorpay
func (h *RazorpayHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing signature header",
		})
		return
	}

	if !h.gateway.VerifyWebhookSignature(body, signature) {
		// Unsigned webhooks are tolerated in development only
		if !(h.config.External.Razorpay.WebhookSecret == "" && h.config.IsDevelopment()) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid signature",
			})
			return
		}
	}

	var webhookData map[string]interface{}
	if err := json.Unmarshal(body, &webhookData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid JSON payload",
		})
		return
	}

	eventType, ok := webhookData["event"].(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing event type",
		})
		return
	}

	switch eventType {
	case "payment.captured":
		h.handlePaymentCaptured(c.Request.Context(), webhookData)
	case "payment.failed":
		h.handlePaymentFailed(webhookData)
	default:
		logrus.WithField("event", eventType).Debug("Ignoring webhook event")
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "received",
	})
}

// --- ADMIN ENDPOINTS ---

// AdminGetPayments handles GET /admin/payments
func (h *RazorpayHandler) AdminGetPayments(c *gin.Context) {
	page := 1
	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	status := c.Query("status")
	orderID := c.Query("order_id")

	var payments []order.Payment
	var total int64

	query := h.db.Model(&order.Payment{})

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if orderID != "" {
		query = query.Where("order_id = ?", orderID)
	}

	query.Count(&total)

	offset := (page - 1) * limit
	query = query.Offset(offset).Limit(limit).Order("created_at DESC")

	if err := query.Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve payments",
		})
		return
	}

	totalPages := (int(total) + limit - 1) / limit

	c.JSON(http.StatusOK, gin.H{
		"data": payments,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
			"has_next":    page < totalPages,
			"has_prev":    page > 1,
		},
	})
}

// AdminGetPaymentDetails handles GET /admin/payments/:id
func (h *RazorpayHandler) AdminGetPaymentDetails(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid payment ID",
		})
		return
	}

	var paymentRecord order.Payment
	result := h.db.Where("id = ?", id).First(&paymentRecord)
	if result.Error != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Payment not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": paymentRecord,
	})
}

// --- WEBHOOK EVENT HANDLERS ---

func (h *RazorpayHandler) handlePaymentCaptured(ctx context.Context, data map[string]interface{}) {
	paymentEntity, ok := webhookPaymentEntity(data)
	if !ok {
		return
	}

	paymentID, _ := paymentEntity["id"].(string)

	var paymentRecord order.Payment
	result := h.db.Where("payment_provider_id = ?", paymentID).First(&paymentRecord)
	if result.Error != nil {
		return // Payment settled through the synchronous path or unknown
	}

	// Cross-check the captured amount against the gateway's own record,
	// not just the webhook payload.
	if fetched, err := h.gateway.FetchPayment(ctx, paymentID); err != nil {
		logrus.WithError(err).WithField("payment_id", paymentID).
			Warn("Could not fetch payment for webhook reconciliation")
	} else if fetched.Amount != paymentRecord.Amount*100 {
		logrus.WithFields(logrus.Fields{
			"payment_id":      paymentID,
			"recorded_amount": paymentRecord.Amount,
			"gateway_paise":   fetched.Amount,
		}).Error("Captured amount does not match recorded payment")
		return
	}

	raw, _ := json.Marshal(paymentEntity)
	h.db.Model(&paymentRecord).Updates(map[string]interface{}{
		"status":           order.PaymentStatusPaid,
		"gateway_response": string(raw),
		"processed_at":     time.Now().UTC(),
	})

	if err := h.orderService.MarkPaid(paymentRecord.OrderID, paymentID); err != nil {
		logrus.WithError(err).WithField("order_id", paymentRecord.OrderID).Error("Failed to mark order paid from webhook")
	}
}

func (h *RazorpayHandler) handlePaymentFailed(data map[string]interface{}) {
	paymentEntity, ok := webhookPaymentEntity(data)
	if !ok {
		return
	}

	paymentID, _ := paymentEntity["id"].(string)

	var paymentRecord order.Payment
	result := h.db.Where("payment_provider_id = ?", paymentID).First(&paymentRecord)
	if result.Error != nil {
		return
	}

	h.db.Model(&paymentRecord).Updates(map[string]interface{}{
		"status": order.PaymentStatusFailed,
	})

	h.db.Model(&order.Order{}).Where("id = ?", paymentRecord.OrderID).Updates(map[string]interface{}{
		"payment_status": order.PaymentStatusFailed,
	})
}

func webhookPaymentEntity(data map[string]interface{}) (map[string]interface{}, bool) {
	payload, ok := data["payload"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	paymentWrap, ok := payload["payment"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	entity, ok := paymentWrap["entity"].(map[string]interface{})
	return entity, ok
}

// optionalUserID returns the authenticated user ID if present
func optionalUserID(c *gin.Context) *uint {
	if userID, exists := middleware.GetUserIDFromContext(c); exists {
		return &userID
	}
	return nil
}
