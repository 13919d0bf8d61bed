// internal/interfaces/http/handlers/cod.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/checkout-backend/internal/domain/checkout"
	"github.com/your-org/checkout-backend/internal/domain/payment"
	"github.com/your-org/checkout-backend/internal/domain/verification"
	"github.com/your-org/checkout-backend/internal/interfaces/http/middleware"
)

// CODHandler handles cash-on-delivery verification and order placement
type CODHandler struct {
	verificationService *verification.Service
	checkoutService     *checkout.Service
}

// NewCODHandler creates a new COD handler
func NewCODHandler(verificationService *verification.Service, checkoutService *checkout.Service) *CODHandler {
	return &CODHandler{
		verificationService: verificationService,
		checkoutService:     checkoutService,
	}
}

// SendOTP handles POST /cod/send-otp
func (h *CODHandler) SendOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.verificationService.SendOTP(c.Request.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, verification.ErrMissingPhone) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Phone number is required",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to send verification code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Verification code sent",
		"data":    result,
	})
}

// VerifyOTP handles POST /cod/verify-otp
func (h *CODHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		OTP   string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.verificationService.VerifyOTP(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		if errors.Is(err, verification.ErrInvalidOTP) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid or expired verification code",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to verify code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Phone verified",
		"data":    result,
	})
}

// BypassStatus handles GET /cod/bypass-status
func (h *CODHandler) BypassStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"bypass_enabled": h.verificationService.BypassEnabled(c.Request.Context()),
		},
	})
}

// codOrderRequest is a checkout request plus the verification token
type codOrderRequest struct {
	checkout.CheckoutRequest
	VerificationToken string `json:"verification_token" binding:"required"`
}

// CreateOrder handles POST /cod/order/create (authenticated)
func (h *CODHandler) CreateOrder(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	h.placeOrder(c, &userID)
}

// CreateGuestOrder handles POST /cod/order/guest/create
func (h *CODHandler) CreateGuestOrder(c *gin.Context) {
	h.placeOrder(c, nil)
}

func (h *CODHandler) placeOrder(c *gin.Context, userID *uint) {
	var req codOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := c.GetHeader("X-Session-ID")
	outcome := h.checkoutService.PlaceCODOrder(c.Request.Context(), userID, sessionID, req.VerificationToken, &req.CheckoutRequest)
	respondWithOutcome(c, outcome)
}

// SetBypass handles PUT /admin/cod/bypass
func (h *CODHandler) SetBypass(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if err := h.verificationService.SetBypass(c.Request.Context(), *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update bypass flag",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Bypass flag updated",
		"data": gin.H{
			"bypass_enabled": *req.Enabled,
		},
	})
}

// respondWithOutcome maps a checkout outcome to an HTTP response
func respondWithOutcome(c *gin.Context, outcome payment.Outcome) {
	switch {
	case outcome.IsSuccess():
		c.JSON(http.StatusCreated, gin.H{
			"message": "Order placed successfully",
			"data":    outcome.Confirmation,
		})
	case outcome.IsCancelled():
		c.JSON(http.StatusOK, gin.H{
			"message": "Payment cancelled",
			"data": gin.H{
				"status": outcome.Status,
			},
		})
	default:
		status := http.StatusInternalServerError
		switch outcome.Reason {
		case payment.ReasonVerificationRequired:
			status = http.StatusForbidden
		case payment.ReasonPaymentVerificationFailed:
			status = http.StatusBadRequest
		case payment.ReasonPaymentFailed:
			status = http.StatusPaymentRequired
		}
		body := gin.H{
			"error":  outcome.Message,
			"reason": outcome.Reason,
		}
		if outcome.PaymentID != "" {
			// A payment id on a failure means money moved at the
			// gateway without a captured order.
			body["payment_id"] = outcome.PaymentID
			body["support_message"] = "Your payment was received but the order could not be confirmed. " +
				"Please contact support with this payment ID for assistance."
		}
		c.JSON(status, body)
	}
}
