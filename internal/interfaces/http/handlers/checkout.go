// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/checkout"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"github.com/your-org/checkout-backend/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout summary and coupon endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	config          *config.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *checkout.Service, cfg *config.Config) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		config:          cfg,
	}
}

// GetSummary handles GET /checkout/summary
//
// Works for guests (session cart) and authenticated users alike. The
// payment method and shipping option are optional; when omitted the
// summary prices the cart with standard shipping and no online discount.
func (h *CheckoutHandler) GetSummary(c *gin.Context) {
	userID := optionalUserID(c)
	sessionID := c.GetHeader("X-Session-ID")

	shippingOptionID := c.Query("shipping_option_id")
	method := pricing.PaymentMethod(c.Query("payment_method"))

	summary, err := h.checkoutService.GetCheckoutSummary(c.Request.Context(), userID, sessionID, shippingOptionID, method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout summary retrieved successfully",
		"data":    summary,
	})
}

// ApplyCoupon handles POST /checkout/apply-coupon
func (h *CheckoutHandler) ApplyCoupon(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	var req struct {
		CouponCode string `json:"coupon_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := c.GetHeader("X-Session-ID")

	application, err := h.checkoutService.ApplyCoupon(c.Request.Context(), userID, sessionID, req.CouponCode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon applied successfully",
		"data":    application,
	})
}

// RemoveCoupon handles DELETE /checkout/coupon
func (h *CheckoutHandler) RemoveCoupon(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	if err := h.checkoutService.RemoveCoupon(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to remove coupon",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon removed successfully",
	})
}
