// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/cart"
	"github.com/your-org/checkout-backend/internal/domain/order"
	"github.com/your-org/checkout-backend/internal/domain/payment"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"gorm.io/gorm"
)

// Service coordinates a checkout attempt: it assembles the lines, prices
// them, and hands the draft to the payment orchestrator.
type Service struct {
	db           *gorm.DB
	redisClient  *redis.Client
	config       *config.Config
	cartService  *cart.Service
	engine       *pricing.Engine
	orchestrator *payment.Orchestrator
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, cartService *cart.Service, engine *pricing.Engine, orchestrator *payment.Orchestrator) *Service {
	return &Service{
		db:           db,
		redisClient:  redisClient,
		config:       cfg,
		cartService:  cartService,
		engine:       engine,
		orchestrator: orchestrator,
	}
}

// ContactInfo identifies the customer placing the order
type ContactInfo struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// CheckoutItemInput is a buy-now line submitted directly with the request
type CheckoutItemInput struct {
	ProductID   string                 `json:"product_id"`
	Name        string                 `json:"name" binding:"required"`
	UnitPrice   int64                  `json:"unit_price" binding:"required,min=1"`
	Quantity    int                    `json:"quantity" binding:"required,min=1"`
	Size        string                 `json:"size"`
	Color       string                 `json:"color"`
	IsCustom    bool                   `json:"is_custom"`
	FrontDesign *cart.DesignAttachment `json:"front_design,omitempty"`
	BackDesign  *cart.DesignAttachment `json:"back_design,omitempty"`
}

// CheckoutRequest carries everything a checkout attempt needs. When Items
// is non-empty the attempt is a buy-now order and the stored cart is left
// alone.
type CheckoutRequest struct {
	Contact          ContactInfo           `json:"contact" binding:"required"`
	Items            []CheckoutItemInput   `json:"items,omitempty"`
	ShippingAddress  order.Address         `json:"shipping_address" binding:"required"`
	BillingAddress   *order.Address        `json:"billing_address,omitempty"`
	ShippingOptionID string                `json:"shipping_option_id" binding:"required"`
	PaymentMethod    pricing.PaymentMethod `json:"payment_method" binding:"required"`
	CouponCode       string                `json:"coupon_code,omitempty"`
	RewardPoints     int                   `json:"reward_points,omitempty"`
	Notes            string                `json:"notes,omitempty"`
}

// AmountCalculation is the response of the calculate-amount endpoint
type AmountCalculation struct {
	Quote           *pricing.Quote           `json:"quote"`
	ShippingOptions []pricing.ShippingOption `json:"shipping_options"`
	PaymentMethod   pricing.PaymentMethod    `json:"payment_method"`
	AppliedCoupon   *CouponApplication       `json:"applied_coupon,omitempty"`
}

// CheckoutSummary represents the review-order view
type CheckoutSummary struct {
	Cart            *cart.CartResponse       `json:"cart"`
	ShippingOptions []pricing.ShippingOption `json:"shipping_options"`
	PaymentMethods  []PaymentMethodInfo      `json:"payment_methods"`
	AppliedCoupon   *CouponApplication       `json:"applied_coupon,omitempty"`
	Quote           *pricing.Quote           `json:"quote,omitempty"`
}

// PaymentMethodInfo represents an available payment method
type PaymentMethodInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

// CouponApplication represents applied coupon details
type CouponApplication struct {
	CouponCode        string  `json:"coupon_code"`
	DiscountType      string  `json:"discount_type"` // percentage, fixed_amount
	DiscountValue     float64 `json:"discount_value"`
	DiscountAmount    int64   `json:"discount_amount"`
	MinOrderAmount    int64   `json:"min_order_amount"`
	MaxDiscountAmount int64   `json:"max_discount_amount"`
	Applied           bool    `json:"applied"`
	Message           string  `json:"message,omitempty"`
}

// draftContext is everything assembled for one checkout attempt
type draftContext struct {
	draft  *order.CreateOrderInput
	quote  *pricing.Quote
	buyNow bool
}

// CalculateAmount prices the current cart (or buy-now lines) for the given
// shipping option, coupon, reward redemption, and payment method.
func (s *Service) CalculateAmount(ctx context.Context, userID *uint, sessionID string, req *CheckoutRequest) (*AmountCalculation, error) {
	lines, _, err := s.resolveLines(ctx, userID, sessionID, req)
	if err != nil {
		return nil, err
	}

	subtotal := sumLines(lines)
	options := s.shippingOptions(subtotal)
	selected, _ := pricing.FindShippingOption(options, req.ShippingOptionID)

	discounts, appliedCoupon := s.discountContext(ctx, userID, req, subtotal)

	quote, err := s.engine.ComputeFinalAmount(lines, selected, discounts, req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	return &AmountCalculation{
		Quote:           quote,
		ShippingOptions: options,
		PaymentMethod:   req.PaymentMethod,
		AppliedCoupon:   appliedCoupon,
	}, nil
}

// PlaceCODOrder runs a cash-on-delivery checkout end to end
func (s *Service) PlaceCODOrder(ctx context.Context, userID *uint, sessionID, verificationToken string, req *CheckoutRequest) payment.Outcome {
	dc, err := s.buildDraft(ctx, userID, sessionID, req)
	if err != nil {
		return payment.Failure(payment.ReasonOrderCreationFailed, err)
	}

	outcome := s.orchestrator.PlaceCODOrder(ctx, &payment.CODRequest{
		Draft:               dc.draft,
		VerificationToken:   verificationToken,
		Phone:               req.Contact.Phone,
		SessionID:           sessionID,
		BuyNow:              dc.buyNow,
		AuthenticatedUserID: userID,
	})
	s.afterOutcome(ctx, userID, outcome)
	return outcome
}

// InitiatePayment registers the priced amount with the gateway
func (s *Service) InitiatePayment(ctx context.Context, userID *uint, sessionID string, req *CheckoutRequest) (*payment.Initiation, error) {
	dc, err := s.buildDraft(ctx, userID, sessionID, req)
	if err != nil {
		return nil, err
	}

	receipt := fmt.Sprintf("rcpt_%s", uuid.New().String()[:18])
	return s.orchestrator.InitiateOnlinePayment(ctx, dc.quote.FinalAmount, receipt)
}

// SettlePayment verifies a completed gateway payment and finalizes the order
func (s *Service) SettlePayment(ctx context.Context, userID *uint, sessionID string, req *CheckoutRequest, gatewayOrderID, paymentID, signature string) payment.Outcome {
	dc, err := s.buildDraft(ctx, userID, sessionID, req)
	if err != nil {
		return payment.Failure(payment.ReasonOrderCreationFailed, err)
	}

	if req.PaymentMethod == pricing.PaymentMethodSavedCard {
		dc.draft.PaymentMethod = string(pricing.PaymentMethodSavedCard)
	}

	outcome := s.orchestrator.SettleOnlinePayment(ctx, &payment.SettlementRequest{
		Draft:               dc.draft,
		GatewayOrderID:      gatewayOrderID,
		PaymentID:           paymentID,
		Signature:           signature,
		SessionID:           sessionID,
		BuyNow:              dc.buyNow,
		AuthenticatedUserID: userID,
	})
	s.afterOutcome(ctx, userID, outcome)
	return outcome
}

// ReportPaymentFailure records an unsuccessful hosted-checkout attempt
func (s *Service) ReportPaymentFailure(ctx context.Context, report *payment.FailureReport) payment.Outcome {
	return s.orchestrator.RecordFailure(ctx, report)
}

// GetCheckoutSummary returns the review-order view for the current cart
func (s *Service) GetCheckoutSummary(ctx context.Context, userID *uint, sessionID string, shippingOptionID string, method pricing.PaymentMethod) (*CheckoutSummary, error) {
	cartResponse, err := s.cartService.GetCart(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	subtotal := cartResponse.Totals.SubTotal
	options := s.shippingOptions(subtotal)

	summary := &CheckoutSummary{
		Cart:            cartResponse,
		ShippingOptions: options,
		PaymentMethods:  s.availablePaymentMethods(),
	}

	if userID != nil {
		summary.AppliedCoupon = s.getStoredCoupon(ctx, *userID)
	}

	if shippingOptionID != "" && len(cartResponse.Items) > 0 {
		selected, ok := pricing.FindShippingOption(options, shippingOptionID)
		if ok {
			var discounts pricing.DiscountContext
			if summary.AppliedCoupon != nil && summary.AppliedCoupon.Applied {
				discounts.Coupon = &pricing.Coupon{
					Code:           summary.AppliedCoupon.CouponCode,
					DiscountAmount: summary.AppliedCoupon.DiscountAmount,
				}
			}
			quote, err := s.engine.ComputeFinalAmount(cart.PricingLines(cartResponse.Items), selected, discounts, method)
			if err == nil {
				summary.Quote = quote
			}
		}
	}

	return summary, nil
}

// ApplyCoupon validates a coupon against the cart subtotal and stores the
// application for later checkout calls.
func (s *Service) ApplyCoupon(ctx context.Context, userID uint, sessionID, couponCode string) (*CouponApplication, error) {
	userIDPtr := &userID
	cartResponse, err := s.cartService.GetCart(ctx, userIDPtr, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if len(cartResponse.Items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	coupon := s.validateCoupon(couponCode, cartResponse.Totals.SubTotal)
	if !coupon.Applied {
		return coupon, nil
	}

	couponKey := fmt.Sprintf("applied_coupon:%d", userID)
	couponData, _ := json.Marshal(coupon)
	s.redisClient.Set(ctx, couponKey, couponData, 24*time.Hour)

	return coupon, nil
}

// RemoveCoupon removes the stored coupon application
func (s *Service) RemoveCoupon(ctx context.Context, userID uint) error {
	couponKey := fmt.Sprintf("applied_coupon:%d", userID)
	return s.redisClient.Del(ctx, couponKey).Err()
}

// Private helper methods

func (s *Service) buildDraft(ctx context.Context, userID *uint, sessionID string, req *CheckoutRequest) (*draftContext, error) {
	lines, items, err := s.resolveLines(ctx, userID, sessionID, req)
	if err != nil {
		return nil, err
	}

	subtotal := sumLines(lines)
	options := s.shippingOptions(subtotal)
	selected, ok := pricing.FindShippingOption(options, req.ShippingOptionID)
	if !ok {
		return nil, pricing.ErrShippingRequired
	}

	discounts, _ := s.discountContext(ctx, userID, req, subtotal)

	quote, err := s.engine.ComputeFinalAmount(lines, selected, discounts, req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	shippingAddr := req.ShippingAddress
	if shippingAddr.Phone == "" {
		shippingAddr.Phone = req.Contact.Phone
	}
	if shippingAddr.FirstName == "" {
		shippingAddr.FirstName = req.Contact.FirstName
		shippingAddr.LastName = req.Contact.LastName
	}

	draft := &order.CreateOrderInput{
		UserID:            userID,
		Email:             req.Contact.Email,
		Items:             items,
		Quote:             quote,
		CouponCode:        req.CouponCode,
		RewardPoints:      req.RewardPoints,
		PaymentMethod:     string(req.PaymentMethod),
		ShippingAddress:   shippingAddr,
		BillingAddress:    req.BillingAddress,
		ShippingMethod:    selected.Name,
		EstimatedDelivery: selected.EstimatedDelivery,
		Notes:             req.Notes,
	}

	return &draftContext{
		draft:  draft,
		quote:  quote,
		buyNow: len(req.Items) > 0,
	}, nil
}

// resolveLines returns the pricing view and the order-item snapshots for
// the attempt, from either the buy-now payload or the stored cart.
func (s *Service) resolveLines(ctx context.Context, userID *uint, sessionID string, req *CheckoutRequest) ([]pricing.Line, []cart.CartLineResponse, error) {
	if len(req.Items) > 0 {
		items := make([]cart.CartLineResponse, len(req.Items))
		for i, in := range req.Items {
			items[i] = cart.CartLineResponse{
				ProductID:   in.ProductID,
				Name:        in.Name,
				UnitPrice:   in.UnitPrice,
				Quantity:    in.Quantity,
				Size:        in.Size,
				Color:       in.Color,
				IsCustom:    in.IsCustom,
				FrontDesign: in.FrontDesign,
				BackDesign:  in.BackDesign,
			}
		}
		return cart.PricingLines(items), items, nil
	}

	cartResponse, err := s.cartService.GetCart(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if len(cartResponse.Items) == 0 {
		return nil, nil, fmt.Errorf("cart is empty")
	}

	return cart.PricingLines(cartResponse.Items), cartResponse.Items, nil
}

func (s *Service) discountContext(ctx context.Context, userID *uint, req *CheckoutRequest, subtotal int64) (pricing.DiscountContext, *CouponApplication) {
	var discounts pricing.DiscountContext
	var applied *CouponApplication

	if req.CouponCode != "" {
		applied = s.validateCoupon(req.CouponCode, subtotal)
		if applied.Applied {
			discounts.Coupon = &pricing.Coupon{
				Code:           applied.CouponCode,
				DiscountAmount: applied.DiscountAmount,
			}
		}
	} else if userID != nil {
		applied = s.getStoredCoupon(ctx, *userID)
		if applied != nil && applied.Applied {
			discounts.Coupon = &pricing.Coupon{
				Code:           applied.CouponCode,
				DiscountAmount: applied.DiscountAmount,
			}
		}
	}

	if req.RewardPoints > 0 {
		// One reward point is worth one rupee at redemption
		discounts.Reward = &pricing.RewardRedemption{
			PointsRedeemed: req.RewardPoints,
			DiscountAmount: int64(req.RewardPoints),
		}
	}

	return discounts, applied
}

func (s *Service) shippingOptions(subtotal int64) []pricing.ShippingOption {
	return pricing.ShippingOptions(
		s.config.Checkout.StandardShippingRate,
		s.config.Checkout.ExpressShippingRate,
		s.config.Checkout.FreeShippingThreshold,
		subtotal,
	)
}

// afterOutcome drops the stored coupon once an order went through
func (s *Service) afterOutcome(ctx context.Context, userID *uint, outcome payment.Outcome) {
	if outcome.IsSuccess() && userID != nil {
		_ = s.RemoveCoupon(ctx, *userID)
	}
}

func (s *Service) availablePaymentMethods() []PaymentMethodInfo {
	return []PaymentMethodInfo{
		{
			ID:          string(pricing.PaymentMethodRazorpay),
			Name:        "Razorpay",
			Description: "Pay using Credit Card, Debit Card, NetBanking, UPI, or Wallets",
			Available:   s.config.External.Razorpay.KeyID != "",
		},
		{
			ID:          string(pricing.PaymentMethodSavedCard),
			Name:        "Saved Card",
			Description: "Pay with a card saved to your account",
			Available:   s.config.External.Razorpay.KeyID != "",
		},
		{
			ID:          string(pricing.PaymentMethodCOD),
			Name:        "Cash on Delivery",
			Description: "Pay cash when your order is delivered",
			Available:   true,
		},
	}
}

func (s *Service) validateCoupon(couponCode string, subtotal int64) *CouponApplication {
	// Coupon catalog is static until the promotions service lands
	coupons := map[string]CouponApplication{
		"SAVE10": {
			CouponCode:        "SAVE10",
			DiscountType:      "percentage",
			DiscountValue:     10.0,
			MinOrderAmount:    1999,
			MaxDiscountAmount: 1499,
		},
		"FLAT500": {
			CouponCode:     "FLAT500",
			DiscountType:   "fixed_amount",
			DiscountValue:  500,
			MinOrderAmount: 2999,
		},
		"WELCOME20": {
			CouponCode:        "WELCOME20",
			DiscountType:      "percentage",
			DiscountValue:     20.0,
			MinOrderAmount:    999,
			MaxDiscountAmount: 1999,
		},
	}

	coupon, exists := coupons[couponCode]
	if !exists {
		return &CouponApplication{
			CouponCode: couponCode,
			Applied:    false,
			Message:    "Invalid coupon code",
		}
	}

	if subtotal < coupon.MinOrderAmount {
		coupon.Message = fmt.Sprintf("Minimum order amount of ₹%d required", coupon.MinOrderAmount)
		return &coupon
	}

	if coupon.DiscountType == "percentage" {
		coupon.DiscountAmount = int64(float64(subtotal) * coupon.DiscountValue / 100)
		if coupon.MaxDiscountAmount > 0 && coupon.DiscountAmount > coupon.MaxDiscountAmount {
			coupon.DiscountAmount = coupon.MaxDiscountAmount
		}
	} else {
		coupon.DiscountAmount = int64(coupon.DiscountValue)
	}

	coupon.Applied = true
	coupon.Message = fmt.Sprintf("Coupon applied! You saved ₹%d", coupon.DiscountAmount)
	return &coupon
}

func (s *Service) getStoredCoupon(ctx context.Context, userID uint) *CouponApplication {
	couponKey := fmt.Sprintf("applied_coupon:%d", userID)

	couponData, err := s.redisClient.Get(ctx, couponKey).Result()
	if err != nil {
		return nil
	}

	var coupon CouponApplication
	if err := json.Unmarshal([]byte(couponData), &coupon); err != nil {
		return nil
	}

	return &coupon
}

func sumLines(lines []pricing.Line) int64 {
	var subtotal int64
	for _, line := range lines {
		if line.Quantity > 0 {
			subtotal += line.UnitPrice * int64(line.Quantity)
		}
	}
	return subtotal
}
