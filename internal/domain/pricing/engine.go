// internal/domain/pricing/engine.go
package pricing

import (
	"errors"
	"math"
)

// ErrShippingRequired is returned when no shipping option has been selected.
// Callers must block submission until one is chosen.
var ErrShippingRequired = errors.New("shipping option must be selected before computing a final amount")

// PaymentMethod identifies how the buyer intends to pay
type PaymentMethod string

const (
	PaymentMethodRazorpay  PaymentMethod = "razorpay"
	PaymentMethodCOD       PaymentMethod = "cod"
	PaymentMethodSavedCard PaymentMethod = "saved_card"
)

// IsOnline reports whether the method settles through the payment gateway
// and therefore qualifies for the online-payment discount.
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodRazorpay || m == PaymentMethodSavedCard
}

// Line is the minimal cart line view the engine needs. Amounts are in
// whole rupees; the Razorpay boundary converts to paise.
type Line struct {
	UnitPrice int64 `json:"unit_price"`
	Quantity  int   `json:"quantity"`
}

// ShippingOption represents a selectable shipping tier
type ShippingOption struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Rate              int64  `json:"rate"`
	EstimatedDelivery string `json:"estimated_delivery"`
}

// Coupon carries a server-resolved discount amount. The engine applies the
// amount as given and never re-derives percentage vs fixed rules.
type Coupon struct {
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
	Description    string `json:"description,omitempty"`
}

// RewardRedemption is a requested reward-points discount. The effective
// discount is clamped so the payable amount never goes negative.
type RewardRedemption struct {
	PointsRedeemed int   `json:"points_redeemed"`
	DiscountAmount int64 `json:"discount_amount"`
}

// DiscountContext groups the independently-sourced, independently-optional
// discounts composed by the engine.
type DiscountContext struct {
	Coupon *Coupon           `json:"coupon,omitempty"`
	Reward *RewardRedemption `json:"reward,omitempty"`
}

// Tier is a quantity-based discount step
type Tier struct {
	MinQuantity int
	Percent     float64
}

// quantityTiers are evaluated highest first; the first matching tier wins.
var quantityTiers = []Tier{
	{MinQuantity: 5, Percent: 20},
	{MinQuantity: 3, Percent: 15},
	{MinQuantity: 2, Percent: 5},
}

// Breakdown itemizes every stage of the final amount calculation
type Breakdown struct {
	Subtotal         int64   `json:"subtotal"`
	ShippingCost     int64   `json:"shipping_cost"`
	TotalQuantity    int     `json:"total_quantity"`
	TierPercent      float64 `json:"tier_percent"`
	QuantityDiscount int64   `json:"quantity_discount"`
	CouponDiscount   int64   `json:"coupon_discount"`
	OnlineDiscount   int64   `json:"online_discount"`
	RewardDiscount   int64   `json:"reward_discount"`
}

// Quote is the result of a pricing computation
type Quote struct {
	FinalAmount int64     `json:"final_amount"`
	Breakdown   Breakdown `json:"breakdown"`
}

// Engine composes the discount stages in their fixed order. It is pure and
// safe to call on every input change.
type Engine struct {
	onlinePercent float64
}

// NewEngine creates a pricing engine. onlinePercent is the online-payment
// incentive applied to gateway methods (5.0 means 5%).
func NewEngine(onlinePercent float64) *Engine {
	return &Engine{onlinePercent: onlinePercent}
}

// ComputeFinalAmount produces the payable amount and its breakdown.
//
// The discount order is load-bearing: quantity tier, then coupon, then
// online-payment, then reward points, each stage operating on the remainder
// left by the prior stage. Shipping enters the tier base exactly once and
// is never re-added afterwards. The quantity discount is floored toward
// zero; the online discount is rounded to the nearest rupee. These rules
// must match the amounts the order endpoints persist, rupee for rupee.
func (e *Engine) ComputeFinalAmount(lines []Line, shipping *ShippingOption, dc DiscountContext, method PaymentMethod) (*Quote, error) {
	if shipping == nil {
		return nil, ErrShippingRequired
	}

	var subtotal int64
	var totalQuantity int
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal += line.UnitPrice * int64(line.Quantity)
		totalQuantity += line.Quantity
	}

	breakdown := Breakdown{
		Subtotal:      subtotal,
		ShippingCost:  shipping.Rate,
		TotalQuantity: totalQuantity,
	}

	// Stage 1: quantity tier on (subtotal + shipping), floored
	remainder := subtotal + shipping.Rate
	if tier, ok := tierFor(totalQuantity); ok {
		breakdown.TierPercent = tier.Percent
		breakdown.QuantityDiscount = int64(float64(remainder) * tier.Percent / 100)
		remainder -= breakdown.QuantityDiscount
	}
	if remainder < 0 {
		remainder = 0
	}

	// Stage 2: coupon, amount already resolved server-side
	if dc.Coupon != nil && dc.Coupon.DiscountAmount > 0 {
		breakdown.CouponDiscount = dc.Coupon.DiscountAmount
		remainder -= breakdown.CouponDiscount
		if remainder < 0 {
			breakdown.CouponDiscount += remainder
			remainder = 0
		}
	}

	// Stage 3: online-payment incentive, rounded to the nearest rupee
	if method.IsOnline() && e.onlinePercent > 0 {
		breakdown.OnlineDiscount = int64(math.Round(float64(remainder) * e.onlinePercent / 100))
		remainder -= breakdown.OnlineDiscount
		if remainder < 0 {
			remainder = 0
		}
	}

	// Stage 4: reward points, clamped to the remaining balance
	if dc.Reward != nil && dc.Reward.DiscountAmount > 0 {
		breakdown.RewardDiscount = dc.Reward.DiscountAmount
		if breakdown.RewardDiscount > remainder {
			breakdown.RewardDiscount = remainder
		}
		remainder -= breakdown.RewardDiscount
	}

	return &Quote{
		FinalAmount: remainder,
		Breakdown:   breakdown,
	}, nil
}

// TotalDiscount sums every discount stage applied in a breakdown
func (b Breakdown) TotalDiscount() int64 {
	return b.QuantityDiscount + b.CouponDiscount + b.OnlineDiscount + b.RewardDiscount
}

func tierFor(totalQuantity int) (Tier, bool) {
	for _, tier := range quantityTiers {
		if totalQuantity >= tier.MinQuantity {
			return tier, true
		}
	}
	return Tier{}, false
}

// ShippingOptions returns the static two-tier shipping table. Standard
// shipping is free once the cart subtotal crosses the configured threshold.
func ShippingOptions(standardRate, expressRate, freeThreshold, subtotal int64) []ShippingOption {
	standard := ShippingOption{
		ID:                "standard",
		Name:              "Standard Shipping",
		Rate:              standardRate,
		EstimatedDelivery: "5-7 business days",
	}
	if freeThreshold > 0 && subtotal >= freeThreshold {
		standard.Rate = 0
		standard.Name = "Free Standard Shipping"
	}

	return []ShippingOption{
		standard,
		{
			ID:                "express",
			Name:              "Express Shipping",
			Rate:              expressRate,
			EstimatedDelivery: "2-3 business days",
		},
	}
}

// FindShippingOption resolves an option id against the static table
func FindShippingOption(options []ShippingOption, id string) (*ShippingOption, bool) {
	for i := range options {
		if options[i].ID == id {
			return &options[i], true
		}
	}
	return nil, false
}
