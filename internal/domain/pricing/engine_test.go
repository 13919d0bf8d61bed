package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(5.0)
}

func TestComputeFinalAmount_RequiresShipping(t *testing.T) {
	engine := newTestEngine()

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 500, Quantity: 2}},
		nil,
		DiscountContext{},
		PaymentMethodCOD,
	)

	assert.Nil(t, quote)
	assert.ErrorIs(t, err, ErrShippingRequired)
}

func TestComputeFinalAmount_QuantityTierOnly(t *testing.T) {
	// Subtotal 1000, shipping 60, quantity 2: tier is 5% of 1060 = 53
	// (floored), final amount 1007.
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 60}

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 500, Quantity: 2}},
		shipping,
		DiscountContext{},
		PaymentMethodCOD,
	)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.Breakdown.Subtotal)
	assert.Equal(t, int64(60), quote.Breakdown.ShippingCost)
	assert.Equal(t, 5.0, quote.Breakdown.TierPercent)
	assert.Equal(t, int64(53), quote.Breakdown.QuantityDiscount)
	assert.Equal(t, int64(1007), quote.FinalAmount)
}

func TestComputeFinalAmount_CouponAndOnlineDiscount(t *testing.T) {
	// Same cart with a 100 coupon paid online: 1060 - 53 = 1007, minus
	// coupon = 907, minus round(907*5%) = 45, final 862. Shipping entered
	// the base once and is not re-added.
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 60}

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 500, Quantity: 2}},
		shipping,
		DiscountContext{Coupon: &Coupon{Code: "SAVE100", DiscountAmount: 100}},
		PaymentMethodRazorpay,
	)

	require.NoError(t, err)
	assert.Equal(t, int64(53), quote.Breakdown.QuantityDiscount)
	assert.Equal(t, int64(100), quote.Breakdown.CouponDiscount)
	assert.Equal(t, int64(45), quote.Breakdown.OnlineDiscount)
	assert.Equal(t, int64(862), quote.FinalAmount)
}

func TestComputeFinalAmount_RewardClamp(t *testing.T) {
	// Requesting a 2000 reward discount against a 500 remainder applies
	// exactly 500 and lands on zero, never negative.
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 0}

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 500, Quantity: 1}},
		shipping,
		DiscountContext{Reward: &RewardRedemption{PointsRedeemed: 2000, DiscountAmount: 2000}},
		PaymentMethodCOD,
	)

	require.NoError(t, err)
	assert.Equal(t, int64(500), quote.Breakdown.RewardDiscount)
	assert.Equal(t, int64(0), quote.FinalAmount)
}

func TestComputeFinalAmount_QuantityDiscountIsFloored(t *testing.T) {
	// 15% of 333 is 49.95; the tier stage floors toward zero.
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 0}

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 111, Quantity: 3}},
		shipping,
		DiscountContext{},
		PaymentMethodCOD,
	)

	require.NoError(t, err)
	assert.Equal(t, 15.0, quote.Breakdown.TierPercent)
	assert.Equal(t, int64(49), quote.Breakdown.QuantityDiscount)
	assert.Equal(t, int64(284), quote.FinalAmount)
}

func TestComputeFinalAmount_OnlineDiscountRoundsToNearest(t *testing.T) {
	// Remainder 910: 5% is 45.5, rounded to 46.
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 0}

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 910, Quantity: 1}},
		shipping,
		DiscountContext{},
		PaymentMethodRazorpay,
	)

	require.NoError(t, err)
	assert.Equal(t, int64(46), quote.Breakdown.OnlineDiscount)
	assert.Equal(t, int64(864), quote.FinalAmount)
}

func TestComputeFinalAmount_TierThresholds(t *testing.T) {
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 0}

	cases := []struct {
		quantity    int
		wantPercent float64
	}{
		{1, 0},
		{2, 5},
		{3, 15},
		{4, 15},
		{5, 20},
		{9, 20},
	}

	for _, tc := range cases {
		quote, err := engine.ComputeFinalAmount(
			[]Line{{UnitPrice: 100, Quantity: tc.quantity}},
			shipping,
			DiscountContext{},
			PaymentMethodCOD,
		)
		require.NoError(t, err)
		assert.Equal(t, tc.wantPercent, quote.Breakdown.TierPercent, "quantity %d", tc.quantity)
	}
}

func TestComputeFinalAmount_OrderDependence(t *testing.T) {
	// Applying the coupon before the quantity tier would change the result,
	// proving the fixed stage order is load-bearing rather than incidental.
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 0}
	coupon := &Coupon{Code: "SAVE100", DiscountAmount: 100}

	quote, err := engine.ComputeFinalAmount(
		[]Line{{UnitPrice: 500, Quantity: 2}},
		shipping,
		DiscountContext{Coupon: coupon},
		PaymentMethodCOD,
	)
	require.NoError(t, err)

	// Committed order: tier on 1000 = 50, then coupon = 850.
	assert.Equal(t, int64(850), quote.FinalAmount)

	// Swapped order: coupon first leaves 900, tier 5% = 45, final 855.
	swapped := int64(1000-100) - int64(float64(1000-100)*5/100)
	assert.NotEqual(t, swapped, quote.FinalAmount)
}

func TestComputeFinalAmount_NeverNegative(t *testing.T) {
	engine := newTestEngine()
	shipping := &ShippingOption{ID: "standard", Rate: 60}

	cases := []struct {
		name   string
		lines  []Line
		dc     DiscountContext
		method PaymentMethod
	}{
		{
			name:   "coupon exceeds order",
			lines:  []Line{{UnitPrice: 100, Quantity: 1}},
			dc:     DiscountContext{Coupon: &Coupon{Code: "BIG", DiscountAmount: 10000}},
			method: PaymentMethodRazorpay,
		},
		{
			name:  "coupon and reward exceed order",
			lines: []Line{{UnitPrice: 200, Quantity: 2}},
			dc: DiscountContext{
				Coupon: &Coupon{Code: "BIG", DiscountAmount: 350},
				Reward: &RewardRedemption{PointsRedeemed: 999, DiscountAmount: 999},
			},
			method: PaymentMethodCOD,
		},
		{
			name:   "empty cart",
			lines:  nil,
			dc:     DiscountContext{Reward: &RewardRedemption{DiscountAmount: 50}},
			method: PaymentMethodRazorpay,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := engine.ComputeFinalAmount(tc.lines, shipping, tc.dc, tc.method)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, quote.FinalAmount, int64(0))
			assert.GreaterOrEqual(t, quote.Breakdown.RewardDiscount, int64(0))
		})
	}
}

func TestShippingOptions_FreeThreshold(t *testing.T) {
	options := ShippingOptions(60, 120, 2999, 3500)
	standard, ok := FindShippingOption(options, "standard")
	require.True(t, ok)
	assert.Equal(t, int64(0), standard.Rate)

	options = ShippingOptions(60, 120, 2999, 1000)
	standard, ok = FindShippingOption(options, "standard")
	require.True(t, ok)
	assert.Equal(t, int64(60), standard.Rate)

	express, ok := FindShippingOption(options, "express")
	require.True(t, ok)
	assert.Equal(t, int64(120), express.Rate)

	_, ok = FindShippingOption(options, "same_day")
	assert.False(t, ok)
}
