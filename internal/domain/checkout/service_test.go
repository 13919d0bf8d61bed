package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
)

func newBareService() *Service {
	cfg := &config.Config{}
	cfg.Checkout.StandardShippingRate = 60
	cfg.Checkout.ExpressShippingRate = 120
	cfg.Checkout.FreeShippingThreshold = 2999
	return &Service{config: cfg}
}

func TestValidateCoupon_UnknownCode(t *testing.T) {
	svc := newBareService()

	result := svc.validateCoupon("NOTREAL", 5000)

	assert.False(t, result.Applied)
	assert.Equal(t, "Invalid coupon code", result.Message)
}

func TestValidateCoupon_BelowMinimum(t *testing.T) {
	svc := newBareService()

	result := svc.validateCoupon("SAVE10", 1500)

	assert.False(t, result.Applied)
	assert.Contains(t, result.Message, "Minimum order amount")
}

func TestValidateCoupon_PercentageWithCap(t *testing.T) {
	svc := newBareService()

	// 10% of 20000 is 2000, capped at 1499
	result := svc.validateCoupon("SAVE10", 20000)

	require.True(t, result.Applied)
	assert.Equal(t, int64(1499), result.DiscountAmount)
}

func TestValidateCoupon_FixedAmount(t *testing.T) {
	svc := newBareService()

	result := svc.validateCoupon("FLAT500", 3000)

	require.True(t, result.Applied)
	assert.Equal(t, int64(500), result.DiscountAmount)
}

func TestShippingOptions_FreeAboveThreshold(t *testing.T) {
	svc := newBareService()

	options := svc.shippingOptions(3500)

	standard, ok := pricing.FindShippingOption(options, "standard")
	require.True(t, ok)
	assert.Zero(t, standard.Rate)

	express, ok := pricing.FindShippingOption(options, "express")
	require.True(t, ok)
	assert.Equal(t, int64(120), express.Rate)
}

func TestSumLines_SkipsNonPositiveQuantities(t *testing.T) {
	total := sumLines([]pricing.Line{
		{UnitPrice: 500, Quantity: 2},
		{UnitPrice: 999, Quantity: 0},
		{UnitPrice: 100, Quantity: -1},
	})

	assert.Equal(t, int64(1000), total)
}
