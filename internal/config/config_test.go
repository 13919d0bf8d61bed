package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTokenExpiry)
	assert.True(t, cfg.JWT.RefreshTokenRotation)

	assert.NotZero(t, cfg.Checkout.StandardShippingRate)
	assert.NotZero(t, cfg.Checkout.FreeShippingThreshold)
	assert.Equal(t, 5.0, cfg.Checkout.OnlineDiscountPercent)
}

func TestValidate_RejectsShortJWTSecret(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.JWT.Secret = "too-short"
	assert.Error(t, cfg.Validate())
}
