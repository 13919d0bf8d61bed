package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/checkout-backend/internal/config"
)

type fakeStore struct {
	otps   map[string]string
	tokens map[string]bool
	bypass *bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		otps:   make(map[string]string),
		tokens: make(map[string]bool),
	}
}

func (f *fakeStore) SetOTP(_ context.Context, phone, code string, _ time.Duration) error {
	f.otps[phone] = code
	return nil
}

func (f *fakeStore) GetOTP(_ context.Context, phone string) (string, error) {
	code, ok := f.otps[phone]
	if !ok {
		return "", ErrOTPNotFound
	}
	return code, nil
}

func (f *fakeStore) DeleteOTP(_ context.Context, phone string) error {
	delete(f.otps, phone)
	return nil
}

func (f *fakeStore) MarkTokenIssued(_ context.Context, tokenID string, _ time.Duration) error {
	f.tokens[tokenID] = true
	return nil
}

func (f *fakeStore) ConsumeToken(_ context.Context, tokenID string) (bool, error) {
	if !f.tokens[tokenID] {
		return false, nil
	}
	delete(f.tokens, tokenID)
	return true, nil
}

func (f *fakeStore) GetBypassOverride(_ context.Context) (*bool, error) {
	return f.bypass, nil
}

func (f *fakeStore) SetBypassOverride(_ context.Context, enabled bool) error {
	f.bypass = &enabled
	return nil
}

func newTestService(store Store) *Service {
	cfg := &config.Config{}
	cfg.App.Environment = "development"
	cfg.Checkout.OTPLength = 6
	cfg.Checkout.OTPExpiry = 5 * time.Minute
	cfg.Checkout.TokenExpiry = 10 * time.Minute

	tokens := NewTokenManager("test-secret", "checkout-test", cfg.Checkout.TokenExpiry)
	return NewService(store, tokens, cfg)
}

func TestSendOTP_MissingPhone(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.SendOTP(context.Background(), "")

	assert.ErrorIs(t, err, ErrMissingPhone)
}

func TestSendOTP_StoresCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	result, err := svc.SendOTP(context.Background(), "+919876543210")

	require.NoError(t, err)
	assert.False(t, result.Bypassed)
	assert.Len(t, result.DevCode, 6)
	assert.Equal(t, result.DevCode, store.otps["+919876543210"])
}

func TestSendOTP_BypassSkipsCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	require.NoError(t, svc.SetBypass(context.Background(), true))

	result, err := svc.SendOTP(context.Background(), "+919876543210")

	require.NoError(t, err)
	assert.True(t, result.Bypassed)
	assert.Empty(t, store.otps)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.SendOTP(context.Background(), "+919876543210")
	require.NoError(t, err)

	_, err = svc.VerifyOTP(context.Background(), "+919876543210", "000000")

	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_NoCodeIssued(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.VerifyOTP(context.Background(), "+919876543210", "123456")

	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_IssuesSingleUseToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	sent, err := svc.SendOTP(ctx, "+919876543210")
	require.NoError(t, err)

	result, err := svc.VerifyOTP(ctx, "+919876543210", sent.DevCode)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.False(t, result.Bypassed)

	// Code is consumed on successful verification
	_, err = svc.VerifyOTP(ctx, "+919876543210", sent.DevCode)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	claims, err := svc.Consume(ctx, result.Token, "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", claims.Phone)

	// Replay of a consumed token is rejected
	_, err = svc.Consume(ctx, result.Token, "+919876543210")
	assert.ErrorIs(t, err, ErrTokenUsed)
}

func TestConsume_PhoneMismatch(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	sent, err := svc.SendOTP(ctx, "+919876543210")
	require.NoError(t, err)
	result, err := svc.VerifyOTP(ctx, "+919876543210", sent.DevCode)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, result.Token, "+911234567890")
	assert.ErrorIs(t, err, ErrPhoneMismatch)

	// Mismatch must not burn the token
	_, err = svc.Consume(ctx, result.Token, "+919876543210")
	assert.NoError(t, err)
}

func TestConsume_GarbageToken(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Consume(context.Background(), "not-a-jwt", "+919876543210")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyOTP_BypassAcceptsAnyCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.SetBypass(ctx, true))

	result, err := svc.VerifyOTP(ctx, "+919876543210", "whatever")
	require.NoError(t, err)
	assert.True(t, result.Bypassed)

	claims, err := svc.Consume(ctx, result.Token, "+919876543210")
	require.NoError(t, err)
	assert.True(t, claims.Bypassed)
}

func TestBypassEnabled_DefaultAndOverride(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	assert.False(t, svc.BypassEnabled(ctx))

	require.NoError(t, svc.SetBypass(ctx, true))
	assert.True(t, svc.BypassEnabled(ctx))

	require.NoError(t, svc.SetBypass(ctx, false))
	assert.False(t, svc.BypassEnabled(ctx))
}
