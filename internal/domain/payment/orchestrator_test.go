package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/checkout-backend/internal/domain/order"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"github.com/your-org/checkout-backend/internal/domain/verification"
)

type stubGateway struct {
	createdOrder *GatewayOrder
	createErr    error
	validSig     bool
}

func (g *stubGateway) CreateOrder(_ context.Context, req *GatewayOrderRequest) (*GatewayOrder, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	if g.createdOrder != nil {
		return g.createdOrder, nil
	}
	return &GatewayOrder{
		ID:       "order_gw123",
		Amount:   req.Amount * 100,
		Currency: "INR",
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) VerifyPaymentSignature(_, _, _ string) bool { return g.validSig }
func (g *stubGateway) VerifyWebhookSignature(_ []byte, _ string) bool { return g.validSig }
func (g *stubGateway) FetchPayment(_ context.Context, _ string) (*GatewayPayment, error) {
	return nil, errors.New("not implemented")
}
func (g *stubGateway) KeyID() string { return "rzp_test_key" }

type stubOrderStore struct {
	existing map[string]*order.Order
	payments []*order.Payment
}

func (s *stubOrderStore) FindByTransactionID(transactionID string) (*order.Order, error) {
	if o, ok := s.existing[transactionID]; ok {
		return o, nil
	}
	return nil, order.ErrOrderNotFound
}

func (s *stubOrderStore) RecordPayment(p *order.Payment) error {
	s.payments = append(s.payments, p)
	return nil
}

type stubFinalizer struct {
	calls        int
	lastInput    *order.FinalizeInput
	confirmation *order.Confirmation
	err          error
}

func (f *stubFinalizer) Finalize(_ context.Context, input *order.FinalizeInput) (*order.Confirmation, error) {
	f.calls++
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.confirmation, nil
}

type stubVerifier struct {
	claims      *verification.TokenClaims
	validateErr error
	consumeErr  error
	consumed    int
}

func (v *stubVerifier) Validate(_ context.Context, _, _ string) (*verification.TokenClaims, error) {
	if v.validateErr != nil {
		return nil, v.validateErr
	}
	return v.claims, nil
}

func (v *stubVerifier) Consume(_ context.Context, _, _ string) (*verification.TokenClaims, error) {
	if v.consumeErr != nil {
		return nil, v.consumeErr
	}
	v.consumed++
	return v.claims, nil
}

func codClaims(tokenID, phone string) *verification.TokenClaims {
	return &verification.TokenClaims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: tokenID,
		},
	}
}

func draftWithQuote() *order.CreateOrderInput {
	return &order.CreateOrderInput{
		Email: "customer@example.com",
		Quote: &pricing.Quote{FinalAmount: 1007},
	}
}

func TestPlaceCODOrder_Success(t *testing.T) {
	store := &stubOrderStore{existing: map[string]*order.Order{}}
	fin := &stubFinalizer{confirmation: &order.Confirmation{
		OrderID:     7,
		OrderNumber: "ORD-20260831-00007",
		TotalAmount: 1007,
	}}
	verifier := &stubVerifier{claims: codClaims("jti-1", "+919876543210")}

	orch := NewOrchestrator(&stubGateway{}, store, fin, verifier)

	outcome := orch.PlaceCODOrder(context.Background(), &CODRequest{
		Draft:             draftWithQuote(),
		VerificationToken: "token",
		Phone:             "+919876543210",
	})

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, "ORD-20260831-00007", outcome.Confirmation.OrderNumber)
	assert.Equal(t, 1, fin.calls)
	assert.Equal(t, "cod", fin.lastInput.Draft.PaymentMethod)
	assert.Equal(t, "jti-1", fin.lastInput.Draft.TransactionID)
	assert.Equal(t, "+919876543210", fin.lastInput.Draft.VerifiedPhone)
	assert.Equal(t, order.PaymentStatusPending, fin.lastInput.Draft.PaymentStatus)

	require.Len(t, store.payments, 1)
	assert.Equal(t, order.PaymentStatusPending, store.payments[0].Status)
	assert.Equal(t, "offline", store.payments[0].Gateway)
}

func TestPlaceCODOrder_InvalidToken(t *testing.T) {
	fin := &stubFinalizer{}
	verifier := &stubVerifier{validateErr: verification.ErrInvalidToken}
	orch := NewOrchestrator(&stubGateway{}, &stubOrderStore{}, fin, verifier)

	outcome := orch.PlaceCODOrder(context.Background(), &CODRequest{
		Draft:             draftWithQuote(),
		VerificationToken: "garbage",
	})

	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Equal(t, ReasonVerificationRequired, outcome.Reason)
	assert.Zero(t, fin.calls)
}

func TestPlaceCODOrder_ReplayReturnsExistingOrder(t *testing.T) {
	existing := &order.Order{
		ID:            7,
		OrderNumber:   "ORD-20260831-00007",
		TotalAmount:   1007,
		PaymentMethod: "cod",
		Currency:      "INR",
	}
	store := &stubOrderStore{existing: map[string]*order.Order{"jti-1": existing}}
	fin := &stubFinalizer{}
	verifier := &stubVerifier{
		claims:     codClaims("jti-1", "+919876543210"),
		consumeErr: verification.ErrTokenUsed,
	}
	orch := NewOrchestrator(&stubGateway{}, store, fin, verifier)

	outcome := orch.PlaceCODOrder(context.Background(), &CODRequest{
		Draft:             draftWithQuote(),
		VerificationToken: "token",
		Phone:             "+919876543210",
	})

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, "ORD-20260831-00007", outcome.Confirmation.OrderNumber)
	// No second order, no second payment record
	assert.Zero(t, fin.calls)
	assert.Empty(t, store.payments)
}

func TestSettleOnlinePayment_BadSignature(t *testing.T) {
	fin := &stubFinalizer{}
	orch := NewOrchestrator(&stubGateway{validSig: false}, &stubOrderStore{}, fin, &stubVerifier{})

	outcome := orch.SettleOnlinePayment(context.Background(), &SettlementRequest{
		Draft:          draftWithQuote(),
		GatewayOrderID: "order_gw123",
		PaymentID:      "pay_abc",
		Signature:      "forged",
	})

	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Equal(t, ReasonPaymentVerificationFailed, outcome.Reason)
	// Money may have moved at the gateway; support needs the payment ID
	assert.Equal(t, "pay_abc", outcome.PaymentID)
	assert.Zero(t, fin.calls)
}

func TestSettleOnlinePayment_Success(t *testing.T) {
	store := &stubOrderStore{existing: map[string]*order.Order{}}
	fin := &stubFinalizer{confirmation: &order.Confirmation{
		OrderID:     9,
		OrderNumber: "ORD-20260831-00009",
		TotalAmount: 862,
	}}
	orch := NewOrchestrator(&stubGateway{validSig: true}, store, fin, &stubVerifier{})

	outcome := orch.SettleOnlinePayment(context.Background(), &SettlementRequest{
		Draft:          draftWithQuote(),
		GatewayOrderID: "order_gw123",
		PaymentID:      "pay_abc",
		Signature:      "valid",
	})

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, "pay_abc", fin.lastInput.Draft.TransactionID)
	assert.Equal(t, "razorpay", fin.lastInput.Draft.PaymentMethod)
	assert.Equal(t, order.PaymentStatusPaid, fin.lastInput.Draft.PaymentStatus)

	require.Len(t, store.payments, 1)
	assert.Equal(t, order.PaymentStatusPaid, store.payments[0].Status)
	assert.Equal(t, "pay_abc", store.payments[0].PaymentProviderID)
	assert.Equal(t, "order_gw123", store.payments[0].ProviderOrderID)
}

func TestSettleOnlinePayment_ReplayIsIdempotent(t *testing.T) {
	existing := &order.Order{
		ID:          9,
		OrderNumber: "ORD-20260831-00009",
		TotalAmount: 862,
		Currency:    "INR",
	}
	store := &stubOrderStore{existing: map[string]*order.Order{"pay_abc": existing}}
	fin := &stubFinalizer{}
	orch := NewOrchestrator(&stubGateway{validSig: true}, store, fin, &stubVerifier{})

	outcome := orch.SettleOnlinePayment(context.Background(), &SettlementRequest{
		Draft:          draftWithQuote(),
		GatewayOrderID: "order_gw123",
		PaymentID:      "pay_abc",
		Signature:      "valid",
	})

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, "ORD-20260831-00009", outcome.Confirmation.OrderNumber)
	assert.Zero(t, fin.calls)
}

func TestSettleOnlinePayment_FinalizeFailureSurfacesPaymentID(t *testing.T) {
	store := &stubOrderStore{existing: map[string]*order.Order{}}
	fin := &stubFinalizer{err: fmt.Errorf("database unavailable")}
	orch := NewOrchestrator(&stubGateway{validSig: true}, store, fin, &stubVerifier{})

	outcome := orch.SettleOnlinePayment(context.Background(), &SettlementRequest{
		Draft:          draftWithQuote(),
		GatewayOrderID: "order_gw123",
		PaymentID:      "pay_abc",
		Signature:      "valid",
	})

	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Equal(t, ReasonOrderCreationFailed, outcome.Reason)
	// The customer was charged; support needs the payment ID
	assert.Equal(t, "pay_abc", outcome.PaymentID)
}

func TestRecordFailure_CancelledIsNotFailure(t *testing.T) {
	orch := NewOrchestrator(&stubGateway{}, &stubOrderStore{}, &stubFinalizer{}, &stubVerifier{})

	outcome := orch.RecordFailure(context.Background(), &FailureReport{
		GatewayOrderID: "order_gw123",
		Cancelled:      true,
	})

	assert.True(t, outcome.IsCancelled())
	assert.NotEqual(t, OutcomeFailure, outcome.Status)
	assert.Empty(t, outcome.Reason)
}

func TestRecordFailure_DeclinedPayment(t *testing.T) {
	orch := NewOrchestrator(&stubGateway{}, &stubOrderStore{}, &stubFinalizer{}, &stubVerifier{})

	outcome := orch.RecordFailure(context.Background(), &FailureReport{
		GatewayOrderID: "order_gw123",
		PaymentID:      "pay_declined",
		Code:           "BAD_REQUEST_ERROR",
		Description:    "card declined",
	})

	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Equal(t, ReasonPaymentFailed, outcome.Reason)
	assert.Equal(t, "pay_declined", outcome.PaymentID)
}

func TestInitiateOnlinePayment(t *testing.T) {
	orch := NewOrchestrator(&stubGateway{}, &stubOrderStore{}, &stubFinalizer{}, &stubVerifier{})

	initiation, err := orch.InitiateOnlinePayment(context.Background(), 862, "rcpt-1")

	require.NoError(t, err)
	assert.Equal(t, "order_gw123", initiation.GatewayOrderID)
	assert.Equal(t, int64(862), initiation.Amount)
	assert.Equal(t, int64(86200), initiation.AmountPaise)
	assert.Equal(t, "rzp_test_key", initiation.KeyID)
}
