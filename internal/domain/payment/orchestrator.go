// internal/domain/payment/orchestrator.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-backend/internal/domain/order"
	"github.com/your-org/checkout-backend/internal/domain/verification"
)

// OrderStore is the slice of the order service the orchestrator needs
type OrderStore interface {
	FindByTransactionID(transactionID string) (*order.Order, error)
	RecordPayment(payment *order.Payment) error
}

// Finalizer turns a paid checkout into an order
type Finalizer interface {
	Finalize(ctx context.Context, input *order.FinalizeInput) (*order.Confirmation, error)
}

// PhoneVerifier validates and consumes COD verification tokens
type PhoneVerifier interface {
	Validate(ctx context.Context, token, phone string) (*verification.TokenClaims, error)
	Consume(ctx context.Context, token, phone string) (*verification.TokenClaims, error)
}

// Orchestrator drives a checkout attempt to exactly one outcome:
// success, failure, or cancelled.
type Orchestrator struct {
	gateway   Gateway
	orders    OrderStore
	finalizer Finalizer
	verifier  PhoneVerifier
}

// NewOrchestrator creates a new payment orchestrator
func NewOrchestrator(gateway Gateway, orders OrderStore, finalizer Finalizer, verifier PhoneVerifier) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		orders:    orders,
		finalizer: finalizer,
		verifier:  verifier,
	}
}

// CODRequest describes a cash-on-delivery checkout attempt
type CODRequest struct {
	Draft               *order.CreateOrderInput
	VerificationToken   string
	Phone               string
	SessionID           string
	BuyNow              bool
	AuthenticatedUserID *uint
}

// PlaceCODOrder finalizes a COD checkout. The verification token is the
// idempotency anchor: replays with an already-consumed token return the
// order it created instead of a duplicate.
func (p *Orchestrator) PlaceCODOrder(ctx context.Context, req *CODRequest) Outcome {
	claims, err := p.verifier.Validate(ctx, req.VerificationToken, req.Phone)
	if err != nil {
		return Failure(ReasonVerificationRequired, err)
	}

	if _, err := p.verifier.Consume(ctx, req.VerificationToken, req.Phone); err != nil {
		if errors.Is(err, verification.ErrTokenUsed) {
			if existing, lookupErr := p.orders.FindByTransactionID(claims.ID); lookupErr == nil {
				logrus.WithField("order_number", existing.OrderNumber).
					Info("COD replay detected, returning existing order")
				return Success(order.NewConfirmation(existing))
			}
		}
		return Failure(ReasonVerificationRequired, err)
	}

	draft := req.Draft
	draft.PaymentMethod = string(orderMethodCOD)
	draft.TransactionID = claims.ID
	draft.VerifiedPhone = claims.Phone
	draft.Status = order.OrderStatusConfirmed
	draft.PaymentStatus = order.PaymentStatusPending

	confirmation, err := p.finalizer.Finalize(ctx, &order.FinalizeInput{
		Draft:               draft,
		SessionID:           req.SessionID,
		BuyNow:              req.BuyNow,
		AuthenticatedUserID: req.AuthenticatedUserID,
	})
	if err != nil {
		return Failure(ReasonOrderCreationFailed, err)
	}

	p.recordPayment(confirmation.OrderID, string(orderMethodCOD), claims.ID, "",
		confirmation.TotalAmount, order.PaymentStatusPending, "")

	return Success(confirmation)
}

// Initiation is what the client needs to open the hosted checkout
type Initiation struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	Amount         int64  `json:"amount"`       // Whole rupees
	AmountPaise    int64  `json:"amount_paise"` // What the gateway charges
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	KeyID          string `json:"key_id"`
}

// InitiateOnlinePayment registers the amount with the gateway and returns
// what the client needs to open the payment window.
func (p *Orchestrator) InitiateOnlinePayment(ctx context.Context, amount int64, receipt string) (*Initiation, error) {
	gatewayOrder, err := p.gateway.CreateOrder(ctx, &GatewayOrderRequest{
		Amount:  amount,
		Receipt: receipt,
	})
	if err != nil {
		return nil, err
	}

	return &Initiation{
		GatewayOrderID: gatewayOrder.ID,
		Amount:         amount,
		AmountPaise:    gatewayOrder.Amount,
		Currency:       gatewayOrder.Currency,
		Receipt:        gatewayOrder.Receipt,
		KeyID:          p.gateway.KeyID(),
	}, nil
}

// SettlementRequest describes a completed hosted-checkout payment
type SettlementRequest struct {
	Draft               *order.CreateOrderInput
	GatewayOrderID      string
	PaymentID           string
	Signature           string
	SessionID           string
	BuyNow              bool
	AuthenticatedUserID *uint
}

// SettleOnlinePayment verifies the gateway signature and finalizes the
// order. The gateway payment ID is the idempotency anchor. A failure
// after a verified signature means the customer was charged, so the
// payment ID is surfaced in the outcome for support.
func (p *Orchestrator) SettleOnlinePayment(ctx context.Context, req *SettlementRequest) Outcome {
	if !p.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		out := Failure(ReasonPaymentVerificationFailed,
			fmt.Errorf("payment signature verification failed"))
		out.PaymentID = req.PaymentID
		return out
	}

	if existing, err := p.orders.FindByTransactionID(req.PaymentID); err == nil {
		logrus.WithField("order_number", existing.OrderNumber).
			Info("Settlement replay detected, returning existing order")
		return Success(order.NewConfirmation(existing))
	}

	draft := req.Draft
	if draft.PaymentMethod == "" {
		draft.PaymentMethod = string(orderMethodRazorpay)
	}
	draft.TransactionID = req.PaymentID
	draft.Status = order.OrderStatusConfirmed
	draft.PaymentStatus = order.PaymentStatusPaid

	confirmation, err := p.finalizer.Finalize(ctx, &order.FinalizeInput{
		Draft:               draft,
		SessionID:           req.SessionID,
		BuyNow:              req.BuyNow,
		AuthenticatedUserID: req.AuthenticatedUserID,
	})
	if err != nil {
		out := Failure(ReasonOrderCreationFailed, err)
		out.PaymentID = req.PaymentID
		return out
	}

	p.recordPayment(confirmation.OrderID, draft.PaymentMethod, req.PaymentID,
		req.GatewayOrderID, confirmation.TotalAmount, order.PaymentStatusPaid, "")

	return Success(confirmation)
}

// FailureReport is what the client sends when the hosted checkout ends
// without a successful payment.
type FailureReport struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id,omitempty"`
	Code           string `json:"code,omitempty"`
	Description    string `json:"description,omitempty"`
	Cancelled      bool   `json:"cancelled,omitempty"`
}

// RecordFailure classifies an unsuccessful hosted-checkout attempt.
// Closing the payment window is a cancellation, not a payment failure.
func (p *Orchestrator) RecordFailure(ctx context.Context, report *FailureReport) Outcome {
	if report.Cancelled || report.Code == "payment_cancelled" {
		logrus.WithField("gateway_order_id", report.GatewayOrderID).
			Info("Customer cancelled payment")
		return Cancelled()
	}

	logrus.WithFields(logrus.Fields{
		"gateway_order_id": report.GatewayOrderID,
		"payment_id":       report.PaymentID,
		"code":             report.Code,
	}).Warn("Payment failed at gateway")

	out := Failure(ReasonPaymentFailed, fmt.Errorf("payment failed: %s", report.Description))
	out.PaymentID = report.PaymentID
	return out
}

func (p *Orchestrator) recordPayment(orderID uint, method, providerPaymentID, providerOrderID string, amount int64, status order.PaymentStatus, failureReason string) {
	now := time.Now().UTC()
	record := &order.Payment{
		OrderID:           orderID,
		PaymentMethod:     method,
		PaymentProviderID: providerPaymentID,
		ProviderOrderID:   providerOrderID,
		Amount:            amount,
		Currency:          "INR",
		Status:            status,
		Gateway:           gatewayName(method),
		FailureReason:     failureReason,
		ProcessedAt:       &now,
	}
	if err := p.orders.RecordPayment(record); err != nil {
		logrus.WithError(err).WithField("order_id", orderID).
			Error("Failed to record payment transaction")
	}
}

type orderMethod string

const (
	orderMethodRazorpay orderMethod = "razorpay"
	orderMethodCOD      orderMethod = "cod"
)

func gatewayName(method string) string {
	if method == string(orderMethodCOD) {
		return "offline"
	}
	return "razorpay"
}
