// internal/domain/order/finalizer.go
package order

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-backend/internal/domain/user"
)

// Creator persists orders and resolves payment replays
type Creator interface {
	CreateOrder(input *CreateOrderInput) (*Order, error)
	FindByTransactionID(transactionID string) (*Order, error)
}

// AccountResolver finds or creates customer accounts during finalization
type AccountResolver interface {
	EnsureAccountForOrder(email, firstName, lastName, phone string) (*user.User, bool, error)
}

// CartClearer empties a cart after a successful order
type CartClearer interface {
	ClearCart(ctx context.Context, userID *uint, sessionID string) error
}

// ConfirmationMailer sends the order confirmation email
type ConfirmationMailer interface {
	SendOrderConfirmation(o *Order) error
}

// Finalizer turns a successful payment outcome into a persisted order,
// resolves the customer account, clears the cart, and notifies the customer.
type Finalizer struct {
	orders   Creator
	accounts AccountResolver
	carts    CartClearer
	mailer   ConfirmationMailer
}

// NewFinalizer creates a new order finalizer
func NewFinalizer(orders Creator, accounts AccountResolver, carts CartClearer, mailer ConfirmationMailer) *Finalizer {
	return &Finalizer{
		orders:   orders,
		accounts: accounts,
		carts:    carts,
		mailer:   mailer,
	}
}

// FinalizeInput describes a paid (or COD-verified) checkout ready to
// become an order.
type FinalizeInput struct {
	Draft     *CreateOrderInput
	SessionID string
	// BuyNow orders are placed from a standalone line, so the stored
	// cart must stay untouched.
	BuyNow bool
	// AuthenticatedUserID is set when the customer was logged in.
	AuthenticatedUserID *uint
}

// Confirmation is the payload returned to the customer after checkout.
// The legacy account booleans are kept for existing clients.
type Confirmation struct {
	OrderID               uint           `json:"order_id"`
	OrderNumber           string         `json:"order_number"`
	TotalAmount           int64          `json:"total_amount"`
	Currency              string         `json:"currency"`
	PaymentMethod         string         `json:"payment_method"`
	Email                 string         `json:"email"`
	EstimatedDelivery     string         `json:"estimated_delivery,omitempty"`
	AccountOutcome        AccountOutcome `json:"account_outcome"`
	AutoAccountCreated    bool           `json:"auto_account_created"`
	ExistingAccountLinked bool           `json:"existing_account_linked"`
	ItemCount             int            `json:"item_count"`
}

// Finalize resolves the account, persists the order, clears the cart, and
// sends the confirmation email. Cart clearing and email failures never fail
// a paid order; they are logged and the confirmation still goes out.
func (f *Finalizer) Finalize(ctx context.Context, input *FinalizeInput) (*Confirmation, error) {
	draft := input.Draft

	// Replays of the same payment return the already-created order.
	if existing, err := f.orders.FindByTransactionID(draft.TransactionID); err == nil {
		logrus.WithFields(logrus.Fields{
			"order_number":   existing.OrderNumber,
			"transaction_id": draft.TransactionID,
		}).Info("Duplicate finalization, returning existing order")
		return f.buildConfirmation(existing), nil
	}

	outcome := NoAccountChange
	if input.AuthenticatedUserID != nil {
		draft.UserID = input.AuthenticatedUserID
	} else if draft.Email != "" && f.accounts != nil {
		account, created, err := f.accounts.EnsureAccountForOrder(
			draft.Email,
			draft.ShippingAddress.FirstName,
			draft.ShippingAddress.LastName,
			draft.ShippingAddress.Phone,
		)
		if err != nil {
			// The order must not be lost over an account problem; it
			// proceeds as a guest order.
			logrus.WithError(err).WithField("email", draft.Email).
				Warn("Account resolution failed, creating guest order")
		} else {
			draft.UserID = &account.ID
			if created {
				outcome = AccountCreated
			} else {
				outcome = AccountLinked
			}
		}
	}
	draft.AccountOutcome = outcome

	created, err := f.orders.CreateOrder(draft)
	if err != nil {
		return nil, err
	}

	// The cart is cleared only after the order exists, and never for
	// buy-now checkouts. The clear targets the identity the cart was
	// filled under: a guest's session cart stays a session cart even
	// when an account was just created for the order.
	if !input.BuyNow {
		if err := f.carts.ClearCart(ctx, input.AuthenticatedUserID, input.SessionID); err != nil {
			logrus.WithError(err).WithField("order_number", created.OrderNumber).
				Warn("Failed to clear cart after order creation")
		}
	}

	if f.mailer != nil {
		go func(o *Order) {
			if err := f.mailer.SendOrderConfirmation(o); err != nil {
				logrus.WithError(err).WithField("order_number", o.OrderNumber).
					Error("Failed to send order confirmation email")
			}
		}(created)
	}

	logrus.WithFields(logrus.Fields{
		"order_number":   created.OrderNumber,
		"total_amount":   created.TotalAmount,
		"payment_method": created.PaymentMethod,
		"account":        string(outcome),
	}).Info("Order finalized")

	return f.buildConfirmation(created), nil
}

func (f *Finalizer) buildConfirmation(o *Order) *Confirmation {
	return NewConfirmation(o)
}

// NewConfirmation builds the customer-facing confirmation for an order
func NewConfirmation(o *Order) *Confirmation {
	return &Confirmation{
		OrderID:               o.ID,
		OrderNumber:           o.OrderNumber,
		TotalAmount:           o.TotalAmount,
		Currency:              o.Currency,
		PaymentMethod:         o.PaymentMethod,
		Email:                 o.Email,
		EstimatedDelivery:     o.EstimatedDelivery,
		AccountOutcome:        o.AccountOutcome,
		AutoAccountCreated:    o.AccountOutcome.AutoAccountCreated(),
		ExistingAccountLinked: o.AccountOutcome.ExistingAccountLinked(),
		ItemCount:             len(o.Items),
	}
}
