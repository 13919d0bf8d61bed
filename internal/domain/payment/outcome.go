// internal/domain/payment/outcome.go
package payment

import "github.com/your-org/checkout-backend/internal/domain/order"

// OutcomeStatus is the top-level result of a checkout attempt
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeFailure   OutcomeStatus = "failure"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// FailureReason classifies why a checkout attempt failed
type FailureReason string

const (
	ReasonVerificationRequired      FailureReason = "verification_required"
	ReasonOrderCreationFailed       FailureReason = "order_creation_failed"
	ReasonPaymentFailed             FailureReason = "payment_failed"
	ReasonPaymentVerificationFailed FailureReason = "payment_verification_failed"
)

// Outcome is the result of running a checkout attempt through the
// orchestrator. Exactly one of the three states holds: success carries a
// confirmation, failure carries a reason, cancelled carries neither.
// A cancelled attempt is the customer backing out, not an error.
type Outcome struct {
	Status       OutcomeStatus       `json:"status"`
	Confirmation *order.Confirmation `json:"confirmation,omitempty"`
	Reason       FailureReason       `json:"reason,omitempty"`
	Message      string              `json:"message,omitempty"`
	// PaymentID is set on settlement failures so support can trace the
	// charge at the gateway.
	PaymentID string `json:"payment_id,omitempty"`

	err error
}

// Success builds a successful outcome
func Success(confirmation *order.Confirmation) Outcome {
	return Outcome{Status: OutcomeSuccess, Confirmation: confirmation}
}

// Failure builds a failed outcome
func Failure(reason FailureReason, err error) Outcome {
	out := Outcome{Status: OutcomeFailure, Reason: reason, err: err}
	if err != nil {
		out.Message = err.Error()
	}
	return out
}

// Cancelled builds a customer-cancelled outcome
func Cancelled() Outcome {
	return Outcome{Status: OutcomeCancelled}
}

// IsSuccess reports whether the attempt produced an order
func (o Outcome) IsSuccess() bool { return o.Status == OutcomeSuccess }

// IsCancelled reports whether the customer backed out
func (o Outcome) IsCancelled() bool { return o.Status == OutcomeCancelled }

// Err returns the underlying error of a failed outcome, if any
func (o Outcome) Err() error { return o.err }
