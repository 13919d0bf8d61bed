// internal/domain/payment/gateway.go
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/your-org/checkout-backend/internal/config"
)

// Gateway abstracts the payment provider API
type Gateway interface {
	CreateOrder(ctx context.Context, req *GatewayOrderRequest) (*GatewayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	KeyID() string
}

// GatewayOrderRequest describes an order to register with the gateway.
// Amount is in whole rupees; conversion to paise happens at the wire.
type GatewayOrderRequest struct {
	Amount  int64
	Receipt string
	Notes   map[string]interface{}
}

// GatewayOrder is the provider's order record
type GatewayOrder struct {
	ID        string                 `json:"id"`
	Entity    string                 `json:"entity"`
	Amount    int64                  `json:"amount"` // Paise
	Currency  string                 `json:"currency"`
	Receipt   string                 `json:"receipt"`
	Status    string                 `json:"status"`
	Notes     map[string]interface{} `json:"notes"`
	CreatedAt int64                  `json:"created_at"`
}

// GatewayPayment is the provider's payment record
type GatewayPayment struct {
	ID          string                 `json:"id"`
	Entity      string                 `json:"entity"`
	Amount      int64                  `json:"amount"` // Paise
	Currency    string                 `json:"currency"`
	Status      string                 `json:"status"`
	OrderID     string                 `json:"order_id"`
	Method      string                 `json:"method"`
	Description string                 `json:"description"`
	Email       string                 `json:"email"`
	Contact     string                 `json:"contact"`
	Fee         int64                  `json:"fee"`
	Tax         int64                  `json:"tax"`
	Notes       map[string]interface{} `json:"notes"`
	CreatedAt   int64                  `json:"created_at"`
}

type razorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// NewRazorpayGateway creates a Razorpay-backed gateway from configuration
func NewRazorpayGateway(cfg *config.Config) Gateway {
	baseURL := cfg.External.Razorpay.BaseURL
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &razorpayGateway{
		keyID:         cfg.External.Razorpay.KeyID,
		keySecret:     cfg.External.Razorpay.KeySecret,
		webhookSecret: cfg.External.Razorpay.WebhookSecret,
		baseURL:       baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (r *razorpayGateway) KeyID() string {
	return r.keyID
}

// CreateOrder registers an order with Razorpay. Razorpay wants the amount
// in paise; everything above this boundary works in whole rupees.
func (r *razorpayGateway) CreateOrder(ctx context.Context, req *GatewayOrderRequest) (*GatewayOrder, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("invalid order amount: %d", req.Amount)
	}

	body := map[string]interface{}{
		"amount":   req.Amount * 100,
		"currency": "INR",
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}

	response, err := r.makeAPICall(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	var gatewayOrder GatewayOrder
	if err := json.Unmarshal(response, &gatewayOrder); err != nil {
		return nil, fmt.Errorf("failed to parse gateway order response: %w", err)
	}

	return &gatewayOrder, nil
}

// VerifyPaymentSignature checks the checkout callback signature:
// HMAC-SHA256 of "<order_id>|<payment_id>" with the key secret.
func (r *razorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against
// the raw webhook body.
func (r *razorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// FetchPayment retrieves a payment record from Razorpay
func (r *razorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	response, err := r.makeAPICall(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}

	var gatewayPayment GatewayPayment
	if err := json.Unmarshal(response, &gatewayPayment); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}

	return &gatewayPayment, nil
}

func (r *razorpayGateway) makeAPICall(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	if r.keyID == "" || r.keySecret == "" {
		return nil, fmt.Errorf("gateway API credentials not configured")
	}

	var reqBody []byte
	var err error
	if data != nil {
		reqBody, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request data: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API call: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API call failed with status %d: %s", resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}
