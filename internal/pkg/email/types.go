// internal/pkg/email/types.go
package email

import (
	"time"
)

// EmailType represents the type of email being sent
type EmailType string

const (
	EmailTypeOrderConfirmation EmailType = "order_confirmation"
	EmailTypeOrderStatusUpdate EmailType = "order_status_update"
	EmailTypePaymentSuccess    EmailType = "payment_success"
	EmailTypePaymentFailed     EmailType = "payment_failed"
)

// Email represents an email message
type Email struct {
	To          []string               `json:"to"`
	CC          []string               `json:"cc,omitempty"`
	BCC         []string               `json:"bcc,omitempty"`
	Subject     string                 `json:"subject"`
	HTMLContent string                 `json:"html_content"`
	TextContent string                 `json:"text_content,omitempty"`
	Type        EmailType              `json:"type"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// EmailTemplateData contains common data for all email templates
type EmailTemplateData struct {
	SiteName   string `json:"site_name"`
	SiteURL    string `json:"site_url"`
	SupportURL string `json:"support_url"`
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	Year       int    `json:"year"`
}

// OrderConfirmationData contains data for order confirmation email.
// Amounts are whole rupees.
type OrderConfirmationData struct {
	EmailTemplateData
	OrderNumber       string      `json:"order_number"`
	OrderDate         string      `json:"order_date"`
	Subtotal          int64       `json:"subtotal"`
	ShippingAmount    int64       `json:"shipping_amount"`
	QuantityDiscount  int64       `json:"quantity_discount"`
	CouponDiscount    int64       `json:"coupon_discount"`
	OnlineDiscount    int64       `json:"online_discount"`
	RewardDiscount    int64       `json:"reward_discount"`
	OrderTotal        int64       `json:"order_total"`
	OrderURL          string      `json:"order_url"`
	Items             []OrderItem `json:"items"`
	ShippingMethod    string      `json:"shipping_method"`
	PaymentMethod     string      `json:"payment_method"`
	EstimatedDelivery string      `json:"estimated_delivery,omitempty"`
	ShippingAddress   Address     `json:"shipping_address"`
}

// OrderItem represents an item in the order
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Total    int64  `json:"total"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	IsCustom bool   `json:"is_custom"`
}

// Address represents shipping/billing address
type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
}

// PaymentNotificationData contains data for payment notifications
type PaymentNotificationData struct {
	EmailTemplateData
	OrderNumber   string `json:"order_number"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
	OrderURL      string `json:"order_url"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"` // For failed payments
}

// OrderStatusUpdateData contains data for order status updates
type OrderStatusUpdateData struct {
	EmailTemplateData
	OrderNumber       string `json:"order_number"`
	Status            string `json:"status"`
	StatusMessage     string `json:"status_message"`
	TrackingNumber    string `json:"tracking_number,omitempty"`
	TrackingURL       string `json:"tracking_url,omitempty"`
	OrderURL          string `json:"order_url"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
}

// GetBaseTemplateData returns common template data
func GetBaseTemplateData(siteName, siteURL, userName, userEmail string) EmailTemplateData {
	return EmailTemplateData{
		SiteName:   siteName,
		SiteURL:    siteURL,
		SupportURL: siteURL + "/support",
		UserName:   userName,
		UserEmail:  userEmail,
		Year:       time.Now().Year(),
	}
}
