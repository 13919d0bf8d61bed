// internal/domain/order/service.go
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/cart"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when no order matches the lookup
var ErrOrderNotFound = errors.New("order not found")

// Service handles order business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CreateOrderInput carries everything needed to persist an order. Pricing
// is already final; the order service never recomputes amounts.
type CreateOrderInput struct {
	UserID            *uint
	Email             string
	Items             []cart.CartLineResponse
	Quote             *pricing.Quote
	CouponCode        string
	RewardPoints      int
	PaymentMethod     string
	TransactionID     string
	VerifiedPhone     string
	ShippingAddress   Address
	BillingAddress    *Address
	ShippingMethod    string
	EstimatedDelivery string
	Notes             string
	AccountOutcome    AccountOutcome
	Status            OrderStatus
	PaymentStatus     PaymentStatus
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page      int         `form:"page,default=1"`
	Limit     int         `form:"limit,default=20"`
	Status    OrderStatus `form:"status"`
	UserID    uint        `form:"user_id"`
	SortBy    string      `form:"sort_by,default=created_at"`
	SortOrder string      `form:"sort_order,default=desc"`
	DateFrom  string      `form:"date_from"`
	DateTo    string      `form:"date_to"`
}

// OrderResponse represents order response with pagination
type OrderResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// CreateOrder persists an order with its items and initial status history
// in a single transaction.
func (s *Service) CreateOrder(input *CreateOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("cannot create order with no items")
	}
	if input.Quote == nil {
		return nil, fmt.Errorf("cannot create order without a price quote")
	}

	status := input.Status
	if status == "" {
		status = OrderStatusPending
	}
	paymentStatus := input.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentStatusPending
	}

	billingAddress := input.ShippingAddress
	if input.BillingAddress != nil {
		billingAddress = *input.BillingAddress
	}

	accountOutcome := input.AccountOutcome
	if accountOutcome == "" {
		accountOutcome = NoAccountChange
	}

	breakdown := input.Quote.Breakdown

	newOrder := Order{
		UserID:            input.UserID,
		Email:             input.Email,
		Status:            status,
		PaymentStatus:     paymentStatus,
		SubtotalAmount:    breakdown.Subtotal,
		ShippingAmount:    breakdown.ShippingCost,
		TotalAmount:       input.Quote.FinalAmount,
		QuantityDiscount:  breakdown.QuantityDiscount,
		CouponDiscount:    breakdown.CouponDiscount,
		OnlineDiscount:    breakdown.OnlineDiscount,
		RewardDiscount:    breakdown.RewardDiscount,
		RewardPoints:      input.RewardPoints,
		CouponCode:        input.CouponCode,
		PaymentMethod:     input.PaymentMethod,
		TransactionID:     input.TransactionID,
		VerifiedPhone:     input.VerifiedPhone,
		ShippingAddress:   input.ShippingAddress,
		BillingAddress:    billingAddress,
		Currency:          "INR",
		Notes:             input.Notes,
		AccountOutcome:    accountOutcome,
		ShippingMethod:    input.ShippingMethod,
		EstimatedDelivery: input.EstimatedDelivery,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newOrder).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		newOrder.OrderNumber = newOrder.GenerateOrderNumber()
		if err := tx.Model(&newOrder).Update("order_number", newOrder.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to update order number: %w", err)
		}

		for _, line := range input.Items {
			orderItem := OrderItem{
				OrderID:     newOrder.ID,
				ProductID:   line.ProductID,
				Name:        line.Name,
				Quantity:    line.Quantity,
				Price:       line.UnitPrice,
				TotalPrice:  line.UnitPrice * int64(line.Quantity),
				Size:        line.Size,
				Color:       line.Color,
				IsCustom:    line.IsCustom,
				FrontDesign: line.FrontDesign,
				BackDesign:  line.BackDesign,
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		var createdBy uint
		if input.UserID != nil {
			createdBy = *input.UserID
		}
		statusHistory := OrderStatusHistory{
			OrderID:   newOrder.ID,
			Status:    status,
			Comment:   "Order created",
			CreatedBy: createdBy,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&statusHistory).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Load the complete order with relationships. The order is already
	// committed at this point, so a reload failure must not turn a
	// durable (possibly paid) order into an error; the in-memory copy
	// is returned instead.
	var complete Order
	if err := s.db.Preload("Items").Preload("StatusHistory").First(&complete, newOrder.ID).Error; err != nil {
		logrus.WithError(err).WithField("order_number", newOrder.OrderNumber).
			Warn("Order created but reload failed, returning partial snapshot")
		return &newOrder, nil
	}

	return &complete, nil
}

// FindByTransactionID looks up an order by its payment transaction ID.
// Used to detect duplicate finalization attempts.
func (s *Service) FindByTransactionID(transactionID string) (*Order, error) {
	if transactionID == "" {
		return nil, ErrOrderNotFound
	}

	var existing Order
	result := s.db.
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("transaction_id = ?", transactionID).
		First(&existing)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to look up order: %w", result.Error)
	}

	return &existing, nil
}

// RecordPayment persists a payment transaction against an order
func (s *Service) RecordPayment(payment *Payment) error {
	if err := s.db.Create(payment).Error; err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// MarkPaid marks an order paid and confirmed
func (s *Service) MarkPaid(orderID uint, providerPaymentID string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"payment_status": PaymentStatusPaid,
		"status":         OrderStatusConfirmed,
		"processed_at":   now,
	}
	if providerPaymentID != "" {
		updates["transaction_id"] = providerPaymentID
	}

	if err := s.db.Model(&Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	statusHistory := OrderStatusHistory{
		OrderID:   orderID,
		Status:    OrderStatusConfirmed,
		Comment:   "Payment received",
		CreatedAt: now,
	}
	if err := s.db.Create(&statusHistory).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	return nil
}

// GetOrders retrieves orders with filtering and pagination
func (s *Service) GetOrders(req *OrderListRequest) (*OrderResponse, error) {
	var orders []Order
	var total int64

	// Build query
	query := s.db.Model(&Order{}).
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		})

	// Apply filters
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}

	if req.DateFrom != "" {
		query = query.Where("created_at >= ?", req.DateFrom)
	}

	if req.DateTo != "" {
		query = query.Where("created_at <= ?", req.DateTo)
	}

	// Count total records
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	// Apply sorting
	orderClause := s.buildOrderClause(req.SortBy, req.SortOrder)
	query = query.Order(orderClause)

	// Apply pagination
	offset := (req.Page - 1) * req.Limit
	if err := query.Offset(offset).Limit(req.Limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	// Calculate pagination info
	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	pagination := Pagination{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}

	return &OrderResponse{
		Orders:     orders,
		Pagination: pagination,
	}, nil
}

// GetOrder retrieves a single order by ID
func (s *Service) GetOrder(id uint) (*Order, error) {
	var order Order
	result := s.db.
		Preload("Items").
		Preload("Payments").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&order)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}

	return &order, nil
}

// GetOrderByNumber retrieves a single order by order number
func (s *Service) GetOrderByNumber(orderNumber string) (*Order, error) {
	var order Order
	result := s.db.
		Preload("Items").
		Preload("Payments").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("order_number = ?", orderNumber).
		First(&order)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}

	return &order, nil
}

// UpdateOrderStatus updates order status
func (s *Service) UpdateOrderStatus(orderID uint, status OrderStatus, comment string, updatedBy uint) error {
	// Get current order
	var order Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return fmt.Errorf("order not found: %w", err)
	}

	// Validate status transition
	if !s.isValidStatusTransition(order.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", order.Status, status)
	}

	// Update order status
	updates := map[string]interface{}{
		"status": status,
	}

	// Set timestamps based on status
	now := time.Now().UTC()
	switch status {
	case OrderStatusProcessing:
		updates["processed_at"] = now
	case OrderStatusShipped:
		updates["shipped_at"] = now
	case OrderStatusDelivered:
		updates["delivered_at"] = now
	}

	if err := s.db.Model(&order).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	// Add status history
	statusHistory := OrderStatusHistory{
		OrderID:   orderID,
		Status:    status,
		Comment:   comment,
		CreatedBy: updatedBy,
		CreatedAt: now,
	}

	if err := s.db.Create(&statusHistory).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}

	return nil
}

// SetTrackingNumber stores the carrier tracking number on a shipped order
func (s *Service) SetTrackingNumber(orderID uint, trackingNumber string) error {
	result := s.db.Model(&Order{}).Where("id = ?", orderID).Update("tracking_number", trackingNumber)
	if result.Error != nil {
		return fmt.Errorf("failed to update tracking number: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CancelOrder cancels an order
func (s *Service) CancelOrder(orderID uint, reason string, cancelledBy uint) error {
	var order Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return fmt.Errorf("order not found: %w", err)
	}

	if !order.CanBeCancelled() {
		return fmt.Errorf("order cannot be cancelled in current status: %s", order.Status)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status": OrderStatusCancelled,
		}).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		statusHistory := OrderStatusHistory{
			OrderID:   orderID,
			Status:    OrderStatusCancelled,
			Comment:   fmt.Sprintf("Order cancelled: %s", reason),
			CreatedBy: cancelledBy,
			CreatedAt: time.Now().UTC(),
		}

		if err := tx.Create(&statusHistory).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}

		return nil
	})
}

// GetUserOrders retrieves orders for a specific user
func (s *Service) GetUserOrders(userID uint, page, limit int) (*OrderResponse, error) {
	req := &OrderListRequest{
		Page:   page,
		Limit:  limit,
		UserID: userID,
	}
	return s.GetOrders(req)
}

// Private helper methods

func (s *Service) isValidStatusTransition(from, to OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending: {
			OrderStatusPaymentProcessing,
			OrderStatusConfirmed,
			OrderStatusCancelled,
		},
		OrderStatusPaymentProcessing: {
			OrderStatusConfirmed,
			OrderStatusCancelled,
		},
		OrderStatusConfirmed: {
			OrderStatusProcessing,
			OrderStatusCancelled,
		},
		OrderStatusProcessing: {
			OrderStatusShipped,
			OrderStatusCancelled,
		},
		OrderStatusShipped: {
			OrderStatusOutForDelivery,
			OrderStatusDelivered,
		},
		OrderStatusOutForDelivery: {
			OrderStatusDelivered,
		},
		OrderStatusDelivered: {
			OrderStatusCompleted,
			OrderStatusRefunded,
		},
	}

	allowedStatuses, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, status := range allowedStatuses {
		if status == to {
			return true
		}
	}
	return false
}

func (s *Service) buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"total_amount": true,
		"status":       true,
		"order_number": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s", sortBy, sortOrder)
}
