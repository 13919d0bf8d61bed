// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"gorm.io/gorm"
)

// Service handles cart business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
	}
}

// CartLineResponse represents a cart line in API responses
type CartLineResponse struct {
	ID          uint              `json:"id,omitempty"`
	ProductID   string            `json:"product_id"`
	Name        string            `json:"name"`
	UnitPrice   int64             `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	Size        string            `json:"size"`
	Color       string            `json:"color"`
	IsCustom    bool              `json:"is_custom"`
	FrontDesign *DesignAttachment `json:"front_design,omitempty"`
	BackDesign  *DesignAttachment `json:"back_design,omitempty"`
	AddedAt     time.Time         `json:"added_at"`
}

// CartResponse represents a shopping cart with items and summary
type CartResponse struct {
	SessionID string             `json:"session_id,omitempty"`
	UserID    *uint              `json:"user_id,omitempty"`
	Items     []CartLineResponse `json:"items"`
	Totals    CartTotals         `json:"totals"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID   string            `json:"product_id"`
	Name        string            `json:"name" binding:"required"`
	UnitPrice   int64             `json:"unit_price" binding:"required,min=1"`
	Quantity    int               `json:"quantity" binding:"required,min=1"`
	Size        string            `json:"size"`
	Color       string            `json:"color"`
	IsCustom    bool              `json:"is_custom"`
	FrontDesign *DesignAttachment `json:"front_design,omitempty"`
	BackDesign  *DesignAttachment `json:"back_design,omitempty"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// GetCart retrieves cart for user or session
func (s *Service) GetCart(ctx context.Context, userID *uint, sessionID string) (*CartResponse, error) {
	var lines []CartLineResponse
	var createdAt, updatedAt time.Time

	if userID != nil {
		var dbItems []CartItem
		err := s.db.Where("user_id = ?", *userID).Order("created_at").Find(&dbItems).Error
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve user cart: %w", err)
		}

		lines = make([]CartLineResponse, len(dbItems))
		for i, item := range dbItems {
			lines[i] = CartLineResponse{
				ID:          item.ID,
				ProductID:   item.ProductID,
				Name:        item.Name,
				UnitPrice:   item.UnitPrice,
				Quantity:    item.Quantity,
				Size:        item.Size,
				Color:       item.Color,
				IsCustom:    item.IsCustom,
				FrontDesign: item.FrontDesign,
				BackDesign:  item.BackDesign,
				AddedAt:     item.CreatedAt,
			}
		}

		if len(dbItems) > 0 {
			createdAt = dbItems[0].CreatedAt
			updatedAt = dbItems[len(dbItems)-1].UpdatedAt
		} else {
			createdAt = time.Now().UTC()
			updatedAt = createdAt
		}
	} else {
		sessionCart, err := s.getGuestCart(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		lines = make([]CartLineResponse, len(sessionCart.Items))
		for i, item := range sessionCart.Items {
			lines[i] = CartLineResponse{
				ProductID:   item.ProductID,
				Name:        item.Name,
				UnitPrice:   item.UnitPrice,
				Quantity:    item.Quantity,
				Size:        item.Size,
				Color:       item.Color,
				IsCustom:    item.IsCustom,
				FrontDesign: item.FrontDesign,
				BackDesign:  item.BackDesign,
				AddedAt:     item.AddedAt,
			}
		}

		createdAt = sessionCart.CreatedAt
		updatedAt = sessionCart.UpdatedAt
	}

	return &CartResponse{
		SessionID: sessionID,
		UserID:    userID,
		Items:     lines,
		Totals:    calculateTotals(lines),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// AddToCart adds a line to the cart
func (s *Service) AddToCart(ctx context.Context, userID *uint, sessionID string, req *AddToCartRequest) (*CartResponse, error) {
	if userID != nil {
		if err := s.addToUserCart(*userID, req); err != nil {
			return nil, err
		}
	} else {
		if err := s.addToGuestCart(ctx, sessionID, req); err != nil {
			return nil, err
		}
	}

	return s.GetCart(ctx, userID, sessionID)
}

// UpdateCartItem updates the quantity of a cart line. Quantity 0 removes it.
func (s *Service) UpdateCartItem(ctx context.Context, userID *uint, sessionID, productID, size, color string, quantity int) (*CartResponse, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity cannot be negative")
	}

	if userID != nil {
		if err := s.updateUserCartItem(*userID, productID, size, color, quantity); err != nil {
			return nil, err
		}
	} else {
		if err := s.updateGuestCartItem(ctx, sessionID, productID, size, color, quantity); err != nil {
			return nil, err
		}
	}

	return s.GetCart(ctx, userID, sessionID)
}

// RemoveFromCart removes a line from the cart
func (s *Service) RemoveFromCart(ctx context.Context, userID *uint, sessionID, productID, size, color string) (*CartResponse, error) {
	return s.UpdateCartItem(ctx, userID, sessionID, productID, size, color, 0)
}

// ClearCart removes all lines from the cart
func (s *Service) ClearCart(ctx context.Context, userID *uint, sessionID string) error {
	if userID != nil {
		return s.db.Where("user_id = ?", *userID).Delete(&CartItem{}).Error
	}
	cartKey := fmt.Sprintf("cart:session:%s", sessionID)
	return s.redisClient.Del(ctx, cartKey).Err()
}

// GetCartItemCount returns the total quantity across all lines
func (s *Service) GetCartItemCount(ctx context.Context, userID *uint, sessionID string) (int, error) {
	cartResponse, err := s.GetCart(ctx, userID, sessionID)
	if err != nil {
		return 0, nil // Missing cart counts as empty
	}
	return cartResponse.Totals.TotalQuantity, nil
}

// MergeGuestCartToUser merges a guest cart into the user cart on login
func (s *Service) MergeGuestCartToUser(ctx context.Context, userID uint, sessionID string) error {
	guestCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil || len(guestCart.Items) == 0 {
		return nil // Nothing to merge
	}

	for _, guestItem := range guestCart.Items {
		req := &AddToCartRequest{
			ProductID:   guestItem.ProductID,
			Name:        guestItem.Name,
			UnitPrice:   guestItem.UnitPrice,
			Quantity:    guestItem.Quantity,
			Size:        guestItem.Size,
			Color:       guestItem.Color,
			IsCustom:    guestItem.IsCustom,
			FrontDesign: guestItem.FrontDesign,
			BackDesign:  guestItem.BackDesign,
		}
		if err := s.addToUserCart(userID, req); err != nil {
			return err
		}
	}

	return s.ClearCart(ctx, nil, sessionID)
}

// PricingLines converts cart lines into the view the pricing engine takes
func PricingLines(items []CartLineResponse) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	return lines
}

// Private helper methods

func (s *Service) addToUserCart(userID uint, req *AddToCartRequest) error {
	// Custom-design lines are never merged; each is its own line
	if !req.IsCustom {
		var existingItem CartItem
		result := s.db.Where("user_id = ? AND product_id = ? AND size = ? AND color = ?",
			userID, req.ProductID, req.Size, req.Color).First(&existingItem)

		if result.Error == nil {
			existingItem.Quantity += req.Quantity
			existingItem.UnitPrice = req.UnitPrice // Update price in case it changed
			return s.db.Save(&existingItem).Error
		}
		if result.Error != gorm.ErrRecordNotFound {
			return result.Error
		}
	}

	newItem := CartItem{
		UserID:      &userID,
		ProductID:   req.ProductID,
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		Size:        req.Size,
		Color:       req.Color,
		IsCustom:    req.IsCustom,
		FrontDesign: req.FrontDesign,
		BackDesign:  req.BackDesign,
	}
	return s.db.Create(&newItem).Error
}

func (s *Service) addToGuestCart(ctx context.Context, sessionID string, req *AddToCartRequest) error {
	sessionCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil {
		return err
	}

	merged := false
	if !req.IsCustom {
		for i := range sessionCart.Items {
			item := &sessionCart.Items[i]
			if item.ProductID == req.ProductID && item.Size == req.Size && item.Color == req.Color && !item.IsCustom {
				item.Quantity += req.Quantity
				item.UnitPrice = req.UnitPrice
				merged = true
				break
			}
		}
	}

	if !merged {
		sessionCart.Items = append(sessionCart.Items, SessionCartItem{
			ProductID:   req.ProductID,
			Name:        req.Name,
			UnitPrice:   req.UnitPrice,
			Quantity:    req.Quantity,
			Size:        req.Size,
			Color:       req.Color,
			IsCustom:    req.IsCustom,
			FrontDesign: req.FrontDesign,
			BackDesign:  req.BackDesign,
			AddedAt:     time.Now().UTC(),
		})
	}

	sessionCart.UpdatedAt = time.Now().UTC()
	return s.saveGuestCart(ctx, sessionID, sessionCart)
}

func (s *Service) updateUserCartItem(userID uint, productID, size, color string, quantity int) error {
	query := s.db.Where("user_id = ? AND product_id = ? AND size = ? AND color = ?",
		userID, productID, size, color)
	if quantity == 0 {
		return query.Delete(&CartItem{}).Error
	}
	return s.db.Model(&CartItem{}).
		Where("user_id = ? AND product_id = ? AND size = ? AND color = ?", userID, productID, size, color).
		Update("quantity", quantity).Error
}

func (s *Service) updateGuestCartItem(ctx context.Context, sessionID, productID, size, color string, quantity int) error {
	sessionCart, err := s.getGuestCart(ctx, sessionID)
	if err != nil {
		return err
	}

	itemFound := false
	for i := range sessionCart.Items {
		item := sessionCart.Items[i]
		if item.ProductID == productID && item.Size == size && item.Color == color {
			if quantity == 0 {
				sessionCart.Items = append(sessionCart.Items[:i], sessionCart.Items[i+1:]...)
			} else {
				sessionCart.Items[i].Quantity = quantity
			}
			itemFound = true
			break
		}
	}

	if !itemFound {
		return fmt.Errorf("item not found in cart")
	}

	sessionCart.UpdatedAt = time.Now().UTC()
	return s.saveGuestCart(ctx, sessionID, sessionCart)
}

func (s *Service) getGuestCart(ctx context.Context, sessionID string) (*SessionCart, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID required for guest cart")
	}

	cartKey := fmt.Sprintf("cart:session:%s", sessionID)

	cartData, err := s.redisClient.Get(ctx, cartKey).Result()
	if err == redis.Nil {
		now := time.Now().UTC()
		return &SessionCart{
			SessionID: sessionID,
			Items:     []SessionCartItem{},
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		}, nil
	} else if err != nil {
		return nil, err
	}

	var sessionCart SessionCart
	if err := json.Unmarshal([]byte(cartData), &sessionCart); err != nil {
		return nil, err
	}

	return &sessionCart, nil
}

func (s *Service) saveGuestCart(ctx context.Context, sessionID string, cart *SessionCart) error {
	cartKey := fmt.Sprintf("cart:session:%s", sessionID)

	cartData, err := json.Marshal(cart)
	if err != nil {
		return err
	}

	// Guest carts expire after 24 hours
	return s.redisClient.Set(ctx, cartKey, cartData, 24*time.Hour).Err()
}

func calculateTotals(lines []CartLineResponse) CartTotals {
	var totals CartTotals
	totals.ItemCount = len(lines)
	for _, line := range lines {
		totals.TotalQuantity += line.Quantity
		totals.SubTotal += line.UnitPrice * int64(line.Quantity)
	}
	return totals
}
