// internal/domain/cart/entity.go
package cart

import (
	"time"

	"gorm.io/gorm"
)

// DesignAttachment describes a rendered custom-design placement on a
// garment side. Carried verbatim onto the order line at checkout.
type DesignAttachment struct {
	DesignID  string `gorm:"size:100" json:"design_id"`
	ImageURL  string `gorm:"size:500" json:"image_url"`
	Placement string `gorm:"size:50" json:"placement"` // front, back
}

// CartItem represents a cart line stored in the database for
// authenticated users. Lines carry their own product snapshot so the
// checkout core never reaches into catalog tables. Prices are whole rupees.
type CartItem struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      *uint             `gorm:"index" json:"user_id"`
	ProductID   string            `gorm:"size:100;index" json:"product_id"` // empty for inline custom designs
	Name        string            `gorm:"not null;size:255" json:"name"`
	UnitPrice   int64             `gorm:"not null" json:"unit_price"`
	Quantity    int               `gorm:"not null;default:1" json:"quantity"`
	Size        string            `gorm:"size:20" json:"size"`
	Color       string            `gorm:"size:50" json:"color"`
	IsCustom    bool              `gorm:"default:false" json:"is_custom"`
	FrontDesign *DesignAttachment `gorm:"embedded;embeddedPrefix:front_" json:"front_design,omitempty"`
	BackDesign  *DesignAttachment `gorm:"embedded;embeddedPrefix:back_" json:"back_design,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// SessionCart represents a guest cart (stored in Redis)
type SessionCart struct {
	SessionID string            `json:"session_id"`
	Items     []SessionCartItem `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// SessionCartItem represents a guest cart line
type SessionCartItem struct {
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

// CartTotals represents calculated cart totals
type CartTotals struct {
	ItemCount     int   `json:"item_count"`     // Number of unique lines
	TotalQuantity int   `json:"total_quantity"` // Sum of all quantities
	SubTotal      int64 `json:"sub_total"`      // Before shipping and discounts
}
