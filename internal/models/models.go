package models

import (
	"time"
)

const (
	RoleCustomer = 0
	RoleAdmin    = 1
)

type User struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string `gorm:"not null"                 json:"name"`
	Email          string `gorm:"unique;not null"          json:"email"`
	PasswordHash   string `gorm:"not null"                 json:"-"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	SecurityAnswer string `gorm:"not null"                 json:"-"`
	Role           int    `gorm:"not null;default:0"       json:"role"`
}

type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"not null"                 json:"name"`
	Slug string `gorm:"unique;not null"          json:"slug"`
}

type Product struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"not null"                 json:"name"`
	Slug             string    `gorm:"unique;not null"          json:"slug"`
	Description      string    `gorm:"not null"                 json:"description"`
	Price            float64   `gorm:"not null"                 json:"price"`
	CategoryID       uint      `gorm:"index;not null"           json:"category_id"`
	Category         *Category `json:"category,omitempty"`
	Quantity         uint      `json:"quantity"`
	Shipping         bool      `gorm:"default:false"            json:"shipping"`
	PhotoKey         string    `json:"-"`
	PhotoContentType string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Legacy status values, persisted as-is. Existing rows and clients depend
// on the exact spellings.
const (
	OrderStatusNotProcess = "Not Process"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancel     = "cancel"
)

func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusNotProcess, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancel:
		return true
	}
	return false
}

type Order struct {
	ID            uint    `gorm:"primaryKey;autoIncrement"       json:"id"`
	BuyerID       uint    `gorm:"index;uniqueIndex:uidx_orders_buyer_key;not null" json:"buyer_id"`
	Status        string  `gorm:"not null;default:'Not Process'" json:"status"`
	PaymentID     string  `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"`
	Total         float64 `gorm:"not null"                       json:"total"`
	// Scoped per buyer: the same key from two buyers is two orders, a
	// replay by the same buyer is one.
	IdempotencyKey *string     `gorm:"uniqueIndex:uidx_orders_buyer_key"  json:"-"`
	Items          []OrderItem `json:"items"`
	CreatedAt      time.Time   `json:"created_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint    `gorm:"index;not null"           json:"order_id"`
	ProductID uint    `gorm:"not null"                 json:"product_id"`
	Quantity  uint    `gorm:"not null"                 json:"quantity"`
	UnitPrice float64 `gorm:"not null"                 json:"unit_price"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	Role      int    `gorm:"not null;default:0"  json:"role"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

// CartItem is a snapshot of a product captured at add-to-cart time. It is
// not a relational entity: carts live in redis as an ordered JSON array,
// so a snapshot may lag behind the product row it was copied from.
type CartItem struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Price     float64 `json:"price"`
	Quantity  uint    `json:"quantity"`
}
