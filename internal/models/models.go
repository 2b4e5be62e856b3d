package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxItemQuantity     = 100
	DefaultWishlistName = "Default"

	// MaxID is the largest primary key the bigint columns can hold.
	MaxID = math.MaxInt64
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"      json:"username"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	Role         string    `gorm:"not null;default:user"     json:"role"`
	CreatedAt    time.Time `                                 json:"createdAt"`
}

type Product struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"                    json:"id"`
	Name          string          `gorm:"not null"                                    json:"name"`
	Slug          string          `gorm:"index;not null"                              json:"slug"`
	Description   string          `gorm:"not null;default:''"                         json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null"                 json:"price"`
	StockQuantity int             `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stockQuantity"`
	Archived      bool            `gorm:"not null;default:false;index"                json:"archived"`
	CreatedAt     time.Time       `                                                   json:"createdAt"`
	UpdatedAt     time.Time       `                                                   json:"updatedAt"`
}

// Purchasable reports whether the product can be put into a cart.
func (p *Product) Purchasable() bool {
	return !p.Archived
}

type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"     json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null"         json:"userId"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE"  json:"-"`
	CreatedAt time.Time  `                                    json:"createdAt"`
	UpdatedAt time.Time  `                                    json:"updatedAt"`
}

type CartItem struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"                            json:"id"`
	CartID         uint            `gorm:"uniqueIndex:idx_cart_product;not null"               json:"cartId"`
	ProductID      uint            `gorm:"uniqueIndex:idx_cart_product;index;not null"         json:"productId"`
	Quantity       int             `gorm:"not null;check:quantity BETWEEN 1 AND 100"           json:"quantity"`
	UnitPriceAtAdd decimal.Decimal `gorm:"type:numeric(12,2);not null"                         json:"unitPriceAtAdd"`
	CreatedAt      time.Time       `                                                           json:"createdAt"`
	UpdatedAt      time.Time       `                                                           json:"updatedAt"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// LineTotal is quantity times the snapshot price.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPriceAtAdd.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// CartLine is a cart item joined to the current product row.
type CartLine struct {
	CartItem
	ProductName  string
	CurrentPrice decimal.Decimal
}

type CartSummary struct {
	ItemCount int             `json:"itemCount"`
	LineCount int             `json:"lineCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Summarize aggregates quantities and snapshot prices.
func Summarize(items []CartItem) CartSummary {
	s := CartSummary{Subtotal: decimal.Zero}
	for _, it := range items {
		s.ItemCount += it.Quantity
		s.LineCount++
		s.Subtotal = s.Subtotal.Add(it.LineTotal())
	}
	return s
}

type Wishlist struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"                  json:"id"`
	UserID    uint           `gorm:"uniqueIndex:idx_wishlist_user_name;not null" json:"userId"`
	Name      string         `gorm:"uniqueIndex:idx_wishlist_user_name;not null" json:"name"`
	Items     []WishlistItem `gorm:"constraint:OnDelete:CASCADE"               json:"items"`
	CreatedAt time.Time      `                                                 json:"createdAt"`
}

type WishlistItem struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"                     json:"id"`
	WishlistID uint      `gorm:"uniqueIndex:idx_wishlist_product;not null"    json:"wishlistId"`
	ProductID  uint      `gorm:"uniqueIndex:idx_wishlist_product;not null"    json:"productId"`
	CreatedAt  time.Time `                                                    json:"createdAt"`
}
