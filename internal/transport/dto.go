package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shopcart/internal/models"
)

type AddItemRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	Quantity  int  `json:"quantity"  validate:"required,min=1,max=100"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100"`
}

type BulkUpdateEntry struct {
	CartItemID uint `json:"cartItemId" validate:"required"`
	Quantity   int  `json:"quantity"   validate:"required,min=1,max=100"`
}

type BulkUpdateRequest struct {
	Items []BulkUpdateEntry `json:"items" validate:"required,min=1,max=50,dive"`
}

type BulkUpdateResponse struct {
	UpdatedItems []models.CartItem `json:"updatedItems"`
	Count        int               `json:"count"`
}

type BulkRemoveRequest struct {
	CartItemIDs []uint `json:"cartItemIds" validate:"required,min=1,max=50,dive,required"`
}

// MoveToWishlistRequest targets the default wishlist when WishlistID is nil.
type MoveToWishlistRequest struct {
	CartItemIDs []uint `json:"cartItemIds" validate:"required,min=1,max=20,dive,required"`
	WishlistID  *uint  `json:"wishlistId"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type RegisterResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IsAdmin     bool      `json:"isAdmin"`
}

type CreateProductRequest struct {
	Name          string           `json:"name"          validate:"required,max=200"`
	Description   string           `json:"description"   validate:"max=2000"`
	Price         *decimal.Decimal `json:"price"         validate:"required"`
	StockQuantity int              `json:"stockQuantity" validate:"min=0"`
}

type PatchProductRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stockQuantity"`
}

type CreateWishlistRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}
