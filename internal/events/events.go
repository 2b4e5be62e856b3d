package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicCart    = "cart_events"
	TopicProduct = "product_events"
	TopicUser    = "user_events"
)

const (
	ItemAdded            = "item_added"
	ItemUpdated          = "item_updated"
	ItemRemoved          = "item_removed"
	CartCleared          = "cart_cleared"
	ItemsBulkUpdated     = "items_bulk_updated"
	ItemsBulkRemoved     = "items_bulk_removed"
	ItemsMovedToWishlist = "items_moved_to_wishlist"

	ProductCreated  = "product_created"
	ProductUpdated  = "product_updated"
	ProductArchived = "product_archived"

	UserRegistered = "user_registered"
)

// Publisher delivers one event to a topic. key selects the partition.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

type CartEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     uint      `json:"userId"`
	CartID     uint      `json:"cartId"`
	ProductID  uint      `json:"productId,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	ItemIDs    []uint    `json:"itemIds,omitempty"`
	WishlistID uint      `json:"wishlistId,omitempty"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewCartEvent(typ string, userID, cartID uint) CartEvent {
	return CartEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		CartID:     cartID,
		OccurredAt: time.Now().UTC(),
	}
}

type ProductEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	ProductID     uint            `json:"productId"`
	Name          string          `json:"name,omitempty"`
	Slug          string          `json:"slug,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

type UserEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     uint      `json:"userId"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurredAt"`
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                      { return nil }
