package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/shopcart/internal/models"
)

func (r *GormRepo) FindCartByUser(ctx context.Context, userID uint) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCartIfAbsent inserts the user's cart unless one already exists.
// created is false when a concurrent writer got there first.
func (r *GormRepo) CreateCartIfAbsent(ctx context.Context, userID uint) (bool, error) {
	cart := models.Cart{UserID: userID}
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart)
	if res.Error != nil {
		if IsDuplicate(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) ListItems(ctx context.Context, cartID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListCartLines(ctx context.Context, cartID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.DB.WithContext(ctx).
		Table("cart_items").
		Select(`cart_items.id, cart_items.cart_id, cart_items.product_id, cart_items.quantity,
			cart_items.unit_price_at_add, cart_items.created_at, cart_items.updated_at,
			products.name AS product_name, products.price AS current_price`).
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.cart_id = ?", cartID).
		Order("cart_items.id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// FindItemByProduct returns the cart line for productID and locks it.
func (r *GormRepo) FindItemByProduct(ctx context.Context, cartID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItems returns the lines of cartID among ids. Ids from other carts are
// silently absent from the result.
func (r *GormRepo) FindItems(ctx context.Context, cartID uint, ids []uint) ([]models.CartItem, error) {
	items := make([]models.CartItem, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.DB.WithContext(ctx).
		Where("cart_id = ? AND id IN ?", cartID, ids).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpsertItem writes item keyed by (cart_id, product_id) in one statement.
// An existing line takes item's quantity and price snapshot.
func (r *GormRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "unit_price_at_add", "updated_at"}),
		}).
		Create(item).Error
}

func (r *GormRepo) UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) error {
	res := r.DB.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) DeleteItems(ctx context.Context, cartID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Where("cart_id = ? AND id IN ?", cartID, ids).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteAllItems(ctx context.Context, cartID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// IsNotFound reports gorm's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
