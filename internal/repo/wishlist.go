package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/shopcart/internal/models"
)

func (r *GormRepo) FindWishlist(ctx context.Context, userID, wishlistID uint) (*models.Wishlist, error) {
	var wl models.Wishlist
	if err := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", wishlistID, userID).
		First(&wl).Error; err != nil {
		return nil, err
	}
	return &wl, nil
}

// EnsureDefaultWishlist resolves the user's default wishlist, creating it on
// first use. Concurrent callers converge on the same row.
func (r *GormRepo) EnsureDefaultWishlist(ctx context.Context, userID uint) (*models.Wishlist, error) {
	wl := models.Wishlist{UserID: userID, Name: models.DefaultWishlistName}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&wl).Error
	if err != nil && !IsDuplicate(err) {
		return nil, err
	}

	var found models.Wishlist
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, models.DefaultWishlistName).
		First(&found).Error; err != nil {
		return nil, err
	}
	return &found, nil
}

// AddWishlistItems appends products to a wishlist; products already on it
// are left as they are.
func (r *GormRepo) AddWishlistItems(ctx context.Context, wishlistID uint, productIDs []uint) error {
	if len(productIDs) == 0 {
		return nil
	}
	items := make([]models.WishlistItem, 0, len(productIDs))
	for _, pid := range productIDs {
		items = append(items, models.WishlistItem{WishlistID: wishlistID, ProductID: pid})
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wishlist_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&items).Error
}

func (r *GormRepo) CreateWishlist(ctx context.Context, wl *models.Wishlist) error {
	if err := r.DB.WithContext(ctx).Create(wl).Error; err != nil {
		if IsDuplicate(err) {
			return gorm.ErrDuplicatedKey
		}
		return err
	}
	return nil
}

func (r *GormRepo) ListWishlists(ctx context.Context, userID uint) ([]models.Wishlist, error) {
	lists := make([]models.Wishlist, 0)
	if err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}
