package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shopcart/internal/models"
)

const DefaultTxTimeout = 5 * time.Second

type GormRepo struct {
	DB        *gorm.DB
	TxTimeout time.Duration
}

func New(db *gorm.DB, txTimeout time.Duration) *GormRepo {
	return &GormRepo{DB: db, TxTimeout: txTimeout}
}

// Store is the persistence surface of the cart service. Every method runs
// against the transaction when reached through InTx.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	CartStore
	ProductStore
	WishlistStore
}

type CartStore interface {
	FindCartByUser(ctx context.Context, userID uint) (*models.Cart, error)
	CreateCartIfAbsent(ctx context.Context, userID uint) (bool, error)
	ListItems(ctx context.Context, cartID uint) ([]models.CartItem, error)
	ListCartLines(ctx context.Context, cartID uint) ([]models.CartLine, error)
	FindItemByProduct(ctx context.Context, cartID, productID uint) (*models.CartItem, error)
	FindItems(ctx context.Context, cartID uint, ids []uint) ([]models.CartItem, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) error
	DeleteItems(ctx context.Context, cartID uint, ids []uint) (int64, error)
	DeleteAllItems(ctx context.Context, cartID uint) (int64, error)
}

type ProductStore interface {
	LockProduct(ctx context.Context, id uint) (*models.Product, error)
	LockProducts(ctx context.Context, ids []uint) ([]models.Product, error)
}

type WishlistStore interface {
	FindWishlist(ctx context.Context, userID, wishlistID uint) (*models.Wishlist, error)
	EnsureDefaultWishlist(ctx context.Context, userID uint) (*models.Wishlist, error)
	AddWishlistItems(ctx context.Context, wishlistID uint, productIDs []uint) error
}

var _ Store = (*GormRepo)(nil)

// InTx runs fn in one transaction bounded by TxTimeout. fn must use the ctx
// and tx it is given. Any error, panic or cancellation rolls back.
func (r *GormRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	timeout := r.TxTimeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}

	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := r.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			ms := fmt.Sprintf("%dms", timeout.Milliseconds())
			if err := tx.Exec("SELECT set_config('lock_timeout', ?, true)", ms).Error; err != nil {
				return err
			}
		}
		return fn(txCtx, &GormRepo{DB: tx, TxTimeout: r.TxTimeout})
	})

	// Drivers report an expired deadline in their own words; keep the
	// context cause reachable through errors.Is.
	if err != nil && txCtx.Err() != nil && !errors.Is(err, txCtx.Err()) {
		err = fmt.Errorf("%w: %w", txCtx.Err(), err)
	}
	return err
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Wishlist{},
		&models.WishlistItem{},
	)
}

// SQLSTATEs that clear up on retry: serialization failure, deadlock,
// lock_timeout, statement/query cancel.
var retryableCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
	"57014": {},
}

// IsRetryable reports store failures that a caller may retry unchanged.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryableCodes[pgErr.Code]
		return ok
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsDuplicate reports a unique constraint violation from either driver.
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
