package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/pkg/db"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	require.NoError(t, AutoMigrate(gdb))
	return New(gdb, time.Second)
}

func seedProduct(t *testing.T, r *GormRepo, name, price string, stock int) *models.Product {
	t.Helper()

	p := &models.Product{
		Name:          name,
		Slug:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func seedCart(t *testing.T, r *GormRepo, userID uint) *models.Cart {
	t.Helper()

	ctx := context.Background()
	_, err := r.CreateCartIfAbsent(ctx, userID)
	require.NoError(t, err)
	cart, err := r.FindCartByUser(ctx, userID)
	require.NoError(t, err)
	return cart
}

func TestCreateCartIfAbsent_SingleRow(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.CreateCartIfAbsent(ctx, 7)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.CreateCartIfAbsent(ctx, 7)
	require.NoError(t, err)
	assert.False(t, created)

	var n int64
	require.NoError(t, r.DB.Model(&models.Cart{}).Where("user_id = ?", 7).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestUpsertItem_OneRowPerProduct(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "mug", "9.50", 10)
	cart := seedCart(t, r, 1)

	require.NoError(t, r.UpsertItem(ctx, &models.CartItem{
		CartID: cart.ID, ProductID: p.ID, Quantity: 2, UnitPriceAtAdd: decimal.RequireFromString("9.50"),
	}))
	require.NoError(t, r.UpsertItem(ctx, &models.CartItem{
		CartID: cart.ID, ProductID: p.ID, Quantity: 5, UnitPriceAtAdd: decimal.RequireFromString("8.00"),
	}))

	items, err := r.ListItems(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("8.00").Equal(items[0].UnitPriceAtAdd))
}

func TestListCartLines_JoinsCurrentProduct(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "lamp", "20.00", 5)
	cart := seedCart(t, r, 1)

	require.NoError(t, r.UpsertItem(ctx, &models.CartItem{
		CartID: cart.ID, ProductID: p.ID, Quantity: 1, UnitPriceAtAdd: p.Price,
	}))
	require.NoError(t, r.DB.Model(p).Update("price", decimal.RequireFromString("25.00")).Error)

	lines, err := r.ListCartLines(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "lamp", lines[0].ProductName)
	assert.True(t, decimal.RequireFromString("25.00").Equal(lines[0].CurrentPrice))
	assert.True(t, decimal.RequireFromString("20.00").Equal(lines[0].UnitPriceAtAdd))
}

func TestFindItemsAndDeleteItems_ScopedToCart(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "pen", "1.00", 50)
	mine := seedCart(t, r, 1)
	theirs := seedCart(t, r, 2)

	own := &models.CartItem{CartID: mine.ID, ProductID: p.ID, Quantity: 1, UnitPriceAtAdd: p.Price}
	other := &models.CartItem{CartID: theirs.ID, ProductID: p.ID, Quantity: 1, UnitPriceAtAdd: p.Price}
	require.NoError(t, r.UpsertItem(ctx, own))
	require.NoError(t, r.UpsertItem(ctx, other))

	found, err := r.FindItems(ctx, mine.ID, []uint{own.ID, other.ID, 999})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, own.ID, found[0].ID)

	empty, err := r.FindItems(ctx, mine.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	n, err := r.DeleteItems(ctx, mine.ID, []uint{own.ID, other.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := r.ListItems(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestUpdateItemQuantity_Missing(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	err := r.UpdateItemQuantity(context.Background(), 404, 3)
	assert.True(t, IsNotFound(err))
}

func TestLockProducts_AscendingOrder(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	a := seedProduct(t, r, "a", "1.00", 1)
	b := seedProduct(t, r, "b", "1.00", 1)
	c := seedProduct(t, r, "c", "1.00", 1)

	got, err := r.LockProducts(context.Background(), []uint{c.ID, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, []uint{got[0].ID, got[1].ID, got[2].ID})
}

func TestInTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	boom := errors.New("boom")

	err := r.InTx(context.Background(), func(ctx context.Context, tx Store) error {
		if _, err := tx.CreateCartIfAbsent(ctx, 3); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = r.FindCartByUser(context.Background(), 3)
	assert.True(t, IsNotFound(err))
}

func TestInTx_CanceledContext(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.InTx(ctx, func(ctx context.Context, tx Store) error {
		_, err := tx.CreateCartIfAbsent(ctx, 4)
		return err
	})
	require.Error(t, err)

	_, err = r.FindCartByUser(context.Background(), 4)
	assert.True(t, IsNotFound(err))
}

func TestEnsureDefaultWishlist_Idempotent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	first, err := r.EnsureDefaultWishlist(ctx, 9)
	require.NoError(t, err)
	second, err := r.EnsureDefaultWishlist(ctx, 9)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.DefaultWishlistName, second.Name)

	_, err = r.FindWishlist(ctx, 10, first.ID)
	assert.True(t, IsNotFound(err))
}

func TestAddWishlistItems_IgnoresDuplicates(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	wl, err := r.EnsureDefaultWishlist(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, r.AddWishlistItems(ctx, wl.ID, []uint{1, 2}))
	require.NoError(t, r.AddWishlistItems(ctx, wl.ID, []uint{2, 3}))
	require.NoError(t, r.AddWishlistItems(ctx, wl.ID, nil))

	lists, err := r.ListWishlists(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Len(t, lists[0].Items, 3)
}

func TestCreateWishlist_DuplicateName(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.CreateWishlist(ctx, &models.Wishlist{UserID: 1, Name: "gifts"}))
	err := r.CreateWishlist(ctx, &models.Wishlist{UserID: 1, Name: "gifts"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, r.CreateWishlist(ctx, &models.Wishlist{UserID: 2, Name: "gifts"}))
}

func TestCreateUser_Duplicate(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.CreateUser(ctx, &models.User{Username: "ann", PasswordHash: "x", Role: "user"}))
	err := r.CreateUser(ctx, &models.User{Username: "ann", PasswordHash: "y", Role: "user"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	u, err := r.FindUserByUsername(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, "x", u.PasswordHash)
}

func TestProducts_ArchiveAndSearch(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	red := seedProduct(t, r, "Red Mug", "5.00", 1)
	seedProduct(t, r, "Blue mug", "5.00", 1)
	seedProduct(t, r, "Teapot", "5.00", 1)

	total, items, err := r.SearchProducts(ctx, "MUG", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	require.NoError(t, r.ArchiveProduct(ctx, red.ID))
	assert.True(t, IsNotFound(r.ArchiveProduct(ctx, red.ID)))

	_, err = r.GetProduct(ctx, red.ID, false)
	assert.True(t, IsNotFound(err))
	got, err := r.GetProduct(ctx, red.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	total, items, err = r.GetProducts(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"statement cancel", &pgconn.PgError{Code: "57014"}, true},
		{"unique", &pgconn.PgError{Code: "23505"}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"other", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicate(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicate(errors.New("UNIQUE constraint failed: users.username")))
	assert.False(t, IsDuplicate(errors.New("no such table")))
}

func TestUpdateProduct(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "kettle", "30.00", 2)

	require.NoError(t, r.UpdateProduct(ctx, p.ID, map[string]any{"stock_quantity": 9}))
	got, err := r.GetProduct(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 9, got.StockQuantity)
	assert.Equal(t, "kettle", got.Name)

	assert.True(t, IsNotFound(r.UpdateProduct(ctx, 999, map[string]any{"name": "x"})))
}
