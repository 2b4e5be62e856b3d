package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/shopcart/internal/cache"
	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/metrics"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/pkg/logging"
)

const (
	MaxBulkUpdate     = 50
	MaxBulkRemove     = 50
	MaxMoveToWishlist = 20

	defaultPublishTimeout = 5 * time.Second
)

// CartService owns the cart rules. Every mutation runs in one transaction;
// cache invalidation and events happen after commit.
type CartService struct {
	repo    repo.Store
	cache   cache.SummaryCache
	events  events.Publisher
	metrics *metrics.Metrics

	publishTimeout time.Duration
	loadTimeout    time.Duration
	group          singleflight.Group
}

type Option func(*CartService)

func WithSummaryCache(c cache.SummaryCache) Option {
	return func(s *CartService) { s.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *CartService) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CartService) { s.metrics = m }
}

func NewCartService(store repo.Store, opts ...Option) *CartService {
	s := &CartService{
		repo:           store,
		events:         events.NopPublisher{},
		publishTimeout: defaultPublishTimeout,
		loadTimeout:    repo.DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CartLineView struct {
	ID             uint            `json:"id"`
	ProductID      uint            `json:"productId"`
	ProductName    string          `json:"productName"`
	Quantity       int             `json:"quantity"`
	UnitPriceAtAdd decimal.Decimal `json:"unitPriceAtAdd"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type CartView struct {
	ID        uint               `json:"id"`
	UserID    uint               `json:"userId"`
	Items     []CartLineView     `json:"items"`
	Summary   models.CartSummary `json:"summary"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ensureCart returns the user's cart, creating it on first access. A
// concurrent creator wins the insert and both callers read the same row.
func ensureCart(ctx context.Context, s repo.CartStore, userID uint) (*models.Cart, error) {
	cart, err := s.FindCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !repo.IsNotFound(err) {
		return nil, err
	}
	if _, err := s.CreateCartIfAbsent(ctx, userID); err != nil {
		return nil, err
	}
	return s.FindCartByUser(ctx, userID)
}

func (s *CartService) GetUserCart(ctx context.Context, userID uint) (view *CartView, err error) {
	const op = "cart.get"
	defer func() { s.metrics.ObserveCartOp("get_cart", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, storeError(op, err)
	}

	// The shared load outlives any single caller; each caller stops waiting
	// when its own ctx ends.
	ch := s.group.DoChan(strconv.FormatUint(uint64(userID), 10), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return s.loadCart(shared, userID)
	})
	select {
	case <-ctx.Done():
		return nil, storeError(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, storeError(op, res.Err)
		}
		return res.Val.(*CartView), nil
	}
}

func (s *CartService) loadCart(ctx context.Context, userID uint) (*CartView, error) {
	cart, err := ensureCart(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListCartLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     make([]CartLineView, 0, len(lines)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	items := make([]models.CartItem, 0, len(lines))
	for _, l := range lines {
		view.Items = append(view.Items, CartLineView{
			ID:             l.ID,
			ProductID:      l.ProductID,
			ProductName:    l.ProductName,
			Quantity:       l.Quantity,
			UnitPriceAtAdd: l.UnitPriceAtAdd,
			CurrentPrice:   l.CurrentPrice,
			LineTotal:      l.LineTotal(),
			CreatedAt:      l.CreatedAt,
			UpdatedAt:      l.UpdatedAt,
		})
		items = append(items, l.CartItem)
	}
	view.Summary = models.Summarize(items)
	return view, nil
}

// GetCartSummary aggregates snapshot prices. It never creates a cart.
func (s *CartService) GetCartSummary(ctx context.Context, userID uint) (sum *models.CartSummary, err error) {
	const op = "cart.summary"
	defer func() { s.metrics.ObserveCartOp("get_summary", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	l := logging.FromContext(ctx).With("svc", op)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.Warn("summary_cache_get_failed", "user_id", userID, "error", err)
		}
	}

	var items []models.CartItem
	cart, err := s.repo.FindCartByUser(ctx, userID)
	switch {
	case err == nil:
		items, err = s.repo.ListItems(ctx, cart.ID)
		if err != nil {
			return nil, storeError(op, err)
		}
	case !repo.IsNotFound(err):
		return nil, storeError(op, err)
	}

	summary := models.Summarize(items)
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, &summary); err != nil {
			l.Warn("summary_cache_set_failed", "user_id", userID, "error", err)
		}
	}
	return &summary, nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (item *models.CartItem, err error) {
	const op = "cart.add_item"
	defer func() { s.metrics.ObserveCartOp("add_item", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	var details []domain.FieldError
	if productID == 0 {
		details = append(details, domain.FieldError{Field: "productId", Message: "must be a positive integer"})
	}
	if !quantityOK(quantity) {
		details = append(details, domain.FieldError{Field: "quantity", Message: quantityMessage()})
	}
	if len(details) > 0 {
		return nil, domain.Invalid(op, details...)
	}
	if !storable(productID) {
		return nil, productNotFound(op, productID, "productId")
	}

	var cartID uint
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		cart, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		product, err := tx.LockProduct(ctx, productID)
		if repo.IsNotFound(err) || (err == nil && !product.Purchasable()) {
			return productNotFound(op, productID, "productId")
		}
		if err != nil {
			return err
		}

		merged := quantity
		existing, err := tx.FindItemByProduct(ctx, cart.ID, productID)
		switch {
		case err == nil:
			merged += existing.Quantity
		case !repo.IsNotFound(err):
			return err
		}

		if merged > models.MaxItemQuantity {
			return domain.Invalid(op, domain.FieldError{
				Field:   "quantity",
				Message: "cart quantity would exceed " + strconv.Itoa(models.MaxItemQuantity),
			})
		}
		if merged > product.StockQuantity {
			return insufficientStock(op, "quantity", merged, product.StockQuantity)
		}

		if err := tx.UpsertItem(ctx, &models.CartItem{
			CartID:         cart.ID,
			ProductID:      productID,
			Quantity:       merged,
			UnitPriceAtAdd: product.Price,
		}); err != nil {
			return err
		}

		item, err = tx.FindItemByProduct(ctx, cart.ID, productID)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	ev := events.NewCartEvent(events.ItemAdded, userID, cartID)
	ev.ProductID = productID
	ev.Quantity = item.Quantity
	ev.ItemIDs = []uint{item.ID}
	ev.Count = 1
	s.afterCommit(ctx, userID, &ev)
	return item, nil
}

// UpdateItem sets the quantity of one owned line. The price snapshot is kept.
func (s *CartService) UpdateItem(ctx context.Context, userID, cartItemID uint, quantity int) (item *models.CartItem, err error) {
	const op = "cart.update_item"
	defer func() { s.metrics.ObserveCartOp("update_item", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	var details []domain.FieldError
	if cartItemID == 0 {
		details = append(details, domain.FieldError{Field: "cartItemId", Message: "must be a positive integer"})
	}
	if !quantityOK(quantity) {
		details = append(details, domain.FieldError{Field: "quantity", Message: quantityMessage()})
	}
	if len(details) > 0 {
		return nil, domain.Invalid(op, details...)
	}
	if !storable(cartItemID) {
		return nil, itemNotFound(op, cartItemID, "cartItemId")
	}

	var cartID uint
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		cart, err := tx.FindCartByUser(ctx, userID)
		if repo.IsNotFound(err) {
			return itemNotFound(op, cartItemID, "cartItemId")
		}
		if err != nil {
			return err
		}
		cartID = cart.ID

		owned, err := tx.FindItems(ctx, cart.ID, []uint{cartItemID})
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			return itemNotFound(op, cartItemID, "cartItemId")
		}

		product, err := tx.LockProduct(ctx, owned[0].ProductID)
		if repo.IsNotFound(err) {
			return productNotFound(op, owned[0].ProductID, "cartItemId")
		}
		if err != nil {
			return err
		}
		if quantity > product.StockQuantity {
			return insufficientStock(op, "quantity", quantity, product.StockQuantity)
		}

		if err := tx.UpdateItemQuantity(ctx, cartItemID, quantity); err != nil {
			if repo.IsNotFound(err) {
				return itemNotFound(op, cartItemID, "cartItemId")
			}
			return err
		}

		fresh, err := tx.FindItems(ctx, cart.ID, []uint{cartItemID})
		if err != nil {
			return err
		}
		if len(fresh) == 0 {
			return itemNotFound(op, cartItemID, "cartItemId")
		}
		item = &fresh[0]
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	ev := events.NewCartEvent(events.ItemUpdated, userID, cartID)
	ev.ProductID = item.ProductID
	ev.Quantity = item.Quantity
	ev.ItemIDs = []uint{item.ID}
	ev.Count = 1
	s.afterCommit(ctx, userID, &ev)
	return item, nil
}

// RemoveItem deletes one owned line. Removing it again is ENOTFOUND.
func (s *CartService) RemoveItem(ctx context.Context, userID, cartItemID uint) (err error) {
	const op = "cart.remove_item"
	defer func() { s.metrics.ObserveCartOp("remove_item", err) }()

	if err := requireUser(op, userID); err != nil {
		return err
	}
	if cartItemID == 0 {
		return domain.Invalid(op, domain.FieldError{Field: "cartItemId", Message: "must be a positive integer"})
	}
	if !storable(cartItemID) {
		return itemNotFound(op, cartItemID, "cartItemId")
	}

	var cartID uint
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		cart, err := tx.FindCartByUser(ctx, userID)
		if repo.IsNotFound(err) {
			return itemNotFound(op, cartItemID, "cartItemId")
		}
		if err != nil {
			return err
		}
		cartID = cart.ID

		n, err := tx.DeleteItems(ctx, cart.ID, []uint{cartItemID})
		if err != nil {
			return err
		}
		if n == 0 {
			return itemNotFound(op, cartItemID, "cartItemId")
		}
		return nil
	})
	if err != nil {
		return storeError(op, err)
	}

	ev := events.NewCartEvent(events.ItemRemoved, userID, cartID)
	ev.ItemIDs = []uint{cartItemID}
	ev.Count = 1
	s.afterCommit(ctx, userID, &ev)
	return nil
}

// ClearCart empties the cart. An empty or missing cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID uint) (err error) {
	const op = "cart.clear"
	defer func() { s.metrics.ObserveCartOp("clear_cart", err) }()

	if err := requireUser(op, userID); err != nil {
		return err
	}

	var (
		cartID  uint
		removed int64
	)
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		cart, err := tx.FindCartByUser(ctx, userID)
		if repo.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		cartID = cart.ID
		removed, err = tx.DeleteAllItems(ctx, cart.ID)
		return err
	})
	if err != nil {
		return storeError(op, err)
	}

	var ev *events.CartEvent
	if removed > 0 {
		e := events.NewCartEvent(events.CartCleared, userID, cartID)
		e.Count = int(removed)
		ev = &e
	}
	s.afterCommit(ctx, userID, ev)
	return nil
}

// afterCommit drops the cached summary and publishes ev. Failures here are
// logged; the mutation is already committed.
func (s *CartService) afterCommit(ctx context.Context, userID uint, ev *events.CartEvent) {
	l := logging.FromContext(ctx)
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Delete(bg, userID); err != nil {
			l.Warn("summary_cache_invalidate_failed", "user_id", userID, "error", err)
		}
	}
	if ev == nil || s.events == nil {
		return
	}
	key := strconv.FormatUint(uint64(userID), 10)
	if err := s.events.Publish(bg, events.TopicCart, key, ev); err != nil {
		l.Warn("cart_event_publish_failed", "type", ev.Type, "user_id", userID, "error", err)
	}
}
