package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
)

type ItemQuantity struct {
	CartItemID uint
	Quantity   int
}

type BulkRemoveResult struct {
	RemovedCount int    `json:"removedCount"`
	NotFoundIDs  []uint `json:"notFoundIds"`
}

type MoveResult struct {
	MovedCount  int    `json:"movedCount"`
	WishlistID  uint   `json:"wishlistId"`
	NotFoundIDs []uint `json:"notFoundIds"`
}

func validateBulkUpdate(op string, entries []ItemQuantity) error {
	if len(entries) == 0 || len(entries) > MaxBulkUpdate {
		return domain.Invalid(op, domain.FieldError{
			Field:   "items",
			Message: fmt.Sprintf("must contain between 1 and %d entries", MaxBulkUpdate),
		})
	}

	var details []domain.FieldError
	first := make(map[uint]int, len(entries))
	for i, e := range entries {
		switch prev, dup := first[e.CartItemID]; {
		case e.CartItemID == 0:
			details = append(details, domain.FieldError{
				Field:   fmt.Sprintf("items[%d].cartItemId", i),
				Message: "must be a positive integer",
			})
		case dup:
			details = append(details, domain.FieldError{
				Field:   fmt.Sprintf("items[%d].cartItemId", i),
				Message: fmt.Sprintf("duplicates items[%d]", prev),
			})
		default:
			first[e.CartItemID] = i
		}
		if !quantityOK(e.Quantity) {
			details = append(details, domain.FieldError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: quantityMessage(),
			})
		}
	}
	if len(details) > 0 {
		return domain.Invalid(op, details...)
	}
	return nil
}

// BulkUpdateItems applies every entry or none. The first entry that is not
// owned or exceeds stock is named in the error.
func (s *CartService) BulkUpdateItems(ctx context.Context, userID uint, entries []ItemQuantity) (updated []models.CartItem, err error) {
	const op = "cart.bulk_update"
	defer func() { s.metrics.ObserveCartOp("bulk_update", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	if err := validateBulkUpdate(op, entries); err != nil {
		return nil, err
	}

	ids := make([]uint, len(entries))
	for i, e := range entries {
		ids[i] = e.CartItemID
	}

	var cartID uint
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		cart, err := tx.FindCartByUser(ctx, userID)
		if repo.IsNotFound(err) {
			return itemNotFound(op, ids[0], "items[0].cartItemId")
		}
		if err != nil {
			return err
		}
		cartID = cart.ID

		owned, err := tx.FindItems(ctx, cart.ID, storableIDs(ids))
		if err != nil {
			return err
		}
		byID := make(map[uint]models.CartItem, len(owned))
		for _, it := range owned {
			byID[it.ID] = it
		}

		productIDs := make([]uint, 0, len(entries))
		for i, e := range entries {
			it, ok := byID[e.CartItemID]
			if !ok {
				return itemNotFound(op, e.CartItemID, fmt.Sprintf("items[%d].cartItemId", i))
			}
			productIDs = append(productIDs, it.ProductID)
		}
		slices.Sort(productIDs)
		productIDs = slices.Compact(productIDs)

		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}
		stock := make(map[uint]int, len(products))
		for _, p := range products {
			stock[p.ID] = p.StockQuantity
		}

		for i, e := range entries {
			pid := byID[e.CartItemID].ProductID
			available, ok := stock[pid]
			if !ok {
				return productNotFound(op, pid, fmt.Sprintf("items[%d].cartItemId", i))
			}
			if e.Quantity > available {
				return insufficientStock(op, fmt.Sprintf("items[%d].quantity", i), e.Quantity, available)
			}
		}

		for i, e := range entries {
			if err := tx.UpdateItemQuantity(ctx, e.CartItemID, e.Quantity); err != nil {
				if repo.IsNotFound(err) {
					return itemNotFound(op, e.CartItemID, fmt.Sprintf("items[%d].cartItemId", i))
				}
				return err
			}
		}

		fresh, err := tx.FindItems(ctx, cart.ID, storableIDs(ids))
		if err != nil {
			return err
		}
		freshByID := make(map[uint]models.CartItem, len(fresh))
		for _, it := range fresh {
			freshByID[it.ID] = it
		}
		updated = make([]models.CartItem, 0, len(entries))
		for _, e := range entries {
			updated = append(updated, freshByID[e.CartItemID])
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	ev := events.NewCartEvent(events.ItemsBulkUpdated, userID, cartID)
	ev.ItemIDs = ids
	ev.Count = len(updated)
	s.afterCommit(ctx, userID, &ev)
	return updated, nil
}

// BulkRemoveItems deletes the owned ids and reports the rest.
func (s *CartService) BulkRemoveItems(ctx context.Context, userID uint, cartItemIDs []uint) (res *BulkRemoveResult, err error) {
	const op = "cart.bulk_remove"
	defer func() { s.metrics.ObserveCartOp("bulk_remove", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	ids, details := idList("cartItemIds", cartItemIDs, MaxBulkRemove)
	if len(details) > 0 {
		return nil, domain.Invalid(op, details...)
	}

	res = &BulkRemoveResult{NotFoundIDs: []uint{}}
	var (
		cartID  uint
		removed []uint
	)
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		res.RemovedCount, res.NotFoundIDs, removed = 0, []uint{}, nil

		cart, err := tx.FindCartByUser(ctx, userID)
		if repo.IsNotFound(err) {
			res.NotFoundIDs = append(res.NotFoundIDs, ids...)
			return nil
		}
		if err != nil {
			return err
		}
		cartID = cart.ID

		owned, err := tx.FindItems(ctx, cart.ID, storableIDs(ids))
		if err != nil {
			return err
		}
		removed, res.NotFoundIDs = partitionOwned(ids, owned)

		n, err := tx.DeleteItems(ctx, cart.ID, removed)
		if err != nil {
			return err
		}
		res.RemovedCount = int(n)
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	var ev *events.CartEvent
	if res.RemovedCount > 0 {
		e := events.NewCartEvent(events.ItemsBulkRemoved, userID, cartID)
		e.ItemIDs = removed
		e.Count = res.RemovedCount
		ev = &e
	}
	s.afterCommit(ctx, userID, ev)
	return res, nil
}

// MoveToWishlist copies the products of the owned lines into a wishlist and
// deletes those lines in the same transaction. Without wishlistID the
// default wishlist is used, created if needed.
func (s *CartService) MoveToWishlist(ctx context.Context, userID uint, cartItemIDs []uint, wishlistID *uint) (res *MoveResult, err error) {
	const op = "cart.move_to_wishlist"
	defer func() { s.metrics.ObserveCartOp("move_to_wishlist", err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	ids, details := idList("cartItemIds", cartItemIDs, MaxMoveToWishlist)
	if wishlistID != nil && *wishlistID == 0 {
		details = append(details, domain.FieldError{Field: "wishlistId", Message: "must be a positive integer"})
	}
	if len(details) > 0 {
		return nil, domain.Invalid(op, details...)
	}
	if wishlistID != nil && !storable(*wishlistID) {
		return nil, wishlistNotFound(op, *wishlistID)
	}

	res = &MoveResult{NotFoundIDs: []uint{}}
	var (
		cartID uint
		moved  []uint
	)
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repo.Store) error {
		res.MovedCount, res.NotFoundIDs, moved = 0, []uint{}, nil

		var wl *models.Wishlist
		var err error
		if wishlistID != nil {
			wl, err = tx.FindWishlist(ctx, userID, *wishlistID)
			if repo.IsNotFound(err) {
				return wishlistNotFound(op, *wishlistID)
			}
		} else {
			wl, err = tx.EnsureDefaultWishlist(ctx, userID)
		}
		if err != nil {
			return err
		}
		res.WishlistID = wl.ID

		cart, err := tx.FindCartByUser(ctx, userID)
		if repo.IsNotFound(err) {
			res.NotFoundIDs = append(res.NotFoundIDs, ids...)
			return nil
		}
		if err != nil {
			return err
		}
		cartID = cart.ID

		owned, err := tx.FindItems(ctx, cart.ID, storableIDs(ids))
		if err != nil {
			return err
		}
		moved, res.NotFoundIDs = partitionOwned(ids, owned)
		if len(moved) == 0 {
			return nil
		}

		productIDs := make([]uint, 0, len(owned))
		for _, it := range owned {
			productIDs = append(productIDs, it.ProductID)
		}
		if err := tx.AddWishlistItems(ctx, wl.ID, productIDs); err != nil {
			return err
		}

		n, err := tx.DeleteItems(ctx, cart.ID, moved)
		if err != nil {
			return err
		}
		res.MovedCount = int(n)
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	var ev *events.CartEvent
	if res.MovedCount > 0 {
		e := events.NewCartEvent(events.ItemsMovedToWishlist, userID, cartID)
		e.ItemIDs = moved
		e.WishlistID = res.WishlistID
		e.Count = res.MovedCount
		ev = &e
	}
	s.afterCommit(ctx, userID, ev)
	return res, nil
}

// partitionOwned splits ids into those present in owned and the rest,
// keeping request order.
func partitionOwned(ids []uint, owned []models.CartItem) (found, missing []uint) {
	have := make(map[uint]struct{}, len(owned))
	for _, it := range owned {
		have[it.ID] = struct{}{}
	}
	found = make([]uint, 0, len(owned))
	missing = []uint{}
	for _, id := range ids {
		if _, ok := have[id]; ok {
			found = append(found, id)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}
