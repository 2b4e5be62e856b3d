package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/transport"
	"github.com/Skotchmaster/shopcart/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	userID, err := currentUser(c, "cart.get")
	if err != nil {
		return logFailure(l, "get_cart_error", err)
	}

	view, err := h.Svc.GetUserCart(ctx, userID)
	if err != nil {
		return logFailure(l, "get_cart_error", err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *CartHTTP) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart.summary")

	userID, err := currentUser(c, "cart.summary")
	if err != nil {
		return logFailure(l, "get_summary_error", err)
	}

	sum, err := h.Svc.GetCartSummary(ctx, userID)
	if err != nil {
		return logFailure(l, "get_summary_error", err)
	}

	return c.JSON(http.StatusOK, sum)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	const op = "cart.add_item"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart.item")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "add_item_error", err)
	}

	var req transport.AddItemRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "add_item_error", err)
	}

	item, err := h.Svc.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return logFailure(l, "add_item_error", err)
	}

	l.Info("item added to cart", "cart_item_id", item.ID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	const op = "cart.update_item"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.cart.item")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "update_item_error", err)
	}
	itemID, err := idParam(c, op, "cartItemId")
	if err != nil {
		return logFailure(l, "update_item_error", err)
	}

	var req transport.UpdateItemRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "update_item_error", err)
	}

	item, err := h.Svc.UpdateItem(ctx, userID, itemID, req.Quantity)
	if err != nil {
		return logFailure(l, "update_item_error", err)
	}

	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	const op = "cart.remove_item"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart.item")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "remove_item_error", err)
	}
	itemID, err := idParam(c, op, "cartItemId")
	if err != nil {
		return logFailure(l, "remove_item_error", err)
	}

	if err := h.Svc.RemoveItem(ctx, userID, itemID); err != nil {
		return logFailure(l, "remove_item_error", err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clear.cart")

	userID, err := currentUser(c, "cart.clear")
	if err != nil {
		return logFailure(l, "clear_cart_error", err)
	}

	if err := h.Svc.ClearCart(ctx, userID); err != nil {
		return logFailure(l, "clear_cart_error", err)
	}

	l.Info("cart cleared")
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) BulkUpdate(c echo.Context) error {
	const op = "cart.bulk_update"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "bulk.update.cart")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "bulk_update_error", err)
	}

	var req transport.BulkUpdateRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "bulk_update_error", err)
	}

	entries := make([]service.ItemQuantity, len(req.Items))
	for i, it := range req.Items {
		entries[i] = service.ItemQuantity{CartItemID: it.CartItemID, Quantity: it.Quantity}
	}

	updated, err := h.Svc.BulkUpdateItems(ctx, userID, entries)
	if err != nil {
		return logFailure(l, "bulk_update_error", err)
	}

	return c.JSON(http.StatusOK, transport.BulkUpdateResponse{UpdatedItems: updated, Count: len(updated)})
}

func (h *CartHTTP) BulkRemove(c echo.Context) error {
	const op = "cart.bulk_remove"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "bulk.remove.cart")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "bulk_remove_error", err)
	}

	var req transport.BulkRemoveRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "bulk_remove_error", err)
	}

	res, err := h.Svc.BulkRemoveItems(ctx, userID, req.CartItemIDs)
	if err != nil {
		return logFailure(l, "bulk_remove_error", err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *CartHTTP) MoveToWishlist(c echo.Context) error {
	const op = "cart.move_to_wishlist"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "move.to.wishlist")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "move_to_wishlist_error", err)
	}

	var req transport.MoveToWishlistRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "move_to_wishlist_error", err)
	}

	res, err := h.Svc.MoveToWishlist(ctx, userID, req.CartItemIDs, req.WishlistID)
	if err != nil {
		return logFailure(l, "move_to_wishlist_error", err)
	}

	l.Info("items moved to wishlist", "moved", res.MovedCount, "wishlist_id", res.WishlistID)
	return c.JSON(http.StatusOK, res)
}
