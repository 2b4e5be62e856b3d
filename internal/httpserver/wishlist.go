package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/transport"
	"github.com/Skotchmaster/shopcart/pkg/logging"
)

type WishlistHTTP struct {
	Svc *service.WishlistService
}

func (h *WishlistHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.wishlists")

	userID, err := currentUser(c, "wishlist.list")
	if err != nil {
		return logFailure(l, "list_wishlists_error", err)
	}

	lists, err := h.Svc.List(ctx, userID)
	if err != nil {
		return logFailure(l, "list_wishlists_error", err)
	}

	return c.JSON(http.StatusOK, lists)
}

func (h *WishlistHTTP) Create(c echo.Context) error {
	const op = "wishlist.create"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create.wishlist")

	userID, err := currentUser(c, op)
	if err != nil {
		return logFailure(l, "create_wishlist_error", err)
	}

	var req transport.CreateWishlistRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "create_wishlist_error", err)
	}

	wl, err := h.Svc.Create(ctx, userID, req.Name)
	if err != nil {
		return logFailure(l, "create_wishlist_error", err)
	}

	return c.JSON(http.StatusCreated, wl)
}
