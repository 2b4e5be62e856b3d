package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/domain"
	middleware "github.com/Skotchmaster/shopcart/pkg/middleware/auth"
)

type Deps struct {
	Cart      *CartHTTP
	Catalog   *CatalogHTTP
	Auth      *AuthHTTP
	Wishlist  *WishlistHTTP
	JWTSecret []byte
	// Ready reports whether the backing store is reachable. Nil means always ready.
	Ready   func(ctx context.Context) error
	Metrics http.Handler
}

func Register(e *echo.Echo, d *Deps) {
	authMW := middleware.NewAuth(d.JWTSecret)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return domain.WrapError(err, domain.EUNAVAILABLE, "health.ready", "store unavailable")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	auth := e.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)

	catalog := e.Group("/catalog/products")
	catalog.GET("", d.Catalog.GetProducts)
	catalog.GET("/search", d.Catalog.Search)
	catalog.GET("/:id", d.Catalog.GetProduct)
	catalog.POST("", d.Catalog.CreateProduct, authMW.RequireAdmin)
	catalog.PATCH("/:id", d.Catalog.PatchProduct, authMW.RequireAdmin)
	catalog.DELETE("/:id", d.Catalog.ArchiveProduct, authMW.RequireAdmin)

	cart := e.Group("/cart", authMW.RequireAuth)
	cart.GET("", d.Cart.GetCart)
	cart.DELETE("", d.Cart.ClearCart)
	cart.GET("/summary", d.Cart.GetSummary)
	cart.POST("/items", d.Cart.AddItem)
	cart.PUT("/items/bulk", d.Cart.BulkUpdate)
	cart.DELETE("/items/bulk", d.Cart.BulkRemove)
	cart.PUT("/items/:cartItemId", d.Cart.UpdateItem)
	cart.DELETE("/items/:cartItemId", d.Cart.RemoveItem)
	cart.POST("/move-to-wishlist", d.Cart.MoveToWishlist)

	wishlists := e.Group("/wishlists", authMW.RequireAuth)
	wishlists.GET("", d.Wishlist.List)
	wishlists.POST("", d.Wishlist.Create)
}

// New builds the echo instance with the error renderer and validator every
// handler relies on. Middleware is left to the caller.
func New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewValidator()
	return e
}
