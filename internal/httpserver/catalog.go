package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/transport"
	"github.com/Skotchmaster/shopcart/internal/util"
	"github.com/Skotchmaster/shopcart/pkg/logging"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func pageParams(c echo.Context) (page, size int) {
	page = util.ParseIntDefault(c.QueryParam("page"), 1)
	size = util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	return page, size
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.products")

	page, size := pageParams(c)
	res, err := h.Svc.GetProducts(ctx, page, size)
	if err != nil {
		return logFailure(l, "get_products_error", err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.products")

	page, size := pageParams(c)
	res, err := h.Svc.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return logFailure(l, "search_error", err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.product")

	id, err := idParam(c, "catalog.get", "id")
	if err != nil {
		return logFailure(l, "get_product_error", err)
	}

	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return logFailure(l, "get_product_error", err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	const op = "catalog.create"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create.product")

	var req transport.CreateProductRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "create_product_error", err)
	}

	p, err := h.Svc.CreateProduct(ctx, service.ProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         *req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		return logFailure(l, "create_product_error", err)
	}

	l.Info("product created", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	const op = "catalog.patch"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patch.product")

	id, err := idParam(c, op, "id")
	if err != nil {
		return logFailure(l, "patch_product_error", err)
	}

	var req transport.PatchProductRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "patch_product_error", err)
	}

	p, err := h.Svc.PatchProduct(ctx, id, service.ProductPatch{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		return logFailure(l, "patch_product_error", err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) ArchiveProduct(c echo.Context) error {
	const op = "catalog.archive"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "archive.product")

	id, err := idParam(c, op, "id")
	if err != nil {
		return logFailure(l, "archive_product_error", err)
	}

	if err := h.Svc.ArchiveProduct(ctx, id); err != nil {
		return logFailure(l, "archive_product_error", err)
	}

	l.Info("product archived", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}
