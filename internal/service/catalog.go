package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/util"
	"github.com/Skotchmaster/shopcart/pkg/logging"
)

const maxProductName = 200

// ProductIndex is the full-text index kept next to the products table.
type ProductIndex interface {
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
	Put(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error
}

type CatalogService struct {
	Repo   *repo.GormRepo
	Index  ProductIndex
	Events events.Publisher
}

type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
}

// ProductPatch carries only the fields to change.
type ProductPatch struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
}

type ProductPage struct {
	Data []models.Product `json:"data"`
	Meta util.PageMeta    `json:"meta"`
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	const op = "catalog.get"
	if !storable(id) {
		return nil, domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id)
	}
	p, err := s.Repo.GetProduct(ctx, id, false)
	if repo.IsNotFound(err) {
		return nil, domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id)
	}
	if err != nil {
		return nil, storeError(op, err)
	}
	return p, nil
}

func (s *CatalogService) GetProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	const op = "catalog.list"
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.GetProducts(ctx, offset, limit)
	if err != nil {
		return nil, storeError(op, err)
	}
	return &ProductPage{Data: items, Meta: util.PageMeta{Page: offset/limit + 1, Size: limit, Total: total}}, nil
}

// Search queries the index when one is configured and falls back to the
// database when there is none or it fails.
func (s *CatalogService) Search(ctx context.Context, q string, page, size int) (*ProductPage, error) {
	const op = "catalog.search"
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.Invalid(op, domain.FieldError{Field: "q", Message: "is required"})
	}
	offset, limit := util.Calculate(page, size)
	meta := util.PageMeta{Page: offset/limit + 1, Size: limit}

	if s.Index != nil {
		total, items, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			meta.Total = total
			return &ProductPage{Data: items, Meta: meta}, nil
		}
		logging.FromContext(ctx).Warn("search_index_failed", "svc", op, "error", err)
	}

	total, items, err := s.Repo.SearchProducts(ctx, q, offset, limit)
	if err != nil {
		return nil, storeError(op, err)
	}
	meta.Total = total
	return &ProductPage{Data: items, Meta: meta}, nil
}

func validateProduct(op string, name *string, price *decimal.Decimal, stock *int) error {
	var details []domain.FieldError
	if name != nil {
		*name = strings.TrimSpace(*name)
		if *name == "" || utf8.RuneCountInString(*name) > maxProductName {
			details = append(details, domain.FieldError{Field: "name", Message: "must be 1 to 200 characters"})
		}
	}
	if price != nil {
		if price.IsNegative() {
			details = append(details, domain.FieldError{Field: "price", Message: "must not be negative"})
		} else if !price.Equal(price.Round(2)) {
			details = append(details, domain.FieldError{Field: "price", Message: "must have at most 2 decimal places"})
		}
	}
	if stock != nil && *stock < 0 {
		details = append(details, domain.FieldError{Field: "stockQuantity", Message: "must not be negative"})
	}
	if len(details) > 0 {
		return domain.Invalid(op, details...)
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	const op = "catalog.create"
	if err := validateProduct(op, &in.Name, &in.Price, &in.StockQuantity); err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:          in.Name,
		Slug:          slug.Make(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, storeError(op, err)
	}

	s.syncIndex(ctx, op, p, false)
	s.publishProduct(ctx, events.ProductCreated, p)
	return p, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	const op = "catalog.patch"
	if err := validateProduct(op, patch.Name, patch.Price, patch.StockQuantity); err != nil {
		return nil, err
	}
	if !storable(id) {
		return nil, domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id)
	}

	fields := map[string]any{}
	if patch.Name != nil {
		fields["name"] = *patch.Name
		fields["slug"] = slug.Make(*patch.Name)
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Price != nil {
		fields["price"] = *patch.Price
	}
	if patch.StockQuantity != nil {
		fields["stock_quantity"] = *patch.StockQuantity
	}

	if len(fields) > 0 {
		err := s.Repo.UpdateProduct(ctx, id, fields)
		if repo.IsNotFound(err) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id)
		}
		if err != nil {
			return nil, storeError(op, err)
		}
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		s.syncIndex(ctx, op, p, false)
		s.publishProduct(ctx, events.ProductUpdated, p)
	}
	return p, nil
}

// ArchiveProduct hides the product from the catalog and from carts. Existing
// cart lines stay until the owner removes them.
func (s *CatalogService) ArchiveProduct(ctx context.Context, id uint) error {
	const op = "catalog.archive"
	if !storable(id) {
		return domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id)
	}
	err := s.Repo.ArchiveProduct(ctx, id)
	if repo.IsNotFound(err) {
		return domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id)
	}
	if err != nil {
		return storeError(op, err)
	}

	p := &models.Product{ID: id, Archived: true}
	s.syncIndex(ctx, op, p, true)
	s.publishProduct(ctx, events.ProductArchived, p)
	return nil
}

func (s *CatalogService) syncIndex(ctx context.Context, op string, p *models.Product, remove bool) {
	if s.Index == nil {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()

	var err error
	if remove {
		err = s.Index.Delete(bg, p.ID)
	} else {
		err = s.Index.Put(bg, p)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("search_index_sync_failed", "svc", op, "product_id", p.ID, "error", err)
	}
}

func (s *CatalogService) publishProduct(ctx context.Context, typ string, p *models.Product) {
	if s.Events == nil {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()

	ev := events.ProductEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		ProductID:     p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		OccurredAt:    time.Now().UTC(),
	}
	key := strconv.FormatUint(uint64(p.ID), 10)
	if err := s.Events.Publish(bg, events.TopicProduct, key, ev); err != nil {
		logging.FromContext(ctx).Warn("product_event_publish_failed", "type", typ, "product_id", p.ID, "error", err)
	}
}
