package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
)

// storeError classifies an error coming out of the repository. Domain errors
// pass through untouched.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return domain.WrapError(err, domain.EUNAVAILABLE, op, "request canceled")
	case errors.Is(err, context.DeadlineExceeded), repo.IsRetryable(err):
		return domain.WrapError(err, domain.EUNAVAILABLE, op, "temporarily unavailable, retry the request")
	case repo.IsDuplicate(err):
		return domain.WrapError(err, domain.ECONFLICT, op, "conflicting write")
	default:
		return domain.WrapError(err, domain.EINTERNAL, op, "internal error")
	}
}

func requireUser(op string, userID uint) error {
	if userID == 0 || !storable(userID) {
		return domain.Errorf(domain.EUNAUTHORIZED, op, "authentication required")
	}
	return nil
}

// storable reports whether id fits the bigint key columns. Larger ids cannot
// name a row and never reach the driver.
func storable(id uint) bool {
	return uint64(id) <= models.MaxID
}

func storableIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if storable(id) {
			out = append(out, id)
		}
	}
	return out
}

func quantityOK(q int) bool {
	return q >= 1 && q <= models.MaxItemQuantity
}

func quantityMessage() string {
	return fmt.Sprintf("must be between 1 and %d", models.MaxItemQuantity)
}

func itemNotFound(op string, id uint, field string) error {
	return domain.Errorf(domain.ENOTFOUND, op, "cart item %d not found", id).
		WithField(field, "not found in cart")
}

func productNotFound(op string, id uint, field string) error {
	return domain.Errorf(domain.ENOTFOUND, op, "product %d not found", id).
		WithField(field, "no such product")
}

func wishlistNotFound(op string, id uint) error {
	return domain.Errorf(domain.ENOTFOUND, op, "wishlist %d not found", id).
		WithField("wishlistId", "no such wishlist")
}

func insufficientStock(op, field string, requested, stock int) error {
	return domain.Errorf(domain.ECONFLICT, op, "insufficient stock").
		WithField(field, "requested %d, %d in stock", requested, stock)
}

// idList validates a list of positive ids and returns it without
// duplicates, first occurrence first.
func idList(field string, ids []uint, max int) ([]uint, []domain.FieldError) {
	if len(ids) == 0 || len(ids) > max {
		return nil, []domain.FieldError{{
			Field:   field,
			Message: fmt.Sprintf("must contain between 1 and %d ids", max),
		}}
	}

	var details []domain.FieldError
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for i, id := range ids {
		if id == 0 {
			details = append(details, domain.FieldError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a positive integer",
			})
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, details
}
