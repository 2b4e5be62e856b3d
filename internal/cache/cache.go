package cache

import (
	"context"
	"errors"

	"github.com/Skotchmaster/shopcart/internal/models"
)

// SummaryCache holds computed cart summaries keyed by user.
type SummaryCache interface {
	Get(ctx context.Context, userID uint) (*models.CartSummary, error)
	Set(ctx context.Context, userID uint, summary *models.CartSummary) error
	Delete(ctx context.Context, userID uint) error
}

var ErrCacheMiss = errors.New("cache miss")
