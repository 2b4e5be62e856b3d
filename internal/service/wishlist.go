package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
)

const maxWishlistName = 100

type WishlistService struct {
	Repo *repo.GormRepo
}

func (s *WishlistService) List(ctx context.Context, userID uint) ([]models.Wishlist, error) {
	const op = "wishlist.list"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	lists, err := s.Repo.ListWishlists(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return lists, nil
}

func (s *WishlistService) Create(ctx context.Context, userID uint, name string) (*models.Wishlist, error) {
	const op = "wishlist.create"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxWishlistName {
		return nil, domain.Invalid(op, domain.FieldError{Field: "name", Message: "must be 1 to 100 characters"})
	}

	wl := &models.Wishlist{UserID: userID, Name: name, Items: []models.WishlistItem{}}
	if err := s.Repo.CreateWishlist(ctx, wl); err != nil {
		if repo.IsDuplicate(err) {
			return nil, domain.Errorf(domain.ECONFLICT, op, "wishlist %q already exists", name).
				WithField("name", "already taken")
		}
		return nil, storeError(op, err)
	}
	return wl, nil
}
