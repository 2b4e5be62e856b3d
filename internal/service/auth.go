package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	pkg_hash "github.com/Skotchmaster/shopcart/pkg/hash"
	"github.com/Skotchmaster/shopcart/pkg/logging"
	"github.com/Skotchmaster/shopcart/pkg/tokens"
)

const defaultAccessTTL = 15 * time.Minute

type AuthService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
	AccessTTL time.Duration
	Events    events.Publisher
}

type LoginResult struct {
	AccessToken string
	AccessExp   time.Time
	IsAdmin     bool
}

func validateCredentials(op, username, password string, checkPolicy bool) error {
	var details []domain.FieldError
	if username == "" {
		details = append(details, domain.FieldError{Field: "username", Message: "is required"})
	} else if checkPolicy && (utf8.RuneCountInString(username) < 3 || utf8.RuneCountInString(username) > 50) {
		details = append(details, domain.FieldError{Field: "username", Message: "must be 3 to 50 characters"})
	}
	if password == "" {
		details = append(details, domain.FieldError{Field: "password", Message: "is required"})
	} else if checkPolicy && len(password) < 8 {
		details = append(details, domain.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(details) > 0 {
		return domain.Invalid(op, details...)
	}
	return nil
}

func (h *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	const op = "auth.register"
	l := logging.FromContext(ctx).With("svc", op)

	username = strings.TrimSpace(username)
	if err := validateCredentials(op, username, password, true); err != nil {
		return nil, err
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "cannot hash the password")
	}
	user := &models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         tokens.RoleUser,
	}
	if err := h.Repo.CreateUser(ctx, user); err != nil {
		if repo.IsDuplicate(err) {
			return nil, domain.Errorf(domain.ECONFLICT, op, "user already exists").
				WithField("username", "already taken")
		}
		return nil, storeError(op, err)
	}

	if h.Events != nil {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
		defer cancel()
		ev := events.UserEvent{
			ID:         uuid.NewString(),
			Type:       events.UserRegistered,
			UserID:     user.ID,
			Username:   user.Username,
			OccurredAt: time.Now().UTC(),
		}
		if err := h.Events.Publish(bg, events.TopicUser, strconv.FormatUint(uint64(user.ID), 10), ev); err != nil {
			l.Warn("user_event_publish_failed", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

func (h *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	const op = "auth.login"
	if err := validateCredentials(op, strings.TrimSpace(username), password, false); err != nil {
		return nil, err
	}

	user, err := h.Repo.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil && !repo.IsNotFound(err) {
		return nil, storeError(op, err)
	}
	if user == nil || !pkg_hash.CheckPassword(user.PasswordHash, password) {
		return nil, domain.Errorf(domain.EUNAUTHORIZED, op, "invalid username or password")
	}

	ttl := h.AccessTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	accessExp := time.Now().Add(ttl)
	accessToken, err := tokens.NewAccessToken(user.ID, user.Role, accessExp, h.JWTSecret)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "cannot sign the token")
	}

	return &LoginResult{
		AccessToken: accessToken,
		AccessExp:   accessExp,
		IsAdmin:     user.Role == tokens.RoleAdmin,
	}, nil
}
