package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/transport"
	"github.com/Skotchmaster/shopcart/pkg/logging"
	"github.com/Skotchmaster/shopcart/pkg/tokens"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	const op = "auth.register"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "register")

	var req transport.RegisterRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "register_error", err)
	}

	u, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		return logFailure(l, "register_error", err)
	}

	l.Info("user registered", "user_id", u.ID)
	return c.JSON(http.StatusCreated, transport.RegisterResponse{ID: u.ID, Username: u.Username})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	const op = "auth.login"
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var req transport.LoginRequest
	if err := bind(c, op, &req); err != nil {
		return logFailure(l, "login_error", err)
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return logFailure(l, "login_error", err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookieName, res.AccessToken, "/", res.AccessExp))
	return c.JSON(http.StatusOK, transport.LoginResponse{
		AccessToken: res.AccessToken,
		ExpiresAt:   res.AccessExp,
		IsAdmin:     res.IsAdmin,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookieName, "/"))
	return c.NoContent(http.StatusNoContent)
}
