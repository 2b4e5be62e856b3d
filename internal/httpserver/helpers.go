package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/domain"
	middleware "github.com/Skotchmaster/shopcart/pkg/middleware/auth"
)

func currentUser(c echo.Context, op string) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, domain.Errorf(domain.EUNAUTHORIZED, op, "authentication required")
	}
	return id, nil
}

func idParam(c echo.Context, op, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, invalidParam(op, name)
	}
	return uint(n), nil
}

// bind decodes the JSON body into dst and runs the struct validator.
func bind(c echo.Context, op string, dst any) error {
	if err := c.Bind(dst); err != nil {
		return domain.Invalid(op, domain.FieldError{Field: "body", Message: "malformed JSON body"})
	}
	return c.Validate(dst)
}
