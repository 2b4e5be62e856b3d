package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/pkg/logging"
)

type errorPayload struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []domain.FieldError `json:"details,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

// toDomain turns echo's own errors (bad routes, bind failures, auth
// middleware) into domain errors so every failure renders the same way.
func toDomain(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return err
	}

	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	code := domain.EINVALID
	switch {
	case he.Code == http.StatusUnauthorized:
		code = domain.EUNAUTHORIZED
	case he.Code == http.StatusForbidden:
		code = domain.EFORBIDDEN
	case he.Code == http.StatusNotFound:
		code = domain.ENOTFOUND
	case he.Code == http.StatusConflict:
		code = domain.ECONFLICT
	case he.Code == http.StatusServiceUnavailable:
		code = domain.EUNAVAILABLE
	case he.Code >= 500:
		code = domain.EINTERNAL
	}
	return &domain.Error{Code: code, Message: msg, Err: he}
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) && !errors.As(err, new(*domain.Error)) {
		return he.Code
	}
	return codeStatus(domain.ErrorCode(err))
}

// codeStatus is the single place application codes become HTTP statuses.
func codeStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error as {"error": {code, message, details}}.
// Internal causes are logged, never sent.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusOf(err)
	err = toDomain(err)
	code := domain.ErrorCode(err)

	if status >= 500 {
		logging.FromContext(c.Request().Context()).Error("request_failed",
			"status", status, "op", domain.ErrorOp(err), "error", err)
	}
	if code == domain.EUNAVAILABLE {
		c.Response().Header().Set("Retry-After", "1")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, errorBody{Error: errorPayload{
			Code:    code,
			Message: domain.ErrorMessage(err),
			Details: domain.ErrorDetails(err),
		}})
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", werr)
	}
}

// logFailure writes the handler's log line for err and hands err back for
// ErrorHandler to render.
func logFailure(l *slog.Logger, event string, err error) error {
	status := statusOf(err)
	switch {
	case status >= 500:
		l.Error(event, "status", status, "error", err)
	case status >= 400:
		l.Warn(event, "status", status, "error", err)
	}
	return err
}

func invalidParam(op, name string) error {
	return domain.Invalid(op, domain.FieldError{Field: name, Message: fmt.Sprintf("%s must be a positive integer", name)})
}
