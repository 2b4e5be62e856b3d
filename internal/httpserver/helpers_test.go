package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func assertHTTPError(code int) error {
	return echo.NewHTTPError(code)
}
