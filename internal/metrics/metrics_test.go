package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg, reg, "shopcart"), reg
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/cart/items/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusConflict) })

	for _, path := range []string{"/cart/items/1", "/cart/items/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/cart/items/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/boom", "409")))
}

func TestObserveCartOp(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	m.ObserveCartOp("add_item", nil)
	m.ObserveCartOp("add_item", errors.New("x"))
	m.ObserveCartOp("add_item", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cartOps.WithLabelValues("add_item", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartOps.WithLabelValues("add_item", OutcomeError)))
}

func TestNilMetrics_NoOp(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveCartOp("clear", nil)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Exposition(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	m.ObserveCartOp("clear", nil)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `shopcart_cart_operations_total{operation="clear",outcome="ok"} 1`)
}
