package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/pkg/db"
	"github.com/Skotchmaster/shopcart/pkg/tokens"
)

var testSecret = []byte("http-test-secret")

type testServer struct {
	t     *testing.T
	repo  *repo.GormRepo
	echo  http.Handler
	ready error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, repo.AutoMigrate(gdb))

	r := repo.New(gdb, 5*time.Second)
	pub := &events.MemoryPublisher{}
	ts := &testServer{t: t, repo: r}

	e := New()
	Register(e, &Deps{
		Cart:      &CartHTTP{Svc: service.NewCartService(r, service.WithPublisher(pub))},
		Catalog:   &CatalogHTTP{Svc: &service.CatalogService{Repo: r, Events: pub}},
		Auth:      &AuthHTTP{Svc: &service.AuthService{Repo: r, JWTSecret: testSecret, AccessTTL: time.Minute, Events: pub}},
		Wishlist:  &WishlistHTTP{Svc: &service.WishlistService{Repo: r}},
		JWTSecret: testSecret,
		Ready:     func(context.Context) error { return ts.ready },
		Metrics:   http.NotFoundHandler(),
	})
	ts.echo = e
	return ts
}

func (s *testServer) token(userID uint, role string) string {
	s.t.Helper()
	tok, err := tokens.NewAccessToken(userID, role, time.Now().Add(time.Hour), testSecret)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	s.t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) product(name, price string, stock int) *models.Product {
	s.t.Helper()
	p := &models.Product{Name: name, Slug: name, Price: decimal.RequireFromString(price), StockQuantity: stock}
	require.NoError(s.t, s.repo.CreateProduct(context.Background(), p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorFields(t *testing.T, rec *httptest.ResponseRecorder) (string, []string) {
	t.Helper()
	body := decode[errorBody](t, rec)
	var out []string
	for _, d := range body.Error.Details {
		out = append(out, d.Field)
	}
	return body.Error.Code, out
}

func TestCart_RequiresAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/cart", tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			code, _ := errorFields(t, rec)
			assert.Equal(t, domain.EUNAUTHORIZED, code)
		})
	}
}

func TestCart_AddUpdateRemoveFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.token(1, tokens.RoleUser)
	p := s.product("mug", "4.50", 10)

	rec := s.do(http.MethodPost, "/cart/items", tok, `{"productId":`+itoa(p.ID)+`,"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.CartItem](t, rec)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, decimal.RequireFromString("4.50").Equal(item.UnitPriceAtAdd))

	rec = s.do(http.MethodPut, "/cart/items/"+itoa(item.ID), tok, `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decode[models.CartItem](t, rec).Quantity)

	rec = s.do(http.MethodGet, "/cart/summary", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[models.CartSummary](t, rec)
	assert.Equal(t, 5, sum.ItemCount)
	assert.True(t, decimal.RequireFromString("22.50").Equal(sum.Subtotal))

	rec = s.do(http.MethodDelete, "/cart/items/"+itoa(item.ID), tok, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/cart/items/"+itoa(item.ID), tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/cart", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.CartView](t, rec)
	assert.Empty(t, view.Items)
}

func TestCart_AddItemErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.token(1, tokens.RoleUser)
	p := s.product("mug", "1.00", 3)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		fields []string
	}{
		{"zero quantity", `{"productId":` + itoa(p.ID) + `,"quantity":0}`, http.StatusBadRequest, domain.EINVALID, []string{"quantity"}},
		{"too many", `{"productId":` + itoa(p.ID) + `,"quantity":101}`, http.StatusBadRequest, domain.EINVALID, []string{"quantity"}},
		{"missing product id", `{"quantity":1}`, http.StatusBadRequest, domain.EINVALID, []string{"productId"}},
		{"malformed", `{"productId":`, http.StatusBadRequest, domain.EINVALID, []string{"body"}},
		{"unknown product", `{"productId":9999,"quantity":1}`, http.StatusNotFound, domain.ENOTFOUND, []string{"productId"}},
		{"over stock", `{"productId":` + itoa(p.ID) + `,"quantity":4}`, http.StatusConflict, domain.ECONFLICT, []string{"quantity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/cart/items", tok, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			code, fields := errorFields(t, rec)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestCart_ForeignItemIsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	p := s.product("mug", "1.00", 10)
	rec := s.do(http.MethodPost, "/cart/items", s.token(2, tokens.RoleUser), `{"productId":`+itoa(p.ID)+`,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	theirs := decode[models.CartItem](t, rec)

	mine := s.token(1, tokens.RoleUser)
	rec = s.do(http.MethodPut, "/cart/items/"+itoa(theirs.ID), mine, `{"quantity":3}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodDelete, "/cart/items/"+itoa(theirs.ID), mine, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPut, "/cart/items/abc", mine, `{"quantity":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, fields := errorFields(t, rec)
	assert.Equal(t, []string{"cartItemId"}, fields)
}

func TestCart_BulkEndpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.token(1, tokens.RoleUser)
	a := s.product("a", "1.00", 10)
	b := s.product("b", "2.00", 10)

	var ids []uint
	for _, p := range []*models.Product{a, b} {
		rec := s.do(http.MethodPost, "/cart/items", tok, `{"productId":`+itoa(p.ID)+`,"quantity":1}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[models.CartItem](t, rec).ID)
	}

	rec := s.do(http.MethodPut, "/cart/items/bulk", tok,
		`{"items":[{"cartItemId":`+itoa(ids[0])+`,"quantity":3},{"cartItemId":`+itoa(ids[1])+`,"quantity":11}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	_, fields := errorFields(t, rec)
	assert.Equal(t, []string{"items[1].quantity"}, fields)

	rec = s.do(http.MethodPut, "/cart/items/bulk", tok,
		`{"items":[{"cartItemId":`+itoa(ids[0])+`,"quantity":3},{"cartItemId":`+itoa(ids[1])+`,"quantity":0}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, fields = errorFields(t, rec)
	assert.Equal(t, []string{"items[1].quantity"}, fields)

	rec = s.do(http.MethodPut, "/cart/items/bulk", tok,
		`{"items":[{"cartItemId":`+itoa(ids[0])+`,"quantity":3},{"cartItemId":`+itoa(ids[1])+`,"quantity":4}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bulk := decode[struct {
		UpdatedItems []models.CartItem `json:"updatedItems"`
		Count        int               `json:"count"`
	}](t, rec)
	assert.Equal(t, 2, bulk.Count)
	assert.Equal(t, 3, bulk.UpdatedItems[0].Quantity)

	rec = s.do(http.MethodDelete, "/cart/items/bulk", tok, `{"cartItemIds":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/cart/items/bulk", tok, `{"cartItemIds":[`+itoa(ids[0])+`,777]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed := decode[service.BulkRemoveResult](t, rec)
	assert.Equal(t, 1, removed.RemovedCount)
	assert.Equal(t, []uint{777}, removed.NotFoundIDs)

	rec = s.do(http.MethodPost, "/cart/move-to-wishlist", tok, `{"cartItemIds":[`+itoa(ids[1])+`]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[service.MoveResult](t, rec)
	assert.Equal(t, 1, moved.MovedCount)
	assert.NotZero(t, moved.WishlistID)

	rec = s.do(http.MethodGet, "/wishlists", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	lists := decode[[]models.Wishlist](t, rec)
	require.Len(t, lists, 1)
	require.Len(t, lists[0].Items, 1)
	assert.Equal(t, b.ID, lists[0].Items[0].ProductID)

	rec = s.do(http.MethodPost, "/cart/move-to-wishlist", tok, `{"cartItemIds":[1],"wishlistId":9999}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/cart", tok, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCatalog_AdminOnlyWrites(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	body := `{"name":"Blue Mug","price":"9.99","stockQuantity":5}`

	rec := s.do(http.MethodPost, "/catalog/products", s.token(1, tokens.RoleUser), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	code, _ := errorFields(t, rec)
	assert.Equal(t, domain.EFORBIDDEN, code)

	admin := s.token(2, tokens.RoleAdmin)
	rec = s.do(http.MethodPost, "/catalog/products", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[models.Product](t, rec)
	assert.Equal(t, "blue-mug", p.Slug)

	rec = s.do(http.MethodPatch, "/catalog/products/"+itoa(p.ID), admin, `{"stockQuantity":7}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 7, decode[models.Product](t, rec).StockQuantity)

	rec = s.do(http.MethodGet, "/catalog/products/search?q=mug", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[service.ProductPage](t, rec)
	assert.Equal(t, int64(1), page.Meta.Total)

	rec = s.do(http.MethodDelete, "/catalog/products/"+itoa(p.ID), admin, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/catalog/products/"+itoa(p.ID), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/catalog/products?page=1&size=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[service.ProductPage](t, rec).Data)
}

func TestAuth_RegisterLoginLogout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/register", "", `{"username":"bob","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, fields := errorFields(t, rec)
	assert.Equal(t, []string{"password"}, fields)

	rec = s.do(http.MethodPost, "/auth/register", "", `{"username":"bob","password":"long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/register", "", `{"username":"bob","password":"long-enough"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", `{"username":"bob","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", `{"username":"bob","password":"long-enough"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == tokens.AccessCookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	s.echo.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code, out.Body.String())

	rec = s.do(http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWishlists_Create(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.token(1, tokens.RoleUser)

	rec := s.do(http.MethodPost, "/wishlists", tok, `{"name":"Birthday"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Birthday", decode[models.Wishlist](t, rec).Name)

	rec = s.do(http.MethodPost, "/wishlists", tok, `{"name":"Birthday"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/wishlists", tok, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/ready", "", "").Code)

	s.ready = errors.New("db down")
	rec := s.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	code, _ := errorFields(t, rec)
	assert.Equal(t, domain.EUNAVAILABLE, code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := errorFields(t, rec)
	assert.Equal(t, domain.ENOTFOUND, code)
}

func TestOversizedIDs(t *testing.T) {
	t.Parallel()

	const huge = "18446744073709551615"
	s := newTestServer(t)
	tok := s.token(1, tokens.RoleUser)
	p := s.product("mug", "1.00", 10)
	rec := s.do(http.MethodPost, "/cart/items", tok, `{"productId":`+itoa(p.ID)+`,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
	}{
		{"update path id", http.MethodPut, "/cart/items/" + huge, `{"quantity":2}`, tok},
		{"remove path id", http.MethodDelete, "/cart/items/" + huge, "", tok},
		{"add body id", http.MethodPost, "/cart/items", `{"productId":` + huge + `,"quantity":1}`, tok},
		{"product path id", http.MethodGet, "/catalog/products/" + huge, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
			code, _ := errorFields(t, rec)
			assert.Equal(t, domain.ENOTFOUND, code)
		})
	}

	rec = s.do(http.MethodDelete, "/cart/items/bulk", tok, `{"cartItemIds":[`+huge+`]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed := decode[service.BulkRemoveResult](t, rec)
	assert.Zero(t, removed.RemovedCount)
	assert.Equal(t, []uint{^uint(0)}, removed.NotFoundIDs)
}
