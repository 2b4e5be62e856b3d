package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopcart/internal/models"
)

type esRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeES answers the handful of endpoints the index uses.
type fakeES struct {
	mu       sync.Mutex
	requests []esRequest
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, esRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":7,"name":"Red mug","price":"9.99","stockQuantity":3}}]}}`)
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/404"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	case r.Method == http.MethodDelete:
		_, _ = io.WriteString(w, `{"result":"deleted"}`)
	case r.Method == http.MethodPut || r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeES) last() esRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestIndex(t *testing.T) (*Index, *fakeES) {
	t.Helper()

	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), Config{URL: srv.URL})
	require.NoError(t, err)
	return NewIndex(client, "products"), fake
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	idx, fake := newTestIndex(t)
	total, items, err := idx.Search(context.Background(), "mug", 0, 20)
	require.NoError(t, err)

	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Red mug", items[0].Name)
	assert.Equal(t, "9.99", items[0].Price.String())

	req := fake.last()
	assert.Equal(t, "/products/_search", req.Path)
	var q map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &q))
	assert.EqualValues(t, 20, q["size"])
	assert.Contains(t, req.Body, `"archived":false`)
}

func TestIndex_PutAndDelete(t *testing.T) {
	t.Parallel()

	idx, fake := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, &models.Product{ID: 12, Name: "Teapot"}))
	req := fake.last()
	assert.Equal(t, "/products/_doc/12", req.Path)
	assert.Contains(t, req.Body, `"name":"Teapot"`)

	require.NoError(t, idx.Delete(ctx, 12))
	assert.Equal(t, http.MethodDelete, fake.last().Method)

	require.NoError(t, idx.Delete(ctx, 404))
}

func TestNewClient_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(context.Background(), Config{URL: url})
	assert.Error(t, err)
}
