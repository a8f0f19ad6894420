package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsByIDsBatchesAndForwardsAuth(t *testing.T) {
	var gotIDs, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/batch", r.URL.Path)
		gotIDs = r.URL.Query().Get("ids")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Milk tea","price":30000,"image":"t.png","rating":4.5},{"id":2,"name":"Flan","price":"20000.50"}]`))
	}))
	defer srv.Close()

	c := NewClient(upstream.NewClient("products", srv.URL, nil))
	got, err := c.ProductsByIDs(context.Background(), []int64{1, 2, 1}, "Bearer t")
	require.NoError(t, err)

	assert.Equal(t, "1,2", gotIDs)
	assert.Equal(t, "Bearer t", gotAuth)
	require.Len(t, got, 2)
	assert.Equal(t, "Milk tea", got[0].Name)
	assert.True(t, decimal.RequireFromString("20000.50").Equal(got[1].Price))
}

func TestProductsByIDsEmptySkipsCall(t *testing.T) {
	c := NewClient(upstream.NewClient("products", "http://127.0.0.1:1", nil))
	got, err := c.ProductsByIDs(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProductsByIDsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(upstream.NewClient("products", srv.URL, nil))
	_, err := c.ProductsByIDs(context.Background(), []int64{5}, "")
	var se *upstream.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}
