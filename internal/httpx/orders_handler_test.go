package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-food-orders/internal/auth"
	"github.com/ariefcatur/go-food-orders/internal/catalog"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/ariefcatur/go-food-orders/internal/orders/orderstest"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCatalog map[int64]catalog.Product

func (s stubCatalog) ProductsByIDs(_ context.Context, ids []int64, _ string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubUsers struct {
	id  int64
	err error
}

func (s stubUsers) CurrentUserID(context.Context, string) (int64, error) { return s.id, s.err }

type fixture struct {
	router   http.Handler
	repo     *orderstest.Repo
	verifier *auth.Verifier
}

func newFixture(t *testing.T, users UserResolver) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := orderstest.NewRepo()
	svc := &orders.Service{
		Repo: repo,
		Catalog: stubCatalog{
			1: {ID: 1, Name: "Milk tea", Price: decimal.NewFromInt(30000)},
			2: {ID: 2, Name: "Flan", Price: decimal.NewFromInt(20000)},
		},
		Redis: rdb,
		Log:   zap.NewNop(),
	}
	v := auth.NewVerifier("test-secret", "")
	h := &OrdersHandler{Service: svc, Verifier: v, Users: users, InternalKey: "k1", Log: zap.NewNop()}

	r := NewRouter(zap.NewNop())
	h.Register(r)
	return fixture{router: r, repo: repo, verifier: v}
}

func (f fixture) token(t *testing.T, sub string, uid int64, roles ...string) string {
	t.Helper()
	tok, err := f.verifier.Issue(sub, uid, roles, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (f fixture) do(method, path, authz string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func validCreate() orders.CreateInput {
	return orders.CreateInput{
		CustomerName:    "Ana",
		ShippingAddress: "Jl. Mawar 1",
		PhoneNumber:     "0812",
		Items:           []orders.ItemInput{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodPost, "/api/v1/orders/", f.token(t, "ana@example.com", 7), validCreate(), nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var o orders.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))
	assert.Equal(t, int64(7), o.UserID)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, orders.PaymentMethodCOD, o.PaymentMethod)
	assert.True(t, decimal.NewFromInt(80000).Equal(o.TotalAmount))
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	f := newFixture(t, nil)
	authz := f.token(t, "ana@example.com", 7)
	hdr := map[string]string{HeaderIdempotencyKey: "abc"}

	first := f.do(http.MethodPost, "/api/v1/orders/", authz, validCreate(), hdr)
	require.Equal(t, http.StatusCreated, first.Code)
	second := f.do(http.MethodPost, "/api/v1/orders/", authz, validCreate(), hdr)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	p, err := f.repo.ListAll(context.Background(), orders.PageRequest{Page: 0, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.TotalElements)
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t, nil)
	authz := f.token(t, "ana@example.com", 7)

	missing := validCreate()
	missing.CustomerName = ""
	unknown := validCreate()
	unknown.Items = []orders.ItemInput{{ProductID: 99, Quantity: 1}}

	cases := []struct {
		name  string
		authz string
		body  any
		want  int
	}{
		{"no token", "", validCreate(), http.StatusUnauthorized},
		{"missing field", authz, missing, http.StatusBadRequest},
		{"unknown product", authz, unknown, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(http.MethodPost, "/api/v1/orders/", tc.authz, tc.body, nil)
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
		})
	}
}

func TestUserIDFallsBackToUsersService(t *testing.T) {
	f := newFixture(t, stubUsers{id: 42})
	rr := f.do(http.MethodPost, "/api/v1/orders/", f.token(t, "ana@example.com", 0), validCreate(), nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var o orders.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))
	assert.Equal(t, int64(42), o.UserID)

	f = newFixture(t, stubUsers{err: errors.New("down")})
	rr = f.do(http.MethodGet, "/api/v1/orders/my", f.token(t, "ana@example.com", 0), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetOrderOnlyOwner(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.Put(orders.Order{ID: 5, UserID: 7, Status: orders.StatusPending})

	rr := f.do(http.MethodGet, "/api/v1/orders/5", f.token(t, "a@x", 7), nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/api/v1/orders/5", f.token(t, "b@x", 8), nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, "/api/v1/orders/abc", f.token(t, "a@x", 7), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListMinePaged(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 12; i++ {
		f.repo.Put(orders.Order{ID: i, UserID: 7, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	f.repo.Put(orders.Order{ID: 13, UserID: 8, CreatedAt: base})

	rr := f.do(http.MethodGet, "/api/v1/orders/my?page=1", f.token(t, "a@x", 7), nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var p orders.Page[orders.Order]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, int64(12), p.TotalElements)
	assert.Equal(t, 2, p.TotalPages)
	require.Len(t, p.Content, 2)
	assert.Equal(t, int64(2), p.Content[0].ID)
	assert.True(t, p.Last)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/api/v1/orders/", f.token(t, "a@x", 7), nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, "/api/v1/orders/", f.token(t, "admin@x", 1, auth.RoleAdmin), nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminUpdateStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.Put(orders.Order{ID: 5, UserID: 7, Status: orders.StatusPending})
	admin := f.token(t, "admin@x", 1, auth.RoleAdmin)

	rr := f.do(http.MethodPatch, "/api/v1/orders/5/status", admin, UpdateStatusReq{Status: "confirmed"}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(http.MethodGet, "/api/v1/orders/5/status", admin, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st StatusResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, orders.StatusConfirmed, st.Status)
	assert.NotEmpty(t, st.Actions)

	rr = f.do(http.MethodPatch, "/api/v1/orders/5/status", admin, UpdateStatusReq{Status: "PENDING"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodPatch, "/api/v1/orders/5/status", admin, UpdateStatusReq{Status: "LOST"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodPatch, "/api/v1/orders/99/status", admin, UpdateStatusReq{Status: "CONFIRMED"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecordPaymentNeedsInternalKey(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.Put(orders.Order{ID: 5, UserID: 7, Status: orders.StatusPending, PaymentStatus: orders.PaymentUnpaid})
	body := RecordPaymentReq{PaymentStatus: orders.PaymentPaid, TransactionID: "txn-1"}

	rr := f.do(http.MethodPatch, "/api/v1/orders/5/payment", "", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodPatch, "/api/v1/orders/5/payment", "", body, map[string]string{HeaderInternalKey: "k1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	o, err := f.repo.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "txn-1", o.TransactionID)
	assert.NotNil(t, o.PaidAt)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestDashboardEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.Put(orders.Order{ID: 1, UserID: 7, TotalAmount: decimal.NewFromInt(100), CreatedAt: time.Now().UTC()})

	rr := f.do(http.MethodGet, "/api/v1/orders/admin/dashboard", f.token(t, "admin@x", 1, auth.RoleAdmin), nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var st orders.DashboardStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, int64(1), st.TotalOrders)
	assert.Len(t, st.RecentSales, 1)
}

func TestRepositoryFailureIs500(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.Err = errors.New("db down")
	rr := f.do(http.MethodGet, "/api/v1/orders/my", f.token(t, "a@x", 7), nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
	assert.NotEmpty(t, body.CorrelationID)
}
