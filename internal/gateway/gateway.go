// Package gateway is the storefront edge: it rewrites API paths onto the
// backing services and owns the session cart, checkout and the admin list
// views.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/catalog"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	UsersURL         string
	ProductsURL      string
	OrdersURL        string
	HTTP             *http.Client
	Redis            *redis.Client
	Log              *zap.Logger
	CORSAllowOrigins []string
	Now              func() time.Time
}

// ProductSource resolves catalog products for cart adds.
type ProductSource interface {
	ProductsByIDs(ctx context.Context, ids []int64, authorization string) ([]catalog.Product, error)
}

// Gateway holds the clients shared by the gateway-owned handlers.
type Gateway struct {
	Users    *upstream.Client
	Products *upstream.Client
	Orders   *upstream.Client
	Catalog  ProductSource
	Redis    *redis.Client
	Log      *zap.Logger
	Now      func() time.Time
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func NewRouter(d Deps) (http.Handler, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.HTTP == nil {
		d.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	targets := map[string]string{"users": d.UsersURL, "products": d.ProductsURL, "orders": d.OrdersURL}
	parsed := make(map[string]*url.URL, len(targets))
	for name, raw := range targets {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New("gateway: invalid " + name + " url " + raw)
		}
		parsed[name] = u
	}

	products := upstream.NewClient("products", d.ProductsURL, d.HTTP)
	g := &Gateway{
		Users:    upstream.NewClient("users", d.UsersURL, d.HTTP),
		Products: products,
		Orders:   upstream.NewClient("orders", d.OrdersURL, d.HTTP),
		Catalog:  catalog.NewClient(products),
		Redis:    d.Redis,
		Log:      d.Log,
		Now:      d.Now,
	}

	r := httpx.NewRouter(d.Log, CORS(d.CORSAllowOrigins))

	g.Register(r)

	users := NewProxy("users", parsed["users"], nil, d.Log)
	productsProxy := NewProxy("products", parsed["products"], nil, d.Log)
	orders := NewProxy("orders", parsed["orders"], RewritePrefix("/api/orders", "/api/v1/orders"), d.Log)

	mount(r, "/api/auth", users)
	mount(r, "/api/users", users)
	mount(r, "/api/products", productsProxy)
	mount(r, "/api/categories", productsProxy)
	mount(r, "/api/reviews", productsProxy)
	mount(r, "/api/orders", orders)
	return r, nil
}

// Register mounts the endpoints the gateway answers itself.
func (g *Gateway) Register(r chi.Router) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(Session)
		r.Get("/", g.getCart)
		r.Delete("/", g.clearCart)
		r.Post("/items", g.addItem)
		r.Patch("/items/{key}", g.updateItem)
		r.Delete("/items/{key}", g.removeItem)
		r.Post("/checkout", g.checkout)
	})
	r.Route("/api/auth-state/verification", func(r chi.Router) {
		r.Use(Session)
		r.Put("/", g.putVerification)
		r.Get("/", g.getVerification)
		r.Delete("/", g.deleteVerification)
	})
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/views/orders", g.ordersView)
		r.Get("/views/products", g.productsView)
		r.Get("/views/users", g.usersView)
		r.Patch("/orders/{id}/status", g.updateOrderStatus)
	})
}

func mount(r chi.Router, prefix string, h http.Handler) {
	r.Handle(prefix, h)
	r.Handle(prefix+"/*", h)
}
