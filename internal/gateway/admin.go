package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-food-orders/internal/accounts"
	"github.com/ariefcatur/go-food-orders/internal/catalog"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/ariefcatur/go-food-orders/internal/listing"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	ordersPageSize   = 10
	productsPageSize = 8
	usersPageSize    = 10
)

// OrderRow is an order as listed on the admin page, with its controls.
type OrderRow struct {
	orders.Order
	Actions []orders.Action `json:"actions"`
}

// AdminView is one rendered admin list page.
type AdminView[T any] struct {
	listing.Page[T]
	Status string         `json:"status"`
	Search string         `json:"q"`
	Sort   string         `json:"sort"`
	Dir    string         `json:"dir"`
	Counts map[string]int `json:"counts,omitempty"`
}

func idText(id int64) string { return strconv.FormatInt(id, 10) }

var orderSchema = listing.Schema[OrderRow]{
	Status: func(o OrderRow) string { return string(o.Status) },
	SearchFields: func(o OrderRow) []string {
		f := []string{idText(o.ID), "user #" + idText(o.UserID), o.CustomerName}
		for _, it := range o.Items {
			f = append(f, it.ProductName)
		}
		return f
	},
	SortKeys: map[string]listing.SortValue[OrderRow]{
		"id":           listing.Number(func(o OrderRow) float64 { return float64(o.ID) }),
		"createdAt":    listing.Number(func(o OrderRow) float64 { return float64(o.CreatedAt.UnixMilli()) }),
		"totalAmount":  listing.Number(func(o OrderRow) float64 { return o.TotalAmount.InexactFloat64() }),
		"status":       listing.Text(func(o OrderRow) string { return string(o.Status) }),
		"customerName": listing.Text(func(o OrderRow) string { return strings.ToLower(o.CustomerName) }),
	},
}

// Products filter on category; the status slot carries the category id.
var productSchema = listing.Schema[catalog.Product]{
	Status: func(p catalog.Product) string { return idText(p.CategoryID) },
	SearchFields: func(p catalog.Product) []string {
		return []string{idText(p.ID), p.Name, p.CategoryName}
	},
	SortKeys: map[string]listing.SortValue[catalog.Product]{
		"id":            listing.Number(func(p catalog.Product) float64 { return float64(p.ID) }),
		"name":          listing.Text(func(p catalog.Product) string { return strings.ToLower(p.Name) }),
		"price":         listing.Number(func(p catalog.Product) float64 { return p.Price.InexactFloat64() }),
		"stockQuantity": listing.Number(func(p catalog.Product) float64 { return float64(p.StockQuantity) }),
	},
}

// Users filter on role.
var userSchema = listing.Schema[accounts.User]{
	Status: func(u accounts.User) string { return u.Role },
	SearchFields: func(u accounts.User) []string {
		return []string{idText(u.ID), u.Name, u.Email, u.PhoneNumber}
	},
	SortKeys: map[string]listing.SortValue[accounts.User]{
		"id":    listing.Number(func(u accounts.User) float64 { return float64(u.ID) }),
		"name":  listing.Text(func(u accounts.User) string { return strings.ToLower(u.Name) }),
		"email": listing.Text(func(u accounts.User) string { return strings.ToLower(u.Email) }),
		"role":  listing.Text(func(u accounts.User) string { return u.Role }),
	},
}

// pageFetcher bulk-loads one pageable upstream collection.
func pageFetcher[T any](c *upstream.Client, path string, extra url.Values, authz string) listing.Fetcher[T] {
	return func(ctx context.Context, limit int) ([]T, error) {
		q := url.Values{"page": {"0"}, "size": {strconv.Itoa(limit)}}
		for k, v := range extra {
			q[k] = v
		}
		h := http.Header{}
		if authz != "" {
			h.Set("Authorization", authz)
		}
		var page orders.Page[T]
		if err := c.DoJSON(ctx, http.MethodGet, path, q.Encode(), h, nil, &page); err != nil {
			return nil, err
		}
		return page.Content, nil
	}
}

// buildTable fetches the rows and applies the caller's query parameters.
func buildTable[T any](r *http.Request, schema listing.Schema[T], size int, sortKey string, dir listing.Direction, fetch listing.Fetcher[T]) (*listing.Table[T], error) {
	t := listing.NewTable(schema, size, sortKey, dir)
	if err := t.Refresh(r.Context(), fetch); err != nil {
		return nil, err
	}
	q := r.URL.Query()
	t.SetStatus(q.Get("status"))
	t.SetSearch(q.Get("q"))
	if key := q.Get("sort"); key != "" {
		d := listing.Asc
		if strings.EqualFold(q.Get("dir"), string(listing.Desc)) {
			d = listing.Desc
		}
		t.SetSort(key, d)
	}
	if key := q.Get("toggle"); key != "" {
		t.ToggleSort(key)
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil {
		t.SetPage(p)
	}
	return t, nil
}

func newAdminView[T any](t *listing.Table[T]) AdminView[T] {
	q := t.Query()
	return AdminView[T]{Page: t.View(), Status: q.Status, Search: q.Search, Sort: q.SortKey, Dir: string(q.Dir)}
}

// upstreamMessage prefers the upstream's {"error": ...} text.
func upstreamMessage(se *upstream.StatusError) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if se.Body != "" {
		return se.Body
	}
	return http.StatusText(se.Code)
}

func (g *Gateway) upstreamFailed(w http.ResponseWriter, r *http.Request, err error) {
	var se *upstream.StatusError
	switch {
	case errors.As(err, &se) && se.Code == http.StatusUnauthorized:
		writeAuthError(w, r)
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		httpx.WriteError(w, r, se.Code, upstreamMessage(se))
	default:
		g.Log.Error("admin view upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteError(w, r, http.StatusBadGateway, "upstream unavailable")
	}
}

func (g *Gateway) ordersView(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	fetch := func(ctx context.Context, limit int) ([]OrderRow, error) {
		list, err := pageFetcher[orders.Order](g.Orders, "/api/v1/orders", nil, authz)(ctx, limit)
		if err != nil {
			return nil, err
		}
		rows := make([]OrderRow, 0, len(list))
		for _, o := range list {
			rows = append(rows, OrderRow{Order: o, Actions: orders.NextActions(o.Status)})
		}
		return rows, nil
	}
	t, err := buildTable(r, orderSchema, ordersPageSize, "createdAt", listing.Desc, fetch)
	if err != nil {
		g.upstreamFailed(w, r, err)
		return
	}
	view := newAdminView(t)
	view.Counts = map[string]int{listing.StatusAll: t.Count(listing.StatusAll)}
	for _, s := range orders.AllStatuses {
		view.Counts[string(s)] = t.Count(string(s))
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (g *Gateway) productsView(w http.ResponseWriter, r *http.Request) {
	fetch := pageFetcher[catalog.Product](g.Products, "/api/products", nil, r.Header.Get("Authorization"))
	t, err := buildTable(r, productSchema, productsPageSize, "id", listing.Desc, fetch)
	if err != nil {
		g.upstreamFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newAdminView(t))
}

func (g *Gateway) usersView(w http.ResponseWriter, r *http.Request) {
	fetch := pageFetcher[accounts.User](g.Users, "/api/users", url.Values{"sort": {"id,desc"}}, r.Header.Get("Authorization"))
	t, err := buildTable(r, userSchema, usersPageSize, "id", listing.Desc, fetch)
	if err != nil {
		g.upstreamFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newAdminView(t))
}

type AdminStatusReq struct {
	Status  string `json:"status"`
	Confirm bool   `json:"confirm"`
}

// updateOrderStatus applies an admin action. The current status is read
// from the orders service; nothing is changed locally before it answers.
func (g *Gateway) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req AdminStatusReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Confirm {
		httpx.WriteError(w, r, http.StatusBadRequest, "status change must be confirmed")
		return
	}
	target, err := orders.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h := http.Header{}
	if authz := r.Header.Get("Authorization"); authz != "" {
		h.Set("Authorization", authz)
	}
	path := fmt.Sprintf("/api/v1/orders/%d/status", id)

	var current struct {
		Status orders.Status `json:"status"`
	}
	if err := g.Orders.DoJSON(r.Context(), http.MethodGet, path, "", h, nil, &current); err != nil {
		g.upstreamFailed(w, r, err)
		return
	}
	if !orders.Offers(current.Status, target) {
		httpx.WriteError(w, r, http.StatusConflict,
			fmt.Sprintf("cannot move order from %s to %s", current.Status, target))
		return
	}

	var updated orders.Order
	if err := g.Orders.DoJSON(r.Context(), http.MethodPatch, path, "", h, map[string]string{"status": string(target)}, &updated); err != nil {
		g.upstreamFailed(w, r, err)
		return
	}
	g.Log.Info("order status changed", zap.Int64("order_id", id),
		zap.String("from", string(current.Status)), zap.String("to", string(target)))
	httpx.WriteJSON(w, http.StatusOK, OrderRow{Order: updated, Actions: orders.NextActions(updated.Status)})
}
