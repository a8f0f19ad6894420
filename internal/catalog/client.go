// Package catalog is a typed client for the products service.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	StockQuantity int             `json:"stockQuantity"`
	CategoryID    int64           `json:"categoryId,omitempty"`
	CategoryName  string          `json:"categoryName,omitempty"`
}

type Client struct{ c *upstream.Client }

func NewClient(c *upstream.Client) *Client { return &Client{c: c} }

// ProductsByIDs resolves ids in one batch call, forwarding the caller's
// Authorization header. Duplicate ids are requested once.
func (cc *Client) ProductsByIDs(ctx context.Context, ids []int64, authorization string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[int64]bool, len(ids))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	h := http.Header{}
	if authorization != "" {
		h.Set("Authorization", authorization)
	}
	q := url.Values{"ids": {strings.Join(parts, ",")}}

	var out []Product
	if err := cc.c.DoJSON(ctx, http.MethodGet, "/api/products/batch", q.Encode(), h, nil, &out); err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	return out, nil
}
