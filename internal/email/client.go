package email

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-food-orders/internal/upstream"
)

// Client calls a deployed email function by its full URL.
type Client struct{ c *upstream.Client }

func NewClient(functionURL string, httpClient *http.Client) *Client {
	return &Client{c: upstream.NewClient("email", functionURL, httpClient)}
}

func (cl *Client) Send(ctx context.Context, req Request) (Response, error) {
	var out Response
	err := cl.c.DoJSON(ctx, http.MethodPost, "", "", nil, req, &out)
	return out, err
}
