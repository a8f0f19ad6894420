// Package upstream holds the HTTP plumbing shared by everything that calls
// another service: a base-URL client, header hygiene and correlation ids.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	Name    string
	BaseURL *url.URL
	HTTP    *http.Client
}

func NewClient(name, baseURL string, httpClient *http.Client) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		panic(fmt.Sprintf("invalid %s base url %q: %v", name, baseURL, err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Name: name, BaseURL: u, HTTP: httpClient}
}

// Do sends method+path to the upstream, copying end-to-end headers from
// inHeaders and stamping the correlation id found in ctx.
func (c *Client) Do(ctx context.Context, method, path, rawQuery string, body io.Reader, inHeaders http.Header) (*http.Response, error) {
	rel := &url.URL{Path: path, RawQuery: rawQuery}
	u := c.BaseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	CopyHeaders(req.Header, inHeaders)
	if cid := GetCorrelationID(ctx); cid != "" {
		req.Header.Set(HeaderCorrelationID, cid)
	}
	return c.HTTP.Do(req)
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Upstream string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Upstream, e.Code, e.Body)
}

// DoJSON encodes in (when non-nil), sends it, and decodes a 2xx body into out.
func (c *Client) DoJSON(ctx context.Context, method, path, rawQuery string, headers http.Header, in, out any) error {
	var body io.Reader
	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
		h.Set("Content-Type", "application/json")
	}
	h.Set("Accept", "application/json")

	resp, err := c.Do(ctx, method, path, rawQuery, body, h)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Upstream: c.Name, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.Name, err)
	}
	return nil
}

func CopyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if IsHopByHop(k) || strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// IsHopByHop reports the RFC 7230 connection-scoped headers.
func IsHopByHop(k string) bool {
	switch http.CanonicalHeaderKey(k) {
	case "Connection", "Proxy-Connection", "Keep-Alive",
		"Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade":
		return true
	default:
		return false
	}
}
