package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"go.uber.org/zap"
)

// RewritePrefix maps from+rest onto to+rest.
func RewritePrefix(from, to string) func(string) string {
	return func(p string) string {
		if p == from || strings.HasPrefix(p, from+"/") {
			return to + strings.TrimPrefix(p, from)
		}
		return p
	}
}

// LoginRedirect is where the storefront sends a caller whose session ended.
func LoginRedirect(returnPath string) string {
	if returnPath == "" {
		returnPath = "/"
	}
	return "/login?returnUrl=" + url.QueryEscape(returnPath)
}

// returnPath is the page the caller was on, taken from the Referer.
func returnPath(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Path == "" {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

// AuthError is the body sent instead of a bare upstream 401.
type AuthError struct {
	Error         string `json:"error"`
	Redirect      string `json:"redirect"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func writeAuthError(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusUnauthorized, AuthError{
		Error:         "session expired",
		Redirect:      LoginRedirect(returnPath(r)),
		CorrelationID: upstream.GetCorrelationID(r.Context()),
	})
}

// NewProxy forwards to target. ReverseProxy drops hop-by-hop headers on
// both legs; the correlation id travels on the outbound request.
func NewProxy(name string, target *url.URL, rewrite func(string) string, log *zap.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			if rewrite != nil {
				pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + rewrite(pr.In.URL.Path)
				pr.Out.URL.RawPath = ""
			}
			pr.SetXForwarded()
			if cid := upstream.GetCorrelationID(pr.In.Context()); cid != "" {
				pr.Out.Header.Set(upstream.HeaderCorrelationID, cid)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode != http.StatusUnauthorized || strings.HasPrefix(resp.Request.URL.Path, "/api/auth/") {
				return nil
			}
			body, err := json.Marshal(AuthError{
				Error:         "session expired",
				Redirect:      LoginRedirect(returnPath(resp.Request)),
				CorrelationID: resp.Request.Header.Get(upstream.HeaderCorrelationID),
			})
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			resp.ContentLength = int64(len(body))
			resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
			resp.Header.Set("Content-Type", "application/json")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("proxy upstream failed", zap.String("upstream", name),
				zap.String("path", r.URL.Path), zap.Error(err))
			httpx.WriteError(w, r, http.StatusBadGateway, name+" service unavailable")
		},
	}
}
