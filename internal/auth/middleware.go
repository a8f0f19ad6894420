package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

type ctxKey struct{}

// Principal is the authenticated caller.
type Principal struct {
	Claims        *Claims
	Authorization string // raw header, forwarded to other services
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// Authenticate rejects requests without a valid bearer token with 401.
func Authenticate(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tok, err := BearerToken(header)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := v.Parse(tok)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := WithPrincipal(r.Context(), Principal{Claims: claims, Authorization: header})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, ErrMissingToken.Error())
				return
			}
			if !p.Claims.HasRole(role) {
				deny(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireKey guards internal endpoints with a shared key header.
func RequireKey(header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || r.Header.Get(header) != key {
				deny(w, http.StatusUnauthorized, "invalid internal key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
