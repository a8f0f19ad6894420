// Package accounts is a typed client for the users service.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ariefcatur/go-food-orders/internal/upstream"
)

var ErrNoUserID = errors.New("users service returned no id")

type User struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	Address          string `json:"address,omitempty"`
	AccountNonLocked *bool  `json:"accountNonLocked,omitempty"`
}

// Locked treats a missing flag as unlocked.
func (u User) Locked() bool { return u.AccountNonLocked != nil && !*u.AccountNonLocked }

type Client struct{ c *upstream.Client }

func NewClient(c *upstream.Client) *Client { return &Client{c: c} }

// Me returns the user that owns authorization.
func (cc *Client) Me(ctx context.Context, authorization string) (User, error) {
	h := http.Header{}
	h.Set("Authorization", authorization)

	var u User
	if err := cc.c.DoJSON(ctx, http.MethodGet, "/api/users/me", "", h, nil, &u); err != nil {
		return User{}, fmt.Errorf("current user: %w", err)
	}
	if u.ID == 0 {
		return User{}, ErrNoUserID
	}
	return u, nil
}

// CurrentUserID is Me reduced to the id.
func (cc *Client) CurrentUserID(ctx context.Context, authorization string) (int64, error) {
	u, err := cc.Me(ctx, authorization)
	return u.ID, err
}
