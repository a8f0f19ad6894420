package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-food-orders/internal/upstream"
)

// placeholderKey is the value shipped in sample settings files.
const placeholderKey = "your-sendgrid-api-key"

// Sender delivers a rendered message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// Configured reports whether apiKey is a real SendGrid key.
func Configured(apiKey string) bool {
	k := strings.TrimSpace(apiKey)
	return k != "" && k != placeholderKey
}

// SendGrid talks to the v3 mail/send endpoint.
type SendGrid struct {
	APIKey string
	Client *upstream.Client
}

func NewSendGrid(apiKey, url string, httpClient *http.Client) *SendGrid {
	return &SendGrid{APIKey: apiKey, Client: upstream.NewClient("sendgrid", url, httpClient)}
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (s *SendGrid) Send(ctx context.Context, m Message) (string, error) {
	body, err := json.Marshal(sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: m.To}}}},
		From:             sgAddress{Email: m.From},
		Subject:          m.Subject,
		Content: []sgContent{
			{Type: "text/plain", Value: m.Text},
			{Type: "text/html", Value: m.HTML},
		},
	})
	if err != nil {
		return "", err
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.APIKey)
	h.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(ctx, http.MethodPost, "", "", bytes.NewReader(body), h)
	if err != nil {
		return "", fmt.Errorf("sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &upstream.StatusError{Upstream: "sendgrid", Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Header.Get("X-Message-Id"), nil
}
