package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// PendingVerification drives the OTP countdown shown after registration.
// It lives next to the cart because both are per-session client state.
type PendingVerification struct {
	Email  string    `json:"email"`
	Expiry time.Time `json:"expiry"`
}

// Remaining is the countdown left at now, never negative.
func (p PendingVerification) Remaining(now time.Time) time.Duration {
	if d := p.Expiry.Sub(now); d > 0 {
		return d
	}
	return 0
}

type VerificationStore struct {
	Redis *redis.Client
}

func (s VerificationStore) key(session string) string {
	return fmt.Sprintf(redisx.KeyPendingVerification, session)
}

func (s VerificationStore) Save(ctx context.Context, session string, p PendingVerification) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ttl := time.Until(p.Expiry)
	if ttl <= 0 {
		return s.Delete(ctx, session)
	}
	return s.Redis.Set(ctx, s.key(session), b, ttl).Err()
}

// Load returns ok=false when nothing is pending.
func (s VerificationStore) Load(ctx context.Context, session string) (PendingVerification, bool, error) {
	var p PendingVerification
	b, err := s.Redis.Get(ctx, s.key(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, true, nil
}

func (s VerificationStore) Delete(ctx context.Context, session string) error {
	return s.Redis.Del(ctx, s.key(session)).Err()
}
