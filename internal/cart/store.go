package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// ErrCorrupt is returned by Load when the persisted payload cannot be
// decoded.
var ErrCorrupt = errors.New("cart payload is corrupt")

// ErrConflict is returned by Update when the cart kept changing underneath
// it for every retry.
var ErrConflict = errors.New("cart changed concurrently")

// Store persists the whole line-item array as a single entry.
type Store interface {
	Load(ctx context.Context) ([]LineItem, error)
	Save(ctx context.Context, items []LineItem) error
	Delete(ctx context.Context) error
}

// Updater is implemented by stores that can apply a change against the
// latest persisted copy atomically. fn may run more than once.
type Updater interface {
	Update(ctx context.Context, fn func([]LineItem) []LineItem) ([]LineItem, error)
}

func decode(b []byte) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return items, nil
}

// FileStore keeps the cart in a JSON file.
type FileStore struct {
	Path string
}

func (s FileStore) Load(_ context.Context) ([]LineItem, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func (s FileStore) Save(_ context.Context, items []LineItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s FileStore) Delete(_ context.Context) error {
	err := os.Remove(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisStore keeps one session's cart under cart:{session}.
type RedisStore struct {
	Redis   *redis.Client
	Session string
}

func (s RedisStore) key() string { return fmt.Sprintf(redisx.KeyCart, s.Session) }

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) ([]LineItem, error) {
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func (s RedisStore) Load(ctx context.Context) ([]LineItem, error) {
	return load(ctx, s.Redis, s.key())
}

const maxUpdateRetries = 100

// Update runs fn inside WATCH/MULTI on the cart key and retries when another
// writer got there first. An unreadable payload is treated as empty.
func (s RedisStore) Update(ctx context.Context, fn func([]LineItem) []LineItem) ([]LineItem, error) {
	key := s.key()
	var out []LineItem
	txf := func(tx *redis.Tx) error {
		items, err := load(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrCorrupt) {
			return err
		}
		next := fn(items)
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, redisx.TTLCart)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.Redis.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, ErrConflict
}

func (s RedisStore) Save(ctx context.Context, items []LineItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, s.key(), b, redisx.TTLCart).Err()
}

func (s RedisStore) Delete(ctx context.Context) error {
	return s.Redis.Del(ctx, s.key()).Err()
}
