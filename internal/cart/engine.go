// Package cart keeps a customer's cart as a durable collection of line
// items keyed by product, size and toppings.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type NoticeKind string

const (
	NoticeAdded   NoticeKind = "added"
	NoticeUpdated NoticeKind = "updated"
)

// Action is the follow-up link carried by a notice.
type Action struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Notice is the user-facing message emitted on every add.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Key         string     `json:"key"`
	Message     string     `json:"message"`
	ProductName string     `json:"productName"`
	SizeName    string     `json:"sizeName"`
	Quantity    int        `json:"quantity"`
	Image       string     `json:"image,omitempty"`
	Action      Action     `json:"action"`
}

var viewCart = Action{Label: "View cart", Path: "/cart"}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Engine owns one cart. All mutation goes through Add, UpdateQuantity,
// Remove and Clear, each of which writes through to the Store.
type Engine struct {
	mu       sync.Mutex
	items    []LineItem
	store    Store
	notifier Notifier
	log      *zap.Logger
}

func NewEngine(store Store, notifier Notifier, log *zap.Logger) *Engine {
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Notice) {})
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, notifier: notifier, log: log}
}

// Load hydrates the engine from its store. A corrupt payload yields an
// empty cart rather than an error.
func (e *Engine) Load(ctx context.Context) error {
	items, err := e.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			e.log.Warn("discarding unreadable cart", zap.Error(err))
			items = nil
		} else {
			return fmt.Errorf("load cart: %w", err)
		}
	}
	e.mu.Lock()
	e.items = items
	e.mu.Unlock()
	return nil
}

// Items returns a copy of the current line items.
func (e *Engine) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LineItem, len(e.items))
	copy(out, e.items)
	return out
}

func (e *Engine) TotalItems() int { return TotalItems(e.Items()) }

func (e *Engine) TotalPrice() decimal.Decimal { return TotalPrice(e.Items()) }

// Add merges into an existing line with the same key or appends a new one.
func (e *Engine) Add(ctx context.Context, p Product, qty int, opts Options) (Notice, error) {
	if opts.Size.ID == "" {
		opts.Size = SizeSmall
	}
	key := Key(p.ID, opts)

	merged := false
	err := e.apply(ctx, func(items []LineItem) []LineItem {
		merged = false
		next := make([]LineItem, 0, len(items)+1)
		for _, it := range items {
			if it.Key == key {
				it.Quantity += qty
				merged = true
			}
			next = append(next, it)
		}
		if !merged {
			next = append(next, newLineItem(p, qty, opts))
		}
		return next
	})
	if err != nil {
		return Notice{}, err
	}

	n := Notice{
		Kind:        NoticeAdded,
		Key:         key,
		Message:     "Added to cart!",
		ProductName: p.Name,
		SizeName:    opts.Size.Name,
		Quantity:    qty,
		Image:       p.Image,
		Action:      viewCart,
	}
	if merged {
		n.Kind = NoticeUpdated
		n.Message = "Quantity updated!"
	}
	e.notifier.Notify(ctx, n)
	return n, nil
}

// UpdateQuantity sets the quantity; anything ≤ 0 removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, key string, qty int) error {
	if qty <= 0 {
		return e.Remove(ctx, key)
	}
	return e.apply(ctx, func(items []LineItem) []LineItem {
		next := make([]LineItem, len(items))
		copy(next, items)
		for i := range next {
			if next[i].Key == key {
				next[i].Quantity = qty
			}
		}
		return next
	})
}

func (e *Engine) Remove(ctx context.Context, key string) error {
	return e.apply(ctx, func(items []LineItem) []LineItem {
		next := make([]LineItem, 0, len(items))
		for _, it := range items {
			if it.Key != key {
				next = append(next, it)
			}
		}
		return next
	})
}

// Clear empties the cart and deletes the persisted copy.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Delete(ctx); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	e.items = nil
	return nil
}

// apply computes the next state with fn and persists it. Stores that
// implement Updater run fn against their latest copy, so writers holding
// separate engines for the same cart do not overwrite each other. The
// in-memory state is only replaced once the write succeeded.
func (e *Engine) apply(ctx context.Context, fn func([]LineItem) []LineItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if u, ok := e.store.(Updater); ok {
		next, err := u.Update(ctx, fn)
		if err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		e.items = next
		return nil
	}
	next := fn(e.items)
	if err := e.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	e.items = next
	return nil
}
