package cart

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	items   []LineItem
	saves   int
	deletes int
	saveErr error
	loadErr error
}

func (m *memStore) Load(context.Context) ([]LineItem, error) { return m.items, m.loadErr }

func (m *memStore) Save(_ context.Context, items []LineItem) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.items = items
	return nil
}

func (m *memStore) Delete(context.Context) error {
	m.deletes++
	m.items = nil
	return nil
}

var (
	tea   = Product{ID: 7, Name: "Milk tea", Price: decimal.NewFromInt(30000)}
	pearl = Toppings[0]
	chees = Toppings[3]
)

func newTestEngine(t *testing.T) (*Engine, *memStore, *[]Notice) {
	t.Helper()
	store := &memStore{}
	var notices []Notice
	e := NewEngine(store, NotifierFunc(func(_ context.Context, n Notice) {
		notices = append(notices, n)
	}), nil)
	require.NoError(t, e.Load(context.Background()))
	return e, store, &notices
}

func TestKeySortsToppings(t *testing.T) {
	a := Key(7, Options{Size: SizeMedium, Toppings: []Topping{chees, pearl}})
	b := Key(7, Options{Size: SizeMedium, Toppings: []Topping{pearl, chees}})
	assert.Equal(t, "7-M-cheese,pearl", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "7-S-", Key(7, DefaultOptions()))
}

func TestAddSameConfigurationMerges(t *testing.T) {
	ctx := context.Background()
	e, store, notices := newTestEngine(t)
	opts := Options{Size: SizeLarge, Toppings: []Topping{pearl}}

	_, err := e.Add(ctx, tea, 2, opts)
	require.NoError(t, err)
	n, err := e.Add(ctx, tea, 3, Options{Size: SizeLarge, Toppings: []Topping{pearl}})
	require.NoError(t, err)

	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, NoticeUpdated, n.Kind)
	require.Len(t, *notices, 2)
	assert.Equal(t, NoticeAdded, (*notices)[0].Kind)
	assert.Equal(t, "/cart", (*notices)[0].Action.Path)
	assert.Equal(t, 2, store.saves)
	assert.Len(t, store.items, 1)
}

func TestAddDifferentConfigurationIsDistinct(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Add(ctx, tea, 1, Options{Size: SizeSmall})
	require.NoError(t, err)
	_, err = e.Add(ctx, tea, 1, Options{Size: SizeMedium})
	require.NoError(t, err)
	_, err = e.Add(ctx, tea, 1, Options{Size: SizeMedium, Toppings: []Topping{pearl}})
	require.NoError(t, err)

	assert.Len(t, e.Items(), 3)
	assert.Equal(t, 3, e.TotalItems())
}

func TestNewLineItemPricingAndName(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Add(ctx, tea, 1, Options{Size: SizeLarge, Toppings: []Topping{pearl, chees}, Note: "less ice"})
	require.NoError(t, err)

	it := e.Items()[0]
	// 30000 + 10000 + 5000 + 10000
	assert.True(t, decimal.NewFromInt(55000).Equal(it.UnitPrice), it.UnitPrice.String())
	assert.Equal(t, "Milk tea (Large (L) + Black pearl, Cheese foam) [Note: less ice]", it.Name)
	assert.Equal(t, []string{"Black pearl", "Cheese foam"}, it.Toppings)
	assert.Equal(t, "Large (L)", it.Size)

	assert.Equal(t, "Milk tea", DisplayName(tea, DefaultOptions()))
}

func TestUpdateQuantityToZeroRemoves(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	n, err := e.Add(ctx, tea, 2, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, e.UpdateQuantity(ctx, n.Key, 4))
	assert.Equal(t, 4, e.Items()[0].Quantity)

	require.NoError(t, e.UpdateQuantity(ctx, n.Key, 0))
	assert.Empty(t, e.Items())

	_, err = e.Add(ctx, tea, 1, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, e.UpdateQuantity(ctx, n.Key, -3))
	assert.Empty(t, e.Items())
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	_, err := e.Add(ctx, tea, 1, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, e.Remove(ctx, "nope"))
	assert.Len(t, e.Items(), 1)
}

func TestTotalsExample(t *testing.T) {
	items := []LineItem{
		{Key: "a", Quantity: 2, UnitPrice: decimal.NewFromInt(50000)},
		{Key: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(120000)},
	}
	assert.Equal(t, 3, TotalItems(items))
	assert.True(t, decimal.NewFromInt(220000).Equal(TotalPrice(items)))
}

func TestClearDeletesPersistedCopy(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newTestEngine(t)
	_, err := e.Add(ctx, tea, 1, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, e.Clear(ctx))
	assert.Empty(t, e.Items())
	assert.Equal(t, 1, store.deletes)
	assert.True(t, e.TotalPrice().IsZero())
}

func TestFailedSaveKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	e, store, notices := newTestEngine(t)
	store.saveErr = errors.New("disk full")

	_, err := e.Add(ctx, tea, 1, DefaultOptions())
	require.Error(t, err)
	assert.Empty(t, e.Items())
	assert.Empty(t, *notices)
}

func TestLoadCorruptPayloadStartsEmpty(t *testing.T) {
	store := &memStore{loadErr: ErrCorrupt}
	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background()))
	assert.Empty(t, e.Items())
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := FileStore{Path: filepath.Join(t.TempDir(), "carts", "cart.json")}

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(ctx))
	_, err := e.Add(ctx, tea, 2, Options{Size: SizeMedium})
	require.NoError(t, err)

	reloaded := NewEngine(store, nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	require.Len(t, reloaded.Items(), 1)
	assert.Equal(t, 2, reloaded.Items()[0].Quantity)

	require.NoError(t, reloaded.Clear(ctx))
	items, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)
}
