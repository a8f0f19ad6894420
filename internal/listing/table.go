package listing

import (
	"context"
	"sync"
)

// Fetcher loads up to limit records in one request.
type Fetcher[T any] func(ctx context.Context, limit int) ([]T, error)

// Table is the state behind one admin list page: the fetched rows, the
// active query, and loading/error flags tracked apart from the rows.
type Table[T any] struct {
	mu      sync.Mutex
	schema  Schema[T]
	rows    []T
	query   Query
	loading bool
	err     error
}

func NewTable[T any](schema Schema[T], pageSize int, defaultSort string, dir Direction) *Table[T] {
	return &Table[T]{
		schema: schema,
		query:  Query{Status: StatusAll, SortKey: defaultSort, Dir: dir, PageSize: pageSize},
	}
}

// Refresh refetches and resets to the first page. A failed fetch drops the
// previous rows so stale data is never shown next to an error.
func (t *Table[T]) Refresh(ctx context.Context, fetch Fetcher[T]) error {
	t.mu.Lock()
	t.loading = true
	t.err = nil
	t.mu.Unlock()

	rows, err := fetch(ctx, FetchLimit)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = false
	t.query.Page = 0
	if err != nil {
		t.err = err
		t.rows = nil
		return err
	}
	t.rows = rows
	return nil
}

func (t *Table[T]) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

func (t *Table[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Table[T]) SetSearch(q string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q != t.query.Search {
		t.query.Search = q
		t.query.Page = 0
	}
}

func (t *Table[T]) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if status == "" {
		status = StatusAll
	}
	if status != t.query.Status {
		t.query.Status = status
		t.query.Page = 0
	}
}

// ToggleSort selects key ascending, or flips the direction when key is
// already active and ascending.
func (t *Table[T]) ToggleSort(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.query.SortKey == key && t.query.Dir == Asc {
		t.query.Dir = Desc
	} else {
		t.query.Dir = Asc
	}
	t.query.SortKey = key
}

// SetSort sets key and direction explicitly.
func (t *Table[T]) SetSort(key string, dir Direction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.query.SortKey = key
	t.query.Dir = dir
}

// SetPage moves to page, clamped to the pages the current filters yield.
func (t *Table[T]) SetPage(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	size := t.query.PageSize
	if size <= 0 {
		size = 10
	}
	n := len(Filter(t.rows, t.schema, t.query.Status, t.query.Search))
	if last := (n+size-1)/size - 1; page > last {
		page = last
	}
	if page < 0 {
		page = 0
	}
	t.query.Page = page
}

func (t *Table[T]) Query() Query {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.query
}

// Count reports how many fetched rows carry status (ALL counts every row).
func (t *Table[T]) Count(status string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(Filter(t.rows, t.schema, status, ""))
}

// View recomputes the visible page from the current rows and query.
func (t *Table[T]) View() Page[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Apply(t.rows, t.schema, t.query)
}
