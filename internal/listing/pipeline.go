// Package listing turns a bulk-fetched record set into a filtered, sorted
// and locally paginated view.
package listing

import (
	"sort"
	"strings"
)

// StatusAll disables the status filter.
const StatusAll = "ALL"

// FetchLimit bounds the single bulk fetch a table performs.
const FetchLimit = 1000

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Query is the user-controlled part of a view.
type Query struct {
	Status   string
	Search   string
	SortKey  string
	Dir      Direction
	Page     int
	PageSize int
}

// SortValue extracts a comparable value for one column. Numeric columns
// report numeric=true and compare by num; text columns compare by text.
type SortValue[T any] func(T) (num float64, text string, numeric bool)

func Number[T any](f func(T) float64) SortValue[T] {
	return func(v T) (float64, string, bool) { return f(v), "", true }
}

func Text[T any](f func(T) string) SortValue[T] {
	return func(v T) (float64, string, bool) { return 0, f(v), false }
}

// Schema tells the pipeline how to read a record type.
type Schema[T any] struct {
	Status       func(T) string
	SearchFields func(T) []string
	SortKeys     map[string]SortValue[T]
}

// Page is the visible slice plus pagination metadata.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	Total      int  `json:"total"`
	Empty      bool `json:"empty"`
}

// Filter keeps records matching the status (unless ALL or empty) and
// containing the search text, case-insensitively, in any search field.
func Filter[T any](records []T, s Schema[T], status, search string) []T {
	q := strings.ToLower(strings.TrimSpace(search))
	out := make([]T, 0, len(records))
	for _, r := range records {
		if status != "" && status != StatusAll && s.Status != nil && s.Status(r) != status {
			continue
		}
		if q != "" && !matches(s, r, q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches[T any](s Schema[T], r T, q string) bool {
	if s.SearchFields == nil {
		return true
	}
	for _, f := range s.SearchFields(r) {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Sort orders records by a single key. Unknown keys leave the order as is.
// Ties keep their input order.
func Sort[T any](records []T, s Schema[T], key string, dir Direction) []T {
	out := make([]T, len(records))
	copy(out, records)
	val, ok := s.SortKeys[key]
	if !ok {
		return out
	}
	desc := dir == Desc
	sort.SliceStable(out, func(i, j int) bool {
		an, as, numeric := val(out[i])
		bn, bs, _ := val(out[j])
		if numeric {
			if desc {
				return an > bn
			}
			return an < bn
		}
		if desc {
			return as > bs
		}
		return as < bs
	})
	return out
}

// Paginate slices records into fixed-size pages. Out-of-range pages are
// clamped to the last page.
func Paginate[T any](records []T, page, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := len(records)
	pages := (total + size - 1) / size
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * size
	end := start + size
	if end > total {
		end = total
	}
	items := make([]T, 0, end-start)
	if start < end {
		items = append(items, records[start:end]...)
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		Total:      total,
		Empty:      total == 0,
	}
}

// Apply runs filter, sort and paginate in that order.
func Apply[T any](records []T, s Schema[T], q Query) Page[T] {
	filtered := Filter(records, s, q.Status, q.Search)
	sorted := Sort(filtered, s, q.SortKey, q.Dir)
	return Paginate(sorted, q.Page, q.PageSize)
}
