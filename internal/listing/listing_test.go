package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID      int
	Status  string
	Total   float64
	Created time.Time
	Items   []string
}

var rowSchema = Schema[row]{
	Status: func(r row) string { return r.Status },
	SearchFields: func(r row) []string {
		f := []string{fmt.Sprint(r.ID), fmt.Sprintf("user #%d", r.ID)}
		return append(f, r.Items...)
	},
	SortKeys: map[string]SortValue[row]{
		"id":          Number(func(r row) float64 { return float64(r.ID) }),
		"totalAmount": Number(func(r row) float64 { return r.Total }),
		"createdAt":   Number(func(r row) float64 { return float64(r.Created.UnixMilli()) }),
		"status":      Text(func(r row) string { return r.Status }),
	},
}

func fixture() []row {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []row
	add := func(n int, status string) {
		for i := 0; i < n; i++ {
			id := len(rows) + 1
			rows = append(rows, row{
				ID:      id,
				Status:  status,
				Total:   float64(id * 1000),
				Created: base.Add(time.Duration(id) * time.Hour),
				Items:   []string{"Milk tea"},
			})
		}
	}
	add(10, "PENDING")
	add(3, "CONFIRMED")
	add(2, "CANCELLED")
	rows[4].Items = []string{"Mango smoothie"}
	return rows
}

func TestFilterByStatus(t *testing.T) {
	rows := fixture()
	assert.Len(t, Filter(rows, rowSchema, "CONFIRMED", ""), 3)
	assert.Len(t, Filter(rows, rowSchema, StatusAll, ""), 15)
	assert.Len(t, Filter(rows, rowSchema, "", ""), 15)
	assert.Empty(t, Filter(rows, rowSchema, "SHIPPING", ""))
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	rows := fixture()
	got := Filter(rows, rowSchema, StatusAll, "MANGO")
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].ID)

	assert.Len(t, Filter(rows, rowSchema, "PENDING", "user #1"), 2) // 1 and 10
}

func TestSortDirections(t *testing.T) {
	rows := fixture()
	asc := Sort(rows, rowSchema, "totalAmount", Asc)
	desc := Sort(rows, rowSchema, "totalAmount", Desc)
	require.Len(t, asc, len(desc))
	for i := range asc {
		assert.Equal(t, asc[i].ID, desc[len(desc)-1-i].ID)
	}
	assert.Equal(t, 1, rows[0].ID, "input must not be reordered")
}

func TestSortTiesKeepInputOrder(t *testing.T) {
	rows := fixture()
	got := Sort(rows, rowSchema, "status", Asc)
	var pendingIDs []int
	for _, r := range got {
		if r.Status == "PENDING" {
			pendingIDs = append(pendingIDs, r.ID)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, pendingIDs)
	assert.Equal(t, "CANCELLED", got[0].Status)
}

func TestSortUnknownKeyKeepsOrder(t *testing.T) {
	rows := fixture()
	got := Sort(rows, rowSchema, "nope", Desc)
	assert.Equal(t, rows, got)
}

func TestPaginate(t *testing.T) {
	rows := fixture()

	p := Paginate(rows, 1, 10)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 15, p.Total)

	p = Paginate(rows, 9, 10)
	assert.Equal(t, 1, p.Page)

	p = Paginate([]row{}, 0, 10)
	assert.True(t, p.Empty)
	assert.Empty(t, p.Items)
	assert.Equal(t, 0, p.TotalPages)
}

func TestApplyOrder(t *testing.T) {
	p := Apply(fixture(), rowSchema, Query{
		Status: "PENDING", SortKey: "createdAt", Dir: Desc, PageSize: 3,
	})
	require.Len(t, p.Items, 3)
	assert.Equal(t, []int{10, 9, 8}, []int{p.Items[0].ID, p.Items[1].ID, p.Items[2].ID})
	assert.Equal(t, 4, p.TotalPages)
}

func okFetch(rows []row) Fetcher[row] {
	return func(_ context.Context, limit int) ([]row, error) {
		if len(rows) > limit {
			rows = rows[:limit]
		}
		return rows, nil
	}
}

func TestTableResetsPageOnSearchAndStatus(t *testing.T) {
	tbl := NewTable(rowSchema, 10, "createdAt", Desc)
	require.NoError(t, tbl.Refresh(context.Background(), okFetch(fixture())))

	tbl.SetPage(1)
	assert.Equal(t, 1, tbl.View().Page)

	tbl.SetSearch("milk")
	assert.Equal(t, 0, tbl.Query().Page)

	tbl.SetPage(1)
	tbl.SetStatus("CONFIRMED")
	assert.Equal(t, 0, tbl.Query().Page)
	assert.Len(t, tbl.View().Items, 3)

	assert.Equal(t, 3, tbl.Count("CONFIRMED"))
	assert.Equal(t, 15, tbl.Count(StatusAll))
}

func TestTableSetPageClamps(t *testing.T) {
	tbl := NewTable(rowSchema, 10, "createdAt", Desc)
	require.NoError(t, tbl.Refresh(context.Background(), okFetch(fixture())))

	tbl.SetPage(5)
	assert.Equal(t, 1, tbl.Query().Page)
	tbl.SetPage(-2)
	assert.Equal(t, 0, tbl.Query().Page)

	tbl.SetStatus("CONFIRMED")
	tbl.SetPage(1)
	assert.Equal(t, 0, tbl.Query().Page)

	empty := NewTable(rowSchema, 10, "createdAt", Desc)
	empty.SetPage(3)
	assert.Equal(t, 0, empty.Query().Page)
}

func TestTableToggleSort(t *testing.T) {
	tbl := NewTable(rowSchema, 20, "createdAt", Desc)
	require.NoError(t, tbl.Refresh(context.Background(), okFetch(fixture())))
	assert.Equal(t, 15, tbl.View().Items[0].ID)

	tbl.ToggleSort("createdAt")
	assert.Equal(t, Asc, tbl.Query().Dir)
	assert.Equal(t, 1, tbl.View().Items[0].ID)

	tbl.ToggleSort("createdAt")
	assert.Equal(t, Desc, tbl.Query().Dir)

	tbl.ToggleSort("totalAmount")
	assert.Equal(t, "totalAmount", tbl.Query().SortKey)
	assert.Equal(t, Asc, tbl.Query().Dir)
}

func TestTableFailedRefreshClearsRows(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(rowSchema, 10, "createdAt", Desc)
	require.NoError(t, tbl.Refresh(ctx, okFetch(fixture())))
	require.NotEmpty(t, tbl.View().Items)

	boom := errors.New("upstream down")
	err := tbl.Refresh(ctx, func(context.Context, int) ([]row, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, tbl.Err(), boom)
	assert.False(t, tbl.Loading())
	assert.True(t, tbl.View().Empty)
}

func TestTableRefreshUsesFetchLimit(t *testing.T) {
	var got int
	tbl := NewTable(rowSchema, 10, "", Asc)
	require.NoError(t, tbl.Refresh(context.Background(), func(_ context.Context, limit int) ([]row, error) {
		got = limit
		return nil, nil
	}))
	assert.Equal(t, FetchLimit, got)
}
