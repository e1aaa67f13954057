package query

import (
	"testing"
	"time"

	"github.com/motorlot/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func prices(ls []types.Listing) []int64 {
	out := make([]int64, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Price)
	}
	return out
}

func TestSortPriceAsc(t *testing.T) {
	in := []types.Listing{{ID: "a", Price: 500000}, {ID: "b", Price: 200000}, {ID: "c", Price: 800000}}

	got := Sort(in, SortPriceAsc)

	assert.Equal(t, []int64{200000, 500000, 800000}, prices(got))
	assert.Equal(t, []int64{500000, 200000, 800000}, prices(in), "input must not be reordered")
}

func TestSortNewest(t *testing.T) {
	in := []types.Listing{
		{ID: "jan", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "unknown"},
		{ID: "jun", CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	assert.Equal(t, []string{"jun", "jan", "unknown"}, ids(Sort(in, SortNewest)))
}

func TestSortKeys(t *testing.T) {
	in := []types.Listing{
		{ID: "a", Price: 300, Year: 2019, Mileage: ptr[int64](5000)},
		{ID: "b", Price: 100, Year: 2022},
		{ID: "c", Price: 200, Year: 2015, Mileage: ptr[int64](90000)},
	}

	tests := []struct {
		key  SortKey
		want []string
	}{
		{key: SortPriceAsc, want: []string{"b", "c", "a"}},
		{key: SortPriceDesc, want: []string{"a", "c", "b"}},
		{key: SortMileageAsc, want: []string{"b", "a", "c"}},
		{key: SortYearDesc, want: []string{"b", "a", "c"}},
		{key: SortYearAsc, want: []string{"c", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Sort(in, tt.key)))
		})
	}
}

func TestSortIsStable(t *testing.T) {
	in := []types.Listing{
		{ID: "first", Price: 100},
		{ID: "cheap", Price: 50},
		{ID: "second", Price: 100},
		{ID: "third", Price: 100},
	}

	assert.Equal(t, []string{"cheap", "first", "second", "third"}, ids(Sort(in, SortPriceAsc)))
	assert.Equal(t, []string{"first", "second", "third", "cheap"}, ids(Sort(in, SortPriceDesc)))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortPriceDesc, ParseSortKey("price_desc"))
	assert.Equal(t, SortYearAsc, ParseSortKey(" YEAR_ASC "))
	assert.Equal(t, SortNewest, ParseSortKey(""))
	assert.Equal(t, SortNewest, ParseSortKey("cheapest"))
}

func TestSortEmpty(t *testing.T) {
	got := Sort(nil, SortNewest)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
