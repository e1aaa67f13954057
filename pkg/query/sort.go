package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/motorlot/apiserver/types"
)

// SortKey selects the ordering of a listing view.
type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortPriceAsc   SortKey = "price_asc"
	SortPriceDesc  SortKey = "price_desc"
	SortMileageAsc SortKey = "mileage_asc"
	SortYearDesc   SortKey = "year_desc"
	SortYearAsc    SortKey = "year_asc"
)

// DefaultSort is used when no sort key is chosen.
const DefaultSort = SortNewest

// SortKeys lists every supported sort key.
var SortKeys = []SortKey{SortNewest, SortPriceAsc, SortPriceDesc, SortMileageAsc, SortYearDesc, SortYearAsc}

// ParseSortKey maps raw to a SortKey. Unknown or empty values yield DefaultSort.
func ParseSortKey(raw string) SortKey {
	key := SortKey(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(SortKeys, key) {
		return key
	}
	return DefaultSort
}

var epoch = time.Unix(0, 0)

// Sort returns a copy of ls ordered by key. The sort is stable: listings
// with equal keys keep their relative order.
func Sort(ls []types.Listing, key SortKey) []types.Listing {
	out := slices.Clone(ls)
	if out == nil {
		out = []types.Listing{}
	}
	slices.SortStableFunc(out, comparator(key))
	return out
}

func comparator(key SortKey) func(a, b types.Listing) int {
	switch key {
	case SortPriceAsc:
		return func(a, b types.Listing) int { return cmp.Compare(a.Price, b.Price) }
	case SortPriceDesc:
		return func(a, b types.Listing) int { return cmp.Compare(b.Price, a.Price) }
	case SortMileageAsc:
		return func(a, b types.Listing) int { return cmp.Compare(mileage(a), mileage(b)) }
	case SortYearDesc:
		return func(a, b types.Listing) int { return cmp.Compare(b.Year, a.Year) }
	case SortYearAsc:
		return func(a, b types.Listing) int { return cmp.Compare(a.Year, b.Year) }
	default:
		return func(a, b types.Listing) int { return createdAt(b).Compare(createdAt(a)) }
	}
}

func mileage(l types.Listing) int64 {
	if l.Mileage == nil {
		return 0
	}
	return *l.Mileage
}

// createdAt treats a missing creation time as the Unix epoch so such
// listings sort last under SortNewest.
func createdAt(l types.Listing) time.Time {
	if l.CreatedAt.IsZero() {
		return epoch
	}
	return l.CreatedAt
}
