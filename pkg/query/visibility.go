package query

import (
	"time"

	"github.com/motorlot/apiserver/types"
)

// SoldVisibilityWindow is how long a sold listing stays in public views
// after SoldAt.
const SoldVisibilityWindow = 24 * time.Hour

// Visible reports whether l may appear in public views at time now.
// A listing is visible when it is approved, or when it is sold and was
// sold less than SoldVisibilityWindow ago. A sold listing without SoldAt
// is treated as expired.
func Visible(l types.Listing, now time.Time) bool {
	switch l.Status {
	case types.StatusApproved:
		return true
	case types.StatusSold:
		if l.SoldAt == nil || l.SoldAt.IsZero() {
			return false
		}
		return now.Sub(*l.SoldAt) < SoldVisibilityWindow
	default:
		return false
	}
}

// FilterVisible returns the listings of ls that are visible at now.
// ls is not modified.
func FilterVisible(ls []types.Listing, now time.Time) []types.Listing {
	out := make([]types.Listing, 0, len(ls))
	for _, l := range ls {
		if Visible(l, now) {
			out = append(out, l)
		}
	}
	return out
}
