package query

import (
	"strings"

	"github.com/motorlot/apiserver/types"
)

// Criteria holds the facet filters a user can apply to a listing view.
// Every field is optional: an empty string or nil pointer imposes no
// constraint. A listing matches when it satisfies all present fields.
type Criteria struct {
	Keyword      string `json:"keyword,omitempty"`
	Make         string `json:"make,omitempty"`
	MinPrice     *int64 `json:"min_price,omitempty"`
	MaxPrice     *int64 `json:"max_price,omitempty"`
	MinYear      *int   `json:"min_year,omitempty"`
	MaxYear      *int   `json:"max_year,omitempty"`
	Condition    string `json:"condition,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	FuelType     string `json:"fuel_type,omitempty"`
	BodyType     string `json:"body_type,omitempty"`
	MinMileage   *int64 `json:"min_mileage,omitempty"`
	MaxMileage   *int64 `json:"max_mileage,omitempty"`
	Color        string `json:"color,omitempty"`
}

// Predicate is a single facet constraint.
type Predicate func(types.Listing) bool

// Predicates returns one predicate per present field of c.
func (c Criteria) Predicates() []Predicate {
	var preds []Predicate

	if kw := normalize(c.Keyword); kw != "" {
		preds = append(preds, func(l types.Listing) bool {
			return containsFold(l.Title, kw) || containsFold(l.Make, kw) || containsFold(l.Model, kw)
		})
	}
	if mk := normalize(c.Make); mk != "" {
		preds = append(preds, func(l types.Listing) bool { return containsFold(l.Make, mk) })
	}
	if color := normalize(c.Color); color != "" {
		preds = append(preds, func(l types.Listing) bool { return containsFold(l.Color, color) })
	}

	if v := normalize(c.Condition); v != "" {
		preds = append(preds, func(l types.Listing) bool { return equalFold(l.Condition, v) })
	}
	if v := normalize(c.Transmission); v != "" {
		preds = append(preds, func(l types.Listing) bool { return equalFold(l.Transmission, v) })
	}
	if v := normalize(c.FuelType); v != "" {
		preds = append(preds, func(l types.Listing) bool { return equalFold(l.FuelType, v) })
	}
	if v := normalize(c.BodyType); v != "" {
		preds = append(preds, func(l types.Listing) bool { return equalFold(l.BodyType, v) })
	}

	if c.MinPrice != nil {
		lo := *c.MinPrice
		preds = append(preds, func(l types.Listing) bool { return l.Price >= lo })
	}
	if c.MaxPrice != nil {
		hi := *c.MaxPrice
		preds = append(preds, func(l types.Listing) bool { return l.Price <= hi })
	}
	if c.MinYear != nil {
		lo := *c.MinYear
		preds = append(preds, func(l types.Listing) bool { return l.Year >= lo })
	}
	if c.MaxYear != nil {
		hi := *c.MaxYear
		preds = append(preds, func(l types.Listing) bool { return l.Year <= hi })
	}
	// Listings without a mileage fail both mileage bounds.
	if c.MinMileage != nil {
		lo := *c.MinMileage
		preds = append(preds, func(l types.Listing) bool { return l.Mileage != nil && *l.Mileage >= lo })
	}
	if c.MaxMileage != nil {
		hi := *c.MaxMileage
		preds = append(preds, func(l types.Listing) bool { return l.Mileage != nil && *l.Mileage <= hi })
	}

	return preds
}

// Match reports whether l satisfies every present field of c.
func (c Criteria) Match(l types.Listing) bool {
	for _, p := range c.Predicates() {
		if !p(l) {
			return false
		}
	}
	return true
}

// IsZero reports whether c imposes no constraint.
func (c Criteria) IsZero() bool {
	return len(c.Predicates()) == 0
}

// Equal reports whether c and o describe the same constraints.
func (c Criteria) Equal(o Criteria) bool {
	return normalize(c.Keyword) == normalize(o.Keyword) &&
		normalize(c.Make) == normalize(o.Make) &&
		normalize(c.Color) == normalize(o.Color) &&
		normalize(c.Condition) == normalize(o.Condition) &&
		normalize(c.Transmission) == normalize(o.Transmission) &&
		normalize(c.FuelType) == normalize(o.FuelType) &&
		normalize(c.BodyType) == normalize(o.BodyType) &&
		equalPtr(c.MinPrice, o.MinPrice) &&
		equalPtr(c.MaxPrice, o.MaxPrice) &&
		equalPtr(c.MinYear, o.MinYear) &&
		equalPtr(c.MaxYear, o.MaxYear) &&
		equalPtr(c.MinMileage, o.MinMileage) &&
		equalPtr(c.MaxMileage, o.MaxMileage)
}

// Filter returns the listings of ls matching c, preserving order.
// ls is not modified.
func Filter(ls []types.Listing, c Criteria) []types.Listing {
	preds := c.Predicates()
	out := make([]types.Listing, 0, len(ls))
next:
	for _, l := range ls {
		for _, p := range preds {
			if !p(l) {
				continue next
			}
		}
		out = append(out, l)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// containsFold expects needle to be normalized already.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func equalFold(value, normalized string) bool {
	return normalize(value) == normalized
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
