package query

import (
	"testing"

	"github.com/motorlot/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func TestFilterSingleFields(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "empty criteria", criteria: Criteria{}, want: []string{"corolla", "hilux", "civic", "leaf", "model3"}},
		{name: "keyword matches title", criteria: Criteria{Keyword: "type r"}, want: []string{"civic"}},
		{name: "keyword matches make", criteria: Criteria{Keyword: "TOYOTA"}, want: []string{"corolla", "hilux"}},
		{name: "keyword matches model", criteria: Criteria{Keyword: "leaf"}, want: []string{"leaf"}},
		{name: "keyword no match", criteria: Criteria{Keyword: "lambo"}, want: []string{}},
		{name: "make substring", criteria: Criteria{Make: "toy"}, want: []string{"corolla", "hilux"}},
		{name: "color substring", criteria: Criteria{Color: "red"}, want: []string{"civic", "model3"}},
		{name: "body type exact", criteria: Criteria{BodyType: "sedan"}, want: []string{"corolla", "model3"}},
		{name: "body type is not substring", criteria: Criteria{BodyType: "Hatch"}, want: []string{}},
		{name: "condition exact", criteria: Criteria{Condition: "excellent"}, want: []string{"civic", "model3"}},
		{name: "transmission exact", criteria: Criteria{Transmission: "MANUAL"}, want: []string{"hilux", "civic"}},
		{name: "fuel exact", criteria: Criteria{FuelType: "Electric"}, want: []string{"leaf", "model3"}},
		{name: "min price inclusive", criteria: Criteria{MinPrice: ptr[int64](2500000)}, want: []string{"civic", "leaf", "model3"}},
		{name: "max price inclusive", criteria: Criteria{MaxPrice: ptr[int64](1500000)}, want: []string{"corolla", "hilux"}},
		{name: "year range", criteria: Criteria{MinYear: ptr(2018), MaxYear: ptr(2021)}, want: []string{"corolla", "civic"}},
		{name: "min mileage excludes missing", criteria: Criteria{MinMileage: ptr[int64](0)}, want: []string{"corolla", "hilux", "civic", "model3"}},
		{name: "max mileage", criteria: Criteria{MaxMileage: ptr[int64](20000)}, want: []string{"civic", "model3"}},
		{name: "whitespace only is absent", criteria: Criteria{Make: "   "}, want: []string{"corolla", "hilux", "civic", "leaf", "model3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(catalog(), tt.criteria)))
		})
	}
}

func TestFilterIsConjunctionOfPredicates(t *testing.T) {
	combined := Criteria{
		Make:         "toyota",
		MaxPrice:     ptr[int64](1000000),
		Transmission: "automatic",
	}
	parts := []Criteria{
		{Make: "toyota"},
		{MaxPrice: ptr[int64](1000000)},
		{Transmission: "automatic"},
	}

	for _, l := range catalog() {
		want := true
		for _, part := range parts {
			want = want && part.Match(l)
		}
		assert.Equal(t, want, combined.Match(l), l.ID)
	}

	assert.Equal(t, []string{"corolla"}, ids(Filter(catalog(), combined)))
}

func TestFilterOrderIndependent(t *testing.T) {
	a := Filter(Filter(catalog(), Criteria{FuelType: "electric"}), Criteria{MinYear: ptr(2023)})
	b := Filter(Filter(catalog(), Criteria{MinYear: ptr(2023)}), Criteria{FuelType: "electric"})
	c := Filter(catalog(), Criteria{FuelType: "electric", MinYear: ptr(2023)})

	assert.Equal(t, ids(a), ids(b))
	assert.Equal(t, ids(a), ids(c))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	in := catalog()
	_ = Filter(in, Criteria{Make: "honda"})
	assert.Len(t, in, 5)
	assert.Equal(t, "corolla", in[0].ID)
}

func TestCriteriaEqual(t *testing.T) {
	assert.True(t, Criteria{Make: "Toyota"}.Equal(Criteria{Make: " toyota "}))
	assert.True(t, Criteria{MinPrice: ptr[int64](5)}.Equal(Criteria{MinPrice: ptr[int64](5)}))
	assert.False(t, Criteria{MinPrice: ptr[int64](5)}.Equal(Criteria{}))
	assert.False(t, Criteria{Color: "red"}.Equal(Criteria{Color: "blue"}))
}

func TestCriteriaIsZero(t *testing.T) {
	assert.True(t, Criteria{}.IsZero())
	assert.True(t, Criteria{Keyword: " "}.IsZero())
	assert.False(t, Criteria{MaxYear: ptr(2020)}.IsZero())
}

func TestPredicatesOnePerField(t *testing.T) {
	c := Criteria{Keyword: "x", MinPrice: ptr[int64](1), MaxMileage: ptr[int64](2)}
	assert.Len(t, c.Predicates(), 3)

	l := types.Listing{Title: "x", Price: 1}
	assert.False(t, c.Match(l), "missing mileage fails a mileage ceiling")
}
