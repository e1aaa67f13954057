package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFromValuesSeedsLinkParams(t *testing.T) {
	v := url.Values{}
	v.Set("keyword", " corolla ")
	v.Set("make", "Toyota")
	v.Set("body", "Sedan")
	v.Set("color", "red")
	v.Set("page", "3")

	st := StateFromValues(v)

	assert.Equal(t, "corolla", st.Criteria.Keyword)
	assert.Equal(t, "Toyota", st.Criteria.Make)
	assert.Equal(t, "Sedan", st.Criteria.BodyType)
	assert.Empty(t, st.Criteria.Color, "only link params are seeded")
	assert.Equal(t, 1, st.Page)
}

func TestParseState(t *testing.T) {
	v, err := url.ParseQuery("make=Honda&body_type=SUV&min_price=100&max_price=900&min_year=2010&max_year=2020" +
		"&min_mileage=5&max_mileage=50000&condition=Good&transmission=Manual&fuel_type=Diesel&color=blue" +
		"&sort=price_desc&page=2&page_size=24")
	require.NoError(t, err)

	st, err := ParseState(v)
	require.NoError(t, err)

	c := st.Criteria
	assert.Equal(t, "Honda", c.Make)
	assert.Equal(t, "SUV", c.BodyType)
	assert.Equal(t, int64(100), *c.MinPrice)
	assert.Equal(t, int64(900), *c.MaxPrice)
	assert.Equal(t, 2010, *c.MinYear)
	assert.Equal(t, 2020, *c.MaxYear)
	assert.Equal(t, int64(5), *c.MinMileage)
	assert.Equal(t, int64(50000), *c.MaxMileage)
	assert.Equal(t, "Good", c.Condition)
	assert.Equal(t, "Manual", c.Transmission)
	assert.Equal(t, "Diesel", c.FuelType)
	assert.Equal(t, "blue", c.Color)
	assert.Equal(t, SortPriceDesc, st.Sort)
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, 24, st.PageSize)
}

func TestParseStateDefaultsAndErrors(t *testing.T) {
	st, err := ParseState(url.Values{"sort": {"bogus"}, "page_size": {"13"}})
	require.NoError(t, err)
	assert.Equal(t, SortNewest, st.Sort)
	assert.Equal(t, DefaultPageSize, st.PageSize)
	assert.Equal(t, 1, st.Page)

	for _, key := range []string{"min_price", "max_year", "max_mileage", "page", "page_size"} {
		_, err := ParseState(url.Values{key: {"abc"}})
		assert.Error(t, err, key)
	}
}

func TestStateValuesRoundTrip(t *testing.T) {
	st := NewState()
	st.SetCriteria(Criteria{Make: "Kia", BodyType: "SUV", MinYear: ptr(2019), MaxPrice: ptr[int64](5000000)})
	st.SetSort(SortYearDesc)
	st.SetPageSize(48)
	st.SetPage(2)

	parsed, err := ParseState(st.Values())
	require.NoError(t, err)

	assert.True(t, st.Criteria.Equal(parsed.Criteria))
	assert.Equal(t, st.Sort, parsed.Sort)
	assert.Equal(t, st.PageSize, parsed.PageSize)
	assert.Equal(t, st.Page, parsed.Page)
}

func TestValuesOmitsDefaults(t *testing.T) {
	assert.Empty(t, NewState().Values())
}
