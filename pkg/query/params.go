package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names understood by ParseState and produced by Values.
const (
	ParamKeyword      = "keyword"
	ParamMake         = "make"
	ParamBody         = "body"
	ParamBodyType     = "body_type"
	ParamMinPrice     = "min_price"
	ParamMaxPrice     = "max_price"
	ParamMinYear      = "min_year"
	ParamMaxYear      = "max_year"
	ParamCondition    = "condition"
	ParamTransmission = "transmission"
	ParamFuelType     = "fuel_type"
	ParamMinMileage   = "min_mileage"
	ParamMaxMileage   = "max_mileage"
	ParamColor        = "color"
	ParamSort         = "sort"
	ParamPage         = "page"
	ParamPageSize     = "page_size"
)

// StateFromValues seeds a view state from inbound link parameters. Only
// keyword, make and body are read, so brand and body-type pages can link
// into a pre-filtered view. Seeding happens once; later state changes are
// not written back to the URL.
func StateFromValues(v url.Values) State {
	st := NewState()
	st.Criteria.Keyword = strings.TrimSpace(v.Get(ParamKeyword))
	st.Criteria.Make = strings.TrimSpace(v.Get(ParamMake))
	st.Criteria.BodyType = strings.TrimSpace(v.Get(ParamBody))
	return st
}

// ParseState reads the full view state from request parameters. It starts
// from StateFromValues and adds every other criteria field, the sort key,
// page and page size. Malformed numbers are reported as errors; unknown
// sort keys and page sizes fall back to their defaults.
func ParseState(v url.Values) (State, error) {
	st := StateFromValues(v)
	c := &st.Criteria

	if body := strings.TrimSpace(v.Get(ParamBodyType)); body != "" {
		c.BodyType = body
	}
	c.Condition = strings.TrimSpace(v.Get(ParamCondition))
	c.Transmission = strings.TrimSpace(v.Get(ParamTransmission))
	c.FuelType = strings.TrimSpace(v.Get(ParamFuelType))
	c.Color = strings.TrimSpace(v.Get(ParamColor))

	var err error
	if c.MinPrice, err = optionalInt64(v, ParamMinPrice); err != nil {
		return State{}, err
	}
	if c.MaxPrice, err = optionalInt64(v, ParamMaxPrice); err != nil {
		return State{}, err
	}
	if c.MinYear, err = optionalInt(v, ParamMinYear); err != nil {
		return State{}, err
	}
	if c.MaxYear, err = optionalInt(v, ParamMaxYear); err != nil {
		return State{}, err
	}
	if c.MinMileage, err = optionalInt64(v, ParamMinMileage); err != nil {
		return State{}, err
	}
	if c.MaxMileage, err = optionalInt64(v, ParamMaxMileage); err != nil {
		return State{}, err
	}

	st.Sort = ParseSortKey(v.Get(ParamSort))

	if raw := strings.TrimSpace(v.Get(ParamPageSize)); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return State{}, errors.New("invalid page_size")
		}
		st.PageSize = NormalizePageSize(size)
	}
	if raw := strings.TrimSpace(v.Get(ParamPage)); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return State{}, errors.New("invalid page")
		}
		st.Page = page
	}

	return st, nil
}

// Values encodes st as query parameters accepted by ParseState.
// Empty fields and defaults are omitted.
func (st State) Values() url.Values {
	v := url.Values{}
	c := st.Criteria
	setString(v, ParamKeyword, c.Keyword)
	setString(v, ParamMake, c.Make)
	setString(v, ParamBody, c.BodyType)
	setString(v, ParamCondition, c.Condition)
	setString(v, ParamTransmission, c.Transmission)
	setString(v, ParamFuelType, c.FuelType)
	setString(v, ParamColor, c.Color)
	setInt64(v, ParamMinPrice, c.MinPrice)
	setInt64(v, ParamMaxPrice, c.MaxPrice)
	setInt(v, ParamMinYear, c.MinYear)
	setInt(v, ParamMaxYear, c.MaxYear)
	setInt64(v, ParamMinMileage, c.MinMileage)
	setInt64(v, ParamMaxMileage, c.MaxMileage)

	if st.Sort != "" && st.Sort != DefaultSort {
		v.Set(ParamSort, string(st.Sort))
	}
	if st.PageSize != 0 && st.PageSize != DefaultPageSize {
		v.Set(ParamPageSize, strconv.Itoa(st.PageSize))
	}
	if st.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(st.Page))
	}
	return v
}

func optionalInt64(v url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &n, nil
}

func optionalInt(v url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &n, nil
}

func setString(v url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		v.Set(key, value)
	}
}

func setInt64(v url.Values, key string, value *int64) {
	if value != nil {
		v.Set(key, strconv.FormatInt(*value, 10))
	}
}

func setInt(v url.Values, key string, value *int) {
	if value != nil {
		v.Set(key, strconv.Itoa(*value))
	}
}
