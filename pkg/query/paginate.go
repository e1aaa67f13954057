package query

import (
	"slices"

	"github.com/motorlot/apiserver/types"
)

// DefaultPageSize is used when no page size, or an unsupported one, is requested.
const DefaultPageSize = 12

// PageSizes lists the supported page sizes.
var PageSizes = []int{12, 24, 48}

// Page is one slice of a listing view.
type Page struct {
	Items      []types.Listing `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// NormalizePageSize returns size when it is supported and DefaultPageSize otherwise.
func NormalizePageSize(size int) int {
	if slices.Contains(PageSizes, size) {
		return size
	}
	return DefaultPageSize
}

// TotalPages returns ceil(total/size).
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate returns page number page (1-based) of ls. Requests outside
// [1, TotalPages] return an empty Items slice rather than failing.
func Paginate(ls []types.Listing, page, size int) Page {
	size = NormalizePageSize(size)
	total := len(ls)
	result := Page{
		Items:      []types.Listing{},
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: TotalPages(total, size),
	}
	if page < 1 || page > result.TotalPages {
		return result
	}

	start := (page - 1) * size
	end := min(start+size, total)
	result.Items = slices.Clone(ls[start:end])
	return result
}
