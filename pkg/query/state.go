package query

// State is the full query state of a listing view: the active criteria,
// sort key, page size and current page.
type State struct {
	Criteria Criteria `json:"criteria"`
	Sort     SortKey  `json:"sort"`
	PageSize int      `json:"page_size"`
	Page     int      `json:"page"`
}

// NewState returns the initial view state: no criteria, newest first,
// default page size, first page.
func NewState() State {
	return State{
		Sort:     DefaultSort,
		PageSize: DefaultPageSize,
		Page:     1,
	}
}

// SetCriteria replaces the criteria. A change resets the page to 1.
func (s *State) SetCriteria(c Criteria) {
	if s.Criteria.Equal(c) {
		return
	}
	s.Criteria = c
	s.Page = 1
}

// UpdateCriteria applies fn to a copy of the criteria and stores the result
// through SetCriteria.
func (s *State) UpdateCriteria(fn func(*Criteria)) {
	next := s.Criteria
	fn(&next)
	s.SetCriteria(next)
}

// SetSort changes the sort key. A change resets the page to 1.
func (s *State) SetSort(key SortKey) {
	key = ParseSortKey(string(key))
	if s.Sort == key {
		return
	}
	s.Sort = key
	s.Page = 1
}

// SetPageSize changes the page size. A change resets the page to 1.
func (s *State) SetPageSize(size int) {
	size = NormalizePageSize(size)
	if s.PageSize == size {
		return
	}
	s.PageSize = size
	s.Page = 1
}

// SetPage moves to page n. The value is stored as given; Paginate
// returns an empty page when n is out of range.
func (s *State) SetPage(n int) {
	s.Page = n
}

// ClearCriteria removes every filter.
func (s *State) ClearCriteria() {
	s.SetCriteria(Criteria{})
}
