package query

import (
	"time"

	"github.com/motorlot/apiserver/types"
)

// View names the screen a query runs for.
type View string

const (
	// ViewBrowse is the public listing view; the visibility rule applies.
	ViewBrowse View = "browse"

	// ViewDashboard is a seller's own inventory across all statuses.
	ViewDashboard View = "dashboard"

	// ViewAdmin is the moderation view across all listings.
	ViewAdmin View = "admin"
)

// Observer receives the size of each query result. It is optional.
type Observer interface {
	ObserveQuery(view View, fetched, matched int)
}

// Engine runs the visibility, filter, sort and paginate pipeline. It holds
// no per-query state and is safe for concurrent use.
type Engine struct {
	now      func() time.Time
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used by the visibility rule.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithObserver registers an observer for query result sizes.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine constructs an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the pipeline for view over ls. Only ViewBrowse applies the
// visibility rule. ls is never modified.
func (e *Engine) Run(view View, ls []types.Listing, st State) Page {
	page := Run(ls, st, e.now(), view == ViewBrowse)
	if e.observer != nil {
		e.observer.ObserveQuery(view, len(ls), page.Total)
	}
	return page
}

// Run is the pure form of the pipeline: optional visibility filter at now,
// then criteria, sort and pagination from st. Identical inputs always yield
// identical output.
func Run(ls []types.Listing, st State, now time.Time, public bool) Page {
	visible := ls
	if public {
		visible = FilterVisible(ls, now)
	}
	matched := Filter(visible, st.Criteria)
	sorted := Sort(matched, ParseSortKey(string(st.Sort)))
	return Paginate(sorted, st.Page, st.PageSize)
}
