package types

import (
	"errors"
	"time"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	// StatusPending is the initial state; the listing awaits moderation.
	StatusPending ListingStatus = "pending"

	// StatusApproved listings are publicly visible.
	StatusApproved ListingStatus = "approved"

	// StatusRejected listings are hidden from everyone but the seller.
	StatusRejected ListingStatus = "rejected"

	// StatusArchived listings were hidden by the seller and can be restored.
	StatusArchived ListingStatus = "archived"

	// StatusSold listings stay visible for a grace window after SoldAt.
	StatusSold ListingStatus = "sold"
)

// ListingStatuses lists every valid status.
var ListingStatuses = []ListingStatus{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusArchived,
	StatusSold,
}

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	for _, status := range ListingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a transition is not allowed from
// the listing's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// Transition names a status change that a seller or administrator can request.
type Transition string

const (
	TransitionMarkSold      Transition = "mark_sold"
	TransitionMarkAvailable Transition = "mark_available"
	TransitionArchive       Transition = "archive"
	TransitionUnarchive     Transition = "unarchive"
	TransitionApprove       Transition = "approve"
	TransitionReject        Transition = "reject"
)

// AdminOnly reports whether the transition is reserved for administrators.
// All other transitions are reserved for the listing's seller.
func (t Transition) AdminOnly() bool {
	return t == TransitionApprove || t == TransitionReject
}

// Apply returns a copy of l with the transition applied at time now.
// Status and SoldAt always change together.
func (t Transition) Apply(l Listing, now time.Time) (Listing, error) {
	switch t {
	case TransitionMarkSold:
		if l.Status != StatusApproved {
			return l, ErrInvalidTransition
		}
		soldAt := now
		l.Status = StatusSold
		l.SoldAt = &soldAt
	case TransitionMarkAvailable:
		if l.Status != StatusSold {
			return l, ErrInvalidTransition
		}
		l.Status = StatusApproved
		l.SoldAt = nil
	case TransitionArchive:
		// Only moderated listings can be archived, so unarchiving never
		// skips review.
		if l.Status != StatusApproved && l.Status != StatusSold {
			return l, ErrInvalidTransition
		}
		l.Status = StatusArchived
	case TransitionUnarchive:
		if l.Status != StatusArchived {
			return l, ErrInvalidTransition
		}
		l.Status = StatusApproved
		l.SoldAt = nil
	case TransitionApprove:
		if l.Status != StatusPending {
			return l, ErrInvalidTransition
		}
		l.Status = StatusApproved
	case TransitionReject:
		if l.Status != StatusPending {
			return l, ErrInvalidTransition
		}
		l.Status = StatusRejected
	default:
		return l, ErrInvalidTransition
	}
	return l, nil
}
