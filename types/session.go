package types

import "time"

// SessionEventType names a session change.
type SessionEventType string

const (
	// SessionSnapshot is the first message of a session stream.
	SessionSnapshot       SessionEventType = "snapshot"
	SessionSignedIn       SessionEventType = "signed_in"
	SessionSignedOut      SessionEventType = "signed_out"
	SessionProfileChanged SessionEventType = "profile_changed"
)

// SessionEvent is one session change for a user, as sent on the session
// stream. User is nil after sign out.
type SessionEvent struct {
	Type   SessionEventType `json:"type"`
	UserID string           `json:"user_id"`
	User   *User            `json:"user,omitempty"`
	At     time.Time        `json:"at"`
}
