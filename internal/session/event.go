// Package session distributes session-changed notifications. Events are
// published on the message queue so that every replica can forward them
// to the websocket clients of the affected user.
package session

import (
	"time"

	"github.com/motorlot/apiserver/types"
)

// Channel is the message queue channel carrying session events.
const Channel = "session-events"

type (
	EventType = types.SessionEventType
	Event     = types.SessionEvent
)

const (
	EventSnapshot       = types.SessionSnapshot
	EventSignedIn       = types.SessionSignedIn
	EventSignedOut      = types.SessionSignedOut
	EventProfileChanged = types.SessionProfileChanged
)

// Snapshot is the first message of a session stream.
func Snapshot(user types.User, at time.Time) Event {
	return Event{Type: EventSnapshot, UserID: user.ID, User: &user, At: at}
}
