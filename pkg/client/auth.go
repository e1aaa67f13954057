package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/motorlot/apiserver/types"
)

// AuthContext is the app-wide view of who is signed in. It is created
// once, fed by the session stream, and shared by reference; consumers
// only read it.
type AuthContext struct {
	mu      sync.RWMutex
	user    *types.User
	ready   bool
	changed chan struct{}
}

func NewAuthContext() *AuthContext {
	return &AuthContext{changed: make(chan struct{})}
}

// User returns the signed-in user, if any.
func (a *AuthContext) User() (types.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return types.User{}, false
	}
	return *a.user, true
}

// Role returns the signed-in user's role, or "" when signed out.
func (a *AuthContext) Role() string {
	u, ok := a.User()
	if !ok {
		return ""
	}
	return u.Role
}

func (a *AuthContext) IsAdmin() bool {
	return a.Role() == types.RoleAdmin
}

// Ready reports whether the first session snapshot has arrived.
func (a *AuthContext) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Changed returns a channel closed on the next change.
func (a *AuthContext) Changed() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.changed
}

// Apply folds one session event into the context.
func (a *AuthContext) Apply(evt types.SessionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch evt.Type {
	case types.SessionSnapshot, types.SessionSignedIn, types.SessionProfileChanged:
		if evt.User == nil {
			return
		}
		u := *evt.User
		a.user = &u
	case types.SessionSignedOut:
		a.user = nil
	default:
		return
	}
	a.ready = true
	close(a.changed)
	a.changed = make(chan struct{})
}

// Reset marks the context signed out, e.g. after a local logout.
func (a *AuthContext) Reset() {
	a.Apply(types.SessionEvent{Type: types.SessionSignedOut})
}

// Watch reads the session stream at streamURL and applies every event
// until ctx is done or the server closes the stream.
func (a *AuthContext) Watch(ctx context.Context, streamURL string) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			a.Reset()
			return &APIError{StatusCode: resp.StatusCode, Message: "unauthorized"}
		}
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		var evt types.SessionEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		a.Apply(evt)
		if evt.Type == types.SessionSignedOut {
			return nil
		}
	}
}

// ErrSignedOut is returned by WaitUser when the stream reports no user.
var ErrSignedOut = errors.New("signed out")

// WaitUser blocks until the first snapshot arrives and returns its user.
func (a *AuthContext) WaitUser(ctx context.Context) (types.User, error) {
	for {
		a.mu.RLock()
		ready, user, changed := a.ready, a.user, a.changed
		a.mu.RUnlock()
		if ready {
			if user == nil {
				return types.User{}, ErrSignedOut
			}
			return *user, nil
		}
		select {
		case <-ctx.Done():
			return types.User{}, ctx.Err()
		case <-changed:
		}
	}
}
