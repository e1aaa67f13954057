package client

import "sync"

// Status is the load state of one asynchronous operation.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Load tracks one operation's status, last value and last error. A view
// reads it to decide between spinner, content and error message.
type Load[T any] struct {
	mu     sync.RWMutex
	status Status
	value  T
	err    error
}

// Do runs fn, marking the load as loading until it returns. A failure
// keeps the previous value.
func (l *Load[T]) Do(fn func() (T, error)) (T, error) {
	l.mu.Lock()
	l.status = StatusLoading
	l.mu.Unlock()

	v, err := fn()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.status = StatusError
		l.err = err
		return v, err
	}
	l.status = StatusSuccess
	l.value = v
	l.err = nil
	return v, nil
}

// State returns the current status, value and error.
func (l *Load[T]) State() (Status, T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status, l.value, l.err
}
