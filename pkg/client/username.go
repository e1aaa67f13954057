package client

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is how long input must stay unchanged before a check runs.
const DefaultDebounce = 500 * time.Millisecond

// UsernameResult is the outcome of one username check.
type UsernameResult struct {
	Username  string
	Available bool
	Err       error
}

// CheckFunc reports whether username is available.
type CheckFunc func(ctx context.Context, username string) (bool, error)

// UsernameChecker debounces username input and reports availability.
// Every Input starts a new generation; a check's answer is delivered only
// while its generation is still the latest, and Input waits for a delivery
// in progress, so once Input returns no answer for older input can arrive.
type UsernameChecker struct {
	check    CheckFunc
	onResult func(UsernameResult)
	delay    time.Duration

	// delivery is held across onResult and by Input and Stop. Lock order
	// is delivery, then mu.
	delivery sync.Mutex

	mu      sync.Mutex
	current string
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	stopped bool
}

// CheckerOption configures a UsernameChecker.
type CheckerOption func(*UsernameChecker)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) CheckerOption {
	return func(c *UsernameChecker) { c.delay = d }
}

// NewUsernameChecker calls check after input settles and hands current
// results to onResult. onResult runs on the checker's goroutine and must
// not call Input or Stop.
func NewUsernameChecker(check CheckFunc, onResult func(UsernameResult), opts ...CheckerOption) *UsernameChecker {
	c := &UsernameChecker{check: check, onResult: onResult, delay: DefaultDebounce}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckWith builds a CheckFunc from the API client.
func CheckWith(c *Client) CheckFunc {
	return func(ctx context.Context, username string) (bool, error) {
		a, err := c.UsernameAvailable(ctx, username)
		return a.Available, err
	}
}

// Input records a new field value, cancels any check for the previous
// value and restarts the debounce timer. An empty value only cancels.
func (c *UsernameChecker) Input(value string) {
	value = strings.TrimSpace(value)

	c.delivery.Lock()
	defer c.delivery.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.current = value
	c.gen++
	c.cancelPending()
	if value == "" {
		return
	}
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() { c.run(gen, value) })
}

// Current returns the latest input value.
func (c *UsernameChecker) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stop cancels the pending check. Answers still in flight are dropped.
func (c *UsernameChecker) Stop() {
	c.delivery.Lock()
	defer c.delivery.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.cancelPending()
}

// cancelPending stops the timer and the in-flight check. c.mu must be held.
func (c *UsernameChecker) cancelPending() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *UsernameChecker) run(gen uint64, value string) {
	c.mu.Lock()
	if c.stopped || c.gen != gen {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	available, err := c.check(ctx, value)

	c.delivery.Lock()
	defer c.delivery.Unlock()
	if !c.isLatest(gen) {
		return
	}
	c.onResult(UsernameResult{Username: value, Available: available, Err: err})
}

func (c *UsernameChecker) isLatest(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped && c.gen == gen
}
