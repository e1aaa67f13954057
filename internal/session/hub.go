package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/motorlot/apiserver/internal/mq"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Recorder counts published session events.
type Recorder interface {
	SessionEvent(eventType string)
}

// Hub publishes session events to the queue and fans events received from
// the queue out to local subscribers keyed by user ID.
type Hub struct {
	bus      *mq.MQ
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time

	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

func NewHub(bus *mq.MQ, log *zap.Logger, recorder Recorder) *Hub {
	return &Hub{
		bus:      bus,
		log:      log,
		recorder: recorder,
		now:      time.Now,
		subs:     make(map[string]map[chan Event]struct{}),
	}
}

// Publish sends an event for userID to every replica.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	if evt.UserID == "" {
		return errors.New("session event requires a user id")
	}
	if evt.At.IsZero() {
		evt.At = h.now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := h.bus.Publish(ctx, Channel, data, map[string]string{
		"type":    string(evt.Type),
		"user_id": evt.UserID,
	}); err != nil {
		return err
	}
	if h.recorder != nil {
		h.recorder.SessionEvent(string(evt.Type))
	}
	return nil
}

// Run consumes the queue until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()
	err := h.bus.Subscribe(ctx, Channel, h.dispatch)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Subscribe registers a listener for userID's events. The returned cancel
// function must be called to release it.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[userID][ch]; !ok {
				return
			}
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of local listeners for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) dispatch(_ context.Context, msg mq.Message) error {
	var evt Event
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		h.log.Warn("dropping malformed session event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[evt.UserID] {
		select {
		case ch <- evt:
		default:
			h.log.Warn("session subscriber is slow, event dropped",
				zap.String("user_id", evt.UserID),
				zap.String("type", string(evt.Type)),
			)
		}
	}
	return nil
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, userID)
	}
}
