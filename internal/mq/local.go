package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const localBuffer = 64

// Local delivers messages between subscribers in the same process.
type Local struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Message
	nextID int
	seq    atomic.Uint64
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]chan Message)}
}

// Publish delivers data to every current subscriber of channel. Slow
// subscribers with a full buffer miss the message.
func (l *Local) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("local channel is required")
	}

	msg := Message{
		ID:         strconv.FormatUint(l.seq.Add(1), 10),
		Data:       data,
		Attributes: attrs,
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return "", errors.New("local mq closed")
	}
	for _, ch := range l.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe blocks, invoking handler for each message, until ctx is done.
func (l *Local) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("local channel is required")
	}

	ch := make(chan Message, localBuffer)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("local mq closed")
	}
	id := l.nextID
	l.nextID++
	if l.subs[channel] == nil {
		l.subs[channel] = make(map[int]chan Message)
	}
	l.subs[channel][id] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.subs[channel], id)
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			_ = handler(ctx, msg)
		}
	}
}

// Subscribers returns the number of active subscribers on channel.
func (l *Local) Subscribers(channel string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs[channel])
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
