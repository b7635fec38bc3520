// Package notify carries transient success/error notifications from the
// tracking engine to whatever presentation layer is attached.
//
// Delivery is fire-and-forget: subscribers that fall behind lose the
// oldest undelivered notification rather than block the engine. A
// last-one-wins display policy on the consumer side is acceptable.
package notify

import (
	"sync"
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one transient user-facing event.
type Notification struct {
	Kind    Kind      `json:"type"`
	Message string    `json:"message"`
	TS      time.Time `json:"ts"`
}

// Notifier fans notifications out to subscribers.
//
// Notifier is safe for concurrent use. The zero value is not usable;
// construct with New.
type Notifier struct {
	mu   sync.Mutex
	subs map[chan Notification]struct{}
	last *Notification
}

// New creates a Notifier with no subscribers.
func New() *Notifier {
	return &Notifier{subs: make(map[chan Notification]struct{})}
}

// Subscribe registers a buffered channel for future notifications and
// returns it with a cancel func. Cancel closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// Success publishes a success notification.
func (n *Notifier) Success(message string) {
	n.publish(Notification{Kind: KindSuccess, Message: message, TS: time.Now().UTC()})
}

// Error publishes an error notification.
func (n *Notifier) Error(message string) {
	n.publish(Notification{Kind: KindError, Message: message, TS: time.Now().UTC()})
}

// Last returns the most recently published notification, if any.
func (n *Notifier) Last() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return Notification{}, false
	}
	return *n.last, true
}

func (n *Notifier) publish(ev Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.last = &ev
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
			// Full buffer: drop the oldest and retry once so the
			// subscriber converges on recent events.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
