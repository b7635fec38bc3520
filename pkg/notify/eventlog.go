package notify

import "sync"

// EventLog retains the most recent notifications from a Notifier so
// late-attaching consumers (the observation server, a reconnecting UI)
// can show recent history.
type EventLog struct {
	mu     sync.Mutex
	buf    []Notification
	max    int
	cancel func()
	done   chan struct{}
}

// NewEventLog subscribes to n and retains up to max notifications,
// oldest dropped first. Close releases the subscription.
func NewEventLog(n *Notifier, max int) *EventLog {
	if max < 1 {
		max = 64
	}
	ch, cancel := n.Subscribe(max)
	l := &EventLog{
		max:    max,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		for ev := range ch {
			l.mu.Lock()
			l.buf = append(l.buf, ev)
			if len(l.buf) > l.max {
				l.buf = l.buf[1:]
			}
			l.mu.Unlock()
		}
	}()
	return l
}

// Recent returns retained notifications, oldest first.
func (l *EventLog) Recent() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notification, len(l.buf))
	copy(out, l.buf)
	return out
}

// Close cancels the subscription and waits for the collector to drain.
func (l *EventLog) Close() {
	l.cancel()
	<-l.done
}
