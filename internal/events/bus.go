package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Severity tags a notice for rendering: transient notices are toasts, while a
// few codes require a decision and render as modal dialogs.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a single user-facing notification emitted by the checkout core.
type Notice struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Data     any      `json:"data,omitempty"`
}

// Subscriber reacts to published notices.
type Subscriber interface {
	Notify(notice Notice) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(notice Notice) error

// Notify implements Subscriber.
func (f SubscriberFunc) Notify(notice Notice) error { return f(notice) }

// Bus fans notices out to all registered subscribers. A failing subscriber
// does not stop delivery to the rest.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber for all subsequent notices.
func (b *Bus) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// Unsubscribe removes a previously registered subscriber.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}

// Publish delivers the notice to every subscriber, joining any errors.
func (b *Bus) Publish(notice Notice) error {
	if strings.TrimSpace(notice.Code) == "" {
		return errors.New("events: notice code is required")
	}
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	var joined error
	for _, sub := range subs {
		if err := sub.Notify(notice); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: subscriber: %w", err))
		}
	}
	return joined
}
