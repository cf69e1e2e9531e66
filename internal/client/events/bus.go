// Package events implements the notification fan-out: a synchronous,
// in-process publish/subscribe bus that keeps views consistent after data
// changes without polling. Delivery is best-effort: there is no persistence
// and no replay, so a listener registered after an event fires receives
// nothing.
package events

import "sync"

// Topic identifies a category of change.
type Topic string

const (
	TopicMedicationsUpdated  Topic = "medicationsUpdated"
	TopicAppointmentsUpdated Topic = "appointmentsUpdated"
	TopicVitalsUpdated       Topic = "vitalsUpdated"
	TopicUserDataUpdated     Topic = "userDataUpdated"
	TopicUserAuthenticated   Topic = "userAuthenticated"
	TopicUserSignedOut       Topic = "userSignedOut"
	TopicNotice              Topic = "notice"
)

// Event is a published change with its payload: the full collection or the
// added record for collection topics, the profile for user data, the session
// for authentication, nil for sign-out.
type Event struct {
	Topic   Topic
	Payload any
}

// Notice is the payload of TopicNotice: a non-blocking, user-visible message
// with a severity kind ("error", "warning", "success", "info").
type Notice struct {
	Kind    string
	Message string
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus fans events out to subscribers. The zero value is not usable; call New.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[Topic]map[int]Handler
}

func New() *Bus {
	return &Bus{subs: make(map[Topic]map[int]Handler)}
}

// Subscribe registers h for topic and returns a function that removes the
// subscription. Subscribing the same handler twice delivers events twice.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers the event to every subscriber of the topic, in
// unspecified order. Publishing with zero listeners is a no-op.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(ev)
	}
}
