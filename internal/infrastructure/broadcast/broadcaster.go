package broadcast

import (
	"log"
	"sync"

	domain "nailbliss/session/internal/domain/session"
)

const subscriberBuffer = 16

// Broadcaster fans session-change events out to subscribers. Publish never
// blocks; when a subscriber's buffer is full its oldest queued event is
// evicted, so the latest event (a sign-out included) is always delivered.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	missed func(domain.AuthEvent)
}

// New creates a broadcaster. missed, when non-nil, is called for every
// event evicted because a subscriber fell behind.
func New(missed func(domain.AuthEvent)) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*subscription]struct{}),
		missed: missed,
	}
}

// Subscribe registers a new subscriber. The optional initial events are
// queued before any later publish.
func (b *Broadcaster) Subscribe(initial ...domain.AuthEvent) domain.Subscription {
	sub := &subscription{
		events: make(chan domain.AuthEvent, subscriberBuffer),
		owner:  b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range initial {
		sub.events <- ev
	}
	b.subs[sub] = struct{}{}
	return sub
}

// LogMissed is a missed callback that logs each evicted event.
func LogMissed(ev domain.AuthEvent) {
	log.Printf("[WRN] auth event %s evicted: subscriber fell behind", ev.Type)
}

// Publish delivers ev to every current subscriber.
func (b *Broadcaster) Publish(ev domain.AuthEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.events <- ev:
			continue
		default:
		}
		// Only Publish sends, and it holds mu, so the slot freed here stays free.
		select {
		case evicted := <-sub.events:
			b.drop(evicted)
		default:
		}
		select {
		case sub.events <- ev:
		default:
			b.drop(ev)
		}
	}
}

func (b *Broadcaster) drop(ev domain.AuthEvent) {
	if b.missed != nil {
		b.missed(ev)
	}
}

// Len reports the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.events)
}

type subscription struct {
	events chan domain.AuthEvent
	owner  *Broadcaster
}

func (s *subscription) Events() <-chan domain.AuthEvent {
	return s.events
}

func (s *subscription) Unsubscribe() {
	s.owner.remove(s)
}
