// Package broadcast fans status updates out to an arbitrary set of live
// subscribers. Delivery is fire-and-forget per subscriber: a sink that
// cannot accept an update promptly is treated as disconnected and dropped.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"spotd/pkg/types"
)

// subscriberBuffer bounds how many undelivered updates a subscriber may
// accumulate before it is considered unreachable.
const subscriberBuffer = 8

// Subscriber is one live sink. Updates arrive on Updates() in as-of order;
// the channel is closed when the subscriber is dropped or unsubscribed.
type Subscriber struct {
	ch   chan types.StatusResponse
	once sync.Once
}

// Updates returns the receive side of the subscriber's feed.
func (s *Subscriber) Updates() <-chan types.StatusResponse { return s.ch }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broadcaster owns the subscriber set exclusively. Safe for concurrent
// subscribe, unsubscribe and publish.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[*Subscriber]struct{}),
		log:  log,
	}
}

// Subscribe registers a new sink and returns it.
func (b *Broadcaster) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan types.StatusResponse, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()
	b.log.Debug().Int("subscribers", n).Msg("subscriber connected")
	return s
}

// Unsubscribe detaches s and closes its feed. Safe to call more than once.
func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[s]
	if ok {
		delete(b.subs, s)
		// Closed under the write lock so Publish never sends on a closed
		// channel.
		s.close()
	}
	n := len(b.subs)
	b.mu.Unlock()
	if ok {
		b.log.Debug().Int("subscribers", n).Msg("subscriber disconnected")
	}
}

// Publish pushes st to every current subscriber. A subscriber whose buffer
// is full cannot keep up and is dropped; delivery to the rest proceeds
// regardless. Never blocks on a slow sink: each send is a bounded,
// non-blocking attempt under the read lock.
func (b *Broadcaster) Publish(st types.StatusResponse) {
	b.mu.RLock()
	var dropped []*Subscriber
	for s := range b.subs {
		select {
		case s.ch <- st:
		default:
			dropped = append(dropped, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range dropped {
		b.log.Warn().Msg("subscriber not keeping up, dropping it")
		b.Unsubscribe(s)
	}
}

// Len reports the current subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
