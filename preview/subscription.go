// ABOUTME: Unbounded, ordered event mailbox delivering preview events to one consumer.
// ABOUTME: Publishers never block; a pump goroutine forwards queued events to the consumer channel.
package preview

import (
	"sync"
	"time"
)

// Event is one status change of a preview session.
type Event struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Status    Status    `json:"status"`
	At        time.Time `json:"at"`
}

// Subscription delivers events in publish order on C. C is closed when the
// subscription ends, either because the source finished or Close was called.
type Subscription struct {
	C <-chan Event

	out    chan Event
	mu     sync.Mutex
	queue  []Event
	ended  bool
	wake   chan struct{}
	stop   chan struct{}
	once   sync.Once
	filter func(Event) bool
	detach func()
}

func newSubscription(filter func(Event) bool) *Subscription {
	out := make(chan Event)
	s := &Subscription{
		C:      out,
		out:    out,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		filter: filter,
	}
	go s.pump()
	return s
}

// push enqueues an event without blocking.
func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
}

// finish closes C once every queued event has been delivered.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery immediately and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.stop)
		if s.detach != nil {
			s.detach()
		}
	})
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			ended := s.ended
			s.mu.Unlock()
			if ended {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.out <- ev:
		case <-s.stop:
			return
		}
	}
}
