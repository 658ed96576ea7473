package streamstore

import (
	"fmt"
	"log/slog"
	"sync"
)

// Subscription is a live registration receiving events appended to a
// stream after a given event number. Every subscription is served by its own
// goroutine and an unbounded queue so a slow handler only delays itself.
type Subscription struct {
	id      string
	stream  StreamID
	from    int64
	onEvent EventHandler
	onDrop  DropHandler
	log     *slog.Logger

	// remove unregisters the subscription from its store
	remove func(*Subscription)

	// release frees resources tied to the subscription (eg. context hooks)
	release func() bool

	mu     sync.Mutex
	queue  []RecordedEvent
	last   int64
	reason error

	wake     chan struct{}
	stop     chan struct{}
	dropped  chan struct{}
	stopOnce sync.Once
}

func newSubscription(
	id string,
	stream StreamID,
	from int64,
	onEvent EventHandler,
	onDrop DropHandler,
	log *slog.Logger,
	remove func(*Subscription)) *Subscription {

	return &Subscription{
		id:      id,
		stream:  stream,
		from:    from,
		onEvent: onEvent,
		onDrop:  onDrop,
		log:     log.With(slog.String("subscription", id), slog.String("stream", stream.String())),
		remove:  remove,
		last:    from,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		dropped: make(chan struct{}),
	}
}

// ID returns the subscriber id
func (s *Subscription) ID() string { return s.id }

// StreamID returns the subscribed stream
func (s *Subscription) StreamID() StreamID { return s.stream }

// LastEventNumber returns the number of the last delivered event
// ($all position for $all subscriptions)
func (s *Subscription) LastEventNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}

// Done is closed after the drop handler returned
func (s *Subscription) Done() <-chan struct{} { return s.dropped }

// Err returns the drop reason once Done is closed
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reason
}

func (s *Subscription) number(evt RecordedEvent) int64 {
	if s.stream.IsAll() {
		return evt.Position
	}

	return evt.Number
}

func (s *Subscription) matches(stream StreamID) bool {
	return s.stream.IsAll() || s.stream.Equal(stream)
}

// backlog queues the already stored events after the subscribe position
func (s *Subscription) backlog(events []RecordedEvent) {
	start := 0

	for start < len(events) && s.number(events[start]) <= s.from {
		start++
	}

	s.enqueue(events[start:]...)
}

// enqueue queues live events. They are never filtered by the subscribe
// position, since a revived stream numbers its events from 0 again.
func (s *Subscription) enqueue(events ...RecordedEvent) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, events...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) drop(reason error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()

		close(s.stop)
	})
}

func (s *Subscription) next() (RecordedEvent, bool) {
	for {
		s.mu.Lock()

		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue[0] = RecordedEvent{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			return evt, true
		}

		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.stop:
			return RecordedEvent{}, false
		}
	}
}

func (s *Subscription) run() {
	defer s.finish()

	for {
		evt, ok := s.next()
		if !ok {
			return
		}

		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.deliver(evt); err != nil {
			s.log.Error("subscription handler failed", slog.Any("error", err))

			s.remove(s)
			s.drop(err)

			return
		}

		s.mu.Lock()
		s.last = s.number(evt)
		s.mu.Unlock()
	}
}

func (s *Subscription) deliver(evt RecordedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscription handler panicked: %v", r)
		}
	}()

	return s.onEvent(s, evt)
}

func (s *Subscription) finish() {
	defer close(s.dropped)

	if s.release != nil {
		s.release()
	}

	s.mu.Lock()
	s.queue = nil
	reason := s.reason
	s.mu.Unlock()

	s.log.Debug("subscription dropped", slog.Any("reason", reason))

	if s.onDrop == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("subscription drop handler panicked", slog.Any("panic", r))
		}
	}()

	s.onDrop(s, reason)
}
