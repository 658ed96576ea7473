package streamstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrStoreClosed is reported to subscriptions dropped by closing the store
var ErrStoreClosed = errors.New("store closed")

// MemoryCfg represents in-memory store configuration
type MemoryCfg struct {
	Logger *slog.Logger
	Clock  func() time.Time
}

// MemoryOpt represents in-memory store configuration option
type MemoryOpt func(MemoryCfg) MemoryCfg

// WithLogger configures the store logger (slog.Default() is used otherwise)
func WithLogger(log *slog.Logger) MemoryOpt {
	return func(cfg MemoryCfg) MemoryCfg {
		cfg.Logger = log

		return cfg
	}
}

// WithClock configures the clock used to stamp recorded events
func WithClock(clock func() time.Time) MemoryOpt {
	return func(cfg MemoryCfg) MemoryCfg {
		cfg.Clock = clock

		return cfg
	}
}

// NewInMemoryStore constructs the reference in-memory store
func NewInMemoryStore(opts ...MemoryOpt) *InMemoryStore {
	cfg := MemoryCfg{
		Logger: slog.Default(),
		Clock:  time.Now,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &InMemoryStore{
		log:     cfg.Logger.With(slog.String("store", "memory")),
		now:     cfg.Clock,
		streams: make(map[string]*memStream),
		subs:    make(map[string]*Subscription),
	}
}

// InMemoryStore is the reference Store and Subscriber implementation.
// A single lock guards the whole store, so it is safe for concurrent use;
// subscription handlers run on their own goroutines.
type InMemoryStore struct {
	mu      sync.Mutex
	log     *slog.Logger
	now     func() time.Time
	streams map[string]*memStream
	all     []RecordedEvent
	subs    map[string]*Subscription
}

type memStream struct {
	id      StreamID
	state   StreamState
	version int64
	events  []RecordedEvent
}

// Open is a no-op for the in-memory store
func (s *InMemoryStore) Open(_ context.Context) error { return nil }

// Close drops every live subscription
func (s *InMemoryStore) Close() error {
	s.mu.Lock()

	subs := s.subs
	s.subs = make(map[string]*Subscription)

	s.mu.Unlock()

	for _, sub := range subs {
		sub.drop(ErrStoreClosed)
	}

	return nil
}

// AppendToStream appends events to the stream. Unknown streams are created,
// soft deleted streams are revived. If the expected version does not match
// but the tail of the stream already equals events, the append is treated
// as an idempotent replay and the current version is returned.
func (s *InMemoryStore) AppendToStream(
	_ context.Context,
	id StreamID,
	expected ExpectedVersion,
	events ...CommonEvent) (int64, error) {

	if id.IsZero() {
		return NoVersion, fmt.Errorf("stream name must be provided")
	}

	if id.IsProjection() {
		return NoVersion, fmt.Errorf("%w: %s", ErrStreamReadOnly, id)
	}

	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return NoVersion, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id.String()]
	if !ok {
		st = &memStream{id: id, state: StateActive, version: NoVersion}
	}

	switch st.state {
	case StateHardDeleted:
		return NoVersion, fmt.Errorf("%w: %s", ErrStreamDeleted, id)
	case StateSoftDeleted:
		s.log.Debug("reviving soft deleted stream", slog.String("stream", id.String()))
	}

	if !expected.Matches(st.version) {
		if len(events) > 0 && tailEquals(st.events, events) {
			s.log.Debug(
				"idempotent append",
				slog.String("stream", id.String()),
				slog.Int64("version", st.version),
			)

			return st.version, nil
		}

		return NoVersion, &WrongExpectedVersionError{
			Stream:   id,
			Expected: expected,
			Actual:   st.version,
		}
	}

	st.state = StateActive
	s.streams[id.String()] = st

	created := s.now().UTC()
	recorded := make([]RecordedEvent, len(events))

	for i, evt := range events {
		st.version++

		recorded[i] = RecordedEvent{
			Stream:   id,
			Number:   st.version,
			Position: int64(len(s.all)),
			Created:  created,
			Event:    evt,
		}

		s.all = append(s.all, recorded[i])
	}

	st.events = append(st.events, recorded...)

	s.log.Debug(
		"append",
		slog.String("stream", id.String()),
		slog.Int64("version", st.version),
		slog.Int("num_events", len(events)),
	)

	s.dispatch(id, recorded)

	return st.version, nil
}

func tailEquals(stored []RecordedEvent, events []CommonEvent) bool {
	if len(stored) < len(events) {
		return false
	}

	tail := stored[len(stored)-len(events):]

	for i := range events {
		if !tail[i].Event.Equal(events[i]) {
			return false
		}
	}

	return true
}

func (s *InMemoryStore) dispatch(id StreamID, events []RecordedEvent) {
	if len(s.subs) == 0 || len(events) == 0 {
		return
	}

	s.log.Debug(
		"dispatching events",
		slog.Int("events", len(events)),
		slog.Int("subscriptions", len(s.subs)),
	)

	for _, sub := range s.subs {
		if sub.matches(id) {
			sub.enqueue(events...)
		}
	}
}

// readable returns the stored events of a readable stream; caller holds the lock
func (s *InMemoryStore) readable(id StreamID) ([]RecordedEvent, error) {
	if id.IsAll() {
		return s.all, nil
	}

	st, ok := s.streams[id.String()]
	if !ok || id.IsProjection() {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	switch st.state {
	case StateSoftDeleted:
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	case StateHardDeleted:
		return nil, fmt.Errorf("%w: %s", ErrStreamDeleted, id)
	}

	return st.events, nil
}

// ReadEventsForward reads up to count events starting at start
func (s *InMemoryStore) ReadEventsForward(
	_ context.Context,
	id StreamID,
	start int64,
	count int) (*StreamEventsSlice, error) {

	if start < 0 {
		return nil, fmt.Errorf("start cannot be less than 0")
	}

	if count < 1 {
		return nil, fmt.Errorf("count should be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.readable(id)
	if err != nil {
		return nil, err
	}

	events := make([]CommonEvent, 0, min(count, len(stored)))

	for i := start; i < int64(len(stored)) && len(events) < count; i++ {
		events = append(events, stored[i].Event)
	}

	return &StreamEventsSlice{
		Stream:          id,
		Direction:       Forward,
		FromEventNumber: start,
		Events:          events,
		NextEventNumber: start + int64(len(events)),
		EndOfStream:     len(events) < count,
	}, nil
}

// ReadEventsBackward reads up to count events at start, start-1, ... down
// to 0. A negative start reads from the last event.
func (s *InMemoryStore) ReadEventsBackward(
	_ context.Context,
	id StreamID,
	start int64,
	count int) (*StreamEventsSlice, error) {

	if count < 1 {
		return nil, fmt.Errorf("count should be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.readable(id)
	if err != nil {
		return nil, err
	}

	if start < 0 {
		start = int64(len(stored)) - 1
	}

	events := make([]CommonEvent, 0, min(count, len(stored)))

	for i := start; i > start-int64(count) && i >= 0; i-- {
		if i < int64(len(stored)) {
			events = append(events, stored[i].Event)
		}
	}

	return &StreamEventsSlice{
		Stream:          id,
		Direction:       Backward,
		FromEventNumber: start,
		Events:          events,
		NextEventNumber: max(0, start-int64(len(events))),
		EndOfStream:     start-int64(count) < 0,
	}, nil
}

// ReadEvent reads a single event
func (s *InMemoryStore) ReadEvent(_ context.Context, id StreamID, number int64) (CommonEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.readable(id)
	if err != nil {
		return CommonEvent{}, err
	}

	if number < 0 || number >= int64(len(stored)) {
		return CommonEvent{}, fmt.Errorf("%w: %s@%d", ErrEventNotFound, id, number)
	}

	return stored[number].Event, nil
}

// DeleteStream deletes the stream. Soft deleted streams read as not found
// until the next append revives them; hard deleted streams are gone for good.
func (s *InMemoryStore) DeleteStream(
	_ context.Context,
	id StreamID,
	expected ExpectedVersion,
	hardDelete bool) error {

	if id.IsZero() {
		return fmt.Errorf("stream name must be provided")
	}

	if id.IsProjection() {
		return fmt.Errorf("%w: %s", ErrStreamReadOnly, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	switch st.state {
	case StateHardDeleted:
		return fmt.Errorf("%w: %s", ErrStreamDeleted, id)
	case StateSoftDeleted:
		if !hardDelete {
			return nil
		}
	case StateActive:
		if !expected.Matches(st.version) {
			return &WrongExpectedVersionError{
				Stream:   id,
				Expected: expected,
				Actual:   st.version,
			}
		}
	}

	st.events = nil
	st.version = NoVersion
	st.state = StateSoftDeleted

	if hardDelete {
		st.state = StateHardDeleted

		s.dropStreamSubs(id, fmt.Errorf("%w: %s", ErrStreamDeleted, id))
	}

	s.log.Debug(
		"delete",
		slog.String("stream", id.String()),
		slog.Bool("hard", hardDelete),
	)

	return nil
}

func (s *InMemoryStore) dropStreamSubs(id StreamID, reason error) {
	for subID, sub := range s.subs {
		if !sub.stream.IsAll() && sub.stream.Equal(id) {
			delete(s.subs, subID)
			sub.drop(reason)
		}
	}
}

// StreamExists reports whether the stream exists and is active.
// Hard deleted streams fail with ErrStreamDeleted.
func (s *InMemoryStore) StreamExists(_ context.Context, id StreamID) (bool, error) {
	if id.IsAll() {
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id.String()]
	if !ok || id.IsProjection() {
		return false, nil
	}

	switch st.state {
	case StateHardDeleted:
		return false, fmt.Errorf("%w: %s", ErrStreamDeleted, id)
	case StateSoftDeleted:
		return false, nil
	}

	return true, nil
}

// StreamState returns the lifecycle state of a known stream
func (s *InMemoryStore) StreamState(_ context.Context, id StreamID) (StreamState, error) {
	if id.IsAll() {
		return StateActive, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id.String()]
	if !ok || id.IsProjection() {
		return 0, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	return st.state, nil
}

// StreamVersion returns the current version of a readable stream
func (s *InMemoryStore) StreamVersion(_ context.Context, id StreamID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.readable(id)
	if err != nil {
		return NoVersion, err
	}

	return int64(len(stored)) - 1, nil
}

// SubscribeToStream registers a subscription that first receives (on its
// own goroutine) every stored event after fromEventNumber and then every
// future append in order. Cancelling ctx unsubscribes.
func (s *InMemoryStore) SubscribeToStream(
	ctx context.Context,
	id StreamID,
	fromEventNumber int64,
	onEvent EventHandler,
	onDrop DropHandler) (*Subscription, error) {

	if onEvent == nil {
		return nil, fmt.Errorf("event handler must be provided")
	}

	if id.IsZero() {
		return nil, fmt.Errorf("stream name must be provided")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var backlog []RecordedEvent

	if id.IsAll() {
		backlog = s.all
	} else if st, ok := s.streams[id.String()]; ok && !id.IsProjection() {
		if st.state == StateHardDeleted {
			return nil, fmt.Errorf("%w: %s", ErrStreamDeleted, id)
		}

		backlog = st.events
	}

	sub := newSubscription(
		gonanoid.Must(),
		id,
		fromEventNumber,
		onEvent,
		onDrop,
		s.log,
		s.remove,
	)

	sub.backlog(backlog)

	s.subs[sub.id] = sub

	sub.release = context.AfterFunc(ctx, func() {
		s.UnsubscribeFromStream(sub)
	})

	go sub.run()

	s.log.Debug(
		"subscribe",
		slog.String("stream", id.String()),
		slog.String("subscription", sub.id),
		slog.Int64("from", fromEventNumber),
		slog.Int("backlog", len(backlog)),
	)

	return sub, nil
}

// UnsubscribeFromStream removes the subscription. Its drop handler is
// called with ErrSubscriptionClosedByClient.
func (s *InMemoryStore) UnsubscribeFromStream(sub *Subscription) {
	if sub == nil {
		return
	}

	s.remove(sub)
	sub.drop(ErrSubscriptionClosedByClient)
}

func (s *InMemoryStore) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, sub.id)
}

var (
	_ Store      = (*InMemoryStore)(nil)
	_ Subscriber = (*InMemoryStore)(nil)
)
