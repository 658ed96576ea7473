package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/aneshas/streamstore"
)

// ErrAggregateNotFound is returned when the aggregate stream does not exist
var ErrAggregateNotFound = errors.New("aggregate not found")

// Cfg represents aggregate store configuration
type Cfg struct {
	BatchSize int
	StreamID  func(id string) streamstore.StreamID
}

// Option represents aggregate store configuration option
type Option func(Cfg) Cfg

// WithBatchSize sets the page size used while rehydrating aggregates
func WithBatchSize(n int) Option {
	return func(cfg Cfg) Cfg {
		cfg.BatchSize = n

		return cfg
	}
}

// WithStreamID overrides how aggregate ids map to stream ids
func WithStreamID(f func(id string) streamstore.StreamID) Option {
	return func(cfg Cfg) Cfg {
		cfg.StreamID = f

		return cfg
	}
}

// NewStore constructs new event sourced aggregate store
func NewStore[T Rooter](eventStore streamstore.Store, opts ...Option) *Store[T] {
	cfg := Cfg{
		BatchSize: 100,
		StreamID: func(id string) streamstore.StreamID {
			return streamstore.NewStreamID(id)
		},
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Store[T]{
		eventStore: eventStore,
		cfg:        cfg,
	}
}

// Store represents event sourced aggregate store
type Store[T Rooter] struct {
	eventStore streamstore.Store
	cfg        Cfg
}

// Save appends uncommitted aggregate events to the aggregate stream,
// expecting the stream to be at the version the aggregate was loaded at
func (s *Store[T]) Save(ctx context.Context, aggregate T) error {
	pending := aggregate.Events()
	if len(pending) == 0 {
		return nil
	}

	meta, hasMeta := metaFromCtx(ctx)

	events := make([]streamstore.CommonEvent, 0, len(pending))

	for _, evt := range pending {
		e := streamstore.CommonEvent{
			ID:       evt.ID,
			DataType: evt.Type,
			Data:     evt.E,
		}

		if hasMeta {
			e = e.WithMeta(MetaType, meta)
		}

		events = append(events, e)
	}

	expected := streamstore.ExpectNoOrEmptyStream()

	if v := aggregate.Version(); v > 0 {
		expected = streamstore.ExpectVersion(int64(v - 1))
	}

	_, err := s.eventStore.AppendToStream(ctx, s.cfg.StreamID(aggregate.StringID()), expected, events...)
	if err != nil {
		return err
	}

	aggregate.committed()

	return nil
}

// ByID reads every aggregate event and rehydrates the aggregate
func (s *Store[T]) ByID(ctx context.Context, id string, root T) error {
	evts, err := streamstore.ReadAllForward(ctx, s.eventStore, s.cfg.StreamID(id), 0, s.cfg.BatchSize)
	if err != nil {
		if errors.Is(err, streamstore.ErrStreamNotFound) {
			return fmt.Errorf("%w: %v", ErrAggregateNotFound, err)
		}

		return err
	}

	events := make([]any, 0, len(evts))

	for _, evt := range evts {
		events = append(events, evt.Data)
	}

	root.Rehydrate(root, events...)

	return nil
}
