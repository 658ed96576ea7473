package instrument

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aneshas/streamstore"
)

// WithTracing wraps store so that every operation runs in its own span
func WithTracing(store streamstore.Store, tracer trace.Tracer) streamstore.Store {
	return &tracedStore{Store: store, tracer: tracer}
}

type tracedStore struct {
	streamstore.Store
	tracer trace.Tracer
}

func (s *tracedStore) start(ctx context.Context, op string, id streamstore.StreamID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(
		ctx,
		"streamstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
	)

	span.SetAttributes(attribute.String("stream.id", id.String()))
	span.SetAttributes(attrs...)

	return ctx, span
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func (s *tracedStore) AppendToStream(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	events ...streamstore.CommonEvent) (int64, error) {

	ctx, span := s.start(
		ctx,
		"AppendToStream",
		id,
		attribute.String("expected_version", expected.String()),
		attribute.Int("events", len(events)),
	)

	ver, err := s.Store.AppendToStream(ctx, id, expected, events...)

	span.SetAttributes(attribute.Int64("stream.version", ver))
	end(span, err)

	return ver, err
}

func (s *tracedStore) ReadEventsForward(
	ctx context.Context,
	id streamstore.StreamID,
	start int64,
	count int) (*streamstore.StreamEventsSlice, error) {

	ctx, span := s.start(
		ctx,
		"ReadEventsForward",
		id,
		attribute.Int64("start", start),
		attribute.Int("count", count),
	)

	slice, err := s.Store.ReadEventsForward(ctx, id, start, count)

	end(span, err)

	return slice, err
}

func (s *tracedStore) ReadEventsBackward(
	ctx context.Context,
	id streamstore.StreamID,
	start int64,
	count int) (*streamstore.StreamEventsSlice, error) {

	ctx, span := s.start(
		ctx,
		"ReadEventsBackward",
		id,
		attribute.Int64("start", start),
		attribute.Int("count", count),
	)

	slice, err := s.Store.ReadEventsBackward(ctx, id, start, count)

	end(span, err)

	return slice, err
}

func (s *tracedStore) ReadEvent(ctx context.Context, id streamstore.StreamID, number int64) (streamstore.CommonEvent, error) {
	ctx, span := s.start(ctx, "ReadEvent", id, attribute.Int64("event_number", number))

	evt, err := s.Store.ReadEvent(ctx, id, number)

	end(span, err)

	return evt, err
}

func (s *tracedStore) DeleteStream(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	hardDelete bool) error {

	ctx, span := s.start(
		ctx,
		"DeleteStream",
		id,
		attribute.String("expected_version", expected.String()),
		attribute.Bool("hard_delete", hardDelete),
	)

	err := s.Store.DeleteStream(ctx, id, expected, hardDelete)

	end(span, err)

	return err
}

func (s *tracedStore) StreamExists(ctx context.Context, id streamstore.StreamID) (bool, error) {
	ctx, span := s.start(ctx, "StreamExists", id)

	ok, err := s.Store.StreamExists(ctx, id)

	end(span, err)

	return ok, err
}

func (s *tracedStore) StreamState(ctx context.Context, id streamstore.StreamID) (streamstore.StreamState, error) {
	ctx, span := s.start(ctx, "StreamState", id)

	state, err := s.Store.StreamState(ctx, id)

	end(span, err)

	return state, err
}
