// Package instrument decorates a streamstore.Store with prometheus metrics
// and opentelemetry tracing
package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aneshas/streamstore"
)

// Default histogram buckets for latency metrics (in seconds)
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// Metrics holds the store collectors
type Metrics struct {
	duration       *prometheus.HistogramVec
	eventsAppended *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	errors         *prometheus.CounterVec
}

// NewMetrics creates the store collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streamstore_operation_duration_seconds",
			Help:    "Stream store operation latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"operation", "stream"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamstore_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"stream"}),

		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamstore_concurrency_conflicts_total",
			Help: "Total number of wrong expected version failures",
		}, []string{"stream"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamstore_errors_total",
			Help: "Total number of failed operations",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.duration,
		m.eventsAppended,
		m.conflicts,
		m.errors,
	)

	return m
}

func (m *Metrics) observe(op string, id streamstore.StreamID, start time.Time, err error) {
	m.duration.WithLabelValues(op, id.Name()).Observe(time.Since(start).Seconds())

	if err == nil {
		return
	}

	m.errors.WithLabelValues(op).Inc()

	if errors.Is(err, streamstore.ErrWrongExpectedVersion) {
		m.conflicts.WithLabelValues(id.Name()).Inc()
	}
}

// WithMetrics wraps store so that every operation is measured
func WithMetrics(store streamstore.Store, m *Metrics) streamstore.Store {
	return &meteredStore{Store: store, m: m}
}

type meteredStore struct {
	streamstore.Store
	m *Metrics
}

func (s *meteredStore) AppendToStream(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	events ...streamstore.CommonEvent) (int64, error) {

	start := time.Now()

	ver, err := s.Store.AppendToStream(ctx, id, expected, events...)

	s.m.observe("append", id, start, err)

	if err == nil {
		s.m.eventsAppended.WithLabelValues(id.Name()).Add(float64(len(events)))
	}

	return ver, err
}

func (s *meteredStore) ReadEventsForward(
	ctx context.Context,
	id streamstore.StreamID,
	start int64,
	count int) (*streamstore.StreamEventsSlice, error) {

	began := time.Now()

	slice, err := s.Store.ReadEventsForward(ctx, id, start, count)

	s.m.observe("read_forward", id, began, err)

	return slice, err
}

func (s *meteredStore) ReadEventsBackward(
	ctx context.Context,
	id streamstore.StreamID,
	start int64,
	count int) (*streamstore.StreamEventsSlice, error) {

	began := time.Now()

	slice, err := s.Store.ReadEventsBackward(ctx, id, start, count)

	s.m.observe("read_backward", id, began, err)

	return slice, err
}

func (s *meteredStore) ReadEvent(ctx context.Context, id streamstore.StreamID, number int64) (streamstore.CommonEvent, error) {
	start := time.Now()

	evt, err := s.Store.ReadEvent(ctx, id, number)

	s.m.observe("read_event", id, start, err)

	return evt, err
}

func (s *meteredStore) DeleteStream(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	hardDelete bool) error {

	start := time.Now()

	err := s.Store.DeleteStream(ctx, id, expected, hardDelete)

	s.m.observe("delete", id, start, err)

	return err
}
