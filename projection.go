package streamstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ProjectorCfg represents projector configuration
type ProjectorCfg struct {
	Logger     *slog.Logger
	RetryDelay time.Duration
}

// ProjectorOpt represents projector configuration option
type ProjectorOpt func(ProjectorCfg) ProjectorCfg

// WithProjectorLogger configures the projector logger
func WithProjectorLogger(log *slog.Logger) ProjectorOpt {
	return func(cfg ProjectorCfg) ProjectorCfg {
		cfg.Logger = log

		return cfg
	}
}

// WithRetryDelay configures how long a failed projection waits before it
// is resubscribed
func WithRetryDelay(d time.Duration) ProjectorOpt {
	return func(cfg ProjectorCfg) ProjectorCfg {
		cfg.RetryDelay = d

		return cfg
	}
}

// NewProjector constructs a Projector
func NewProjector(s Subscriber, opts ...ProjectorOpt) *Projector {
	cfg := ProjectorCfg{
		Logger:     slog.Default(),
		RetryDelay: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Projector{
		subscriber: s,
		log:        cfg.Logger.With(slog.String("component", "projector")),
		retryDelay: cfg.RetryDelay,
	}
}

// Projector subscribes every registered projection to $all and
// projects events to each of them asynchronously. A failing projection is
// resubscribed after the last event it handled successfully.
type Projector struct {
	subscriber  Subscriber
	projections []Projection
	log         *slog.Logger
	retryDelay  time.Duration
}

// Projection represents a projection that should be able to handle
// projected events
type Projection func(RecordedEvent) error

// Add effectively registers a projection with the projector
// Make sure to add all of your projections before calling Run
func (p *Projector) Add(projections ...Projection) {
	p.projections = append(p.projections, projections...)
}

// Run starts the projector and blocks until ctx is canceled or the store
// stops serving subscriptions
func (p *Projector) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i, projection := range p.projections {
		i, projection := i, projection
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.run(ctx, i, projection); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}

func (p *Projector) run(ctx context.Context, n int, projection Projection) error {
	log := p.log.With(slog.Int("projection", n))
	from := FromStart

	for {
		sub, err := p.subscriber.SubscribeToStream(
			ctx,
			AllStreams,
			from,
			func(_ *Subscription, evt RecordedEvent) error {
				return projection(evt)
			},
			nil,
		)
		if err != nil {
			log.Error("subscribe failed", slog.Any("error", err))

			if !p.wait(ctx) {
				return nil
			}

			continue
		}

		<-sub.Done()

		from = sub.LastEventNumber()
		reason := sub.Err()

		switch {
		case ctx.Err() != nil, errors.Is(reason, ErrSubscriptionClosedByClient):
			return nil
		case errors.Is(reason, ErrStoreClosed):
			return reason
		}

		log.Warn(
			"projection dropped, resubscribing",
			slog.Any("error", reason),
			slog.Int64("from", from),
		)

		if !p.wait(ctx) {
			return nil
		}
	}
}

func (p *Projector) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.retryDelay):
		return true
	}
}

// FlushAfter wraps the projection passed in and it calls
// the projection itself as new events come (as usual) in addition to calling
// the provided flush function periodically each time flush interval expires.
// The flushing goroutine stops with ctx.
func FlushAfter(
	ctx context.Context,
	p Projection,
	flush func() error,
	flushInt time.Duration) Projection {
	var (
		mu  sync.Mutex
		err error
	)

	setErr := func(e error) {
		mu.Lock()
		defer mu.Unlock()

		err = e
	}

	work := make(chan RecordedEvent)

	go func() {
		ticker := time.NewTicker(flushInt)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				setErr(flush())

			case w := <-work:
				setErr(p(w))

			case <-ctx.Done():
				return
			}
		}
	}()

	return func(evt RecordedEvent) error {
		mu.Lock()
		e := err
		mu.Unlock()

		if e != nil {
			return e
		}

		select {
		case work <- evt:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
