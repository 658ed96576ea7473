// Package relay forwards appended events, encoded as envelopes, to a
// message broker
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/envelope"
)

// Publisher publishes a single envelope appended to stream
type Publisher interface {
	Publish(ctx context.Context, stream streamstore.StreamID, env *envelope.Envelope) error
}

// Cfg represents relay configuration
type Cfg struct {
	Logger *slog.Logger
	Stream streamstore.StreamID
	From   int64
	Tenant string
}

// Option represents relay configuration option
type Option func(Cfg) Cfg

// WithLogger configures the relay logger
func WithLogger(log *slog.Logger) Option {
	return func(cfg Cfg) Cfg {
		cfg.Logger = log

		return cfg
	}
}

// WithStream relays a single stream instead of $all
func WithStream(id streamstore.StreamID) Option {
	return func(cfg Cfg) Cfg {
		cfg.Stream = id

		return cfg
	}
}

// WithFrom starts relaying after the given event number ($all position
// when relaying $all)
func WithFrom(from int64) Option {
	return func(cfg Cfg) Cfg {
		cfg.From = from

		return cfg
	}
}

// WithTenant records tenant in the metadata of every relayed envelope
func WithTenant(tenant string) Option {
	return func(cfg Cfg) Cfg {
		cfg.Tenant = tenant

		return cfg
	}
}

// New constructs a Relay
func New(sub streamstore.Subscriber, enc *envelope.Codec, pub Publisher, opts ...Option) *Relay {
	cfg := Cfg{
		Logger: slog.Default(),
		Stream: streamstore.AllStreams,
		From:   streamstore.FromStart,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Relay{
		sub:    sub,
		enc:    enc,
		pub:    pub,
		stream: cfg.Stream,
		from:   cfg.From,
		tenant: cfg.Tenant,
		log:    cfg.Logger.With(slog.String("component", "relay"), slog.String("stream", cfg.Stream.String())),
	}
}

// Relay subscribes to a stream and publishes every delivered event
type Relay struct {
	sub    streamstore.Subscriber
	enc    *envelope.Codec
	pub    Publisher
	stream streamstore.StreamID
	from   int64
	tenant string
	log    *slog.Logger
}

// Run relays events until ctx is canceled (nil is returned) or the
// subscription is dropped, eg. because publishing failed
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.sub.SubscribeToStream(ctx, r.stream, r.from, r.handle(ctx), nil)
	if err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}

	r.log.Info("relay started", slog.Int64("from", r.from))

	<-sub.Done()

	r.from = sub.LastEventNumber()

	reason := sub.Err()

	if ctx.Err() != nil || errors.Is(reason, streamstore.ErrSubscriptionClosedByClient) {
		r.log.Info("relay stopped", slog.Int64("position", r.from))

		return nil
	}

	return fmt.Errorf("relay: %w", reason)
}

func (r *Relay) handle(ctx context.Context) streamstore.EventHandler {
	var opts []envelope.EncodeOption

	if r.tenant != "" {
		opts = append(opts, envelope.WithTenant(r.tenant))
	}

	return func(_ *streamstore.Subscription, evt streamstore.RecordedEvent) error {
		env, err := r.enc.Encode(evt.Event, opts...)
		if err != nil {
			return err
		}

		if err := r.pub.Publish(ctx, evt.Stream, env); err != nil {
			return fmt.Errorf("publish %s@%d: %w", evt.Stream, evt.Number, err)
		}

		r.log.Debug(
			"event relayed",
			slog.String("event_id", string(evt.Event.ID)),
			slog.String("event_stream", evt.Stream.String()),
			slog.Int64("position", evt.Position),
		)

		return nil
	}
}
