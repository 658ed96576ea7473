package relay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/envelope"
	"github.com/aneshas/streamstore/mimetype"
	"github.com/aneshas/streamstore/relay"
)

type OrderPlaced struct {
	OrderID string `json:"order_id"`
}

func newCodec(t *testing.T) *envelope.Codec {
	t.Helper()

	enc, err := envelope.New(
		mimetype.ApplicationJSON,
		codec.NewRegistry().Add(codec.NewJSON().Register("OrderPlaced", OrderPlaced{})),
	)
	require.NoError(t, err)

	return enc
}

func TestRelay_Should_Publish_Envelopes_To_Watermill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := streamstore.NewInMemoryStore()
	enc := newCodec(t)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, "events")
	require.NoError(t, err)

	first := streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1"})

	_, err = store.AppendToStream(ctx, streamstore.NewStreamID("orders-1"), streamstore.ExpectAny(), first)
	require.NoError(t, err)

	r := relay.New(store, enc, relay.NewWatermillPublisher(pubSub, "events"), relay.WithTenant("acme"))

	done := make(chan error, 1)

	go func() {
		done <- r.Run(ctx)
	}()

	second := streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-2"})

	_, err = store.AppendToStream(ctx, streamstore.NewStreamID("orders-2"), streamstore.ExpectAny(), second)
	require.NoError(t, err)

	for i, want := range []streamstore.CommonEvent{first, second} {
		select {
		case msg := <-messages:
			got, err := enc.Decode(msg.Payload)
			require.NoError(t, err)

			assert.Equal(t, want, got)
			assert.Equal(t, string(want.ID), msg.UUID)
			assert.Equal(t, "OrderPlaced", msg.Metadata.Get(relay.MetadataEventType))
			assert.Equal(t, mimetype.ApplicationJSON.String(), msg.Metadata.Get(relay.MetadataContentType))

			meta, err := enc.DecodeMeta(msg.Payload)
			require.NoError(t, err)
			assert.Equal(t, "acme", meta.Tenant)

			msg.Ack()

			if i == 1 {
				assert.Equal(t, "orders-2", msg.Metadata.Get(relay.MetadataStream))
			}

		case <-time.After(time.Second):
			t.Fatal("message was not relayed")
		}
	}

	cancel()

	assert.NoError(t, <-done)
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []*natsgo.Msg
	err  error
}

func (c *fakeConn) PublishMsg(m *natsgo.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	c.msgs = append(c.msgs, m)

	return nil
}

func (c *fakeConn) published() []*natsgo.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*natsgo.Msg(nil), c.msgs...)
}

func TestRelay_Should_Publish_Envelopes_To_NATS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := streamstore.NewInMemoryStore()
	enc := newCodec(t)
	conn := &fakeConn{}
	pub := relay.NewNATSPublisher(conn, "events")

	stream := streamstore.NewStreamID("orders.eu", streamstore.Param{Key: "tenant", Value: "acme"})

	r := relay.New(store, enc, pub, relay.WithStream(stream))

	done := make(chan error, 1)

	go func() {
		done <- r.Run(ctx)
	}()

	evt := streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1"})

	_, err := store.AppendToStream(ctx, stream, streamstore.ExpectAny(), evt)
	require.NoError(t, err)

	_, err = store.AppendToStream(ctx, streamstore.NewStreamID("other"), streamstore.ExpectAny(), evt)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(conn.published()) == 1
	}, time.Second, 5*time.Millisecond)

	msg := conn.published()[0]

	assert.Equal(t, "events.orders_eu(tenant=acme)", msg.Subject)
	assert.Equal(t, string(evt.ID), msg.Header.Get(natsgo.MsgIdHdr))

	got, err := enc.Decode(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, evt, got)

	cancel()

	assert.NoError(t, <-done)
	assert.Len(t, conn.published(), 1)
}

func TestRelay_Should_Stop_When_Publishing_Fails(t *testing.T) {
	ctx := context.Background()

	store := streamstore.NewInMemoryStore()
	pubErr := errors.New("broker down")
	conn := &fakeConn{err: pubErr}

	_, err := store.AppendToStream(
		ctx,
		streamstore.NewStreamID("orders-1"),
		streamstore.ExpectAny(),
		streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1"}),
	)
	require.NoError(t, err)

	r := relay.New(store, newCodec(t), relay.NewNATSPublisher(conn, "events"))

	err = r.Run(ctx)

	assert.ErrorIs(t, err, pubErr)
}
