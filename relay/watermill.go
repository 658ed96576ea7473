package relay

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/envelope"
)

// Message metadata keys set on relayed messages
const (
	MetadataStream      = "stream"
	MetadataEventType   = "event_type"
	MetadataContentType = "content_type"
)

// NewWatermillPublisher publishes envelopes to topic. The message uuid is
// the event id.
func NewWatermillPublisher(pub message.Publisher, topic string) *WatermillPublisher {
	return &WatermillPublisher{
		pub:   pub,
		topic: topic,
	}
}

// WatermillPublisher is a Publisher backed by any watermill publisher
type WatermillPublisher struct {
	pub   message.Publisher
	topic string
}

// Publish implements Publisher
func (p *WatermillPublisher) Publish(ctx context.Context, stream streamstore.StreamID, env *envelope.Envelope) error {
	msg := message.NewMessage(string(env.ID), env.Bytes)

	msg.Metadata.Set(MetadataStream, stream.String())
	msg.Metadata.Set(MetadataEventType, string(env.Type))
	msg.Metadata.Set(MetadataContentType, env.ContentType.String())

	msg.SetContext(ctx)

	return p.pub.Publish(p.topic, msg)
}
