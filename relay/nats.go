package relay

import (
	"context"
	"strings"

	natsgo "github.com/nats-io/nats.go"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/envelope"
)

// MsgPublisher is implemented by *nats.Conn
type MsgPublisher interface {
	PublishMsg(m *natsgo.Msg) error
}

// NewNATSPublisher publishes envelopes on "<prefix>.<stream>" subjects
func NewNATSPublisher(conn MsgPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
	}
}

// NATSPublisher is a Publisher backed by a NATS connection
type NATSPublisher struct {
	conn   MsgPublisher
	prefix string
}

var subjectReplacer = strings.NewReplacer(
	".", "_",
	" ", "_",
	"*", "_",
	">", "_",
	"$", "_",
)

// Subject returns the subject events of stream are published on
func (p *NATSPublisher) Subject(stream streamstore.StreamID) string {
	return p.prefix + "." + subjectReplacer.Replace(stream.String())
}

// Publish implements Publisher
func (p *NATSPublisher) Publish(ctx context.Context, stream streamstore.StreamID, env *envelope.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := natsgo.NewMsg(p.Subject(stream))
	msg.Data = env.Bytes

	msg.Header.Set(natsgo.MsgIdHdr, string(env.ID))
	msg.Header.Set("Content-Type", env.ContentType.String())
	msg.Header.Set("Event-Type", string(env.Type))
	msg.Header.Set("Stream", stream.String())

	return p.conn.PublishMsg(msg)
}
