// Package streamstore provides a storage agnostic model for appending and
// reading ordered, versioned event streams with optimistic concurrency.
// A reference in-memory store (with subscriptions) and mechanisms for
// building projections are provided; persistence adapters (see sqlstore)
// implement the same Store contract and serialize events with the envelope codec.
package streamstore

import (
	"context"
	"fmt"
)

// StreamState is the lifecycle state of a stream.
// Active ⇄ SoftDeleted → HardDeleted (terminal).
type StreamState int

const (
	// StateActive stream can be read and appended to
	StateActive StreamState = iota + 1

	// StateSoftDeleted stream reads as not found and is revived by the next append
	StateSoftDeleted

	// StateHardDeleted stream is permanently unusable
	StateHardDeleted
)

// String implements fmt.Stringer
func (s StreamState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSoftDeleted:
		return "soft-deleted"
	case StateHardDeleted:
		return "hard-deleted"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// ReadDirection of a slice read
type ReadDirection int

const (
	// Forward reads in ascending event number order
	Forward ReadDirection = iota

	// Backward reads in descending event number order
	Backward
)

// StreamEventsSlice is a single page of a forward or backward stream read
type StreamEventsSlice struct {
	Stream          StreamID
	Direction       ReadDirection
	FromEventNumber int64
	Events          []CommonEvent
	NextEventNumber int64
	EndOfStream     bool
}

// Store is the stream store contract. Every adapter must report failures
// using this package's error taxonomy regardless of the backing transport
// (backend failures are wrapped in TransportError).
type Store interface {
	Open(ctx context.Context) error
	Close() error

	// AppendToStream appends events and returns the new stream version
	AppendToStream(ctx context.Context, id StreamID, expected ExpectedVersion, events ...CommonEvent) (int64, error)

	ReadEventsForward(ctx context.Context, id StreamID, start int64, count int) (*StreamEventsSlice, error)
	ReadEventsBackward(ctx context.Context, id StreamID, start int64, count int) (*StreamEventsSlice, error)
	ReadEvent(ctx context.Context, id StreamID, number int64) (CommonEvent, error)

	DeleteStream(ctx context.Context, id StreamID, expected ExpectedVersion, hardDelete bool) error

	StreamExists(ctx context.Context, id StreamID) (bool, error)
	StreamState(ctx context.Context, id StreamID) (StreamState, error)
}

// FromStart can be passed to SubscribeToStream in order to receive every stored event
const FromStart int64 = -1

// EventHandler is called for every event delivered to a subscription.
// Returning an error drops the subscription.
type EventHandler func(sub *Subscription, evt RecordedEvent) error

// DropHandler is called once when a subscription stops receiving events
type DropHandler func(sub *Subscription, reason error)

// Subscriber is implemented by stores able to push appended events
type Subscriber interface {
	SubscribeToStream(
		ctx context.Context,
		id StreamID,
		fromEventNumber int64,
		onEvent EventHandler,
		onDrop DropHandler) (*Subscription, error)

	UnsubscribeFromStream(sub *Subscription)
}

// ReadAllForward pages through a stream from start until end of stream is
// reached and returns every event read
func ReadAllForward(ctx context.Context, s Store, id StreamID, start int64, batchSize int) ([]CommonEvent, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size should be at least 1")
	}

	var events []CommonEvent

	for {
		slice, err := s.ReadEventsForward(ctx, id, start, batchSize)
		if err != nil {
			return nil, err
		}

		events = append(events, slice.Events...)

		if slice.EndOfStream {
			return events, nil
		}

		start = slice.NextEventNumber
	}
}
