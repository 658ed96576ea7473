package streamstore

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/aneshas/streamstore/codec"
)

// EventID uniquely identifies an event
type EventID string

// NewEventID generates a new (time ordered) event id
func NewEventID() EventID {
	id, err := uuid.NewV7()
	if err != nil {
		return EventID(uuid.NewString())
	}

	return EventID(id.String())
}

// String implements fmt.Stringer
func (id EventID) String() string { return string(id) }

// CommonEvent is the store agnostic representation of a single event.
// MetaType must be set if and only if Meta is set.
type CommonEvent struct {
	ID       EventID
	DataType codec.TypeName
	Data     any

	// Optional
	MetaType codec.TypeName
	Meta     any
}

// NewCommonEvent constructs an event with a generated id
func NewCommonEvent(dataType codec.TypeName, data any) CommonEvent {
	return CommonEvent{
		ID:       NewEventID(),
		DataType: dataType,
		Data:     data,
	}
}

// WithMeta returns a copy of the event carrying the provided metadata
func (e CommonEvent) WithMeta(metaType codec.TypeName, meta any) CommonEvent {
	e.MetaType = metaType
	e.Meta = meta

	return e
}

// HasMeta reports whether the event carries metadata
func (e CommonEvent) HasMeta() bool { return e.MetaType != "" }

// Validate checks event invariants
func (e CommonEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: event id is empty", ErrInvalidEvent)
	}

	if e.DataType == "" {
		return fmt.Errorf("%w: event %s: data type is empty", ErrInvalidEvent, e.ID)
	}

	if (e.MetaType == "") != (e.Meta == nil) {
		return fmt.Errorf("%w: event %s: meta type and meta must be set together", ErrInvalidEvent, e.ID)
	}

	return nil
}

// Equal reports structural equality of two events
func (e CommonEvent) Equal(other CommonEvent) bool {
	return e.ID == other.ID &&
		e.DataType == other.DataType &&
		e.MetaType == other.MetaType &&
		reflect.DeepEqual(e.Data, other.Data) &&
		reflect.DeepEqual(e.Meta, other.Meta)
}

// RecordedEvent is an event as delivered by subscriptions and projections
type RecordedEvent struct {
	// Stream the event was appended to
	Stream StreamID

	// Number is the event number within its stream (0 based)
	Number int64

	// Position is the event position within $all (0 based)
	Position int64

	// Created is when the event was stored
	Created time.Time

	Event CommonEvent
}
