package aggregate

import (
	"fmt"
	"reflect"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/codec"
)

var (
	// ErrMissingAggregateEventHandler is returned when aggregate event handler is missing
	// On{EventName} method
	ErrMissingAggregateEventHandler = fmt.Errorf("missing aggregate event handler")

	// ErrAggregateRootNotAPointer is returned when supplied aggregate root is not a pointer
	ErrAggregateRootNotAPointer = fmt.Errorf("aggregate needs to be a pointer")

	// ErrAggregateRootNotRehydrated is returned when aggregate is not rehydrated (with Rehydrate method)
	ErrAggregateRootNotRehydrated = fmt.Errorf("aggregate needs to be rehydrated")
)

// ID is an aggregate identifier
type ID interface {
	fmt.Stringer
}

// Rooter is implemented by every struct embedding Root
type Rooter interface {
	StringID() string
	Version() int
	Events() []Event
	Rehydrate(aggregatePtr any, events ...any)

	committed()
}

// Root represents reusable DDD Event Sourcing friendly Aggregate
// base type which provides helpers for easy aggregate initialization and
// event handler execution
type Root[T ID] struct {
	id T

	version      int
	domainEvents []Event

	ptr reflect.Value
}

// ID returns the aggregate id
func (a *Root[T]) ID() T { return a.id }

// SetID sets the aggregate id, usually from within the creation event handler
func (a *Root[T]) SetID(id T) { a.id = id }

// StringID returns the aggregate id as string (stream name)
func (a *Root[T]) StringID() string { return a.id.String() }

// Rehydrate is used to construct and rehydrate the aggregate from events.
// Any uncommitted events are discarded.
func (a *Root[T]) Rehydrate(aggregatePtr any, events ...any) {
	a.ptr = reflect.ValueOf(aggregatePtr)

	if a.ptr.Kind() != reflect.Ptr {
		panic(ErrAggregateRootNotAPointer)
	}

	a.version = 0
	a.domainEvents = nil

	for _, evt := range events {
		a.mutate(evt)

		a.version++
	}
}

// Version returns the number of persisted events the aggregate was
// rehydrated from (or saved since)
func (a *Root[T]) Version() int { return a.version }

// Events returns uncommitted domain events (produced by calling Apply)
func (a *Root[T]) Events() []Event {
	if a.domainEvents == nil {
		return []Event{}
	}

	return a.domainEvents
}

// Apply mutates aggregate (calls respective event handle) and
// appends event to internal slice, so that they can be retrieved with Events method
// In order for Apply to work the derived aggregate struct needs to implement
// an event handler method for all events it produces eg:
//
// If it produces event of type: SomethingImportantHappened
// Derived aggregate should have the following method implemented:
// func (a *SomeAggregate) OnSomethingImportantHappened(e SomethingImportantHappened)
func (a *Root[T]) Apply(events ...any) {
	if !a.ptr.IsValid() {
		panic(ErrAggregateRootNotRehydrated)
	}

	for _, evt := range events {
		a.mutate(evt)

		a.domainEvents = append(a.domainEvents, Event{
			ID:   streamstore.NewEventID(),
			Type: TypeOf(evt),
			E:    evt,
		})
	}
}

func (a *Root[T]) committed() {
	a.version += len(a.domainEvents)
	a.domainEvents = nil
}

func (a *Root[T]) mutate(evt any) {
	hName := fmt.Sprintf("On%s", goTypeName(evt))

	h := a.ptr.MethodByName(hName)

	if !h.IsValid() {
		panic(fmt.Errorf("%w: %s", ErrMissingAggregateEventHandler, hName))
	}

	h.Call([]reflect.Value{
		reflect.ValueOf(evt),
	})
}

// Typer can be implemented by events in order to override the type name
// they are stored under (the Go type name by default)
type Typer interface {
	EventType() string
}

// TypeOf returns the type name evt is stored under
func TypeOf(evt any) codec.TypeName {
	if t, ok := evt.(Typer); ok {
		return codec.TypeName(t.EventType())
	}

	return codec.TypeName(goTypeName(evt))
}

func goTypeName(evt any) string {
	t := reflect.TypeOf(evt)

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t.Name()
}
