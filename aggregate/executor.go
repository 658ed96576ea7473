package aggregate

import (
	"context"
	"fmt"
)

// Command runs against a rehydrated aggregate and applies the events it decides on
type Command func(ctx context.Context) error

// Executor runs a command against the aggregate it was given
type Executor[T Rooter] func(ctx context.Context, a T, cmd Command) error

// NewExecutor binds Exec to store
func NewExecutor[T Rooter](store *Store[T]) Executor[T] {
	return func(ctx context.Context, a T, cmd Command) error {
		return Exec(ctx, store, a, cmd)
	}
}

// Exec rehydrates a (by its current id), runs cmd and saves the applied
// events at the version a was loaded at. Nothing is saved if cmd fails.
// Errors keep their identity (eg. ErrAggregateNotFound,
// streamstore.ErrWrongExpectedVersion) and name the aggregate.
func Exec[T Rooter](ctx context.Context, store *Store[T], a T, cmd Command) error {
	id := a.StringID()

	if err := store.ByID(ctx, id, a); err != nil {
		return fmt.Errorf("aggregate %s: load: %w", id, err)
	}

	if err := cmd(ctx); err != nil {
		return fmt.Errorf("aggregate %s: %w", id, err)
	}

	if err := store.Save(ctx, a); err != nil {
		return fmt.Errorf("aggregate %s: save (version %d): %w", id, a.Version(), err)
	}

	return nil
}
