package aggregate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/aggregate"
)

func seeded(t *testing.T) (*streamstore.InMemoryStore, *aggregate.Store[*foo]) {
	t.Helper()

	es := streamstore.NewInMemoryStore()
	store := aggregate.NewStore[*foo](es)

	var f foo

	f.Rehydrate(&f)
	f.Apply(fooEvent{Foo: "foo-1"})

	require.NoError(t, store.Save(context.Background(), &f))

	return es, store
}

func TestShould_Load_And_Persist_Aggregate(t *testing.T) {
	es, store := seeded(t)

	exec := aggregate.NewExecutor(store)

	var f foo

	f.SetID("foo-1")

	err := exec(context.Background(), &f, func(ctx context.Context) error {
		f.doMoreStuff()

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, f.Count)
	assert.Equal(t, 2, f.Version())

	slice, err := es.ReadEventsForward(context.Background(), streamstore.NewStreamID("foo-1"), 0, 10)
	require.NoError(t, err)
	assert.Len(t, slice.Events, 2)
}

func TestShould_Should_Report_Exec_Error(t *testing.T) {
	es, store := seeded(t)

	exec := aggregate.NewExecutor(store)

	var f foo

	f.SetID("foo-1")

	wantErr := fmt.Errorf("error")

	err := exec(context.Background(), &f, func(ctx context.Context) error {
		f.doMoreStuff()

		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.EqualError(t, err, "aggregate foo-1: error")

	slice, err := es.ReadEventsForward(context.Background(), streamstore.NewStreamID("foo-1"), 0, 10)
	require.NoError(t, err)
	assert.Len(t, slice.Events, 1)
}

func TestShould_Report_AggregateNotFound_Error(t *testing.T) {
	store := aggregate.NewStore[*foo](streamstore.NewInMemoryStore())

	exec := aggregate.NewExecutor(store)

	var f foo

	f.SetID("foo-1")

	err := exec(context.Background(), &f, func(ctx context.Context) error {
		f.doMoreStuff()

		return nil
	})

	assert.ErrorIs(t, err, aggregate.ErrAggregateNotFound)
	assert.ErrorContains(t, err, "aggregate foo-1: load")
}

func TestShould_Report_Concurrent_Modification_On_Save(t *testing.T) {
	es, store := seeded(t)

	exec := aggregate.NewExecutor(store)

	var f foo

	f.SetID("foo-1")

	err := exec(context.Background(), &f, func(ctx context.Context) error {
		f.doMoreStuff()

		_, err := es.AppendToStream(ctx, streamstore.NewStreamID("foo-1"), streamstore.ExpectAny(), streamstore.NewCommonEvent("fooEvent", fooEvent{Foo: "foo-1"}))

		return err
	})

	assert.ErrorIs(t, err, streamstore.ErrWrongExpectedVersion)
	assert.ErrorContains(t, err, "aggregate foo-1: save (version 1)")
}
