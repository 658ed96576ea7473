package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/aneshas/streamstore"
)

func TestTranslateErr_Should_Map_Conflicts_To_Wrong_Expected_Version(t *testing.T) {
	cases := map[string]error{
		"gorm duplicated key": gorm.ErrDuplicatedKey,
		"sqlite constraint":   sqlite3.Error{Code: sqlite3.ErrConstraint},
		"wrapped sqlite":      fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint}),
		"postgres unique":     &pgconn.PgError{Code: "23505"},
	}

	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			got := translateErr("append", err)

			assert.ErrorIs(t, got, streamstore.ErrWrongExpectedVersion)

			var te *streamstore.TransportError

			assert.False(t, errors.As(got, &te))
		})
	}
}

func TestTranslateErr_Should_Wrap_Backend_Failures(t *testing.T) {
	cases := map[string]error{
		"sqlite busy":        sqlite3.Error{Code: sqlite3.ErrBusy},
		"postgres fk":        &pgconn.PgError{Code: "23503"},
		"arbitrary":          errors.New("connection reset"),
		"gorm invalid field": gorm.ErrInvalidField,
	}

	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			got := translateErr("read", err)

			var te *streamstore.TransportError

			assert.ErrorAs(t, got, &te)
			assert.Equal(t, "read", te.Op)
			assert.ErrorIs(t, got, err)
			assert.NotErrorIs(t, got, streamstore.ErrWrongExpectedVersion)
		})
	}
}

func TestTranslateErr_Should_Keep_Taxonomy_Errors(t *testing.T) {
	assert.NoError(t, translateErr("read", nil))

	notFound := fmt.Errorf("%w: s", streamstore.ErrStreamNotFound)
	assert.Same(t, notFound, translateErr("read", notFound))

	wrongVer := &streamstore.WrongExpectedVersionError{
		Stream:   streamstore.NewStreamID("s"),
		Expected: streamstore.ExpectVersion(1),
		Actual:   2,
	}
	assert.Same(t, wrongVer, translateErr("append", wrongVer))

	transport := streamstore.NewTransportError("open", errors.New("boom"))
	assert.Same(t, transport, translateErr("append", transport))

	assert.ErrorIs(t, translateErr("read", context.Canceled), context.Canceled)
}
