package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/aneshas/streamstore"
)

const pgUniqueViolation = "23505"

var taxonomy = []error{
	streamstore.ErrStreamNotFound,
	streamstore.ErrStreamDeleted,
	streamstore.ErrStreamAlreadyExists,
	streamstore.ErrStreamReadOnly,
	streamstore.ErrWrongExpectedVersion,
	streamstore.ErrEventNotFound,
	streamstore.ErrInvalidEvent,
	context.Canceled,
	context.DeadlineExceeded,
}

// translateErr maps backend failures onto the store error taxonomy.
// Unique constraint violations mean that a concurrent writer won the
// race for a stream version, everything else is a transport failure.
func translateErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var te *streamstore.TransportError
	if errors.As(err, &te) {
		return err
	}

	for _, target := range taxonomy {
		if errors.Is(err, target) {
			return err
		}
	}

	if isConflict(err) {
		return fmt.Errorf("%w: %v", streamstore.ErrWrongExpectedVersion, err)
	}

	return streamstore.NewTransportError(op, err)
}

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}

	return false
}
