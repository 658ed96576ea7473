// Package sqlstore provides a streamstore.Store implementation backed by
// sqlite or postgres (via gorm). Events are persisted as envelopes.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/envelope"
)

// Cfg represents sql store configuration
type Cfg struct {
	PostgresDSN string
	SQLitePath  string
	DB          *gorm.DB
	Logger      *slog.Logger
}

// Option represents sql store configuration option
type Option func(Cfg) Cfg

// WithPostgresDB is a store option that can be used to configure
// the store to use postgres as a backing storage (pgx driver)
func WithPostgresDB(dsn string) Option {
	return func(cfg Cfg) Cfg {
		cfg.PostgresDSN = dsn

		return cfg
	}
}

// WithSQLiteDB is a store option that can be used to configure
// the store to use sqlite as a backing storage
func WithSQLiteDB(path string) Option {
	return func(cfg Cfg) Cfg {
		cfg.SQLitePath = path

		return cfg
	}
}

// WithDB uses an already opened gorm connection
func WithDB(db *gorm.DB) Option {
	return func(cfg Cfg) Cfg {
		cfg.DB = db

		return cfg
	}
}

// WithLogger configures the store logger
func WithLogger(log *slog.Logger) Option {
	return func(cfg Cfg) Cfg {
		cfg.Logger = log

		return cfg
	}
}

// New constructs a sql backed store. Call Open before use in order to
// migrate the schema.
func New(enc *envelope.Codec, opts ...Option) (*Store, error) {
	if enc == nil {
		return nil, fmt.Errorf("envelope codec must be provided")
	}

	cfg := Cfg{
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	db := cfg.DB

	if db == nil {
		var dial gorm.Dialector

		switch {
		case cfg.PostgresDSN != "":
			dial = postgres.Open(cfg.PostgresDSN)
		case cfg.SQLitePath != "":
			dial = sqlite.Open(cfg.SQLitePath)
		default:
			return nil, fmt.Errorf("either postgres dsn or sqlite path must be provided")
		}

		var err error

		db, err = gorm.Open(dial, &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, streamstore.NewTransportError("open", err)
		}
	}

	return &Store{
		db:  db,
		enc: enc,
		log: cfg.Logger.With(slog.String("store", "sql")),
	}, nil
}

// Store is a gorm backed streamstore.Store
type Store struct {
	db  *gorm.DB
	enc *envelope.Codec
	log *slog.Logger
}

// Open migrates the schema
func (s *Store) Open(ctx context.Context) error {
	return translateErr("migrate", s.db.WithContext(ctx).AutoMigrate(&gormStream{}, &gormEvent{}))
}

// Close should be called as a part of cleanup process
// in order to close the underlying sql connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translateErr("close", err)
	}

	return translateErr("close", sqlDB.Close())
}

// AppendToStream encodes events and appends them to the stream in a single
// transaction. See streamstore.InMemoryStore.AppendToStream for semantics.
func (s *Store) AppendToStream(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	events ...streamstore.CommonEvent) (int64, error) {

	if id.IsZero() {
		return streamstore.NoVersion, fmt.Errorf("stream name must be provided")
	}

	if id.IsProjection() {
		return streamstore.NoVersion, fmt.Errorf("%w: %s", streamstore.ErrStreamReadOnly, id)
	}

	envelopes := make([]*envelope.Envelope, len(events))

	for i, evt := range events {
		env, err := s.enc.Encode(evt)
		if err != nil {
			return streamstore.NoVersion, err
		}

		envelopes[i] = env
	}

	var version int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, found, err := loadStream(tx, id)
		if err != nil {
			return err
		}

		if !found {
			st = &gormStream{
				ID:      id.String(),
				Name:    id.Name(),
				State:   int(streamstore.StateActive),
				Version: streamstore.NoVersion,
			}
		}

		if streamstore.StreamState(st.State) == streamstore.StateHardDeleted {
			return fmt.Errorf("%w: %s", streamstore.ErrStreamDeleted, id)
		}

		if !expected.Matches(st.Version) {
			replay, err := s.tailEquals(tx, st, events)
			if err != nil {
				return err
			}

			if replay {
				version = st.Version

				return nil
			}

			return &streamstore.WrongExpectedVersionError{
				Stream:   id,
				Expected: expected,
				Actual:   st.Version,
			}
		}

		prev := st.Version

		rows := make([]gormEvent, len(envelopes))

		for i, env := range envelopes {
			st.Version++

			rows[i] = gormEvent{
				ID:            string(env.ID),
				StreamID:      st.ID,
				Generation:    st.Generation,
				StreamVersion: st.Version,
				Type:          string(env.Type),
				ContentType:   env.ContentType.String(),
				Envelope:      env.Bytes,
			}

			if env.Meta.Tenant != "" {
				tenant := env.Meta.Tenant
				rows[i].Tenant = &tenant
			}
		}

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		st.State = int(streamstore.StateActive)

		if !found {
			if err := tx.Create(st).Error; err != nil {
				return err
			}

			version = st.Version

			return nil
		}

		res := tx.Model(&gormStream{}).
			Where("id = ? AND version = ? AND generation = ?", st.ID, prev, st.Generation).
			Updates(map[string]any{
				"state":   st.State,
				"version": st.Version,
			})

		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: stream %s was modified concurrently", streamstore.ErrWrongExpectedVersion, id)
		}

		version = st.Version

		return nil
	})
	if err != nil {
		return streamstore.NoVersion, s.appendErr(ctx, id, expected, translateErr("append", err))
	}

	s.log.Debug(
		"append",
		slog.String("stream", id.String()),
		slog.Int64("version", version),
		slog.Int("num_events", len(events)),
	)

	return version, nil
}

// appendErr turns bare conflicts detected by the database into a
// WrongExpectedVersionError carrying the current stream version
func (s *Store) appendErr(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	err error) error {

	var wrongVer *streamstore.WrongExpectedVersionError

	if !errors.Is(err, streamstore.ErrWrongExpectedVersion) || errors.As(err, &wrongVer) {
		return err
	}

	actual := streamstore.NoVersion

	if st, found, lerr := loadStream(s.db.WithContext(ctx), id); lerr == nil && found {
		actual = st.Version
	}

	return &streamstore.WrongExpectedVersionError{
		Stream:   id,
		Expected: expected,
		Actual:   actual,
	}
}

func (s *Store) tailEquals(tx *gorm.DB, st *gormStream, events []streamstore.CommonEvent) (bool, error) {
	if len(events) == 0 || int64(len(events)) > st.Version+1 {
		return false, nil
	}

	var rows []gormEvent

	if err := tx.
		Where("stream_id = ? AND generation = ?", st.ID, st.Generation).
		Order("stream_version desc").
		Limit(len(events)).
		Find(&rows).Error; err != nil {
		return false, err
	}

	if len(rows) != len(events) {
		return false, nil
	}

	slices.Reverse(rows)

	for i, row := range rows {
		stored, err := s.enc.Decode(row.Envelope)
		if err != nil {
			return false, err
		}

		if !stored.Equal(events[i]) {
			return false, nil
		}
	}

	return true, nil
}

// loadStream loads the row of a writable stream. Projections are never
// stored, so they are reported as not found.
func loadStream(tx *gorm.DB, id streamstore.StreamID) (*gormStream, bool, error) {
	if id.IsProjection() {
		return nil, false, nil
	}

	var st gormStream

	err := tx.Where("id = ?", id.String()).Limit(1).Find(&st).Error
	if err != nil {
		return nil, false, err
	}

	if st.ID == "" {
		return nil, false, nil
	}

	return &st, true, nil
}

// readable returns the stream row of a readable stream (nil for $all)
func (s *Store) readable(ctx context.Context, id streamstore.StreamID) (*gormStream, error) {
	if id.IsAll() {
		return nil, nil
	}

	st, found, err := loadStream(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateErr("read", err)
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", streamstore.ErrStreamNotFound, id)
	}

	switch streamstore.StreamState(st.State) {
	case streamstore.StateSoftDeleted:
		return nil, fmt.Errorf("%w: %s", streamstore.ErrStreamNotFound, id)
	case streamstore.StateHardDeleted:
		return nil, fmt.Errorf("%w: %s", streamstore.ErrStreamDeleted, id)
	}

	return st, nil
}

// events builds the query selecting the events of a readable stream
// (ordered by sequence for $all)
func (s *Store) events(ctx context.Context, st *gormStream) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&gormEvent{})

	if st == nil {
		return q
	}

	return q.Where("stream_id = ? AND generation = ?", st.ID, st.Generation)
}

func (s *Store) decode(rows []gormEvent) ([]streamstore.CommonEvent, error) {
	out := make([]streamstore.CommonEvent, len(rows))

	for i, row := range rows {
		evt, err := s.enc.Decode(row.Envelope)
		if err != nil {
			return nil, err
		}

		out[i] = evt
	}

	return out, nil
}

// ReadEventsForward reads up to count events starting at start
func (s *Store) ReadEventsForward(
	ctx context.Context,
	id streamstore.StreamID,
	start int64,
	count int) (*streamstore.StreamEventsSlice, error) {

	if start < 0 {
		return nil, fmt.Errorf("start cannot be less than 0")
	}

	if count < 1 {
		return nil, fmt.Errorf("count should be at least 1")
	}

	st, err := s.readable(ctx, id)
	if err != nil {
		return nil, err
	}

	var rows []gormEvent

	q := s.events(ctx, st)

	if st == nil {
		q = q.Order("sequence asc").Offset(int(start))
	} else {
		q = q.Where("stream_version >= ?", start).Order("stream_version asc")
	}

	if err := q.Limit(count).Find(&rows).Error; err != nil {
		return nil, translateErr("read", err)
	}

	events, err := s.decode(rows)
	if err != nil {
		return nil, err
	}

	return &streamstore.StreamEventsSlice{
		Stream:          id,
		Direction:       streamstore.Forward,
		FromEventNumber: start,
		Events:          events,
		NextEventNumber: start + int64(len(events)),
		EndOfStream:     len(events) < count,
	}, nil
}

// ReadEventsBackward reads up to count events at start, start-1, ... down
// to 0. A negative start reads from the last event.
func (s *Store) ReadEventsBackward(
	ctx context.Context,
	id streamstore.StreamID,
	start int64,
	count int) (*streamstore.StreamEventsSlice, error) {

	if count < 1 {
		return nil, fmt.Errorf("count should be at least 1")
	}

	st, err := s.readable(ctx, id)
	if err != nil {
		return nil, err
	}

	if start < 0 {
		last, err := s.lastNumber(ctx, st)
		if err != nil {
			return nil, err
		}

		start = last
	}

	var rows []gormEvent

	if start >= 0 {
		from := max(0, start-int64(count)+1)
		q := s.events(ctx, st)

		if st == nil {
			q = q.Order("sequence asc").Offset(int(from)).Limit(int(start - from + 1))
		} else {
			q = q.Where("stream_version BETWEEN ? AND ?", from, start).Order("stream_version asc")
		}

		if err := q.Find(&rows).Error; err != nil {
			return nil, translateErr("read", err)
		}

		slices.Reverse(rows)
	}

	events, err := s.decode(rows)
	if err != nil {
		return nil, err
	}

	return &streamstore.StreamEventsSlice{
		Stream:          id,
		Direction:       streamstore.Backward,
		FromEventNumber: start,
		Events:          events,
		NextEventNumber: max(0, start-int64(len(events))),
		EndOfStream:     start-int64(count) < 0,
	}, nil
}

func (s *Store) lastNumber(ctx context.Context, st *gormStream) (int64, error) {
	if st != nil {
		return st.Version, nil
	}

	var n int64

	if err := s.events(ctx, nil).Count(&n).Error; err != nil {
		return streamstore.NoVersion, translateErr("read", err)
	}

	return n - 1, nil
}

// ReadEvent reads a single event
func (s *Store) ReadEvent(ctx context.Context, id streamstore.StreamID, number int64) (streamstore.CommonEvent, error) {
	st, err := s.readable(ctx, id)
	if err != nil {
		return streamstore.CommonEvent{}, err
	}

	if number < 0 {
		return streamstore.CommonEvent{}, fmt.Errorf("%w: %s@%d", streamstore.ErrEventNotFound, id, number)
	}

	var rows []gormEvent

	q := s.events(ctx, st)

	if st == nil {
		q = q.Order("sequence asc").Offset(int(number))
	} else {
		q = q.Where("stream_version = ?", number)
	}

	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return streamstore.CommonEvent{}, translateErr("read", err)
	}

	if len(rows) == 0 {
		return streamstore.CommonEvent{}, fmt.Errorf("%w: %s@%d", streamstore.ErrEventNotFound, id, number)
	}

	return s.enc.Decode(rows[0].Envelope)
}

// DeleteStream soft or hard deletes the stream. Stored rows are kept (and
// flagged) so that $all stays append only.
func (s *Store) DeleteStream(
	ctx context.Context,
	id streamstore.StreamID,
	expected streamstore.ExpectedVersion,
	hardDelete bool) error {

	if id.IsZero() {
		return fmt.Errorf("stream name must be provided")
	}

	if id.IsProjection() {
		return fmt.Errorf("%w: %s", streamstore.ErrStreamReadOnly, id)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, found, err := loadStream(tx, id)
		if err != nil {
			return err
		}

		if !found {
			return fmt.Errorf("%w: %s", streamstore.ErrStreamNotFound, id)
		}

		switch streamstore.StreamState(st.State) {
		case streamstore.StateHardDeleted:
			return fmt.Errorf("%w: %s", streamstore.ErrStreamDeleted, id)
		case streamstore.StateSoftDeleted:
			if !hardDelete {
				return nil
			}
		case streamstore.StateActive:
			if !expected.Matches(st.Version) {
				return &streamstore.WrongExpectedVersionError{
					Stream:   id,
					Expected: expected,
					Actual:   st.Version,
				}
			}
		}

		if err := tx.Model(&gormEvent{}).
			Where("stream_id = ? AND generation = ?", st.ID, st.Generation).
			Update("deleted", true).Error; err != nil {
			return err
		}

		state := streamstore.StateSoftDeleted
		if hardDelete {
			state = streamstore.StateHardDeleted
		}

		res := tx.Model(&gormStream{}).
			Where("id = ? AND version = ? AND generation = ?", st.ID, st.Version, st.Generation).
			Updates(map[string]any{
				"state":      int(state),
				"version":    streamstore.NoVersion,
				"generation": st.Generation + 1,
			})

		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: stream %s was modified concurrently", streamstore.ErrWrongExpectedVersion, id)
		}

		return nil
	})
	if err != nil {
		return s.appendErr(ctx, id, expected, translateErr("delete", err))
	}

	s.log.Debug(
		"delete",
		slog.String("stream", id.String()),
		slog.Bool("hard", hardDelete),
	)

	return nil
}

// StreamExists reports whether the stream exists and is active.
// Hard deleted streams fail with ErrStreamDeleted.
func (s *Store) StreamExists(ctx context.Context, id streamstore.StreamID) (bool, error) {
	if id.IsAll() {
		return true, nil
	}

	st, found, err := loadStream(s.db.WithContext(ctx), id)
	if err != nil {
		return false, translateErr("exists", err)
	}

	if !found {
		return false, nil
	}

	switch streamstore.StreamState(st.State) {
	case streamstore.StateHardDeleted:
		return false, fmt.Errorf("%w: %s", streamstore.ErrStreamDeleted, id)
	case streamstore.StateSoftDeleted:
		return false, nil
	}

	return true, nil
}

// StreamState returns the lifecycle state of a known stream
func (s *Store) StreamState(ctx context.Context, id streamstore.StreamID) (streamstore.StreamState, error) {
	if id.IsAll() {
		return streamstore.StateActive, nil
	}

	st, found, err := loadStream(s.db.WithContext(ctx), id)
	if err != nil {
		return 0, translateErr("state", err)
	}

	if !found {
		return 0, fmt.Errorf("%w: %s", streamstore.ErrStreamNotFound, id)
	}

	return streamstore.StreamState(st.State), nil
}

var _ streamstore.Store = (*Store)(nil)
