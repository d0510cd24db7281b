package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, metrics.New()), mock
}

func jsonRows(rows ...string) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{"row_to_json"})
	for _, s := range rows {
		r.AddRow(s)
	}
	return r
}

func TestBuildSelect(t *testing.T) {
	q := store.From(models.TableActivityTypes).
		Where(
			store.Eq("category", "running"),
			store.Eq("is_active", true),
			store.ILike("name", "50%_off"),
			store.In("id", []string{"a", "b"}),
		).
		OrderBy("name", false)
	q.Limit = 5

	sqlText, args, err := buildSelect(q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT row_to_json(t)::text FROM activity_types AS t WHERE t.category = $1 AND t.is_active = $2"+
			" AND t.name ILIKE $3 AND t.id IN ($4, $5) ORDER BY t.name ASC NULLS LAST LIMIT 5",
		sqlText)
	assert.Equal(t, []any{"running", true, `%50\%\_off%`, "a", "b"}, args)
}

func TestBuildSelect_RejectsUnknownIdentifiers(t *testing.T) {
	_, _, err := buildSelect(store.From("users"))
	require.ErrorIs(t, err, common.ErrValidation)

	_, _, err = buildSelect(store.From(models.TableRewards).Where(store.Eq("title; DROP TABLE rewards", "x")))
	require.ErrorIs(t, err, common.ErrValidation)

	_, _, err = buildSelect(store.From(models.TableRewards).OrderBy("nope", true))
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestBuildSelect_EmptyIn(t *testing.T) {
	sqlText, args, err := buildSelect(store.From(models.TableProfiles).Where(store.In("id", []string{})))
	require.NoError(t, err)
	assert.Contains(t, sqlText, "WHERE FALSE")
	assert.Empty(t, args)
}

func TestParam(t *testing.T) {
	assert.Equal(t, int64(30), param(float64(30)))
	assert.Equal(t, 2.5, param(2.5))
	assert.Equal(t, "x", param("x"))
	assert.Equal(t, `{"a":1}`, param(map[string]any{"a": 1}))
}

func TestQuery_ActivityTypesFilteredAndOrdered(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^SELECT row_to_json\(t\)::text FROM activity_types AS t WHERE t\.category = \$1 AND t\.is_active = \$2 ORDER BY t\.name ASC NULLS LAST$`).
		WithArgs("running", true).
		WillReturnRows(jsonRows(`{"id":"t2","name":"Corrida"}`, `{"id":"t1","name":"Trail"}`))

	rows, err := s.Query(context.Background(), store.From(models.TableActivityTypes).
		Where(store.Eq("category", "running"), store.Eq("is_active", true)).
		OrderBy("name", false))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Corrida", rows[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuerySingle_NotFoundAndAmbiguous(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := store.From(models.TableProfiles).Where(store.Eq("id", "u1"))

	mock.ExpectQuery(`LIMIT 2$`).WillReturnRows(jsonRows())
	_, err := s.QuerySingle(context.Background(), q)
	require.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectQuery(`LIMIT 2$`).WillReturnRows(jsonRows(`{"id":"u1"}`, `{"id":"u1"}`))
	_, err = s.QuerySingle(context.Background(), q)
	require.ErrorIs(t, err, common.ErrAmbiguous)

	mock.ExpectQuery(`LIMIT 2$`).WillReturnRows(jsonRows(`{"id":"u1","level":3}`))
	row, err := s.QuerySingle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, float64(3), row["level"])
}

func TestQuery_DriverErrorIsUnavailable(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectQuery(`FROM rewards`).WillReturnError(errors.New("connection reset"))

	_, err := s.Query(context.Background(), store.From(models.TableRewards))
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestUpsert_UpdatesExistingRow(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^UPDATE profiles AS t SET city = \$1, updated_at = now\(\) WHERE t\.id = \$2 RETURNING row_to_json\(t\)::text$`).
		WithArgs("Recife", "u1").
		WillReturnRows(jsonRows(`{"id":"u1","city":"Recife"}`))
	mock.ExpectCommit()

	row, err := s.Upsert(context.Background(), models.TableProfiles, store.Row{"id": "u1", "city": "Recife"})
	require.NoError(t, err)
	assert.Equal(t, "Recife", row["city"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_InsertsWhenUpdateMatchesNothing(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^UPDATE profiles`).WillReturnRows(jsonRows())
	mock.ExpectQuery(`^INSERT INTO profiles AS t \(city, id\) VALUES \(\$1, \$2\) RETURNING row_to_json\(t\)::text$`).
		WithArgs("Recife", "u1").
		WillReturnRows(jsonRows(`{"id":"u1","city":"Recife"}`))
	mock.ExpectCommit()

	row, err := s.Upsert(context.Background(), models.TableProfiles, store.Row{"id": "u1", "city": "Recife"})
	require.NoError(t, err)
	assert.Equal(t, "u1", row.ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_InsertWithoutID(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO rewards AS t \(suor_cost, title\) VALUES \(\$1, \$2\)`).
		WithArgs(int64(100), "Garrafa").
		WillReturnRows(jsonRows(`{"id":"r1","title":"Garrafa","suor_cost":100}`))
	mock.ExpectCommit()

	row, err := s.Upsert(context.Background(), models.TableRewards, store.Row{"title": "Garrafa", "suor_cost": float64(100)})
	require.NoError(t, err)
	assert.Equal(t, "r1", row.ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_UniqueViolationIsConflict(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO event_participants`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := s.Upsert(context.Background(), models.TableEventParticipants, store.Row{"event_id": "e1", "user_id": "u1"})
	require.ErrorIs(t, err, common.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_RejectsUnknownColumn(t *testing.T) {
	s, mock := newStoreWithMock(t)
	_, err := s.Upsert(context.Background(), models.TableRewards, store.Row{"title": "x", "secret": 1})
	require.ErrorIs(t, err, common.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`^DELETE FROM rewards WHERE id = \$1$`).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM rewards WHERE id = \$1$`).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Remove(context.Background(), models.TableRewards, "r1"))
	require.NoError(t, s.Remove(context.Background(), models.TableRewards, "r1"))
	require.ErrorIs(t, s.Remove(context.Background(), "nope", "r1"), common.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23503"}), common.ErrConflict)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "22P02"}), common.ErrValidation)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "42501"}), common.ErrUnauthorized)
	assert.ErrorIs(t, mapError(sql.ErrNoRows), common.ErrNotFound)
	assert.ErrorIs(t, mapError(errors.New("eof")), common.ErrUnavailable)
	assert.NoError(t, mapError(nil))
}

func TestRunMigrations_UsesEmbeddedSources(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := migrateUp
	t.Cleanup(func() { migrateUp = orig })

	var sources int
	migrateUp = func(ctx context.Context, p *goose.Provider) error {
		sources = len(p.ListSources())
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, 1, sources)

	migrateUp = func(ctx context.Context, p *goose.Provider) error {
		return errors.New("bad migration")
	}
	err = RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
}

func TestObserve_RecordsDuration(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectQuery(`FROM events`).WillReturnRows(jsonRows())

	start := time.Now()
	_, err := s.Query(context.Background(), store.From(models.TableEvents))
	require.NoError(t, err)

	mfs, err := s.metrics.Registry.Gather()
	require.NoError(t, err)
	var count uint64
	for _, mf := range mfs {
		if mf.GetName() == "agita_store_request_duration_seconds" {
			count = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(1), count)
	assert.WithinDuration(t, start, time.Now(), time.Second)
}
