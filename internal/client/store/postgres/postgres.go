// Package postgres implements store.Store directly on PostgreSQL through
// database/sql and the pgx driver. Rows are selected as row_to_json so the
// generic Row shape matches what the REST backend returns.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/client/store/postgres/migrations"
	"github.com/agita-app/agita/internal/common"
	"github.com/agita-app/agita/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Store runs table operations as SQL.
type Store struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// New wraps an open database handle.
func New(db *sql.DB, m *metrics.Metrics) *Store {
	return &Store{db: db, metrics: m}
}

var _ store.Store = (*Store)(nil)

// Open connects with the pgx driver, checks the connection and applies
// migrations.
func Open(ctx context.Context, dsn string, m *metrics.Metrics) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", common.ErrUnavailable, err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, m), nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrateUp is a seam for testing the goose provider run.
var migrateUp = func(ctx context.Context, p *goose.Provider) error {
	_, err := p.Up(ctx)
	return err
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if err := migrateUp(ctx, p); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) (rows []store.Row, err error) {
	defer s.observe("query", q.Collection, time.Now(), &err)

	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	return scanRows(ctx, s.db, query, args...)
}

func (s *Store) QuerySingle(ctx context.Context, q store.Query) (store.Row, error) {
	q.Limit = 2
	rows, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	row, err := store.One(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.Collection, err)
	}
	return row, nil
}

// Upsert updates by id when the row exists and inserts otherwise, in one
// transaction.
func (s *Store) Upsert(ctx context.Context, collection string, row store.Row) (out store.Row, err error) {
	defer s.observe("upsert", collection, time.Now(), &err)

	t, ok := lookup(collection)
	if !ok {
		return nil, common.NewValidationError("upsert", "collection", "unknown "+collection)
	}
	if len(row) == 0 {
		return nil, common.NewValidationError(collection, "row", "empty")
	}
	cols, vals, err := split(t, row)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if id := row.ID(); id != "" {
			query, args := buildUpdate(t, cols, vals, id)
			rows, err := scanRows(ctx, tx, query, args...)
			if err != nil {
				return err
			}
			if len(rows) == 1 {
				out = rows[0]
				return nil
			}
		}
		query, args := buildInsert(t, cols, vals)
		rows, err := scanRows(ctx, tx, query, args...)
		if err != nil {
			return err
		}
		out, err = store.One(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) Remove(ctx context.Context, collection string, id string) (err error) {
	defer s.observe("remove", collection, time.Now(), &err)

	t, ok := lookup(collection)
	if !ok || id == "" {
		return common.NewValidationError("remove", "id", "required")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = $1", id); err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, id, mapError(err))
	}
	return nil
}

func (s *Store) observe(op, collection string, start time.Time, err *error) {
	s.metrics.StoreRequest(op, collection, time.Since(start), *err)
}

func scanRows(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]store.Row, error) {
	rs, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rs.Close()

	out := []store.Row{}
	for rs.Next() {
		var raw []byte
		if err := rs.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var r store.Row
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: decode row: %v", common.ErrValidation, err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func buildSelect(q store.Query) (string, []any, error) {
	t, ok := lookup(q.Collection)
	if !ok {
		return "", nil, common.NewValidationError("query", "collection", "unknown "+q.Collection)
	}

	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT row_to_json(t)::text FROM " + t.name + " AS t")

	for i, f := range q.Filters {
		if !t.has(f.Field) {
			return "", nil, common.NewValidationError(q.Collection, f.Field, "unknown column")
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		col := "t." + f.Field
		switch f.Op {
		case store.OpEq:
			args = append(args, param(f.Value))
			b.WriteString(col + " = $" + strconv.Itoa(len(args)))
		case store.OpNeq:
			args = append(args, param(f.Value))
			b.WriteString(col + " <> $" + strconv.Itoa(len(args)))
		case store.OpGte:
			args = append(args, param(f.Value))
			b.WriteString(col + " >= $" + strconv.Itoa(len(args)))
		case store.OpLte:
			args = append(args, param(f.Value))
			b.WriteString(col + " <= $" + strconv.Itoa(len(args)))
		case store.OpILike:
			args = append(args, "%"+escapeLike(fmt.Sprint(f.Value))+"%")
			b.WriteString(col + " ILIKE $" + strconv.Itoa(len(args)))
		case store.OpIn:
			items, _ := f.Value.([]any)
			if len(items) == 0 {
				b.WriteString("FALSE")
				continue
			}
			ph := make([]string, len(items))
			for j, it := range items {
				args = append(args, param(it))
				ph[j] = "$" + strconv.Itoa(len(args))
			}
			b.WriteString(col + " IN (" + strings.Join(ph, ", ") + ")")
		}
	}

	if q.Order != nil {
		if !t.has(q.Order.Field) {
			return "", nil, common.NewValidationError(q.Collection, q.Order.Field, "unknown column")
		}
		dir := "ASC"
		if q.Order.Descending {
			dir = "DESC"
		}
		b.WriteString(" ORDER BY t." + q.Order.Field + " " + dir + " NULLS LAST")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String(), args, nil
}

// split orders the row's columns deterministically and rejects unknown ones.
func split(t table, row store.Row) ([]string, []any, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if !t.has(c) {
			return nil, nil, common.NewValidationError(t.name, c, "unknown column")
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = param(row[c])
	}
	return cols, vals, nil
}

func buildUpdate(t table, cols []string, vals []any, id string) (string, []any) {
	var (
		sets []string
		args []any
	)
	for i, c := range cols {
		if c == "id" {
			continue
		}
		args = append(args, vals[i])
		sets = append(sets, c+" = $"+strconv.Itoa(len(args)))
	}
	if t.has("updated_at") && !contains(cols, "updated_at") {
		sets = append(sets, "updated_at = now()")
	}
	args = append(args, id)
	return "UPDATE " + t.name + " AS t SET " + strings.Join(sets, ", ") +
		" WHERE t.id = $" + strconv.Itoa(len(args)) + " RETURNING row_to_json(t)::text", args
}

func buildInsert(t table, cols []string, vals []any) (string, []any) {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO " + t.name + " AS t (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(ph, ", ") + ") RETURNING row_to_json(t)::text", vals
}

// param adapts JSON-shaped values for the driver: whole floats become
// integers so they bind to integer columns.
func param(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]any, []any:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return v
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// mapError translates driver errors into the common taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.Message)
		case "22P02", "23502", "23514", "22001", "22007":
			return fmt.Errorf("%w: %s", common.ErrValidation, pgErr.Message)
		case "42501":
			return fmt.Errorf("%w: %s", common.ErrUnauthorized, pgErr.Message)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
}
