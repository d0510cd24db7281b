// Package prefs is the client-local key/value store backed by SQLite.
//
// The only durable client state is the onboarding-completed flag; the
// store stays generic so callers do not need a migration per flag.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/agita-app/agita/internal/client/prefs/migrations"
	"github.com/agita-app/agita/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// KeyOnboardingCompleted gates the one-time onboarding flow.
const KeyOnboardingCompleted = "onboarding-completed"

// migrateUp is a seam for testing the goose provider run.
var migrateUp = func(ctx context.Context, p *goose.Provider) error {
	_, err := p.Up(ctx)
	return err
}

// RunMigrations brings db to the latest schema. It is safe to run twice.
// The provider carries its own dialect and FS, so it does not touch goose's
// package-level state.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("preferences migrations: %w", err)
	}
	if err := migrateUp(ctx, p); err != nil {
		return fmt.Errorf("migrate preferences: %w", err)
	}
	return nil
}

// Store reads and writes preferences.
type Store struct {
	db  dbx.DBTX
	sql *sql.DB
	now func() time.Time
}

// New wraps an already migrated database.
func New(db dbx.DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens (creating if needed) the SQLite file at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open preferences db: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := New(db)
	s.sql = db
	return s, nil
}

// Close releases the database opened by Open.
func (s *Store) Close() error {
	if s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Get returns the value of key and whether it is set.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// List returns every stored preference.
func (s *Store) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return out, nil
}

// OnboardingCompleted reports whether onboarding was finished. An unset or
// unparsable flag reads as false.
func (s *Store) OnboardingCompleted(ctx context.Context) (bool, error) {
	v, ok, err := s.Get(ctx, KeyOnboardingCompleted)
	if err != nil || !ok {
		return false, err
	}
	done, perr := strconv.ParseBool(v)
	return perr == nil && done, nil
}

// SetOnboardingCompleted persists the onboarding flag.
func (s *Store) SetOnboardingCompleted(ctx context.Context, done bool) error {
	return s.Set(ctx, KeyOnboardingCompleted, strconv.FormatBool(done))
}
