// Package memory is an in-process store.Store used by tests and the CLI's
// offline demo mode. It evaluates filters with store.Matches and enforces
// optional unique constraints so conflict paths can be exercised.
package memory

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
	"github.com/google/uuid"
)

// Store keeps rows per collection, keyed by id.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]store.Row
	order  map[string][]string
	unique map[string][][]string
	now    func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithUnique declares a unique constraint over fields in collection.
func WithUnique(collection string, fields ...string) Option {
	return func(s *Store) {
		s.unique[collection] = append(s.unique[collection], fields)
	}
}

// WithClock overrides the timestamp source for created_at / updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]map[string]store.Row),
		order:  make(map[string][]string),
		unique: make(map[string][][]string),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed inserts rows verbatim (after normalization), bypassing constraints.
// Rows without an id get one.
func (s *Store) Seed(collection string, rows ...store.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		n := normalizeRow(r)
		if n.ID() == "" {
			n["id"] = s.newID()
		}
		s.put(collection, n)
	}
}

func (s *Store) put(collection string, row store.Row) {
	t, ok := s.tables[collection]
	if !ok {
		t = make(map[string]store.Row)
		s.tables[collection] = t
	}
	id := row.ID()
	if _, exists := t[id]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	t[id] = row
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.tables[q.Collection]
	var out []store.Row
	for _, id := range s.order[q.Collection] {
		row, ok := t[id]
		if !ok || !store.Matches(row, q.Filters) {
			continue
		}
		out = append(out, maps.Clone(row))
	}
	store.SortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) QuerySingle(ctx context.Context, q store.Query) (store.Row, error) {
	rows, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return store.One(rows)
}

func (s *Store) Upsert(ctx context.Context, collection string, row store.Row) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	if collection == "" {
		return nil, common.NewValidationError("upsert", "collection", "required")
	}
	if row == nil {
		return nil, common.NewValidationError(collection, "row", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := normalizeRow(row)
	now := s.now().UTC().Format(time.RFC3339Nano)

	id := n.ID()
	existing, exists := s.tables[collection][id]
	switch {
	case id == "":
		n["id"] = s.newID()
		n["created_at"] = now
	case exists:
		merged := maps.Clone(existing)
		maps.Copy(merged, n)
		n = merged
	default:
		if _, ok := n["created_at"]; !ok {
			n["created_at"] = now
		}
	}
	n["updated_at"] = now

	if err := s.checkUnique(collection, n); err != nil {
		return nil, err
	}
	s.put(collection, n)
	return maps.Clone(n), nil
}

func (s *Store) checkUnique(collection string, row store.Row) error {
	for _, fields := range s.unique[collection] {
		for id, other := range s.tables[collection] {
			if id == row.ID() {
				continue
			}
			same := true
			for _, f := range fields {
				if store.Normalize(other[f]) != store.Normalize(row[f]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s(%s)", common.ErrConflict, collection, strings.Join(fields, ","))
			}
		}
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[collection][id]; !ok {
		return nil
	}
	delete(s.tables[collection], id)
	ids := s.order[collection]
	for i, v := range ids {
		if v == id {
			s.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of rows in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[collection])
}

func normalizeRow(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		out[k] = store.Normalize(v)
	}
	return out
}
