// Package store is the single choke point for reads and writes against the
// hosted table store.
//
// # Overview
//
// Store exposes filtered reads, single-row reads, upserts and idempotent
// deletes against named collections. Rows travel as Row (a JSON-shaped map);
// Decode and DecodeAll turn them into typed models and validate them, so
// malformed data is rejected here with common.ErrValidation instead of
// leaking deeper.
//
// Implementations:
//
//   - store/rest: PostgREST over HTTP (the hosted backend)
//   - store/postgres: direct PostgreSQL through database/sql + pgx
//   - store/memory: in-process, for tests and offline demos
//
// # Errors
//
// All implementations report failures with the sentinels of package common:
// ErrNotFound, ErrAmbiguous, ErrValidation, ErrConflict, ErrUnauthorized and
// ErrUnavailable. Errors are surfaced unchanged; retries are the caller's call.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/common"
)

// Row is one record as returned by the store, keyed by column name.
type Row map[string]any

// ID returns the row's "id" column as a string, or "" when absent.
func (r Row) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Op is a filter predicate kind.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpILike Op = "ilike" // case-insensitive substring
	OpIn    Op = "in"    // Value is a []any
)

// Filter restricts a query to rows whose Field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Filter { return Filter{Field: field, Op: OpNeq, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }
func ILike(field string, substr string) Filter {
	return Filter{Field: field, Op: OpILike, Value: substr}
}

func In[T any](field string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Field: field, Op: OpIn, Value: vs}
}

// Order sorts results by Field.
type Order struct {
	Field      string
	Descending bool
}

// Query describes a read against one collection.
type Query struct {
	Collection string
	Filters    []Filter
	Order      *Order
	Limit      int
}

// From starts a query on collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with additional filters.
func (q Query) Where(f ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), f...)
	return q
}

// OrderBy returns a copy of q sorted by field.
func (q Query) OrderBy(field string, descending bool) Query {
	q.Order = &Order{Field: field, Descending: descending}
	return q
}

// Validate rejects queries no backend could execute.
func (q Query) Validate() error {
	if q.Collection == "" {
		return common.NewValidationError("query", "collection", "required")
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return common.NewValidationError("query", "filter", "field required")
		}
		switch f.Op {
		case OpEq, OpNeq, OpGte, OpLte, OpILike:
		case OpIn:
			if _, ok := f.Value.([]any); !ok {
				return common.NewValidationError("query", f.Field, "in filter needs a list")
			}
		default:
			return common.NewValidationError("query", f.Field, "unknown operator "+string(f.Op))
		}
	}
	return nil
}

// Store is the remote table store contract.
type Store interface {
	// Query returns every row matching q, in q.Order when set.
	Query(ctx context.Context, q Query) ([]Row, error)

	// QuerySingle returns the only row matching q. It fails with
	// common.ErrNotFound for zero rows and common.ErrAmbiguous for more than one.
	QuerySingle(ctx context.Context, q Query) (Row, error)

	// Upsert inserts row when it has no id (the store assigns one) and
	// updates it in place otherwise. It returns the stored representation.
	Upsert(ctx context.Context, collection string, row Row) (Row, error)

	// Remove deletes the row with id. Removing a missing id is not an error.
	Remove(ctx context.Context, collection string, id string) error
}

// One applies the single-row rule to rows.
func One(rows []Row) (Row, error) {
	switch len(rows) {
	case 0:
		return nil, common.ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("%w: %d rows", common.ErrAmbiguous, len(rows))
	}
}

// Decode converts row into T and validates it. resource names the record
// kind in validation errors.
func Decode[T any](resource string, row Row) (T, error) {
	var out T
	b, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("%w: encode %s row: %v", common.ErrValidation, resource, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s row: %v", common.ErrValidation, resource, err)
	}
	if err := models.Validate(resource, out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeAll decodes every row; the first invalid row fails the whole batch.
func DecodeAll[T any](resource string, rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, r := range rows {
		v, err := Decode[T](resource, r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode converts a typed record into a Row suitable for Upsert.
func Encode(v any) (Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", common.ErrValidation, err)
	}
	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", common.ErrValidation, err)
	}
	return row, nil
}
