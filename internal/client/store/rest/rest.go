// Package rest implements store.Store against a PostgREST endpoint
// (<base>/rest/v1/<table>).
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
	"github.com/agita-app/agita/internal/logging"
	"github.com/agita-app/agita/internal/netx"
)

const restPrefix = "/rest/v1/"

// Store talks to the hosted table API.
type Store struct {
	c       *netx.Client
	log     logging.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

func WithLogger(l logging.Logger) Option { return func(s *Store) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Store) { s.metrics = m } }

// New builds a Store on top of an authenticated transport.
func New(c *netx.Client, opts ...Option) *Store {
	s := &Store{c: c, log: logging.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) Query(ctx context.Context, q store.Query) (rows []store.Row, err error) {
	defer s.observe("query", q.Collection, time.Now(), &err)

	if err := q.Validate(); err != nil {
		return nil, err
	}
	params, err := encodeQuery(q)
	if err != nil {
		return nil, err
	}

	resp, err := s.c.Do(ctx, netx.Request{
		Method: http.MethodGet,
		Path:   restPrefix + url.PathEscape(q.Collection),
		Query:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", common.ErrValidation, q.Collection, err)
	}
	if rows == nil {
		rows = []store.Row{}
	}
	if fs := inexactFilters(q.Filters); len(fs) > 0 {
		kept := rows[:0]
		for _, r := range rows {
			if store.Matches(r, fs) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	return rows, nil
}

// QuerySingle asks for at most two rows so an ambiguous match is detectable
// without transferring the whole result.
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

// Upsert inserts rows without an id. Rows with an id are patched in place;
// when no row has that id yet it is inserted with the given id.
func (s *Store) Upsert(ctx context.Context, collection string, row store.Row) (out store.Row, err error) {
	defer s.observe("upsert", collection, time.Now(), &err)

	if collection == "" {
		return nil, common.NewValidationError("upsert", "collection", "required")
	}
	if len(row) == 0 {
		return nil, common.NewValidationError(collection, "row", "empty")
	}
	body, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s row: %v", common.ErrValidation, collection, err)
	}
	path := restPrefix + url.PathEscape(collection)

	if id := row.ID(); id != "" {
		resp, err := s.c.Do(ctx, netx.Request{
			Method: http.MethodPatch,
			Path:   path,
			Query:  url.Values{"id": {"eq." + id}},
			Header: http.Header{"Prefer": {"return=representation"}},
			Body:   body,
		})
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", collection, err)
		}
		rows, err := decodeRows(collection, resp.Body)
		if err != nil {
			return nil, err
		}
		if len(rows) == 1 {
			return rows[0], nil
		}
		s.log.Debug(ctx, "row not present, inserting with id", "collection", collection, "id", id)
	}

	resp, err := s.c.Do(ctx, netx.Request{
		Method: http.MethodPost,
		Path:   path,
		Header: http.Header{"Prefer": {"resolution=merge-duplicates,return=representation"}},
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	rows, err := decodeRows(collection, resp.Body)
	if err != nil {
		return nil, err
	}
	out, err = store.One(rows)
	if err != nil {
		return nil, fmt.Errorf("insert %s: unexpected representation: %w", collection, err)
	}
	return out, nil
}

// Remove deletes by id; a missing row is not an error.
func (s *Store) Remove(ctx context.Context, collection string, id string) (err error) {
	defer s.observe("remove", collection, time.Now(), &err)

	if collection == "" || id == "" {
		return common.NewValidationError("remove", "id", "required")
	}
	_, err = s.c.Do(ctx, netx.Request{
		Method: http.MethodDelete,
		Path:   restPrefix + url.PathEscape(collection),
		Query:  url.Values{"id": {"eq." + id}},
	})
	if err != nil && !netx.IsNotFound(err) {
		return fmt.Errorf("remove %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) observe(op, collection string, start time.Time, err *error) {
	s.metrics.StoreRequest(op, collection, time.Since(start), *err)
}

func decodeRows(collection string, body []byte) ([]store.Row, error) {
	var rows []store.Row
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", common.ErrValidation, collection, err)
	}
	return rows, nil
}

// encodeQuery renders q in PostgREST's query-string grammar.
func encodeQuery(q store.Query) (url.Values, error) {
	v := url.Values{"select": {"*"}}
	for _, f := range q.Filters {
		expr, err := encodeFilter(f)
		if err != nil {
			return nil, err
		}
		v.Add(f.Field, expr)
	}
	if q.Order != nil {
		dir := "asc"
		if q.Order.Descending {
			dir = "desc"
		}
		v.Set("order", q.Order.Field+"."+dir+".nullslast")
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v, nil
}

func encodeFilter(f store.Filter) (string, error) {
	switch f.Op {
	case store.OpEq, store.OpNeq, store.OpGte, store.OpLte:
		return string(f.Op) + "." + literal(f.Value), nil
	case store.OpILike:
		return "ilike.*" + likePattern(literal(f.Value)) + "*", nil
	case store.OpIn:
		items, _ := f.Value.([]any)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = quote(literal(it))
		}
		return "in.(" + strings.Join(parts, ",") + ")", nil
	default:
		return "", common.NewValidationError("query", f.Field, "unknown operator "+string(f.Op))
	}
}

// likePattern escapes LIKE metacharacters so the search text matches
// literally. PostgREST rewrites every '*' to '%', so a literal '*' cannot be
// sent; it goes out as '_' and the rows are re-checked by inexactFilters.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return strings.ReplaceAll(s, "*", "_")
}

// inexactFilters returns the substring filters the server could only
// approximate.
func inexactFilters(fs []store.Filter) []store.Filter {
	var out []store.Filter
	for _, f := range fs {
		if f.Op == store.OpILike && strings.Contains(literal(f.Value), "*") {
			out = append(out, f)
		}
	}
	return out
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
