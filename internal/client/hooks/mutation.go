package hooks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/agita-app/agita/internal/client/querycache"
)

// Dependency names cache entries a mutation makes stale. Params, when set,
// narrows the match to keys containing those parameters.
type Dependency[In, Out any] struct {
	Collection string
	Params     func(in In, out Out) map[string]any
}

func (d Dependency[In, Out]) matcher(in In, out Out) querycache.Matcher {
	var p map[string]any
	if d.Params != nil {
		p = d.Params(in, out)
	}
	return querycache.Collection(d.Collection, p)
}

// Mutation is a typed write binding.
type Mutation[In, Out any] struct {
	Name        string
	Writes      []string
	Invalidates []Dependency[In, Out]
	Run         func(ctx context.Context, c *Client, in In) (Out, error)
}

// Mutate runs the write. On success every dependency is invalidated; errors
// are returned to the caller untouched apart from the mutation name.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, c *Client, in In) (Out, error) {
	out, err := m.Run(ctx, c, in)
	if err != nil {
		c.log.Warn(ctx, "mutation failed", "mutation", m.Name, "error", err)
		return out, fmt.Errorf("%s: %w", m.Name, err)
	}
	n := 0
	for _, d := range m.Invalidates {
		n += c.cache.Invalidate(d.matcher(in, out))
	}
	c.log.Debug(ctx, "mutation applied", "mutation", m.Name, "invalidated", n)
	return out, nil
}

// QueryInfo and MutationInfo are the static shape of a declaration.
type QueryInfo struct {
	Name       string
	Collection string
	Reads      []string
}

type MutationInfo struct {
	Name        string
	Writes      []string
	Invalidates []string
}

// Registry records declared queries and mutations.
type Registry struct {
	mu        sync.Mutex
	queries   []QueryInfo
	mutations []MutationInfo
}

var catalog = &Registry{}

// Catalog returns the registry of every query and mutation in this package.
func Catalog() *Registry { return catalog }

func declareQuery[P, T any](q *Query[P, T]) *Query[P, T] {
	catalog.AddQuery(QueryInfo{Name: q.Name, Collection: q.Collection, Reads: q.reads()})
	return q
}

func declareMutation[In, Out any](m *Mutation[In, Out]) *Mutation[In, Out] {
	info := MutationInfo{Name: m.Name, Writes: m.Writes}
	for _, d := range m.Invalidates {
		info.Invalidates = append(info.Invalidates, d.Collection)
	}
	catalog.AddMutation(info)
	return m
}

func (r *Registry) AddQuery(q QueryInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *Registry) AddMutation(m MutationInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, m)
}

func (r *Registry) Queries() []QueryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.queries)
}

func (r *Registry) Mutations() []MutationInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.mutations)
}

// Dependents returns the cache collections of every query reading table.
func (r *Registry) Dependents(table string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := map[string]struct{}{}
	for _, q := range r.queries {
		if slices.Contains(q.Reads, table) {
			set[q.Collection] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Check verifies that each mutation invalidates the cache collection of
// every query reading a collection it writes.
func (r *Registry) Check() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, m := range r.mutations {
		for _, w := range m.Writes {
			for _, q := range r.queries {
				if !slices.Contains(q.Reads, w) {
					continue
				}
				if !slices.Contains(m.Invalidates, q.Collection) {
					errs = append(errs, fmt.Errorf("mutation %q writes %s but does not invalidate query %q (%s)",
						m.Name, w, q.Name, q.Collection))
				}
			}
		}
	}
	return errors.Join(errs...)
}
