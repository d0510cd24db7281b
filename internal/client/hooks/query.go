package hooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agita-app/agita/internal/client/querycache"
	"github.com/agita-app/agita/internal/common"
)

// Query is a typed read binding. P is the parameter type, T the result.
type Query[P, T any] struct {
	Name       string
	Collection string
	// Reads lists every collection the loader reads. Empty means just
	// Collection.
	Reads      []string
	StaleAfter func(Policy) time.Duration
	Params     func(P) map[string]any
	Load       func(ctx context.Context, c *Client, p P) (T, error)
}

// Key is the cache key for p.
func (q *Query[P, T]) Key(p P) querycache.Key {
	k := querycache.Key{Collection: q.Collection}
	if q.Params != nil {
		k.Params = q.Params(p)
	}
	return k
}

func (q *Query[P, T]) reads() []string {
	if len(q.Reads) == 0 {
		return []string{q.Collection}
	}
	return q.Reads
}

func (q *Query[P, T]) staleAfter(c *Client) time.Duration {
	if q.StaleAfter == nil {
		return c.policy.DefaultStaleAfter
	}
	return q.StaleAfter(c.policy)
}

// Read returns the cached value for p, loading it when needed.
func (q *Query[P, T]) Read(ctx context.Context, c *Client, p P) (T, error) {
	return querycache.Fetch(ctx, c.cache, q.Key(p), q.staleAfter(c), func(ctx context.Context) (T, error) {
		return q.Load(ctx, c, p)
	})
}

// View is what a reactive consumer renders.
type View[T any] struct {
	Data      T
	HasData   bool
	IsLoading bool
	Err       error
	FetchedAt time.Time
}

// Watch streams the state of one query key. The first view arrives
// immediately; a load is started if the key has no fresh value.
type Watch[T any] struct {
	sub     *querycache.Subscription
	views   chan View[T]
	refresh func(ctx context.Context)
}

// Watch subscribes to p's cache entry and triggers a read with ctx.
func (q *Query[P, T]) Watch(ctx context.Context, c *Client, p P) *Watch[T] {
	sub := c.cache.Subscribe(q.Key(p))
	load := func(ctx context.Context) (any, error) { return q.Load(ctx, c, p) }
	w := &Watch[T]{
		sub:   sub,
		views: make(chan View[T], 1),
		// Reads go through the subscription so a refresh that runs after
		// Close cannot recreate the evicted entry.
		refresh: func(ctx context.Context) {
			_, err := sub.Get(ctx, load, q.staleAfter(c))
			if err != nil && !errors.Is(err, querycache.ErrUnsubscribed) {
				c.log.Debug(ctx, "watch read failed", "query", q.Name, "error", err)
			}
		},
	}
	go w.run()
	go w.refresh(ctx)
	return w
}

// Views is closed after Close.
func (w *Watch[T]) Views() <-chan View[T] { return w.views }

// Refresh reads the key again; a stale entry reloads in the background.
func (w *Watch[T]) Refresh(ctx context.Context) { w.refresh(ctx) }

// Close stops the stream. A load in flight keeps running; later Refresh
// calls do nothing.
func (w *Watch[T]) Close() { w.sub.Close() }

func (w *Watch[T]) run() {
	defer close(w.views)
	for st := range w.sub.Updates() {
		v := toView[T](st)
		select {
		case w.views <- v:
			continue
		default:
		}
		select {
		case <-w.views:
		default:
		}
		w.views <- v
	}
}

func toView[T any](st querycache.State) View[T] {
	v := View[T]{IsLoading: st.IsLoading(), Err: st.Err, FetchedAt: st.FetchedAt}
	if !st.HasValue {
		return v
	}
	d, ok := st.Value.(T)
	if !ok {
		v.Err = fmt.Errorf("%w: cached value is %T", common.ErrValidation, st.Value)
		return v
	}
	v.Data, v.HasData = d, true
	return v
}
