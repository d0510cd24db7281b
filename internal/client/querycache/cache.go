// Package querycache deduplicates and time-bounds reads against the remote
// store.
//
// A Cache maps a Key to an entry holding the last loaded value and its
// status. Concurrent Get calls for the same key share one loader invocation.
// Entries that outlived their staleness window keep serving their value
// while a background reload runs. Invalidate marks entries stale so the next
// Get refetches before answering; until then Peek and subscribers still see
// the previous value. Subscriptions observe every state change of an entry
// and keep it alive: when the last subscriber closes, the entry is evicted.
//
// Status moves along pending -> fresh|error, fresh -> stale and
// stale|error -> pending. There are two exceptions: SetValue settles an
// entry as fresh directly, as if a load had just succeeded, and Evict resets
// a subscribed entry to an empty pending state from any status.
//
// Each Invalidate or Evict starts a new epoch for the entries it matches.
// Loads are shared only within an epoch, so a Get issued after a mutation
// never joins a load that was started before it.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/logging"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrClosed is returned by Get after Close.
	ErrClosed = errors.New("querycache: closed")
	// ErrUnsubscribed is returned by Subscription.Get after Close.
	ErrUnsubscribed = errors.New("querycache: subscription closed")
)

// Loader fetches the value for a key. The context it receives is detached
// from the caller's cancellation.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	key        Key
	value      any
	hasValue   bool
	status     Status
	err        error
	fetchedAt  time.Time
	staleAfter time.Duration

	// epoch changes on Invalidate and Evict; a load that started in an
	// older epoch settles as stale.
	epoch uint64
	// flight is the epoch of the most recently started load. Results of
	// older loads are dropped once a newer one is running.
	flight uint64
	// invalidated entries are not served by Get until a load settles in the
	// current epoch.
	invalidated bool
	subs        map[*Subscription]struct{}
}

func (e *entry) state() State {
	return State{
		Value:     e.value,
		HasValue:  e.hasValue,
		Status:    e.status,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
	}
}

// Cache is safe for concurrent use. Create one per process (or per test)
// with New and pass it explicitly.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	loads   sync.WaitGroup
	closed  bool
	// seq hands out epochs; it is unique across entries so a recreated
	// entry never shares a flight with the one it replaced.
	seq uint64

	now     func() time.Time
	log     logging.Logger
	metrics *metrics.Metrics

	// onTransition, when set, sees every status change. Used by tests.
	onTransition func(key string, from, to Status)
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithLogger(l logging.Logger) Option { return func(c *Cache) { c.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Cache) { c.metrics = m } }

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
		log:     logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the value for key.
//
// A fresh value is returned as is. A value that went stale with time is
// returned immediately and a background reload is started. Without a value,
// after a failed load or after Invalidate, Get waits for the shared load; if
// ctx ends first Get returns ctx.Err() but the load keeps running for the
// other waiters. A staleAfter of zero makes every value stale as soon as it
// is loaded.
func (c *Cache) Get(ctx context.Context, key Key, loader Loader, staleAfter time.Duration) (any, error) {
	return c.get(ctx, key, loader, staleAfter, nil)
}

// get is Get, optionally on behalf of sub. A closed sub makes it return
// ErrUnsubscribed without touching the entries.
func (c *Cache) get(ctx context.Context, key Key, loader Loader, staleAfter time.Duration, sub *Subscription) (any, error) {
	ks := key.String()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if sub != nil && sub.closed {
		c.mu.Unlock()
		return nil, ErrUnsubscribed
	}
	e := c.entryLocked(ks, key)
	e.staleAfter = staleAfter
	c.expireLocked(e)

	switch {
	case e.hasValue && e.status == StatusFresh:
		v := e.value
		c.mu.Unlock()
		c.metrics.CacheLookup(key.Collection, "hit")
		return v, nil

	case e.hasValue && !e.invalidated && (e.status == StatusStale || e.status == StatusPending):
		v := e.value
		if e.status == StatusStale {
			ch := c.startLocked(ctx, ks, e, loader)
			c.loads.Add(1)
			go func() {
				<-ch
				c.loads.Done()
			}()
		}
		c.mu.Unlock()
		c.metrics.CacheLookup(key.Collection, "stale")
		return v, nil
	}

	result := "miss"
	if e.invalidated {
		result = "invalidated"
	}
	ch := c.startLocked(ctx, ks, e, loader)
	c.loads.Add(1)
	c.mu.Unlock()
	c.metrics.CacheLookup(key.Collection, result)

	select {
	case r := <-ch:
		c.loads.Done()
		return r.Val, r.Err
	case <-ctx.Done():
		go func() {
			<-ch
			c.loads.Done()
		}()
		return nil, ctx.Err()
	}
}

// Fetch is Get with a typed loader and result.
func Fetch[T any](ctx context.Context, c *Cache, key Key, staleAfter time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) { return load(ctx) }, staleAfter)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: value for %s is %T, not %T", key, v, zero)
	}
	return t, nil
}

// startLocked moves e to pending and joins (or starts) the shared load for
// ks. The caller must hold c.mu.
func (c *Cache) startLocked(ctx context.Context, ks string, e *entry, loader Loader) <-chan singleflight.Result {
	c.setStatusLocked(e, StatusPending, e.err)
	epoch := e.epoch
	e.flight = epoch
	lctx := context.WithoutCancel(ctx)

	return c.group.DoChan(ks+"#"+strconv.FormatUint(epoch, 10), func() (v any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("querycache: loader for %s panicked: %v", ks, p)
			}
			c.settle(ks, e, epoch, v, err)
		}()
		c.log.Debug(lctx, "cache load", "key", ks)
		return loader(lctx)
	})
}

// settle records a load result. Results for entries that were evicted in
// the meantime, or that a newer load superseded, are dropped.
func (c *Cache) settle(ks string, e *entry, epoch uint64, v any, err error) {
	c.metrics.CacheLoad(e.key.Collection, err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[ks] != e || epoch != e.flight {
		return
	}
	if err != nil {
		c.log.Warn(context.Background(), "cache load failed", "key", ks, "error", err)
		c.setStatusLocked(e, StatusError, err)
		return
	}
	e.value, e.hasValue = v, true
	e.fetchedAt = c.now()
	if epoch != e.epoch {
		e.invalidated = true
		// Invalidated while loading: keep the value, refetch on next Get.
		c.setStatusLocked(e, StatusFresh, nil)
		c.setStatusLocked(e, StatusStale, nil)
		return
	}
	e.invalidated = false
	c.setStatusLocked(e, StatusFresh, nil)
}

// Invalidate marks every matching fresh entry stale and returns how many
// entries matched. The next Get of a matching key waits for a reload; Peek
// and subscribers keep seeing the previous value until it resolves. Loads in
// flight for matching keys will settle as stale.
func (c *Cache) Invalidate(match Matcher) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if !match(e.key) {
			continue
		}
		n++
		e.epoch = c.nextEpochLocked()
		e.invalidated = true
		if e.status == StatusFresh {
			c.setStatusLocked(e, StatusStale, nil)
		}
	}
	return n
}

// Evict drops matching entries. Entries with subscribers are reset to an
// empty pending state instead, so their subscribers see the reset.
func (c *Cache) Evict(match Matcher) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for ks, e := range c.entries {
		if !match(e.key) {
			continue
		}
		n++
		if len(e.subs) == 0 {
			delete(c.entries, ks)
			continue
		}
		e.epoch = c.nextEpochLocked()
		e.value, e.hasValue, e.fetchedAt = nil, false, time.Time{}
		e.invalidated = false
		if e.status == StatusPending && e.err == nil {
			c.broadcastLocked(e)
			continue
		}
		c.setStatusLocked(e, StatusPending, nil)
	}
	c.metrics.CacheEntries(len(c.entries))
	return n
}

// SetValue writes value as the fresh result for key. The next successful
// load overwrites it.
func (c *Cache) SetValue(key Key, value any) {
	ks := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(ks, key)
	e.value, e.hasValue = value, true
	e.fetchedAt = c.now()
	e.invalidated = false
	if e.status == StatusFresh && e.err == nil {
		c.broadcastLocked(e)
		return
	}
	c.setStatusLocked(e, StatusFresh, nil)
}

// Peek returns the current state of key without loading.
func (c *Cache) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}, false
	}
	c.expireLocked(e)
	return e.state(), true
}

// Len is the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close rejects further Get calls and waits for loads in flight.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.loads.Wait()
}

func (c *Cache) entryLocked(ks string, key Key) *entry {
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{key: key, status: StatusPending, staleAfter: -1, epoch: c.nextEpochLocked()}
		c.entries[ks] = e
		c.metrics.CacheEntries(len(c.entries))
	}
	return e
}

func (c *Cache) nextEpochLocked() uint64 {
	c.seq++
	return c.seq
}

// expireLocked applies time-based staleness. Entries never read through Get
// have no window yet and do not expire.
func (c *Cache) expireLocked(e *entry) {
	if e.staleAfter < 0 {
		return
	}
	if e.status == StatusFresh && c.now().Sub(e.fetchedAt) >= e.staleAfter {
		c.setStatusLocked(e, StatusStale, nil)
	}
}

func (c *Cache) setStatusLocked(e *entry, s Status, err error) {
	changed := e.status != s || e.err != err
	if e.status != s && c.onTransition != nil {
		c.onTransition(e.key.String(), e.status, s)
	}
	e.status, e.err = s, err
	if changed {
		c.broadcastLocked(e)
	}
}
