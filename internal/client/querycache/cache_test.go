package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(WithClock(clk.Now), WithMetrics(metrics.New()))
	t.Cleanup(c.Close)
	return c, clk
}

func constLoader(v any, calls *int32) Loader {
	return func(ctx context.Context) (any, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func TestGet_CoalescesConcurrentCallers(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("profiles", "id", "u1")

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "profile-u1", nil
	}

	const n = 10
	results := make(chan any, n)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := c.Get(context.Background(), key, loader, time.Minute)
		assert.NoError(t, err)
		results <- v
	}()
	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), key, loader, time.Minute)
			assert.NoError(t, err)
			results <- v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for v := range results {
		assert.Equal(t, "profile-u1", v)
	}
}

func TestGet_FreshThenStaleByTime(t *testing.T) {
	c, clk := newTestCache(t)
	key := NewKey("activity_types")
	var calls int32

	v, err := c.Get(context.Background(), key, constLoader("v1", &calls), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	clk.Advance(9 * time.Minute)
	v, err = c.Get(context.Background(), key, constLoader("v2", &calls), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clk.Advance(2 * time.Minute)
	st, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusStale, st.Status)

	// Stale: the old value is served and a reload runs in the background.
	v, err = c.Get(context.Background(), key, constLoader("v2", &calls), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.Eventually(t, func() bool {
		st, _ := c.Peek(key)
		return st.Status == StatusFresh && st.Value == "v2"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidate_ReloadsBeforeServingAndKeepsValueVisible(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("activities", "status", "pending")
	var calls int32

	_, err := c.Get(context.Background(), key, constLoader("old", &calls), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Invalidate(Prefix("activities")))
	st, _ := c.Peek(key)
	assert.Equal(t, StatusStale, st.Status)
	assert.Equal(t, "old", st.Value)

	started := make(chan struct{})
	release := make(chan struct{})
	reload := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			close(started)
		}
		<-release
		return "new", nil
	}

	const readers = 3
	got := make(chan any, readers)
	for i := 0; i < readers; i++ {
		go func() {
			v, err := c.Get(context.Background(), key, reload, time.Hour)
			assert.NoError(t, err)
			got <- v
		}()
	}
	<-started

	// While the reload runs the previous value is still readable.
	st, _ = c.Peek(key)
	assert.Equal(t, StatusPending, st.Status)
	assert.True(t, st.IsLoading())
	assert.True(t, st.HasValue)
	assert.Equal(t, "old", st.Value)

	close(release)
	for i := 0; i < readers; i++ {
		assert.Equal(t, "new", <-got)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	st, _ = c.Peek(key)
	assert.Equal(t, StatusFresh, st.Status)
}

func TestInvalidate_DuringLoadSettlesStale(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("rewards")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "before-mutation", nil
		}, time.Hour)
	}()
	<-started
	c.Invalidate(Collection("rewards", nil))
	close(release)
	<-done

	st, _ := c.Peek(key)
	assert.Equal(t, StatusStale, st.Status)
	assert.Equal(t, "before-mutation", st.Value)
}

// blockedGet starts a Get whose loader waits for release and returns v. It
// returns once the loader is running; done receives the Get's value.
func blockedGet(t *testing.T, c *Cache, key Key, v any) (release chan struct{}, done chan any) {
	t.Helper()
	started := make(chan struct{})
	release = make(chan struct{})
	done = make(chan any, 1)
	go func() {
		got, err := c.Get(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return v, nil
		}, time.Hour)
		assert.NoError(t, err)
		done <- got
	}()
	<-started
	return release, done
}

func TestGet_AfterInvalidateDoesNotJoinEarlierLoad(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("activities", "status", "pending")
	var calls int32

	release, done := blockedGet(t, c, key, "before-mutation")
	c.Invalidate(Collection("activities", nil))

	got, err := c.Get(context.Background(), key, constLoader("after-mutation", &calls), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "after-mutation", got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	close(release)
	assert.Equal(t, "before-mutation", <-done)

	// The superseded load must not overwrite the newer result.
	st, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusFresh, st.Status)
	assert.Equal(t, "after-mutation", st.Value)
}

func TestGet_AfterEvictDoesNotJoinEarlierLoad(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("rewards")
	var calls int32

	release, done := blockedGet(t, c, key, "before-evict")
	assert.Equal(t, 1, c.Evict(Exact(key)))

	got, err := c.Get(context.Background(), key, constLoader("after-evict", &calls), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "after-evict", got)

	close(release)
	assert.Equal(t, "before-evict", <-done)

	st, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusFresh, st.Status)
	assert.Equal(t, "after-evict", st.Value)
}

func TestGet_AfterLastUnsubscribeDoesNotJoinEarlierLoad(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("events")
	var calls int32

	sub := c.Subscribe(key)
	release, done := blockedGet(t, c, key, "old")
	sub.Close()
	require.Equal(t, 0, c.Len())

	got, err := c.Get(context.Background(), key, constLoader("new", &calls), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "new", got)

	close(release)
	assert.Equal(t, "old", <-done)

	st, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusFresh, st.Status)
	assert.Equal(t, "new", st.Value)
}

func TestGet_ErrorIsSharedAndRetriedOnNextRequest(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("events")
	boom := errors.New("transport down")

	var calls int32
	failing := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, err := c.Get(context.Background(), key, failing, time.Minute)
	require.ErrorIs(t, err, boom)

	st, _ := c.Peek(key)
	assert.Equal(t, StatusError, st.Status)
	assert.ErrorIs(t, st.Err, boom)

	v, err := c.Get(context.Background(), key, constLoader("ok", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_LoaderPanicBecomesError(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(context.Background(), NewKey("x"), func(ctx context.Context) (any, error) {
		panic("bad row")
	}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestGet_CallerCancellationDoesNotCancelLoad(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("profiles", "id", "u2")

	release := make(chan struct{})
	var loaderCtxErr error
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, key, func(lctx context.Context) (any, error) {
			<-release
			loaderCtxErr = lctx.Err()
			return "p", nil
		}, time.Minute)
		errc <- err
	}()

	require.Eventually(t, func() bool {
		st, ok := c.Peek(key)
		return ok && st.IsLoading()
	}, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		st, _ := c.Peek(key)
		return st.Status == StatusFresh
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, loaderCtxErr)
}

func TestSetValue_OverwrittenByNextLoad(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("profiles", "id", "u1")
	var calls int32

	c.SetValue(key, "optimistic")
	v, err := c.Get(context.Background(), key, constLoader("server", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "optimistic", v)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	c.Invalidate(Exact(key))
	v, err = c.Get(context.Background(), key, constLoader("server", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "server", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransitions_FollowTheLifecycleGraph(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(WithClock(clk.Now))
	defer c.Close()

	allowed := map[[2]Status]bool{
		{StatusPending, StatusFresh}: true,
		{StatusPending, StatusError}: true,
		{StatusFresh, StatusStale}:   true,
		{StatusStale, StatusPending}: true,
		{StatusError, StatusPending}: true,
	}
	var mu sync.Mutex
	var seen [][2]Status
	c.onTransition = func(_ string, from, to Status) {
		mu.Lock()
		seen = append(seen, [2]Status{from, to})
		mu.Unlock()
	}

	key := NewKey("activity_types")
	ctx := context.Background()
	fail := true
	loader := func(ctx context.Context) (any, error) {
		if fail {
			return nil, errors.New("down")
		}
		return "types", nil
	}

	_, err := c.Get(ctx, key, loader, time.Minute) // pending -> error
	require.Error(t, err)
	fail = false
	_, err = c.Get(ctx, key, loader, time.Minute) // error -> pending -> fresh
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)
	_, err = c.Get(ctx, key, loader, time.Minute) // fresh -> stale -> pending -> fresh
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, _ := c.Peek(key)
		return st.Status == StatusFresh
	}, time.Second, 5*time.Millisecond)
	c.Invalidate(Exact(key)) // fresh -> stale

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for _, tr := range seen {
		assert.True(t, allowed[tr], "unexpected transition %s -> %s", tr[0], tr[1])
	}
	assert.Equal(t, [2]Status{StatusFresh, StatusStale}, seen[len(seen)-1])
}

func TestFetch_Typed(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("rewards")

	got, err := Fetch(context.Background(), c, key, time.Minute, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = Fetch(context.Background(), c, key, time.Minute, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.Error(t, err)
}

func TestEvict(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32
	ctx := context.Background()

	_, _ = c.Get(ctx, NewKey("rewards"), constLoader("r", &calls), time.Minute)
	_, _ = c.Get(ctx, NewKey("events"), constLoader("e", &calls), time.Minute)
	require.Equal(t, 2, c.Len())

	assert.Equal(t, 1, c.Evict(Exact(NewKey("rewards"))))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Peek(NewKey("rewards"))
	assert.False(t, ok)

	sub := c.Subscribe(NewKey("events"))
	defer sub.Close()
	<-sub.Updates()

	assert.Equal(t, 1, c.Evict(Prefix("events")))
	st, ok := c.Peek(NewKey("events"))
	require.True(t, ok)
	assert.False(t, st.HasValue)
	assert.Equal(t, StatusPending, st.Status)
}

func TestEvict_SubscribedEntryResetIsATransition(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("events")
	var calls int32

	var seen [][2]Status
	c.onTransition = func(_ string, from, to Status) {
		seen = append(seen, [2]Status{from, to})
	}

	sub := c.Subscribe(key)
	defer sub.Close()
	_, err := c.Get(context.Background(), key, constLoader("e", &calls), time.Hour)
	require.NoError(t, err)

	c.Evict(Exact(key))
	require.NotEmpty(t, seen)
	assert.Equal(t, [2]Status{StatusFresh, StatusPending}, seen[len(seen)-1])

	st := <-sub.Updates()
	assert.Equal(t, StatusPending, st.Status)
	assert.False(t, st.HasValue)
}

func TestClose_RejectsGet(t *testing.T) {
	c := New()
	c.Close()
	_, err := c.Get(context.Background(), NewKey("x"), func(ctx context.Context) (any, error) { return 1, nil }, time.Minute)
	require.ErrorIs(t, err, ErrClosed)
}

func TestClose_WaitsForBackgroundReload(t *testing.T) {
	c := New()
	key := NewKey("x")
	var calls int32
	_, err := c.Get(context.Background(), key, constLoader(1, &calls), 0)
	require.NoError(t, err)

	var finished atomic.Bool
	_, err = c.Get(context.Background(), key, func(ctx context.Context) (any, error) {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return 2, nil
	}, 0)
	require.NoError(t, err)

	c.Close()
	assert.True(t, finished.Load())
}
