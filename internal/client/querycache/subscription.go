package querycache

import (
	"context"
	"sync"
	"time"
)

// Subscription delivers state changes of one entry. Updates is latest-wins:
// a slow reader sees the most recent state, not every intermediate one.
type Subscription struct {
	c       *Cache
	key     Key
	ks      string
	updates chan State
	once    sync.Once
	closed  bool // guarded by c.mu
}

// Subscribe registers interest in key, creating an empty pending entry when
// none exists. The current state is delivered immediately.
func (c *Cache) Subscribe(key Key) *Subscription {
	ks := key.String()
	s := &Subscription{c: c, key: key, ks: ks, updates: make(chan State, 1)}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(ks, key)
	c.expireLocked(e)
	if e.subs == nil {
		e.subs = make(map[*Subscription]struct{})
	}
	e.subs[s] = struct{}{}
	s.push(e.state())
	return s
}

// Updates returns the state channel. It is closed by Close.
func (s *Subscription) Updates() <-chan State {
	return s.updates
}

// Get reads the subscribed key like Cache.Get. After Close it returns
// ErrUnsubscribed instead of recreating the evicted entry.
func (s *Subscription) Get(ctx context.Context, loader Loader, staleAfter time.Duration) (any, error) {
	return s.c.get(ctx, s.key, loader, staleAfter, s)
}

// Close unsubscribes. Closing the last subscription of an entry evicts it;
// a load in flight is not cancelled.
func (s *Subscription) Close() {
	s.once.Do(func() {
		c := s.c
		c.mu.Lock()
		defer c.mu.Unlock()

		s.closed = true
		if e, ok := c.entries[s.ks]; ok {
			delete(e.subs, s)
			if len(e.subs) == 0 {
				delete(c.entries, s.ks)
				c.metrics.CacheEntries(len(c.entries))
			}
		}
		close(s.updates)
	})
}

// push replaces any undelivered state with st. Callers hold c.mu, so there
// is a single producer per subscription.
func (s *Subscription) push(st State) {
	select {
	case s.updates <- st:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- st
}

func (c *Cache) broadcastLocked(e *entry) {
	if len(e.subs) == 0 {
		return
	}
	st := e.state()
	for s := range e.subs {
		s.push(st)
	}
}
