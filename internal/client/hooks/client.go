package hooks

import (
	"time"

	"github.com/agita-app/agita/internal/client/objects"
	"github.com/agita-app/agita/internal/client/querycache"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/logging"
)

// Policy holds per-domain staleness windows and the upload policy.
type Policy struct {
	ProfileStaleAfter       time.Duration
	ActivityTypesStaleAfter time.Duration
	DefaultStaleAfter       time.Duration
	Upload                  objects.Policy
}

// DefaultPolicy matches the product defaults: profiles 5m, activity types
// 10m, everything else 1m, images up to 5 MiB.
func DefaultPolicy() Policy {
	return Policy{
		ProfileStaleAfter:       5 * time.Minute,
		ActivityTypesStaleAfter: 10 * time.Minute,
		DefaultStaleAfter:       time.Minute,
		Upload:                  objects.DefaultImagePolicy(),
	}
}

// Client is the entry point for every resource binding.
type Client struct {
	store   store.Store
	objects objects.Store
	cache   *querycache.Cache
	log     logging.Logger
	notify  Notifier
	policy  Policy
	now     func() time.Time
}

type Option func(*Client)

func WithLogger(l logging.Logger) Option { return func(c *Client) { c.log = l } }

// WithNotifier replaces the default LogNotifier.
func WithNotifier(n Notifier) Option { return func(c *Client) { c.notify = n } }

func WithPolicy(p Policy) Option { return func(c *Client) { c.policy = p } }

// WithClock replaces time.Now for object names and timestamps.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// New wires a Client. cache is owned by the caller, who closes it.
func New(s store.Store, o objects.Store, cache *querycache.Cache, opts ...Option) *Client {
	c := &Client{
		store:   s,
		objects: o,
		cache:   cache,
		log:     logging.Nop(),
		policy:  DefaultPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notify == nil {
		c.notify = LogNotifier{Log: c.log}
	}
	return c
}

// Cache exposes the underlying query cache.
func (c *Client) Cache() *querycache.Cache { return c.cache }

// Policy returns the active policy.
func (c *Client) Policy() Policy { return c.policy }

func (c *Client) uploads() objects.Store {
	return objects.Guarded{Store: c.objects, Policy: c.policy.Upload}
}
