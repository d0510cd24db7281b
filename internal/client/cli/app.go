package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agita-app/agita/internal/client/config"
	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/objects"
	objmem "github.com/agita-app/agita/internal/client/objects/memory"
	objrest "github.com/agita-app/agita/internal/client/objects/rest"
	objs3 "github.com/agita-app/agita/internal/client/objects/s3"
	"github.com/agita-app/agita/internal/client/prefs"
	"github.com/agita-app/agita/internal/client/querycache"
	"github.com/agita-app/agita/internal/client/session"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/client/store/memory"
	"github.com/agita-app/agita/internal/client/store/postgres"
	"github.com/agita-app/agita/internal/client/store/rest"
	"github.com/agita-app/agita/internal/logging"
	"github.com/agita-app/agita/internal/netx"
)

// App holds the wired synchronization layer for one CLI invocation.
type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	// readSecret prompts for the access token without echo.
	readSecret func() ([]byte, error)

	hooks    *hooks.Client
	prefs    *prefs.Store
	realtime hooks.ChangeSource
	closers  []func() error
}

// NewApp prepares an App. Remote and local stores are opened lazily, once
// the command line is parsed, so a prompted token reaches the transport.
func NewApp(c *config.Config, log logging.Logger) *App {
	return &App{
		config:     c,
		log:        log,
		out:        os.Stdout,
		errOut:     os.Stderr,
		now:        time.Now,
		readSecret: readPassword,
	}
}

// Run parses args and executes the matching command.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.Close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return root.ExecuteContext(ctx)
}

// Close releases the stores and cache opened for the run.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(f func() error) {
	a.closers = append(a.closers, f)
}

// open wires store, object store, cache and preferences from the config.
// Anything already set (tests) is kept.
func (a *App) open(ctx context.Context) error {
	if a.hooks == nil {
		if err := a.openRemote(ctx); err != nil {
			return err
		}
	}
	if a.prefs == nil {
		p, err := prefs.Open(ctx, a.config.LocalDBPath)
		if err != nil {
			return err
		}
		a.prefs = p
		a.onClose(func() error {
			a.prefs = nil
			return p.Close()
		})
	}
	return nil
}

func (a *App) openRemote(ctx context.Context) error {
	c := a.config
	m := metrics.New()

	var (
		st  store.Store
		obj objects.Store
	)
	if c.Demo() {
		mem := memory.New(memory.WithUnique(models.TableEventParticipants, "event_id", "user_id"))
		seedDemo(mem)
		st, obj = mem, objmem.New("memory://objects")
	} else {
		nc, err := netx.NewClient(netx.Options{
			BaseURL:           c.StoreURL,
			APIKey:            c.StoreKey,
			AccessToken:       c.AccessToken,
			Timeout:           c.RequestTimeout,
			RequestsPerSecond: c.RequestsPerSecond,
		})
		if err != nil {
			return err
		}

		if c.DatabaseDSN != "" {
			pg, err := postgres.Open(ctx, c.DatabaseDSN, m)
			if err != nil {
				return err
			}
			a.onClose(pg.Close)
			st = pg
		} else {
			st = rest.New(nc, rest.WithLogger(a.log), rest.WithMetrics(m))
		}

		switch c.StorageBackend {
		case "s3":
			s3, err := objs3.New(ctx, objs3.Config{
				Bucket:        c.S3Bucket,
				Region:        c.S3Region,
				BaseEndpoint:  c.S3BaseEndpoint,
				AccessKey:     c.S3AccessKey,
				SecretKey:     c.S3SecretKey,
				PublicBaseURL: c.PublicBaseURL,
			}, m)
			if err != nil {
				return err
			}
			obj = s3
		default:
			obj = objrest.New(nc, m)
		}

		if c.RealtimeEnabled {
			a.realtime = rest.NewRealtime(c.StoreURL, c.StoreKey, a.log)
		}
	}

	cache := querycache.New(querycache.WithLogger(a.log), querycache.WithMetrics(m))
	a.onClose(func() error {
		cache.Close()
		a.hooks, a.realtime = nil, nil
		return nil
	})

	a.hooks = hooks.New(st, obj, cache,
		hooks.WithLogger(a.log),
		hooks.WithNotifier(printNotifier{w: a.errOut}),
		hooks.WithPolicy(policyFrom(c)),
	)
	return nil
}

func policyFrom(c *config.Config) hooks.Policy {
	return hooks.Policy{
		ProfileStaleAfter:       c.ProfileStaleAfter,
		ActivityTypesStaleAfter: c.ActivityTypesStaleAfter,
		DefaultStaleAfter:       c.DefaultStaleAfter,
		Upload: objects.Policy{
			AllowedTypes: c.AllowedImageTypes,
			MaxBytes:     c.MaxUploadBytes(),
		},
	}
}

// identity decodes the configured access token.
func (a *App) identity() (session.Identity, error) {
	return session.FromToken(a.config.AccessToken, a.now())
}

func (a *App) requireAdmin() (session.Identity, error) {
	id, err := a.identity()
	if err != nil {
		return id, err
	}
	if !id.IsAdmin() {
		return id, fmt.Errorf("admin role required: %w", errNotAdmin)
	}
	return id, nil
}

// printNotifier shows notifications on the error stream.
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) Notify(_ context.Context, n hooks.Notification) {
	fmt.Fprintf(p.w, "%s: %s: %s\n", n.Level, n.Title, n.Message)
}
