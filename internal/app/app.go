// Package app wires the console's services together. There are no package
// globals: every consumer receives a *Context.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/naveenspark/mulic2/internal/config"
	"github.com/naveenspark/mulic2/internal/health"
	"github.com/naveenspark/mulic2/internal/listener"
	"github.com/naveenspark/mulic2/internal/router"
	"github.com/naveenspark/mulic2/internal/session"
	"github.com/naveenspark/mulic2/internal/storage"
	"github.com/naveenspark/mulic2/pkg/client"
	"github.com/naveenspark/mulic2/pkg/domain"
)

// Context holds the wired services for one console process.
type Context struct {
	Settings *config.Settings
	Config   *config.Loader
	Ports    domain.PortConfig
	API      *client.Client
	Store    storage.Store
	Health   *health.Monitor
	Session  *session.Manager
	Router   *router.Router
	Profiles *listener.Registry

	mu       sync.Mutex
	stopTick func()
}

// Option customises New.
type Option func(*options)

type options struct {
	clock   clockwork.Clock
	store   storage.Store
	session session.Options
}

// WithClock drives the health ticker and profile backoff from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithStore replaces the on-disk store under Settings.Home.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithSessionOptions overrides the session manager tuning.
func WithSessionOptions(so session.Options) Option {
	return func(o *options) { o.session = so }
}

// New loads the port configuration and builds every service. A config
// failure is returned as is; the caller treats it as fatal.
func New(ctx context.Context, settings *config.Settings, opts ...Option) (*Context, error) {
	o := options{session: session.DefaultOptions()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	o.session.Clock = o.clock

	loader := config.NewLoader(settings.Source())
	if err := loader.Initialize(ctx); err != nil {
		return nil, err
	}
	ports, err := loader.Get()
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		fs, err := storage.NewFileStore(filepath.Join(settings.Home, "state"))
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		store = fs
	}

	api := client.New(settings.ResolveAPIURL(ports), "")
	monitor := health.NewMonitor(api, o.clock)
	mgr := session.NewManager(api, store, monitor, o.session)
	monitor.Bind(mgr)

	slog.Info("Console configured",
		"api", api.BaseURL(),
		"api_port", ports.BackendAPI,
		"c2_default_port", ports.C2Default,
		"frontend_port", ports.Frontend)

	return &Context{
		Settings: settings,
		Config:   loader,
		Ports:    ports,
		API:      api,
		Store:    store,
		Health:   monitor,
		Session:  mgr,
		Router:   router.New(mgr),
		Profiles: listener.NewRegistry(store, loader),
	}, nil
}

// Start runs the startup probe, restores the session profile if one is held,
// and starts the periodic health ticker. It returns the probe result.
func (c *Context) Start(ctx context.Context) bool {
	ok := c.Health.Check(ctx)
	if !ok {
		slog.Warn("Backend unreachable at startup", "api", c.API.BaseURL())
	}
	c.Session.Init(ctx)

	c.mu.Lock()
	if c.stopTick == nil {
		c.stopTick = c.Health.Start()
	}
	c.mu.Unlock()
	return ok
}

// Close stops the health ticker. Safe to call more than once.
func (c *Context) Close() {
	c.mu.Lock()
	stop := c.stopTick
	c.stopTick = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// ConsoleURL is the web console address, or "" when unconfigured.
func (c *Context) ConsoleURL() string {
	return c.Settings.ConsoleURL(c.Ports)
}
