// Package creator assembles a ready-to-use leaderboard SDK: session, client,
// identity bootstrap and the event plumbing behind them.
package creator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"leaderboardkit/analytics"
	"leaderboardkit/bootstrap"
	"leaderboardkit/clock"
	"leaderboardkit/engine"
	"leaderboardkit/realtime"
	sdk "leaderboardkit/sdk/go"
	"leaderboardkit/session"
)

// Option configures the Creator builder.
type Option func(*options)

type options struct {
	store      engine.IdentifierStore
	saveMode   bootstrap.SaveMode
	retry      *bootstrap.RetryPolicy
	clock      clock.Clock
	runner     engine.Runner
	loop       *engine.Loop
	mode       engine.DispatchMode
	hub        *realtime.Hub
	hooks      []analytics.Hook
	sinks      []engine.Publisher
	registerer prometheus.Registerer
	clientOpts []sdk.Option
	closers    []func() error

	logger         *slog.Logger
	loggingEnabled bool
}

// WithStore sets where the device identifier is persisted.
func WithStore(s engine.IdentifierStore) Option { return func(o *options) { o.store = s } }

// WithSaveMode selects persistent, memory or unhandled identity handling.
func WithSaveMode(m bootstrap.SaveMode) Option { return func(o *options) { o.saveMode = m } }

// WithRetryPolicy overrides the bootstrap retry delay and attempt cap.
func WithRetryPolicy(p bootstrap.RetryPolicy) Option { return func(o *options) { o.retry = &p } }

func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithRunner sets where requests and bootstrap attempts run.
func WithRunner(r engine.Runner) Option { return func(o *options) { o.runner = r } }

// WithLoop delivers callbacks on the goroutine that drains l.
func WithLoop(l *engine.Loop) Option { return func(o *options) { o.loop = l } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(o *options) { o.mode = m } }

// WithRealtime wires a realtime hub to receive all SDK events.
func WithRealtime(h *realtime.Hub) Option { return func(o *options) { o.hub = h } }

// WithHooks adds analytics hooks fed from the event bus.
func WithHooks(h ...analytics.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h...) }
}

// WithSink adds an event publisher, such as a webhook sink, fed from the event bus.
func WithSink(p engine.Publisher) Option {
	return func(o *options) { o.sinks = append(o.sinks, p) }
}

// WithMetrics registers Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option { return func(o *options) { o.registerer = reg } }

// WithClientOptions passes options through to sdk.NewClient.
func WithClientOptions(opts ...sdk.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithCloser registers a cleanup run by Close, after the SDK has stopped.
func WithCloser(fn func() error) Option {
	return func(o *options) { o.closers = append(o.closers, fn) }
}

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithLoggingEnabled(enabled bool) Option {
	return func(o *options) { o.loggingEnabled = enabled }
}

// Creator holds the assembled components. All fields are safe to use directly.
type Creator struct {
	Session    *session.Session
	Client     *sdk.Client
	Authorizer *bootstrap.Authorizer
	Bus        *engine.EventBus
	Hub        *realtime.Hub
	Stats      *analytics.OperationStats
	DAU        *analytics.DAU

	loop    *engine.Loop
	closers []func() error
}

// New builds a Creator for the leaderboard service at baseURL. If not provided, defaults are used:
//   - store: none (memory save mode)
//   - dispatch: async
//   - runner: one goroutine per request
func New(baseURL string, opts ...Option) (*Creator, error) {
	o := &options{
		saveMode:       bootstrap.SaveMemory,
		mode:           engine.DispatchAsync,
		logger:         slog.Default(),
		loggingEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	bus := engine.NewEventBus(o.mode)
	c := &Creator{
		Bus:     bus,
		Hub:     o.hub,
		Stats:   analytics.NewOperationStats(),
		DAU:     analytics.NewDAU(),
		loop:    o.loop,
		closers: o.closers,
	}
	fail := func(err error) (*Creator, error) {
		bus.Close()
		return nil, errors.Join(err, c.runClosers())
	}

	hooks := append([]analytics.Hook{c.Stats, c.DAU}, o.hooks...)
	if o.registerer != nil {
		ph, err := analytics.NewPrometheusHook(o.registerer)
		if err != nil {
			return fail(err)
		}
		hooks = append(hooks, ph)
	}
	bridge := analytics.NewBridge(hooks...)
	bus.SubscribeAll(bridge.Publish)
	if o.hub != nil {
		bus.SubscribeAll(o.hub.Broadcast)
	}
	for _, s := range o.sinks {
		bus.SubscribeAll(s.Publish)
	}

	c.Session = session.New(
		session.WithObserver(bus),
		session.WithLogger(o.logger),
		session.WithLoggingEnabled(o.loggingEnabled),
	)

	clientOpts := []sdk.Option{
		sdk.WithPublisher(bus),
		sdk.WithLogger(o.logger),
		sdk.WithLoggingEnabled(o.loggingEnabled),
	}
	if o.runner != nil {
		clientOpts = append(clientOpts, sdk.WithRunner(o.runner))
	}
	if o.loop != nil {
		clientOpts = append(clientOpts, sdk.WithLoop(o.loop))
	}
	client, err := sdk.NewClient(baseURL, c.Session, append(clientOpts, o.clientOpts...)...)
	if err != nil {
		return fail(err)
	}
	c.Client = client

	authOpts := []bootstrap.Option{
		bootstrap.WithSaveMode(o.saveMode),
		bootstrap.WithRunner(o.runner),
		bootstrap.WithClock(o.clock),
		bootstrap.WithLogger(o.logger),
		bootstrap.WithLoggingEnabled(o.loggingEnabled),
	}
	if o.store != nil {
		authOpts = append(authOpts, bootstrap.WithStore(o.store))
	}
	if o.retry != nil {
		authOpts = append(authOpts, bootstrap.WithRetryPolicy(*o.retry))
	}
	authorizer, err := bootstrap.New(client, c.Session, authOpts...)
	if err != nil {
		return fail(err)
	}
	c.Authorizer = authorizer
	client.SetResetter(authorizer)

	return c, nil
}

// Start begins device identifier acquisition. onAuthorized follows the
// same delivery rules as client callbacks.
func (c *Creator) Start(ctx context.Context, onAuthorized func(deviceID string)) {
	cb := onAuthorized
	if c.loop != nil && onAuthorized != nil {
		cb = func(id string) { c.loop.Post(func() { onAuthorized(id) }) }
	}
	c.Authorizer.Authorize(ctx, cb)
}

// SetUserData applies a "username,mode,token" credential string.
func (c *Creator) SetUserData(raw string) error { return c.Session.SetUserData(raw) }

// Leaderboard returns a handle bound to key.
func (c *Creator) Leaderboard(key string) *sdk.Leaderboard { return c.Client.Leaderboard(key) }

// Close cancels pending retries, stops event dispatch and releases the
// resources registered with WithCloser.
func (c *Creator) Close() error {
	c.Authorizer.Stop()
	c.Bus.Close()
	return c.runClosers()
}

func (c *Creator) runClosers() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
