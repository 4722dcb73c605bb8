package sdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"leaderboardkit/engine"
	"leaderboardkit/session"
)

// Option configures the Client.
type Option func(*Client)

// Doer is the transport collaborator. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Resetter re-acquires the device identifier. Implemented by bootstrap.Authorizer.
type Resetter interface {
	Reset(ctx context.Context, onReset func())
}

// Client turns typed leaderboard operations into HTTP requests and routes
// the outcome to callbacks. Every operation returns immediately; exactly one
// of its callbacks fires later.
type Client struct {
	baseURL   string
	session   *session.Session
	doer      Doer
	headers   http.Header
	routes    Routes
	runner    engine.Runner
	loop      *engine.Loop
	publisher engine.Publisher
	resetter  Resetter

	logger         *slog.Logger
	loggingEnabled bool
	newRequestID   func() string
}

// NewClient constructs a client for the service at baseURL (e.g., https://lb.example.com).
// Identity and device id are read from sess on every request.
func NewClient(baseURL string, sess *session.Session, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	if sess == nil {
		return nil, errors.New("session is required")
	}
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		session:        sess,
		doer:           http.DefaultClient,
		headers:        make(http.Header),
		routes:         DefaultRoutes(),
		runner:         engine.Goroutine{},
		logger:         slog.Default(),
		loggingEnabled: true,
		newRequestID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.doer = h
		}
	}
}

// WithTransport sets any Doer as the transport.
func WithTransport(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to every request.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// WithRoutes overrides the service routes.
func WithRoutes(r Routes) Option {
	return func(c *Client) { c.routes = r.withDefaults() }
}

// WithRunner selects where request work runs. Defaults to one goroutine per request.
func WithRunner(r engine.Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithLoop delivers every callback through l instead of the request goroutine.
func WithLoop(l *engine.Loop) Option {
	return func(c *Client) { c.loop = l }
}

// WithPublisher receives request and entry events.
func WithPublisher(p engine.Publisher) Option {
	return func(c *Client) { c.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLoggingEnabled toggles logging output.
func WithLoggingEnabled(enabled bool) Option {
	return func(c *Client) { c.loggingEnabled = enabled }
}

// SetResetter attaches the component used by ResetPlayer.
func (c *Client) SetResetter(r Resetter) { c.resetter = r }

// Session returns the session the client reads identity from.
func (c *Client) Session() *session.Session { return c.session }

func (c *Client) url(route string) string {
	return c.baseURL + route
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
	if c.newRequestID != nil {
		r.Header.Set("X-Request-ID", c.newRequestID())
	}
	if r.Header.Get("Authorization") == "" {
		if id := c.session.Identity(); id.Authenticated() {
			r.Header.Set("Authorization", "Bearer "+id.Token)
		}
	}
}

// deliver runs fn on the loop when one is configured, otherwise inline.
func (c *Client) deliver(fn func()) {
	if c.loop != nil {
		c.loop.Post(fn)
		return
	}
	fn()
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (c *Client) log() *slog.Logger {
	if !c.loggingEnabled {
		return discard
	}
	return c.logger
}
