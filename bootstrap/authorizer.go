// Package bootstrap acquires the device identifier sent as userGuid. It
// loads a previously stored identifier or requests a new one from the
// service, retrying after a fixed delay until one arrives.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"leaderboardkit/clock"
	"leaderboardkit/engine"
	"leaderboardkit/session"
)

// State of the acquisition machine.
type State int

const (
	Unauthorized State = iota
	Authorizing
	Authorized
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthorized:
		return "unauthorized"
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SaveMode selects where an acquired identifier is kept.
type SaveMode string

const (
	// SavePersistent loads and stores the identifier through the IdentifierStore.
	SavePersistent SaveMode = "persistent"
	// SaveMemory keeps the identifier in the session only.
	SaveMemory SaveMode = "memory"
	// SaveUnhandled disables acquisition; the host manages identity itself.
	SaveUnhandled SaveMode = "unhandled"
)

// ParseSaveMode validates a configured save mode.
func ParseSaveMode(s string) (SaveMode, error) {
	switch SaveMode(s) {
	case SavePersistent, SaveMemory, SaveUnhandled:
		return SaveMode(s), nil
	}
	return "", fmt.Errorf("invalid save mode %q", s)
}

// DefaultRetryDelay is the pause between failed acquisition attempts.
const DefaultRetryDelay = 5 * time.Second

// RetryPolicy controls how failed attempts are retried. MaxAttempts of zero
// retries forever.
type RetryPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: DefaultRetryDelay}
}

// exhausted reports whether no further attempt may follow the given number
// of failures.
func (p RetryPolicy) exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

// Source issues new identifiers. *sdk.Client satisfies it.
type Source interface {
	FetchDeviceID(ctx context.Context) (string, error)
}

// StoreKey is the name the identifier is stored under.
const StoreKey = "device_id"

// Option configures the Authorizer.
type Option func(*Authorizer)

func WithStore(s engine.IdentifierStore) Option {
	return func(a *Authorizer) { a.store = s }
}

func WithSaveMode(m SaveMode) Option {
	return func(a *Authorizer) {
		if m != "" {
			a.mode = m
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Authorizer) {
		if p.Delay <= 0 {
			p.Delay = DefaultRetryDelay
		}
		a.policy = p
	}
}

func WithClock(c clock.Clock) Option {
	return func(a *Authorizer) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithRunner selects where attempts run. Defaults to a goroutine per attempt.
func WithRunner(r engine.Runner) Option {
	return func(a *Authorizer) {
		if r != nil {
			a.runner = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Authorizer) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithLoggingEnabled(enabled bool) Option {
	return func(a *Authorizer) { a.loggingEnabled = enabled }
}

// Authorizer drives Unauthorized -> Authorizing -> Authorized. A failed
// attempt moves to Failed and schedules exactly one new attempt after the
// retry delay. At most one attempt is outstanding at a time.
type Authorizer struct {
	source  Source
	session *session.Session
	store   engine.IdentifierStore
	mode    SaveMode
	policy  RetryPolicy
	clock   clock.Clock
	runner  engine.Runner

	logger         *slog.Logger
	loggingEnabled bool

	mu       sync.Mutex
	state    State
	failures int
	retrying bool
	gen      uint64
	timer    *clock.Timer
}

// New builds an Authorizer that writes acquired identifiers into sess.
func New(source Source, sess *session.Session, opts ...Option) (*Authorizer, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if sess == nil {
		return nil, errors.New("session is required")
	}
	a := &Authorizer{
		source:         source,
		session:        sess,
		mode:           SaveMemory,
		policy:         DefaultRetryPolicy(),
		clock:          clock.Real(),
		runner:         engine.Goroutine{},
		logger:         slog.Default(),
		loggingEnabled: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	if _, err := ParseSaveMode(string(a.mode)); err != nil {
		return nil, err
	}
	if a.mode == SavePersistent && a.store == nil {
		return nil, errors.New("persistent save mode requires an identifier store")
	}
	return a, nil
}

func (a *Authorizer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Authorizer) Mode() SaveMode { return a.mode }

// Authorize starts acquisition. onAuthorized receives the identifier once
// it is established. It is a no-op in SaveUnhandled mode and while an
// attempt is already in flight.
func (a *Authorizer) Authorize(ctx context.Context, onAuthorized func(string)) {
	if a.mode == SaveUnhandled {
		a.log().Debug("identity acquisition skipped", "mode", a.mode)
		return
	}
	a.mu.Lock()
	if a.state == Authorizing || a.retrying {
		a.mu.Unlock()
		a.log().Debug("authorization already in progress")
		return
	}
	a.state = Authorizing
	a.failures = 0
	gen := a.gen
	a.mu.Unlock()

	a.runner.Go(func() { a.attempt(ctx, gen, true, onAuthorized) })
}

// Reset discards the stored identifier, cancels any pending retry and
// acquires a fresh identifier. onReset fires once the new one is in place.
func (a *Authorizer) Reset(ctx context.Context, onReset func()) {
	if a.mode == SaveUnhandled {
		a.log().Error("reset player: identity handling is unhandled")
		return
	}
	a.mu.Lock()
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.state = Authorizing
	a.failures = 0
	a.retrying = false
	a.mu.Unlock()

	a.runner.Go(func() {
		if a.mode == SavePersistent {
			if err := a.store.Delete(ctx, StoreKey); err != nil {
				a.log().Warn("failed to delete stored device id", "error", err)
			}
		}
		a.attempt(ctx, gen, false, func(string) {
			a.log().Info("player reset")
			if onReset != nil {
				onReset()
			}
		})
	})
}

// RequestDeviceID fetches a new identifier without touching the state
// machine, the store or the session. It is meant for SaveUnhandled callers.
func (a *Authorizer) RequestDeviceID(ctx context.Context, cb func(string, error)) {
	a.runner.Go(func() {
		id, err := a.source.FetchDeviceID(ctx)
		if err != nil {
			a.log().Error("device id request failed", "error", err)
		}
		if cb != nil {
			cb(id, err)
		}
	})
}

// Stop cancels a pending retry.
func (a *Authorizer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.retrying = false
	if a.state == Authorizing || a.state == Failed {
		a.state = Unauthorized
	}
}

func (a *Authorizer) attempt(ctx context.Context, gen uint64, useStored bool, onAuthorized func(string)) {
	if useStored && a.mode == SavePersistent {
		id, err := a.store.Load(ctx, StoreKey)
		switch {
		case err == nil && id != "":
			a.complete(gen, id, onAuthorized)
			return
		case err != nil && !errors.Is(err, engine.ErrNotFound):
			a.log().Warn("failed to load stored device id", "error", err)
		}
	}

	id, err := a.source.FetchDeviceID(ctx)
	if err == nil && id == "" {
		err = errors.New("empty device id")
	}
	if err != nil {
		a.fail(ctx, gen, useStored, onAuthorized, err)
		return
	}
	if a.mode == SavePersistent {
		if err := a.store.Save(ctx, StoreKey, id); err != nil {
			a.log().Warn("failed to store device id", "error", err)
		}
	}
	a.complete(gen, id, onAuthorized)
}

func (a *Authorizer) complete(gen uint64, id string, onAuthorized func(string)) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.state = Authorized
	a.failures = 0
	a.timer = nil
	a.mu.Unlock()

	a.session.SetDeviceID(id)
	if onAuthorized != nil {
		onAuthorized(id)
	}
}

func (a *Authorizer) fail(ctx context.Context, gen uint64, useStored bool, onAuthorized func(string), cause error) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.state = Failed
	a.failures++
	failures := a.failures
	a.retrying = ctx.Err() == nil && !a.policy.exhausted(failures)
	retrying := a.retrying
	a.mu.Unlock()

	if !retrying {
		if ctx.Err() != nil {
			a.log().Warn("authorization abandoned", "error", ctx.Err())
		} else {
			a.log().Error("failed to connect to server, giving up", "attempts", failures, "error", cause)
		}
		return
	}
	a.log().Warn("failed to connect to server, trying again", "error", cause, "delay", a.policy.Delay)

	t := a.clock.AfterFunc(a.policy.Delay, func() {
		a.mu.Lock()
		if gen != a.gen || !a.retrying {
			a.mu.Unlock()
			return
		}
		a.state = Authorizing
		a.retrying = false
		a.timer = nil
		a.mu.Unlock()
		a.runner.Go(func() { a.attempt(ctx, gen, useStored, onAuthorized) })
	})

	a.mu.Lock()
	if gen == a.gen && a.retrying {
		a.timer = t
	}
	a.mu.Unlock()
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (a *Authorizer) log() *slog.Logger {
	if !a.loggingEnabled {
		return discard
	}
	return a.logger
}
