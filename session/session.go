// Package session holds the authenticated identity delivered by the host
// front end and the device identifier sent with every request.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"leaderboardkit/core"
	"leaderboardkit/engine"
)

// Identity is a snapshot of the current user. All fields are empty when
// nobody is authenticated.
type Identity struct {
	Username string
	Mode     core.Mode
	Token    string
}

// Authenticated reports whether the snapshot carries a username and token.
func (i Identity) Authenticated() bool {
	return i.Username != "" && i.Token != ""
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for rejected credentials and state changes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoggingEnabled toggles logging output.
func WithLoggingEnabled(enabled bool) Option {
	return func(s *Session) { s.loggingEnabled = enabled }
}

// WithObserver publishes identity and device id changes.
func WithObserver(p engine.Publisher) Option {
	return func(s *Session) { s.observer = p }
}

// Session is safe for concurrent use. Independent sessions do not share state.
type Session struct {
	mu       sync.RWMutex
	identity Identity
	deviceID string

	logger         *slog.Logger
	loggingEnabled bool
	observer       engine.Publisher
}

func New(opts ...Option) *Session {
	s := &Session{logger: slog.Default(), loggingEnabled: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetUserData applies a "username,mode,token" message. Malformed input is
// logged and returned; the previous identity is left untouched.
func (s *Session) SetUserData(raw string) error {
	creds, err := core.ParseCredentials(raw)
	if err != nil {
		s.log().Error("rejected user data", "error", err, "fields", fieldCount(raw))
		return err
	}
	s.apply(creds)
	return nil
}

// SetUserDataFields applies discrete credential fields with the same rules
// as SetUserData.
func (s *Session) SetUserDataFields(username, mode, token string) error {
	creds, err := core.NewCredentials(username, mode, token)
	if err != nil {
		s.log().Error("rejected user data", "error", err, "mode", mode)
		return err
	}
	s.apply(creds)
	return nil
}

// SetCredentials applies an already validated bundle.
func (s *Session) SetCredentials(c core.Credentials) error {
	creds, err := core.NewCredentials(c.Username, string(c.Mode), c.Token)
	if err != nil {
		s.log().Error("rejected user data", "error", err)
		return err
	}
	s.apply(creds)
	return nil
}

func (s *Session) apply(c core.Credentials) {
	s.mu.Lock()
	s.identity = Identity{Username: c.Username, Mode: c.Mode, Token: c.Token}
	// the username doubles as the device identifier for front-end managed identities
	s.deviceID = c.Username
	s.mu.Unlock()

	s.log().Info("user data set", "username", c.Username, "mode", c.Mode)
	s.publish(core.NewIdentitySet(c.Username, c.Mode))
	s.publish(core.NewDeviceIDAssigned(c.Username))
}

// ClearUserData forgets the identity. The device identifier is kept.
func (s *Session) ClearUserData() {
	s.mu.Lock()
	s.identity = Identity{}
	s.mu.Unlock()
	s.log().Info("user data cleared")
	s.publish(core.NewIdentityCleared())
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Authenticated()
}

func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// SetDeviceID replaces the identifier sent as userGuid.
func (s *Session) SetDeviceID(id string) {
	s.mu.Lock()
	s.deviceID = id
	s.mu.Unlock()
	s.log().Info("device id initialized")
	s.publish(core.NewDeviceIDAssigned(id))
}

func (s *Session) publish(ev core.Event) {
	if s.observer != nil {
		s.observer.Publish(context.Background(), ev)
	}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (s *Session) log() *slog.Logger {
	if !s.loggingEnabled {
		return discard
	}
	return s.logger
}

func fieldCount(raw string) int {
	if raw == "" {
		return 0
	}
	n := 1
	for _, r := range raw {
		if r == ',' {
			n++
		}
	}
	return n
}
