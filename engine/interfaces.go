package engine

import (
	"context"
	"errors"

	"leaderboardkit/core"
)

// ErrNotFound is returned by IdentifierStore.Load when nothing is stored under the name.
var ErrNotFound = errors.New("identifier not found")

// IdentifierStore persists the long-lived device identifier between runs.
type IdentifierStore interface {
	Load(ctx context.Context, name string) (string, error)
	Save(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

// Publisher receives SDK events.
type Publisher interface {
	Publish(ctx context.Context, ev core.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev core.Event)

func (f PublisherFunc) Publish(ctx context.Context, ev core.Event) { f(ctx, ev) }

// Runner executes request work off the caller's goroutine.
type Runner interface {
	Go(fn func())
}
