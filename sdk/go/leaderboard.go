package sdk

import (
	"context"

	"leaderboardkit/core"
)

// Leaderboard is a handle bound to one leaderboard key, or to the
// authenticated user's own leaderboard. It adds no state or validation of
// its own.
type Leaderboard struct {
	client        *Client
	key           string
	authenticated bool
}

// Leaderboard returns a handle for the leaderboard identified by key.
func (c *Client) Leaderboard(key string) *Leaderboard {
	return &Leaderboard{client: c, key: key}
}

// AuthenticatedLeaderboard returns a handle that resolves its key from the
// session's username on every call.
func (c *Client) AuthenticatedLeaderboard() *Leaderboard {
	return &Leaderboard{client: c, authenticated: true}
}

// Key returns the bound key; empty for authenticated handles.
func (l *Leaderboard) Key() string { return l.key }

// GetEntries fetches the leaderboard.
func (l *Leaderboard) GetEntries(ctx context.Context, order core.SortOrder, query core.SearchQuery, onSuccess func([]core.Entry), onError func(error)) {
	if l.authenticated {
		l.client.GetMyLeaderboard(ctx, order, query, onSuccess, onError)
		return
	}
	l.client.GetLeaderboard(ctx, l.key, order, query, onSuccess, onError)
}

// UploadEntry submits a score. Authenticated handles ignore username and
// upload under the session's username.
func (l *Leaderboard) UploadEntry(ctx context.Context, username string, score int, extra string, onSuccess func(bool), onError func(error)) {
	if l.authenticated {
		l.client.UploadMyEntry(ctx, score, extra, onSuccess, onError)
		return
	}
	l.client.UploadEntry(ctx, l.key, username, score, extra, onSuccess, onError)
}

func (l *Leaderboard) GetPersonalEntry(ctx context.Context, onSuccess func(core.Entry), onError func(error)) {
	if l.authenticated {
		l.client.GetMyPersonalEntry(ctx, onSuccess, onError)
		return
	}
	l.client.GetPersonalEntry(ctx, l.key, onSuccess, onError)
}

func (l *Leaderboard) GetEntryCount(ctx context.Context, onSuccess func(int), onError func(error)) {
	if l.authenticated {
		l.client.GetMyEntryCount(ctx, onSuccess, onError)
		return
	}
	l.client.GetEntryCount(ctx, l.key, onSuccess, onError)
}

func (l *Leaderboard) DeleteEntry(ctx context.Context, onSuccess func(bool), onError func(error)) {
	if l.authenticated {
		l.client.DeleteMyEntry(ctx, onSuccess, onError)
		return
	}
	l.client.DeleteEntry(ctx, l.key, onSuccess, onError)
}

func (l *Leaderboard) ResetPlayer(ctx context.Context, onReset func()) {
	l.client.ResetPlayer(ctx, onReset)
}

func (l *Leaderboard) TestConnection(ctx context.Context, onResult func(bool)) {
	l.client.Test(ctx, onResult)
}
