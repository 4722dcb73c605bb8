package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"leaderboardkit/core"
)

const (
	opTest           = "test"
	opAuthorize      = "authorize"
	opGetLeaderboard = "get_leaderboard"
	opUpload         = "upload_entry"
	opDelete         = "delete_entry"
	opPersonalEntry  = "get_personal_entry"
	opEntryCount     = "get_entry_count"
)

// Test probes the service. onResult receives false on any failure.
func (c *Client) Test(ctx context.Context, onResult func(bool)) {
	fail := func(error) {
		if onResult != nil {
			onResult(false)
		}
	}
	send(ctx, c, request[bool]{
		op:     opTest,
		method: http.MethodGet,
		url:    c.url(c.routes.Test),
		decode: decodeOK,
	}, onResult, fail)
}

// GetLeaderboard fetches the entries of the leaderboard identified by key.
func (c *Client) GetLeaderboard(ctx context.Context, key string, order core.SortOrder, query core.SearchQuery, onSuccess func([]core.Entry), onError func(error)) {
	if err := core.ValidateKey(key); err != nil {
		c.reject(opGetLeaderboard, err, onError)
		return
	}
	send(ctx, c, request[[]core.Entry]{
		op:     opGetLeaderboard,
		method: http.MethodGet,
		url:    c.leaderboardURL(key, order, query),
		decode: decodeJSON[[]core.Entry],
	}, onSuccess, onError)
}

// GetMyLeaderboard is GetLeaderboard keyed by the authenticated username.
func (c *Client) GetMyLeaderboard(ctx context.Context, order core.SortOrder, query core.SearchQuery, onSuccess func([]core.Entry), onError func(error)) {
	key, err := c.authenticatedKey()
	if err != nil {
		c.reject(opGetLeaderboard, err, onError)
		return
	}
	c.GetLeaderboard(ctx, key, order, query, onSuccess, onError)
}

// UploadEntry submits a score. An empty extra is sent as core.DefaultExtra.
// The outcome is always logged in addition to the callbacks.
func (c *Client) UploadEntry(ctx context.Context, key, username string, score int, extra string, onSuccess func(bool), onError func(error)) {
	if err := core.ValidateKey(key); err != nil {
		c.reject(opUpload, err, onError)
		return
	}
	if err := core.ValidateUsername(username); err != nil {
		c.reject(opUpload, err, onError)
		return
	}

	payload := core.NewEntryPayload(key, username, score, extra, c.session.DeviceID())
	body, err := json.Marshal(payload)
	if err != nil {
		c.reject(opUpload, err, onError)
		return
	}
	send(ctx, c, request[bool]{
		op:          opUpload,
		method:      http.MethodPost,
		url:         c.url(c.routes.Upload),
		body:        body,
		contentType: "application/json",
		decode:      decodeOK,
		observe: func(_ bool, err error) {
			if err != nil {
				c.log().Error("upload failed", "key", key, "error", err)
				return
			}
			c.log().Info("uploaded entry to leaderboard", "key", key, "username", username, "score", score)
			c.publish(ctx, core.NewEntryUploaded(key, username))
		},
	}, onSuccess, onError)
}

// UploadMyEntry uploads for the authenticated user, who is both the
// leaderboard key and the username.
func (c *Client) UploadMyEntry(ctx context.Context, score int, extra string, onSuccess func(bool), onError func(error)) {
	key, err := c.authenticatedKey()
	if err != nil {
		c.reject(opUpload, err, onError)
		return
	}
	c.UploadEntry(ctx, key, key, score, extra, onSuccess, onError)
}

// DeleteEntry removes this device's entry from the leaderboard.
func (c *Client) DeleteEntry(ctx context.Context, key string, onSuccess func(bool), onError func(error)) {
	if err := core.ValidateKey(key); err != nil {
		c.reject(opDelete, err, onError)
		return
	}
	form := url.Values{}
	form.Set("publicKey", key)
	form.Set("userGuid", c.session.DeviceID())
	send(ctx, c, request[bool]{
		op:          opDelete,
		method:      http.MethodPost,
		url:         c.url(c.routes.Delete),
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		decode:      decodeOK,
		observe: func(_ bool, err error) {
			if err != nil {
				c.log().Error("deleting entry failed", "key", key, "error", err)
				return
			}
			c.log().Info("deleted player's entry", "key", key)
			c.publish(ctx, core.NewEntryDeleted(key))
		},
	}, onSuccess, onError)
}

// DeleteMyEntry is DeleteEntry keyed by the authenticated username.
func (c *Client) DeleteMyEntry(ctx context.Context, onSuccess func(bool), onError func(error)) {
	key, err := c.authenticatedKey()
	if err != nil {
		c.reject(opDelete, err, onError)
		return
	}
	c.DeleteEntry(ctx, key, onSuccess, onError)
}

// GetPersonalEntry fetches this device's entry.
func (c *Client) GetPersonalEntry(ctx context.Context, key string, onSuccess func(core.Entry), onError func(error)) {
	if err := core.ValidateKey(key); err != nil {
		c.reject(opPersonalEntry, err, onError)
		return
	}
	u := c.url(c.routes.PersonalEntry) + "?publicKey=" + url.QueryEscape(key) + "&userGuid=" + url.QueryEscape(c.session.DeviceID())
	send(ctx, c, request[core.Entry]{
		op:     opPersonalEntry,
		method: http.MethodGet,
		url:    u,
		decode: decodeJSON[core.Entry],
	}, onSuccess, onError)
}

// GetMyPersonalEntry is GetPersonalEntry keyed by the authenticated username.
func (c *Client) GetMyPersonalEntry(ctx context.Context, onSuccess func(core.Entry), onError func(error)) {
	key, err := c.authenticatedKey()
	if err != nil {
		c.reject(opPersonalEntry, err, onError)
		return
	}
	c.GetPersonalEntry(ctx, key, onSuccess, onError)
}

// GetEntryCount fetches the number of entries on the leaderboard.
func (c *Client) GetEntryCount(ctx context.Context, key string, onSuccess func(int), onError func(error)) {
	if err := core.ValidateKey(key); err != nil {
		c.reject(opEntryCount, err, onError)
		return
	}
	send(ctx, c, request[int]{
		op:     opEntryCount,
		method: http.MethodGet,
		url:    c.url(c.routes.EntryCount) + "?publicKey=" + url.QueryEscape(key),
		decode: decodeCount,
	}, onSuccess, onError)
}

// GetMyEntryCount is GetEntryCount keyed by the authenticated username.
func (c *Client) GetMyEntryCount(ctx context.Context, onSuccess func(int), onError func(error)) {
	key, err := c.authenticatedKey()
	if err != nil {
		c.reject(opEntryCount, err, onError)
		return
	}
	c.GetEntryCount(ctx, key, onSuccess, onError)
}

// ResetPlayer drops the device identifier and acquires a new one so the
// player can submit a fresh entry. onReset fires once that succeeds.
func (c *Client) ResetPlayer(ctx context.Context, onReset func()) {
	if c.resetter == nil {
		c.log().Error("reset player: no identity bootstrap attached")
		return
	}
	c.resetter.Reset(ctx, onReset)
}

// FetchDeviceID requests a new device identifier from the service. It blocks
// until the round trip finishes.
func (c *Client) FetchDeviceID(ctx context.Context) (string, error) {
	start := time.Now()
	id, err := roundTrip(ctx, c, request[string]{
		op:     opAuthorize,
		method: http.MethodGet,
		url:    c.url(c.routes.Authorize),
		decode: decodeDeviceID,
	})
	c.publish(ctx, core.NewRequestOutcome(opAuthorize, time.Since(start), err))
	return id, err
}

func (c *Client) leaderboardURL(key string, order core.SortOrder, query core.SearchQuery) string {
	u := c.url(c.routes.Get) + "?publicKey=" + url.QueryEscape(key) + "&userGuid=" + url.QueryEscape(c.session.DeviceID())
	switch order {
	case core.SortAscending:
		u += "&isInAscendingOrder=1"
	case core.SortDescending:
		u += "&isInAscendingOrder=0"
	}
	return u + query.ChainQuery()
}

func (c *Client) authenticatedKey() (string, error) {
	id := c.session.Identity()
	if !id.Authenticated() {
		return "", core.ErrNotAuthenticated
	}
	return id.Username, nil
}

// reject reports a validation failure without touching the network.
func (c *Client) reject(op string, err error, onError func(error)) {
	if errors.Is(err, core.ErrNotAuthenticated) {
		c.log().Error("user not authenticated; call SetUserData first", "operation", op)
	} else {
		c.log().Error("request rejected", "operation", op, "error", err)
	}
	if onError != nil {
		c.deliver(func() { onError(err) })
	}
}

func (c *Client) publish(ctx context.Context, ev core.Event) {
	if c.publisher != nil {
		c.publisher.Publish(ctx, ev)
	}
}
