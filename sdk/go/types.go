package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leaderboardkit/core"
)

// Routes are the service paths relative to the base URL.
type Routes struct {
	Test          string `json:"test" yaml:"test"`
	Authorize     string `json:"authorize" yaml:"authorize"`
	Get           string `json:"get" yaml:"get"`
	Upload        string `json:"upload" yaml:"upload"`
	Delete        string `json:"delete" yaml:"delete"`
	PersonalEntry string `json:"personal_entry" yaml:"personal_entry"`
	EntryCount    string `json:"entry_count" yaml:"entry_count"`
}

// DefaultRoutes returns the routes served by the leaderboard service.
func DefaultRoutes() Routes {
	return Routes{
		Test:          "/test",
		Authorize:     "/authorize",
		Get:           "/get",
		Upload:        "/entry/upload",
		Delete:        "/entry/delete",
		PersonalEntry: "/entry/get",
		EntryCount:    "/entry/count",
	}
}

func (r Routes) withDefaults() Routes {
	d := DefaultRoutes()
	if r.Test == "" {
		r.Test = d.Test
	}
	if r.Authorize == "" {
		r.Authorize = d.Authorize
	}
	if r.Get == "" {
		r.Get = d.Get
	}
	if r.Upload == "" {
		r.Upload = d.Upload
	}
	if r.Delete == "" {
		r.Delete = d.Delete
	}
	if r.PersonalEntry == "" {
		r.PersonalEntry = d.PersonalEntry
	}
	if r.EntryCount == "" {
		r.EntryCount = d.EntryCount
	}
	return r
}

// StatusError is returned for non-2xx responses. Message is the response
// body when the service sent one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: status %d", e.StatusCode)
}

// ErrEmptyDeviceID is returned when the service hands out an empty identifier.
var ErrEmptyDeviceID = errors.New("server returned an empty device id")

// maxErrorBody bounds how much of an error response becomes the message.
const maxErrorBody = 512

// request describes one round trip. observe runs on the request goroutine
// before the outcome is delivered.
type request[T any] struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
	decode      func([]byte) (T, error)
	observe     func(T, error)
}

// send dispatches r on the client's runner and delivers exactly one of
// onSuccess or onError.
func send[T any](ctx context.Context, c *Client, r request[T], onSuccess func(T), onError func(error)) {
	c.runner.Go(func() {
		start := time.Now()
		v, err := roundTrip(ctx, c, r)
		if c.publisher != nil {
			c.publisher.Publish(ctx, core.NewRequestOutcome(r.op, time.Since(start), err))
		}
		if r.observe != nil {
			r.observe(v, err)
		}
		if err != nil {
			c.log().Debug("request failed", "operation", r.op, "error", err)
			if onError != nil {
				c.deliver(func() { onError(err) })
			}
			return
		}
		if onSuccess != nil {
			c.deliver(func() { onSuccess(v) })
		}
	})
}

func roundTrip[T any](ctx context.Context, c *Client, r request[T]) (T, error) {
	var zero T
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return zero, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	c.applyHeaders(req)

	resp, err := c.doer.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return zero, err
	}
	v, err := r.decode(data)
	if err != nil {
		return zero, fmt.Errorf("malformed %s response: %w", r.op, err)
	}
	return v, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	return io.ReadAll(resp.Body)
}

func decodeJSON[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func decodeOK(_ []byte) (bool, error) { return true, nil }

func decodeCount(data []byte) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func decodeDeviceID(data []byte) (string, error) {
	id := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if id == "" {
		return "", ErrEmptyDeviceID
	}
	return id, nil
}
