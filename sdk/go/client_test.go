package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderboardkit/core"
	"leaderboardkit/engine"
	"leaderboardkit/session"
)

type captured struct {
	method      string
	path        string
	rawQuery    string
	body        string
	contentType string
	auth        string
	requestID   string
}

// fakeService implements the minimal leaderboard service surface used by the client.
type fakeService struct {
	mu       sync.Mutex
	requests []captured
	status   int
}

func (f *fakeService) last() captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return captured{}
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	fs := &fakeService{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, captured{
			method:      r.Method,
			path:        r.URL.Path,
			rawQuery:    r.URL.RawQuery,
			body:        string(b),
			contentType: r.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			requestID:   r.Header.Get("X-Request-ID"),
		})
		status := fs.status
		fs.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("leaderboard not found"))
			return
		}
		switch r.URL.Path {
		case "/test", "/entry/upload", "/entry/delete":
			w.WriteHeader(http.StatusOK)
		case "/get":
			_, _ = w.Write([]byte(`[{"Username":"alice","Score":1000,"Rank":1,"Extra":" ","Date":1700000000},{"Username":"bob","Score":900,"Rank":2}]`))
		case "/entry/get":
			_, _ = w.Write([]byte(`{"Username":"alice","Score":1000,"Rank":1}`))
		case "/entry/count":
			_, _ = w.Write([]byte("42"))
		case "/authorize":
			_, _ = w.Write([]byte("guid-123"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, fs
}

func newTestClient(t *testing.T, baseURL string, sess *session.Session, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRunner(engine.Inline{}), WithLoggingEnabled(false)}, opts...)
	c, err := NewClient(baseURL, sess, opts...)
	require.NoError(t, err)
	return c
}

func authedSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.WithLoggingEnabled(false))
	require.NoError(t, s.SetUserData("alice,wallet,tok123"))
	return s
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(" ", session.New())
	assert.Error(t, err)
	_, err = NewClient("http://localhost", nil)
	assert.Error(t, err)
}

func TestUploadMyEntry(t *testing.T) {
	srv, fs := newTestServer(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := newTestClient(t, srv.URL, authedSession(t), WithLogger(logger), WithLoggingEnabled(true))

	var got []bool
	c.UploadMyEntry(context.Background(), 1000, "", func(ok bool) { got = append(got, ok) }, func(err error) {
		t.Fatalf("unexpected error: %v", err)
	})

	require.Equal(t, []bool{true}, got)
	req := fs.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/entry/upload", req.path)
	assert.Equal(t, "application/json", req.contentType)

	var payload core.EntryPayload
	require.NoError(t, json.Unmarshal([]byte(req.body), &payload))
	assert.Equal(t, core.EntryPayload{PublicKey: "alice", Username: "alice", Score: "1000", Extra: " ", UserGuid: "alice"}, payload)
	assert.Contains(t, logs.String(), "uploaded entry")
}

func TestUploadTransportFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := newTestClient(t, "http://lb.invalid", authedSession(t), WithTransport(failingDoer{}), WithLogger(logger), WithLoggingEnabled(true))

	var gotErr error
	c.UploadMyEntry(context.Background(), 1000, "extra", func(bool) { t.Fatal("success must not fire") }, func(err error) { gotErr = err })

	require.Error(t, gotErr)
	assert.NotEmpty(t, gotErr.Error())
	assert.Contains(t, logs.String(), "upload failed")
}

func TestUploadProceedsWithoutDeviceID(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New(session.WithLoggingEnabled(false)))

	ok := false
	c.UploadEntry(context.Background(), "board", "dave", 5, "", func(v bool) { ok = v }, nil)
	assert.True(t, ok)
	assert.Contains(t, fs.last().body, `"userGuid":""`)
}

func TestUploadValidationOrder(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New(session.WithLoggingEnabled(false)))
	long := strings.Repeat("x", core.MaxUsernameLength+1)

	tests := []struct {
		name     string
		key      string
		username string
		want     error
	}{
		{"empty key wins over everything", "", long, core.ErrEmptyKey},
		{"empty username", "board", "", core.ErrEmptyUsername},
		{"username too long", "board", long, core.ErrUsernameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got error
			c.UploadEntry(context.Background(), tt.key, tt.username, 1, "", func(bool) { t.Fatal("success must not fire") }, func(err error) { got = err })
			assert.ErrorIs(t, got, tt.want)
		})
	}
	assert.Equal(t, 0, fs.count(), "validation failures must not reach the network")

	ok := false
	c.UploadEntry(context.Background(), "board", strings.Repeat("x", core.MaxUsernameLength), 1, "", func(v bool) { ok = v }, nil)
	assert.True(t, ok, "127 characters is accepted")
}

func TestUploadMyEntryTooLongAuthenticatedName(t *testing.T) {
	srv, _ := newTestServer(t)
	s := session.New(session.WithLoggingEnabled(false))
	require.NoError(t, s.SetUserData(strings.Repeat("u", 128)+",email,tok"))
	c := newTestClient(t, srv.URL, s)

	var got error
	c.UploadMyEntry(context.Background(), 1, "", nil, func(err error) { got = err })
	assert.ErrorIs(t, got, core.ErrUsernameTooLong)
}

func TestUnauthenticatedImplicitOperations(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New(session.WithLoggingEnabled(false)))
	ctx := context.Background()

	var errs []error
	collect := func(err error) { errs = append(errs, err) }
	c.GetMyLeaderboard(ctx, core.SortDefault, core.DefaultQuery, func([]core.Entry) { t.Fatal("unexpected success") }, collect)
	c.UploadMyEntry(ctx, 10, "", nil, collect)
	c.DeleteMyEntry(ctx, nil, collect)
	c.GetMyPersonalEntry(ctx, nil, collect)
	c.GetMyEntryCount(ctx, nil, collect)

	require.Len(t, errs, 5)
	for _, err := range errs {
		assert.ErrorIs(t, err, core.ErrNotAuthenticated)
		assert.Contains(t, err.Error(), "not authenticated")
	}
	assert.Equal(t, 0, fs.count())
}

func TestExplicitEmptyKeyRejected(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, authedSession(t))
	ctx := context.Background()

	var errs []error
	collect := func(err error) { errs = append(errs, err) }
	c.GetLeaderboard(ctx, "", core.SortDefault, core.DefaultQuery, nil, collect)
	c.DeleteEntry(ctx, "", nil, collect)
	c.GetPersonalEntry(ctx, "", nil, collect)
	c.GetEntryCount(ctx, "", nil, collect)

	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.EqualError(t, err, "public key cannot be empty")
	}
	assert.Equal(t, 0, fs.count())
}

func TestGetLeaderboardQuery(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, authedSession(t))

	var entries []core.Entry
	q := core.SearchQuery{Take: 10, TimePeriod: core.Today}
	c.GetMyLeaderboard(context.Background(), core.SortAscending, q, func(e []core.Entry) { entries = e }, func(err error) {
		t.Fatalf("unexpected error: %v", err)
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, 1000, entries[0].Score)
	assert.Equal(t, uint64(1700000000), entries[0].Date)

	req := fs.last()
	assert.Equal(t, "/get", req.path)
	assert.Equal(t, "publicKey=alice&userGuid=alice&isInAscendingOrder=1&take=10&timePeriod=1", req.rawQuery)
	assert.Equal(t, "Bearer tok123", req.auth)
	assert.NotEmpty(t, req.requestID)
}

func TestGetLeaderboardDefaultOrderOmitsFlag(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New(session.WithLoggingEnabled(false)))

	c.GetLeaderboard(context.Background(), "board key", core.SortDefault, core.DefaultQuery, func([]core.Entry) {}, nil)
	assert.Equal(t, "publicKey=board+key&userGuid=", fs.last().rawQuery)
	assert.Empty(t, fs.last().auth)

	c.GetLeaderboard(context.Background(), "board", core.SortDescending, core.DefaultQuery, func([]core.Entry) {}, nil)
	assert.Equal(t, "publicKey=board&userGuid=&isInAscendingOrder=0", fs.last().rawQuery)
}

func TestPersonalEntryCountAndDelete(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, authedSession(t))
	ctx := context.Background()

	var entry core.Entry
	c.GetMyPersonalEntry(ctx, func(e core.Entry) { entry = e }, nil)
	assert.Equal(t, 1, entry.Rank)
	assert.Equal(t, "publicKey=alice&userGuid=alice", fs.last().rawQuery)

	count := -1
	c.GetMyEntryCount(ctx, func(n int) { count = n }, nil)
	assert.Equal(t, 42, count)
	assert.Equal(t, "publicKey=alice", fs.last().rawQuery)

	deleted := false
	c.DeleteMyEntry(ctx, func(ok bool) { deleted = ok }, nil)
	assert.True(t, deleted)
	req := fs.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/entry/delete", req.path)
	assert.Equal(t, "application/x-www-form-urlencoded", req.contentType)
	assert.Equal(t, "publicKey=alice&userGuid=alice", req.body)
}

func TestHTTPErrorStatus(t *testing.T) {
	srv, fs := newTestServer(t)
	fs.mu.Lock()
	fs.status = http.StatusNotFound
	fs.mu.Unlock()
	c := newTestClient(t, srv.URL, authedSession(t))

	var got error
	c.GetMyEntryCount(context.Background(), func(int) { t.Fatal("unexpected success") }, func(err error) { got = err })

	var se *StatusError
	require.ErrorAs(t, got, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "leaderboard not found", se.Error())
	assert.Equal(t, "request failed: status 500", (&StatusError{StatusCode: 500}).Error())
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, authedSession(t))

	var got error
	c.GetLeaderboard(context.Background(), "board", core.SortDefault, core.DefaultQuery, func([]core.Entry) {
		t.Fatal("unexpected success")
	}, func(err error) { got = err })
	require.Error(t, got)
	assert.Contains(t, got.Error(), "malformed")
}

func TestTestConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New())

	var results []bool
	c.Test(context.Background(), func(ok bool) { results = append(results, ok) })

	down := newTestClient(t, "http://lb.invalid", session.New(), WithTransport(failingDoer{}))
	down.Test(context.Background(), func(ok bool) { results = append(results, ok) })

	assert.Equal(t, []bool{true, false}, results)
}

func TestFetchDeviceID(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New())
	id, err := c.FetchDeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "guid-123", id)
}

func TestCallbacksDeliveredThroughLoop(t *testing.T) {
	srv, _ := newTestServer(t)
	loop := engine.NewLoop()
	c := newTestClient(t, srv.URL, authedSession(t), WithLoop(loop))

	calls := 0
	c.GetMyEntryCount(context.Background(), func(int) { calls++ }, func(error) { calls++ })
	c.GetMyLeaderboard(context.Background(), core.SortDefault, core.DefaultQuery, func([]core.Entry) { calls++ }, func(error) { calls++ })
	assert.Equal(t, 0, calls, "callbacks wait for the host to drain the loop")

	assert.Equal(t, 2, loop.Drain())
	assert.Equal(t, 2, calls)
}

func TestConcurrentRequestsAreIndependent(t *testing.T) {
	srv, fs := newTestServer(t)
	c, err := NewClient(srv.URL, authedSession(t), WithLoggingEnabled(false))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	c.UploadMyEntry(context.Background(), 1, "", func(bool) { wg.Done() }, func(error) { wg.Done() })
	c.UploadMyEntry(context.Background(), 1, "", func(bool) { wg.Done() }, func(error) { wg.Done() })
	wg.Wait()
	assert.Equal(t, 2, fs.count())
}

func TestPublisherReceivesOutcomes(t *testing.T) {
	srv, _ := newTestServer(t)
	var mu sync.Mutex
	var events []core.EventType
	pub := engine.PublisherFunc(func(_ context.Context, ev core.Event) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	})
	c := newTestClient(t, srv.URL, authedSession(t), WithPublisher(pub))

	c.UploadMyEntry(context.Background(), 3, "", nil, nil)
	assert.Equal(t, []core.EventType{core.EventRequestCompleted, core.EventEntryUploaded}, events)
}

type recordingResetter struct{ calls int }

func (r *recordingResetter) Reset(_ context.Context, onReset func()) {
	r.calls++
	if onReset != nil {
		onReset()
	}
}

func TestResetPlayerDelegates(t *testing.T) {
	c := newTestClient(t, "http://lb.invalid", session.New())
	c.ResetPlayer(context.Background(), nil) // no resetter attached: logged, no panic

	r := &recordingResetter{}
	c.SetResetter(r)
	reset := false
	c.ResetPlayer(context.Background(), func() { reset = true })
	assert.Equal(t, 1, r.calls)
	assert.True(t, reset)
}

func failOn(t *testing.T) func(error) {
	return func(err error) { t.Errorf("unexpected error: %v", err) }
}

func TestLeaderboardHandle(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, authedSession(t))
	ctx := context.Background()

	type want struct {
		method   string
		path     string
		rawQuery string
		body     string
	}
	calls := []struct {
		name string
		call func(t *testing.T, l *Leaderboard, done func())
		want func(key string) want
	}{
		{
			name: "get entries",
			call: func(t *testing.T, l *Leaderboard, done func()) {
				l.GetEntries(ctx, core.SortDescending, core.SearchQuery{Skip: 2}, func(e []core.Entry) {
					assert.Len(t, e, 2)
					done()
				}, failOn(t))
			},
			want: func(key string) want {
				return want{http.MethodGet, "/get", "publicKey=" + key + "&userGuid=alice&isInAscendingOrder=0&skip=2", ""}
			},
		},
		{
			name: "upload entry",
			call: func(t *testing.T, l *Leaderboard, done func()) {
				l.UploadEntry(ctx, "zoe", 7, "", func(ok bool) {
					assert.True(t, ok)
					done()
				}, failOn(t))
			},
			want: func(key string) want {
				username := "zoe"
				if key == "alice" {
					username = "alice"
				}
				b, _ := json.Marshal(core.NewEntryPayload(key, username, 7, "", "alice"))
				return want{http.MethodPost, "/entry/upload", "", string(b)}
			},
		},
		{
			name: "personal entry",
			call: func(t *testing.T, l *Leaderboard, done func()) {
				l.GetPersonalEntry(ctx, func(e core.Entry) {
					assert.Equal(t, "alice", e.Username)
					done()
				}, failOn(t))
			},
			want: func(key string) want {
				return want{http.MethodGet, "/entry/get", "publicKey=" + key + "&userGuid=alice", ""}
			},
		},
		{
			name: "entry count",
			call: func(t *testing.T, l *Leaderboard, done func()) {
				l.GetEntryCount(ctx, func(n int) {
					assert.Equal(t, 42, n)
					done()
				}, failOn(t))
			},
			want: func(key string) want {
				return want{http.MethodGet, "/entry/count", "publicKey=" + key, ""}
			},
		},
		{
			name: "delete entry",
			call: func(t *testing.T, l *Leaderboard, done func()) {
				l.DeleteEntry(ctx, func(ok bool) {
					assert.True(t, ok)
					done()
				}, failOn(t))
			},
			want: func(key string) want {
				return want{http.MethodPost, "/entry/delete", "", "publicKey=" + key + "&userGuid=alice"}
			},
		},
		{
			name: "test connection",
			call: func(t *testing.T, l *Leaderboard, done func()) {
				l.TestConnection(ctx, func(ok bool) {
					assert.True(t, ok)
					done()
				})
			},
			want: func(string) want { return want{http.MethodGet, "/test", "", ""} },
		},
	}

	handles := []struct {
		name   string
		handle *Leaderboard
		key    string
	}{
		{"keyed", c.Leaderboard("board"), "board"},
		{"authenticated", c.AuthenticatedLeaderboard(), "alice"},
	}
	for _, h := range handles {
		for _, tc := range calls {
			t.Run(h.name+"/"+tc.name, func(t *testing.T) {
				before := fs.count()
				called := 0
				tc.call(t, h.handle, func() { called++ })
				require.Equal(t, 1, called)
				require.Equal(t, before+1, fs.count())

				w := tc.want(h.key)
				req := fs.last()
				assert.Equal(t, w.method, req.method)
				assert.Equal(t, w.path, req.path)
				assert.Equal(t, w.rawQuery, req.rawQuery)
				assert.Equal(t, w.body, req.body)
			})
		}
	}
	assert.Equal(t, "board", handles[0].handle.Key())
	assert.Empty(t, handles[1].handle.Key())
}

func TestAuthenticatedLeaderboardRequiresIdentity(t *testing.T) {
	srv, fs := newTestServer(t)
	c := newTestClient(t, srv.URL, session.New(session.WithLoggingEnabled(false)))
	l := c.AuthenticatedLeaderboard()
	ctx := context.Background()

	var errs []error
	collect := func(err error) { errs = append(errs, err) }
	l.GetEntries(ctx, core.SortDefault, core.DefaultQuery, func([]core.Entry) { t.Fatal("unexpected success") }, collect)
	l.UploadEntry(ctx, "zoe", 7, "", func(bool) { t.Fatal("unexpected success") }, collect)
	l.GetPersonalEntry(ctx, func(core.Entry) { t.Fatal("unexpected success") }, collect)
	l.GetEntryCount(ctx, func(int) { t.Fatal("unexpected success") }, collect)
	l.DeleteEntry(ctx, func(bool) { t.Fatal("unexpected success") }, collect)

	require.Len(t, errs, 5)
	for _, err := range errs {
		assert.ErrorIs(t, err, core.ErrNotAuthenticated)
	}
	assert.Equal(t, 0, fs.count())
}
