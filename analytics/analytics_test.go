package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderboardkit/core"
)

func TestDAU_CountsDistinctUsernames(t *testing.T) {
	dau := NewDAU()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, name := range []string{"alice", "bob", "alice", ""} {
		ev := core.NewIdentitySet(name, core.ModeEmail)
		ev.Time = now
		dau.OnEvent(ev)
	}

	assert.Equal(t, 2, dau.Count("2024-03-01"))
	assert.Equal(t, 0, dau.Count("2024-03-02"))
}

func TestOperationStats(t *testing.T) {
	stats := NewOperationStats()
	stats.OnEvent(core.NewRequestOutcome("upload_entry", 100*time.Millisecond, nil))
	stats.OnEvent(core.NewRequestOutcome("upload_entry", 300*time.Millisecond, errors.New("boom")))
	stats.OnEvent(core.NewRequestOutcome("get_leaderboard", 50*time.Millisecond, nil))
	stats.OnEvent(core.NewEntryUploaded("board", "alice"))
	stats.OnEvent(core.NewEntryDeleted("board"))

	up := stats.Summary("upload_entry")
	assert.Equal(t, int64(1), up.Succeeded)
	assert.Equal(t, int64(1), up.Failed)
	assert.Equal(t, "boom", up.LastError)
	assert.Equal(t, 200*time.Millisecond, up.AverageDuration())

	all := stats.Summaries()
	require.Len(t, all, 2)
	assert.Equal(t, "get_leaderboard", all[0].Operation)

	uploaded, deleted := stats.Entries()
	assert.Equal(t, int64(1), uploaded)
	assert.Equal(t, int64(1), deleted)

	assert.Equal(t, time.Duration(0), stats.Summary("missing").AverageDuration())
}

func TestBridgeFansOut(t *testing.T) {
	a, b := NewOperationStats(), NewOperationStats()
	bridge := NewBridge(a, b)
	bridge.Publish(context.Background(), core.NewRequestOutcome("test", time.Millisecond, nil))

	assert.Equal(t, int64(1), a.Summary("test").Succeeded)
	assert.Equal(t, int64(1), b.Summary("test").Succeeded)
}

func TestPrometheusHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewPrometheusHook(reg)
	require.NoError(t, err)

	hook.OnEvent(core.NewRequestOutcome("upload_entry", 10*time.Millisecond, nil))
	hook.OnEvent(core.NewRequestOutcome("upload_entry", 10*time.Millisecond, errors.New("x")))
	hook.OnEvent(core.NewIdentitySet("alice", core.ModeWallet))

	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("upload_entry", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("upload_entry", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.authenticated))

	hook.OnEvent(core.NewIdentityCleared())
	assert.Equal(t, 0.0, testutil.ToFloat64(hook.authenticated))

	_, err = NewPrometheusHook(reg)
	assert.Error(t, err, "duplicate registration")
}
