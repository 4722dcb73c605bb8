package analytics

import (
	"sort"
	"sync"
	"time"

	"leaderboardkit/core"
)

// Hook receives SDK events for aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks distinct usernames seen per UTC day.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[string]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[string]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	if e.Username == "" {
		return
	}
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[string]struct{}{}
		d.days[day] = m
	}
	m[e.Username] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// CountOn is Count for the UTC day containing t.
func (d *DAU) CountOn(t time.Time) int { return d.Count(dayKey(t)) }

// OperationSummary is a snapshot of one operation's outcomes.
type OperationSummary struct {
	Operation     string        `json:"operation"`
	Succeeded     int64         `json:"succeeded"`
	Failed        int64         `json:"failed"`
	TotalDuration time.Duration `json:"total_duration"`
	LastError     string        `json:"last_error,omitempty"`
	LastSeen      time.Time     `json:"last_seen"`
}

// AverageDuration is the mean round trip over every recorded outcome.
func (s OperationSummary) AverageDuration() time.Duration {
	n := s.Succeeded + s.Failed
	if n == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(n)
}

// OperationStats counts request outcomes per operation in memory.
type OperationStats struct {
	mu      sync.RWMutex
	ops     map[string]*OperationSummary
	uploads int64
	deletes int64
}

func NewOperationStats() *OperationStats {
	return &OperationStats{ops: map[string]*OperationSummary{}}
}

func (s *OperationStats) OnEvent(e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Type {
	case core.EventRequestCompleted, core.EventRequestFailed:
		sum := s.ops[e.Operation]
		if sum == nil {
			sum = &OperationSummary{Operation: e.Operation}
			s.ops[e.Operation] = sum
		}
		if e.Type == core.EventRequestFailed {
			sum.Failed++
			sum.LastError = e.Error
		} else {
			sum.Succeeded++
		}
		sum.TotalDuration += e.Duration
		sum.LastSeen = e.Time
	case core.EventEntryUploaded:
		s.uploads++
	case core.EventEntryDeleted:
		s.deletes++
	}
}

// Summary returns the snapshot for one operation.
func (s *OperationStats) Summary(op string) OperationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sum, ok := s.ops[op]; ok {
		return *sum
	}
	return OperationSummary{Operation: op}
}

// Summaries returns every operation sorted by name.
func (s *OperationStats) Summaries() []OperationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OperationSummary, 0, len(s.ops))
	for _, sum := range s.ops {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Entries reports successful uploads and deletes.
func (s *OperationStats) Entries() (uploaded, deleted int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads, s.deletes
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
