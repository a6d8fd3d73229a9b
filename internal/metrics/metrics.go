// Package metrics keeps in-process event counters.
package metrics

import (
	"sort"
	"sync"
	"time"

	"retouch/internal/infra"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Since  time.Time        `json:"since"`
	Total  int64            `json:"total"`
	Events map[string]int64 `json:"events"`
}

type Tracker struct {
	mu     sync.Mutex
	counts map[string]int64
	total  int64
	since  time.Time
	logger infra.Logger
}

func NewTracker(logger infra.Logger) *Tracker {
	return &Tracker{counts: make(map[string]int64), since: time.Now().UTC(), logger: logger}
}

// Track increments event and logs it with props.
func (t *Tracker) Track(event string, props map[string]any) {
	if event == "" {
		event = "unknown"
	}
	t.mu.Lock()
	t.counts[event]++
	t.total++
	t.mu.Unlock()

	e := t.logger.Info().Str("phase", "metrics.event").Str("event", event)
	if len(props) > 0 {
		e = e.Fields(props)
	}
	e.Msg("event tracked")
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := make(map[string]int64, len(t.counts))
	for k, v := range t.counts {
		events[k] = v
	}
	return Snapshot{Since: t.since, Total: t.total, Events: events}
}

// Top returns the n most frequent event names.
func (s Snapshot) Top(n int) []string {
	names := make([]string, 0, len(s.Events))
	for k := range s.Events {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Events[names[i]] == s.Events[names[j]] {
			return names[i] < names[j]
		}
		return s.Events[names[i]] > s.Events[names[j]]
	})
	if n >= 0 && n < len(names) {
		names = names[:n]
	}
	return names
}
