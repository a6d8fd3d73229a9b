package metrics

import (
	"bytes"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestTrackCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(zerolog.New(&buf))

	tr.Track("edit.done", map[string]any{"sessionId": "s1"})
	tr.Track("edit.done", nil)
	tr.Track("", nil)

	snap := tr.Snapshot()
	if snap.Total != 3 || snap.Events["edit.done"] != 2 || snap.Events["unknown"] != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !strings.Contains(buf.String(), `"sessionId":"s1"`) || !strings.Contains(buf.String(), `"phase":"metrics.event"`) {
		t.Fatalf("log output = %s", buf.String())
	}

	snap.Events["edit.done"] = 100
	if tr.Snapshot().Events["edit.done"] != 2 {
		t.Fatalf("snapshot should be a copy")
	}
}

func TestTrackConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(zerolog.New(zerolog.SyncWriter(&buf)))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Track("analyze", nil)
		}()
	}
	wg.Wait()
	if got := tr.Snapshot().Events["analyze"]; got != 50 {
		t.Fatalf("count = %d", got)
	}
}

func TestSnapshotTop(t *testing.T) {
	s := Snapshot{Events: map[string]int64{"a": 1, "b": 3, "c": 3, "d": 2}}
	if got := s.Top(3); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Fatalf("Top = %v", got)
	}
}
