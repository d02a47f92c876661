package ledger

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

const testTrace = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func appendTestEvent(t *testing.T, store *SQLiteStore, mutate func(*event.Event)) *event.Event {
	t.Helper()
	ev := &event.Event{
		TraceID:   testTrace,
		Source:    "agent-1",
		EventType: event.TypeToolCall,
		Status:    event.StatusInfo,
	}
	if mutate != nil {
		mutate(ev)
	}
	if _, err := store.AppendEvent(context.Background(), ev); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	return ev
}

func TestAppendAssignsLedgerFields(t *testing.T) {
	store := newTestStore(t)

	ev := appendTestEvent(t, store, nil)
	if ev.ID == "" {
		t.Error("expected ledger-assigned id")
	}
	if ev.Seq == 0 {
		t.Error("expected ledger-assigned seq")
	}
	if ev.CreatedAt.IsZero() {
		t.Error("expected ledger-assigned created_at")
	}
}

func TestTimelineRoundTrip(t *testing.T) {
	store := newTestStore(t)

	d := int64(450)
	appendTestEvent(t, store, func(ev *event.Event) {
		ev.ScanID = "scan-7"
		ev.ClientID = "client-3"
		ev.EventName = "nmap"
		ev.Status = event.StatusError
		ev.Req = map[string]any{"target": "10.0.0.0/24"}
		ev.Res = map[string]any{"hosts": float64(12)}
		ev.Err = &event.ErrorDetail{Message: "timeout", Code: "E_TIMEOUT"}
		ev.Meta = map[string]any{"fixture_mode": true}
		ev.DurationMS = &d
	})

	events, err := store.Timeline(context.Background(), testTrace)
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	got := events[0]
	if got.ScanID != "scan-7" || got.ClientID != "client-3" || got.EventName != "nmap" {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Req["target"] != "10.0.0.0/24" {
		t.Errorf("req payload lost: %v", got.Req)
	}
	if got.Res["hosts"] != float64(12) {
		t.Errorf("res payload lost: %v", got.Res)
	}
	if got.Err == nil || got.Err.Message != "timeout" || got.Err.Code != "E_TIMEOUT" {
		t.Errorf("error detail lost: %+v", got.Err)
	}
	if !got.FixtureMode() {
		t.Error("meta payload lost")
	}
	if got.DurationMS == nil || *got.DurationMS != 450 {
		t.Errorf("duration lost: %v", got.DurationMS)
	}
}

func TestTimelineOrdering(t *testing.T) {
	store := newTestStore(t)

	types := []string{event.TypeWorkflowStart, event.TypeToolCall, event.TypeToolResult, event.TypeWorkflowComplete}
	for _, typ := range types {
		appendTestEvent(t, store, func(ev *event.Event) { ev.EventType = typ })
	}

	events, err := store.Timeline(context.Background(), testTrace)
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(events) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(events))
	}
	for i, got := range events {
		if got.EventType != types[i] {
			t.Errorf("position %d: expected %s, got %s", i, types[i], got.EventType)
		}
		if i > 0 && got.CreatedAt.Before(events[i-1].CreatedAt) {
			t.Errorf("created_at regressed at position %d", i)
		}
		if i > 0 && got.Seq <= events[i-1].Seq {
			t.Errorf("seq not increasing at position %d", i)
		}
	}
}

func TestTimelineIsolatesTraces(t *testing.T) {
	store := newTestStore(t)

	appendTestEvent(t, store, nil)
	appendTestEvent(t, store, func(ev *event.Event) {
		ev.TraceID = "ffffffff-0000-0000-0000-000000000001"
	})

	events, err := store.Timeline(context.Background(), testTrace)
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event for trace, got %d", len(events))
	}
}

func TestTimelineCaseInsensitiveLookup(t *testing.T) {
	store := newTestStore(t)
	appendTestEvent(t, store, nil)

	events, err := store.Timeline(context.Background(), strings.ToUpper(testTrace))
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected uppercase lookup to match stored trace, got %d events", len(events))
	}
}

func TestTimelineUnknownTraceEmpty(t *testing.T) {
	store := newTestStore(t)

	events, err := store.Timeline(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty timeline, got %d events", len(events))
	}
}

func TestRawUpdateBlocked(t *testing.T) {
	store := newTestStore(t)
	appendTestEvent(t, store, nil)

	_, err := store.db.Exec(`UPDATE sw_event_log SET status = 'ok'`)
	if err == nil {
		t.Fatal("expected update to be rejected by trigger")
	}
	if !strings.Contains(err.Error(), "append-only") {
		t.Errorf("expected append-only violation, got %v", err)
	}
}

func TestRawDeleteBlocked(t *testing.T) {
	store := newTestStore(t)
	appendTestEvent(t, store, nil)

	if _, err := store.db.Exec(`DELETE FROM sw_event_log`); err == nil {
		t.Fatal("expected delete to be rejected by trigger")
	}
}

func TestArtifactRawUpdateBlocked(t *testing.T) {
	store := newTestStore(t)
	ev := appendTestEvent(t, store, nil)

	a := &event.Artifact{EventID: ev.ID, TraceID: testTrace, Inline: json.RawMessage(`{"x":1}`)}
	if _, err := store.AppendArtifact(context.Background(), a); err != nil {
		t.Fatalf("artifact append failed: %v", err)
	}

	if _, err := store.db.Exec(`UPDATE sw_artifacts SET external_url = 'x'`); err == nil {
		t.Fatal("expected artifact update to be rejected by trigger")
	}
}

func TestRecentErrorsWindow(t *testing.T) {
	store := newTestStore(t)

	// Clock under test control: one old error outside the window, one fresh.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base.Add(-time.Hour) }
	appendTestEvent(t, store, func(ev *event.Event) {
		ev.Status = event.StatusError
		ev.Err = &event.ErrorDetail{Message: "stale"}
	})

	store.now = func() time.Time { return base }
	appendTestEvent(t, store, func(ev *event.Event) {
		ev.Status = event.StatusError
		ev.Err = &event.ErrorDetail{Message: "fresh"}
	})
	appendTestEvent(t, store, func(ev *event.Event) {
		ev.Status = event.StatusOK
	})

	events, err := store.RecentErrors(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("recent errors failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 error in window, got %d", len(events))
	}
	if events[0].Err == nil || events[0].Err.Message != "fresh" {
		t.Errorf("expected the fresh error, got %+v", events[0].Err)
	}
}

func TestRecentErrorsClampsWindow(t *testing.T) {
	store := newTestStore(t)
	appendTestEvent(t, store, func(ev *event.Event) {
		ev.Status = event.StatusError
		ev.Err = &event.ErrorDetail{Message: "boom"}
	})

	// A zero window falls back to the default instead of matching nothing.
	events, err := store.RecentErrors(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent errors failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected clamped window to include the error, got %d", len(events))
	}
}

func TestWriteTimeNeverRegresses(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	first := appendTestEvent(t, store, nil)

	// Clock jumps backwards; ledger time must not.
	store.now = func() time.Time { return base.Add(-time.Minute) }
	second := appendTestEvent(t, store, nil)

	if second.CreatedAt.Before(first.CreatedAt) {
		t.Errorf("created_at regressed: %s then %s", first.CreatedAt, second.CreatedAt)
	}
}

func TestConcurrentAppendsKeepTimestampOrder(t *testing.T) {
	store := newTestStore(t)

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				ev := &event.Event{
					TraceID:   testTrace,
					Source:    "agent-1",
					EventType: event.TypeToolCall,
					Status:    event.StatusInfo,
				}
				if _, err := store.AppendEvent(context.Background(), ev); err != nil {
					t.Errorf("append failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	events, err := store.Timeline(context.Background(), testTrace)
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(events) != writers*perWriter {
		t.Fatalf("expected %d events, got %d", writers*perWriter, len(events))
	}

	// created_at read in seq order must be non-decreasing: the append
	// critical section covers both timestamp assignment and the insert.
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.Before(events[i-1].CreatedAt) {
			t.Fatalf("seq %d created_at %s precedes seq %d created_at %s",
				events[i].Seq, events[i].CreatedAt.Format(time.RFC3339Nano),
				events[i-1].Seq, events[i-1].CreatedAt.Format(time.RFC3339Nano))
		}
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ev := appendTestEvent(t, store, nil)

	inline := &event.Artifact{
		EventID:     ev.ID,
		TraceID:     testTrace,
		ContentType: "application/json",
		SizeBytes:   9,
		Inline:      json.RawMessage(`{"raw":1}`),
	}
	external := &event.Artifact{
		EventID:     ev.ID,
		TraceID:     testTrace,
		ContentType: "application/pdf",
		ExternalURL: "s3://scans/report.pdf",
	}
	for _, a := range []*event.Artifact{inline, external} {
		if _, err := store.AppendArtifact(context.Background(), a); err != nil {
			t.Fatalf("artifact append failed: %v", err)
		}
	}

	got, err := store.ArtifactsByTrace(context.Background(), testTrace)
	if err != nil {
		t.Fatalf("artifact query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(got))
	}
	if string(got[0].Inline) != `{"raw":1}` {
		t.Errorf("inline payload lost: %s", got[0].Inline)
	}
	if got[1].ExternalURL != "s3://scans/report.pdf" {
		t.Errorf("external url lost: %q", got[1].ExternalURL)
	}
}

func TestOpenPrefersPostgresURL(t *testing.T) {
	// No reachable Postgres here; just confirm sqlite is the fallback path.
	store, err := Open("", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestClampWindow(t *testing.T) {
	if got := ClampWindow(0); got != DefaultErrorWindow {
		t.Errorf("expected zero to fall back to %s, got %s", DefaultErrorWindow, got)
	}
	if got := ClampWindow(-time.Hour); got != MinErrorWindow {
		t.Errorf("expected negative to clamp to %s, got %s", MinErrorWindow, got)
	}
	if got := ClampWindow(time.Second); got != MinErrorWindow {
		t.Errorf("expected sub-minimum to clamp to %s, got %s", MinErrorWindow, got)
	}
	if got := ClampWindow(time.Hour); got != time.Hour {
		t.Errorf("expected hour to pass through, got %s", got)
	}
}
