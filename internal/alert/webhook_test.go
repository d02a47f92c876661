package alert

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func testSummary() ErrorSummary {
	return ErrorSummary{
		Timestamp: "2026-03-01T12:00:00.000Z",
		TraceID:   "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		EventID:   "ev-1",
		EventType: "workflow.error",
		EventName: "security-scan",
		Source:    "agent-1",
		Message:   "scanner crashed",
		Code:      "E_CRASH",
	}
}

func TestSendDeliversPayload(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(ChannelConfig{URL: srv.URL}, testSummary())
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var summary ErrorSummary
	if err := json.Unmarshal(got, &summary); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if summary.Message != "scanner crashed" {
		t.Errorf("payload lost the message: %+v", summary)
	}
}

func TestSendCustomHeaders(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := ChannelConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer tok"}}
	if err := Send(ch, testSummary()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if auth != "Bearer tok" {
		t.Errorf("expected configured header, got %q", auth)
	}
}

func TestSendRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Send(ChannelConfig{URL: srv.URL}, testSummary()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := Send(ChannelConfig{URL: srv.URL}, testSummary())
	if err == nil {
		t.Fatal("expected 4xx to fail")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt for a 4xx, got %d", calls.Load())
	}
}

func TestFormatSlack(t *testing.T) {
	body, err := FormatPayload("slack", testSummary())
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	s := string(body)
	if !strings.Contains(s, "blocks") {
		t.Error("expected slack blocks payload")
	}
	if !strings.Contains(s, "security-scan") {
		t.Error("expected event name in header")
	}
}

func TestFormatPagerDuty(t *testing.T) {
	body, err := FormatPayload("pagerduty", testSummary())
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["event_action"] != "trigger" {
		t.Errorf("expected trigger action, got %v", payload["event_action"])
	}
}

func TestFormatGenericDefault(t *testing.T) {
	body, err := FormatPayload("", testSummary())
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	var summary ErrorSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("expected the raw summary, got %s", body)
	}
}

func TestDispatcherFanOut(t *testing.T) {
	var a, b atomic.Int32
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.Add(1)
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Add(1)
	}))
	defer srvB.Close()

	d := NewDispatcher([]ChannelConfig{{Name: "a", URL: srvA.URL}, {Name: "b", URL: srvB.URL}})
	delivered := d.Dispatch(testSummary())

	if delivered != 2 {
		t.Errorf("expected 2 deliveries, got %d", delivered)
	}
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("expected both channels hit, got a=%d b=%d", a.Load(), b.Load())
	}
}

func TestDispatcherIsolatesFailure(t *testing.T) {
	var ok atomic.Int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok.Add(1)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer bad.Close()

	d := NewDispatcher([]ChannelConfig{{Name: "bad", URL: bad.URL}, {Name: "good", URL: good.URL}})
	delivered := d.Dispatch(testSummary())

	if delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}
	if ok.Load() != 1 {
		t.Error("expected the healthy channel to still receive the summary")
	}
}

func TestDispatcherEmptyIsNil(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("expected nil dispatcher for no channels")
	}
}
