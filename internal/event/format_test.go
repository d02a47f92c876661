package event

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestFormatTimelineEmpty(t *testing.T) {
	out := FormatTimeline("a1b2c3d4-e5f6-7890-abcd-ef1234567890", nil)
	if !strings.Contains(out, "No events found") {
		t.Errorf("expected empty-trace message, got %q", out)
	}
}

func TestFormatTimelineSummary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{EventType: TypeWorkflowStart, Source: "agent-1", Status: StatusInfo, CreatedAt: base},
		{EventType: TypeToolCall, Source: "agent-1", Status: StatusError,
			Err: &ErrorDetail{Message: "timeout"}, CreatedAt: base.Add(time.Second)},
		{EventType: TypeWorkflowComplete, Source: "agent-1", Status: StatusOK, CreatedAt: base.Add(2 * time.Second)},
	}

	out := FormatTimeline("a1b2c3d4-e5f6-7890-abcd-ef1234567890", events)
	if !strings.Contains(out, "3 event(s), 1 error(s), 1 terminal") {
		t.Errorf("summary line wrong: %q", out)
	}
	if !strings.Contains(out, "ERR=timeout") {
		t.Errorf("expected error summary in output: %q", out)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	// Multi-byte payloads must not be cut mid-rune.
	long := strings.Repeat("жертва-", 20)
	got := truncate(long, 28)
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 28 {
		t.Errorf("expected 28 runes, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

func TestTruncateShortStringUntouched(t *testing.T) {
	if got := truncate("workflow.start", 28); got != "workflow.start" {
		t.Errorf("expected short string unchanged, got %q", got)
	}
}
