package event

import (
	"encoding/json"
	"time"
)

// Lifecycle event types with meaning to the contract verifier and the
// replay engine. The vocabulary is intentionally open: producers log any
// dotted-namespace type, and only these constants carry special semantics.
const (
	TypeWorkflowStart    = "workflow.start"
	TypeToolCall         = "tool.call"
	TypeToolResult       = "tool.result"
	TypeWorkflowComplete = "workflow.complete"
	TypeWorkflowError    = "workflow.error"
	TypeHTTPRequest      = "http.request"
	TypeWebhookReceived  = "webhook.received"
)

// Allowed status values. Anything else is coerced to StatusInfo at admission.
const (
	StatusInfo  = "info"
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrorDetail is the structured error payload carried by failed events.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Event is one immutable record of something that happened during a traced
// request. The ledger assigns ID, Seq, and CreatedAt at admission; every
// other field comes from the producer. Req, Res, and Meta are opaque to the
// core — stored and returned as-is, never interpreted.
type Event struct {
	ID         string         `json:"id,omitempty"`
	Seq        int64          `json:"seq,omitempty"`
	TraceID    string         `json:"trace_id"`
	ScanID     string         `json:"scan_id,omitempty"`
	ClientID   string         `json:"client_id,omitempty"`
	Source     string         `json:"source"`
	EventType  string         `json:"event_type"`
	EventName  string         `json:"event_name,omitempty"`
	Status     string         `json:"status,omitempty"`
	Req        map[string]any `json:"req,omitempty"`
	Res        map[string]any `json:"res,omitempty"`
	Err        *ErrorDetail   `json:"err,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
}

// IsTerminal reports whether the event marks the end of a trace.
func (e *Event) IsTerminal() bool {
	return e.EventType == TypeWorkflowComplete || e.EventType == TypeWorkflowError
}

// IsActivity reports whether the event represents real work between start
// and terminal: a tool call/result, or a webhook/HTTP marker from producers
// that only log entry points.
func (e *Event) IsActivity() bool {
	if e.EventType == TypeHTTPRequest || e.EventType == TypeWebhookReceived {
		return true
	}
	return len(e.EventType) > 5 && e.EventType[:5] == "tool."
}

// FixtureMode reports whether the producer marked this event as part of a
// deterministic dry run (meta.fixture_mode = true).
func (e *Event) FixtureMode() bool {
	if e.Meta == nil {
		return false
	}
	v, ok := e.Meta["fixture_mode"].(bool)
	return ok && v
}

// Artifact is a large payload associated with one event, stored out of line.
// TraceID is denormalized from the owning event for direct trace-scoped
// lookup. Either Inline or ExternalURL is set, never both.
type Artifact struct {
	ID          string          `json:"id,omitempty"`
	EventID     string          `json:"event_id"`
	TraceID     string          `json:"trace_id"`
	ContentType string          `json:"content_type,omitempty"`
	SizeBytes   int64           `json:"size_bytes,omitempty"`
	Inline      json.RawMessage `json:"inline,omitempty"`
	ExternalURL string          `json:"external_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}
