package event

import (
	"fmt"
	"regexp"
	"strings"
)

// uuidRE matches the canonical 8-4-4-4-12 textual UUID form, any case.
var uuidRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidationError describes a rejected event submission. It is the only
// error kind validation produces; nothing reaches storage after one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Reason)
}

// Validate checks a raw submission and returns a normalized copy ready for
// the ledger, or a *ValidationError.
//
// Rules: trace_id, source, and event_type must be non-empty after trimming;
// trace_id must be a canonical UUID and is lowercased; status outside
// info/ok/error (including absent) is coerced to info. Every other field
// passes through opaque. A negative duration_ms is dropped rather than
// rejected, matching the status coercion rule.
func Validate(raw *Event) (*Event, error) {
	if raw == nil {
		return nil, &ValidationError{Field: "event", Reason: "missing body"}
	}

	ev := *raw

	ev.TraceID = strings.TrimSpace(ev.TraceID)
	if ev.TraceID == "" {
		return nil, &ValidationError{Field: "trace_id", Reason: "required"}
	}
	if !uuidRE.MatchString(ev.TraceID) {
		return nil, &ValidationError{Field: "trace_id", Reason: fmt.Sprintf("%q is not a valid UUID", ev.TraceID)}
	}
	ev.TraceID = strings.ToLower(ev.TraceID)

	ev.Source = strings.TrimSpace(ev.Source)
	if ev.Source == "" {
		return nil, &ValidationError{Field: "source", Reason: "required"}
	}

	ev.EventType = strings.TrimSpace(ev.EventType)
	if ev.EventType == "" {
		return nil, &ValidationError{Field: "event_type", Reason: "required"}
	}

	switch ev.Status {
	case StatusInfo, StatusOK, StatusError:
	default:
		ev.Status = StatusInfo
	}

	if ev.DurationMS != nil && *ev.DurationMS < 0 {
		ev.DurationMS = nil
	}

	// Ledger-assigned fields are never caller-supplied.
	ev.ID = ""
	ev.Seq = 0

	return &ev, nil
}

// ValidTraceID reports whether s is a canonical UUID, for callers that need
// the check without full event validation (query parameters, CLI args).
func ValidTraceID(s string) bool {
	return uuidRE.MatchString(strings.TrimSpace(s))
}

// NormalizeTraceID lowercases a trace id so lookups match stored values.
func NormalizeTraceID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
