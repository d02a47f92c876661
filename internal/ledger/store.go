package ledger

import (
	"context"
	"time"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

// Error window bounds. The trailing window has no enforced maximum.
const (
	DefaultErrorWindow = 15 * time.Minute
	MinErrorWindow     = time.Minute
)

// ClampWindow applies the default and minimum to a caller-supplied window.
func ClampWindow(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultErrorWindow
	}
	if d < MinErrorWindow {
		return MinErrorWindow
	}
	return d
}

// Appender is the service-level write capability. The interface is the
// append-only guarantee's first line of defense: no update or delete
// operation exists at all. The storage triggers are the second.
type Appender interface {
	// AppendEvent assigns id, seq, and created_at, persists the event, and
	// returns the id. The event must already be validated and normalized.
	AppendEvent(ctx context.Context, ev *event.Event) (string, error)

	// AppendArtifact persists an overflow payload and returns its id.
	AppendArtifact(ctx context.Context, a *event.Artifact) (string, error)
}

// Reader is the administrative read capability, kept distinct from Appender
// so handlers gate each behind its own credential.
type Reader interface {
	// Timeline returns all events for a trace ordered by created_at
	// ascending, then seq ascending. An unknown trace yields an empty
	// slice, not an error — a trace mid-flight is a normal state.
	Timeline(ctx context.Context, traceID string) ([]event.Event, error)

	// RecentErrors returns events with status=error created within the
	// trailing window, ordered by created_at descending.
	RecentErrors(ctx context.Context, window time.Duration) ([]event.Event, error)

	// ArtifactsByTrace returns overflow payloads recorded for a trace.
	ArtifactsByTrace(ctx context.Context, traceID string) ([]event.Artifact, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Store is the full ledger surface.
type Store interface {
	Appender
	Reader
	Close() error
}
