// Package replay reconstructs the root request of a recorded trace and
// re-issues it into a workflow entry point, preserving the original
// trace_id so the replayed run correlates against the same trace.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/ledger"
)

// DefaultTimeout bounds the outbound replay call. There is no retry:
// replay is an operator-triggered, manually-retried action.
const DefaultTimeout = 120 * time.Second

var (
	// ErrTraceNotFound means no events exist for the trace.
	ErrTraceNotFound = errors.New("replay: no events found for trace")

	// ErrNoRootRequest means the trace exists but no event carries a req
	// payload, so there is nothing to reconstruct.
	ErrNoRootRequest = errors.New("replay: no event in trace carries a req payload")
)

// Config holds replay dispatch settings.
type Config struct {
	// EntrypointURL is the base URL of the workflow entry point, e.g. the
	// staging webhook host. Required for dispatch, optional for dry runs.
	EntrypointURL string

	// WebhookPath overrides path derivation when set.
	WebhookPath string

	// DefaultPaths maps an event source to its default webhook path, used
	// when the root event's meta carries no webhook_path.
	DefaultPaths map[string]string

	// APIKey is sent as X-API-Key when non-empty.
	APIKey string

	// Timeout bounds the outbound call; zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Request is the reconstructed outbound request.
type Request struct {
	URL         string         `json:"url"`
	Payload     map[string]any `json:"payload"`
	TraceID     string         `json:"trace_id"`
	RootEventID string         `json:"root_event_id"`
}

// Result is the outcome of a dispatched replay.
type Result struct {
	Request Request       `json:"request"`
	Status  int           `json:"status"`
	Body    string        `json:"body,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Engine reads a trace from the ledger and replays its root request.
type Engine struct {
	store ledger.Reader
	cfg   Config
}

// New creates a replay engine.
func New(store ledger.Reader, cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Engine{store: store, cfg: cfg}
}

// Build reconstructs the outbound request for a trace without dispatching
// it. This is the dry-run path; Replay calls it before sending.
func (e *Engine) Build(ctx context.Context, traceID string) (*Request, []event.Event, error) {
	traceID = event.NormalizeTraceID(traceID)

	events, err := e.store.Timeline(ctx, traceID)
	if err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}

	root := findRoot(events)
	if root == nil {
		return nil, events, fmt.Errorf("%w: %s", ErrNoRootRequest, traceID)
	}

	// Copy the stored req and mark the replay so downstream consumers can
	// distinguish it from the original run.
	payload := make(map[string]any, len(root.Req)+3)
	for k, v := range root.Req {
		payload[k] = v
	}
	payload["trace_id"] = traceID
	payload["_replay"] = true
	payload["_original_event_id"] = root.ID

	return &Request{
		URL:         e.entrypointFor(root),
		Payload:     payload,
		TraceID:     traceID,
		RootEventID: root.ID,
	}, events, nil
}

// Replay builds and dispatches the root request. At most one outbound call
// is made per invocation; nothing is sent when Build fails.
func (e *Engine) Replay(ctx context.Context, traceID string) (*Result, error) {
	req, _, err := e.Build(ctx, traceID)
	if err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, fmt.Errorf("replay: no entrypoint URL configured")
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("replay: encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replay: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("X-API-Key", e.cfg.APIKey)
	}

	client := e.cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: e.cfg.Timeout}
	}

	t0 := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replay: dispatch: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	return &Result{
		Request: *req,
		Status:  resp.StatusCode,
		Body:    string(respBody),
		Elapsed: time.Since(t0),
	}, nil
}

// findRoot locates the event to replay. Priority: the earliest
// workflow.start carrying a req payload, then the earliest event of any
// type carrying one. An event without req is never a root — producers that
// log workflow.start bare and attach the payload to a later event get that
// later event, which is the closest reconstructible request.
func findRoot(events []event.Event) *event.Event {
	for i := range events {
		if events[i].EventType == event.TypeWorkflowStart && events[i].Req != nil {
			return &events[i]
		}
	}
	for i := range events {
		if events[i].Req != nil {
			return &events[i]
		}
	}
	return nil
}

// entrypointFor derives the replay target URL for a root event: the
// configured path override, else the webhook_path stored on the event's
// meta, else the per-source default.
func (e *Engine) entrypointFor(root *event.Event) string {
	if e.cfg.EntrypointURL == "" {
		return ""
	}
	base := strings.TrimRight(e.cfg.EntrypointURL, "/")

	path := e.cfg.WebhookPath
	if path == "" && root.Meta != nil {
		if p, ok := root.Meta["webhook_path"].(string); ok {
			path = p
		}
	}
	if path == "" {
		path = e.cfg.DefaultPaths[root.Source]
	}
	if path == "" {
		path = "/security-scanner-start"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
