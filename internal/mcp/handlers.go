package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/ledger"
	"github.com/bholliman55/securewatch-n8n/internal/verify"
)

// --- Input/Output types ---

// TimelineInput defines parameters for the securewatch_timeline tool.
type TimelineInput struct {
	TraceID string `json:"trace_id" jsonschema:"trace ID (UUID) to fetch"`
}

// TimelineOutput contains the ordered events of a trace.
type TimelineOutput struct {
	TraceID string        `json:"trace_id"`
	Count   int           `json:"count"`
	Events  []event.Event `json:"events"`
}

// ErrorsInput defines parameters for the securewatch_errors tool.
type ErrorsInput struct {
	Window string `json:"window,omitempty" jsonschema:"lookback window as a Go duration (e.g. 15m), default 15m"`
}

// ErrorsOutput lists recent error events.
type ErrorsOutput struct {
	Window string        `json:"window"`
	Count  int           `json:"count"`
	Events []event.Event `json:"events"`
}

// VerifyInput defines parameters for the securewatch_verify tool.
type VerifyInput struct {
	TraceID     string `json:"trace_id" jsonschema:"trace ID (UUID) to verify"`
	FixtureMode bool   `json:"fixture_mode,omitempty" jsonschema:"expect events to be marked as fixture data"`
}

// VerifyOutput reports the per-check results.
type VerifyOutput struct {
	TraceID string         `json:"trace_id"`
	Passed  bool           `json:"passed"`
	Checks  []verifyResult `json:"checks"`
}

type verifyResult struct {
	Num    int    `json:"num"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ReplayInput defines parameters for the securewatch_replay tool.
type ReplayInput struct {
	TraceID  string `json:"trace_id" jsonschema:"trace ID (UUID) to replay"`
	Dispatch bool   `json:"dispatch,omitempty" jsonschema:"actually send the reconstructed request instead of a dry run"`
}

// ReplayOutput describes the reconstructed request and, when dispatched,
// the response.
type ReplayOutput struct {
	URL         string         `json:"url"`
	Payload     map[string]any `json:"payload"`
	RootEventID string         `json:"root_event_id"`
	Dispatched  bool           `json:"dispatched"`
	Status      int            `json:"status,omitempty"`
	Body        string         `json:"body,omitempty"`
}

// --- Handlers ---

func (s *Server) handleTimeline(ctx context.Context, req *mcpsdk.CallToolRequest, input TimelineInput) (*mcpsdk.CallToolResult, TimelineOutput, error) {
	if !event.ValidTraceID(input.TraceID) {
		return nil, TimelineOutput{}, fmt.Errorf("trace_id %q is not a valid UUID", input.TraceID)
	}

	events, err := s.store.Timeline(ctx, input.TraceID)
	if err != nil {
		return nil, TimelineOutput{}, err
	}

	return nil, TimelineOutput{
		TraceID: event.NormalizeTraceID(input.TraceID),
		Count:   len(events),
		Events:  events,
	}, nil
}

func (s *Server) handleErrors(ctx context.Context, req *mcpsdk.CallToolRequest, input ErrorsInput) (*mcpsdk.CallToolResult, ErrorsOutput, error) {
	window := ledger.DefaultErrorWindow
	if input.Window != "" {
		d, err := time.ParseDuration(input.Window)
		if err != nil {
			return nil, ErrorsOutput{}, fmt.Errorf("invalid window %q: %w", input.Window, err)
		}
		window = ledger.ClampWindow(d)
	}

	events, err := s.store.RecentErrors(ctx, window)
	if err != nil {
		return nil, ErrorsOutput{}, err
	}

	return nil, ErrorsOutput{
		Window: window.String(),
		Count:  len(events),
		Events: events,
	}, nil
}

func (s *Server) handleVerify(ctx context.Context, req *mcpsdk.CallToolRequest, input VerifyInput) (*mcpsdk.CallToolResult, VerifyOutput, error) {
	if !event.ValidTraceID(input.TraceID) {
		return nil, VerifyOutput{}, fmt.Errorf("trace_id %q is not a valid UUID", input.TraceID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.VerifyTimeout)
	defer cancel()

	report, err := verify.Run(ctx, s.store, input.TraceID, verify.Options{
		ExpectFixtureMode: input.FixtureMode,
	})
	if err != nil {
		return nil, VerifyOutput{}, err
	}

	out := VerifyOutput{
		TraceID: report.TraceID,
		Passed:  report.Passed,
		Checks:  make([]verifyResult, len(report.Checks)),
	}
	for i, c := range report.Checks {
		status := "pass"
		switch {
		case c.Skipped:
			status = "skip"
		case !c.Passed:
			status = "fail"
		}
		out.Checks[i] = verifyResult{Num: c.Num, Name: c.Name, Status: status, Detail: c.Detail}
	}

	if !report.Passed {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleReplay(ctx context.Context, req *mcpsdk.CallToolRequest, input ReplayInput) (*mcpsdk.CallToolResult, ReplayOutput, error) {
	if !event.ValidTraceID(input.TraceID) {
		return nil, ReplayOutput{}, fmt.Errorf("trace_id %q is not a valid UUID", input.TraceID)
	}

	if input.Dispatch && !s.cfg.AllowDispatch {
		return nil, ReplayOutput{}, fmt.Errorf("replay dispatch is disabled on this server")
	}

	if !input.Dispatch {
		r, _, err := s.engine.Build(ctx, input.TraceID)
		if err != nil {
			return nil, ReplayOutput{}, err
		}
		return nil, ReplayOutput{
			URL:         r.URL,
			Payload:     r.Payload,
			RootEventID: r.RootEventID,
		}, nil
	}

	result, err := s.engine.Replay(ctx, input.TraceID)
	if err != nil {
		return nil, ReplayOutput{}, err
	}
	return nil, ReplayOutput{
		URL:         result.Request.URL,
		Payload:     result.Request.Payload,
		RootEventID: result.Request.RootEventID,
		Dispatched:  true,
		Status:      result.Status,
		Body:        result.Body,
	}, nil
}
