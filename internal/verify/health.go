package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const healthTimeout = 15 * time.Second

// Check 9: the ingestion boundary accepts a synthetic well-formed event.
// This exercises validator and store together as a live health check,
// independent of the trace under test. Skipped when no endpoint is
// configured.
func checkIngestHealth(ctx context.Context, opts Options) CheckResult {
	const name = "ingest_health"
	if opts.IngestURL == "" {
		return skip(9, name, "no ingest URL configured; skipping health check")
	}

	payload := map[string]any{
		"trace_id":   uuid.NewString(),
		"source":     "contract-verifier",
		"event_type": "test.health_check",
		"event_name": "Contract verifier health check",
		"status":     "info",
		"meta":       map[string]any{"fixture_mode": false, "_test": true},
	}
	body, _ := json.Marshal(payload)

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.IngestURL, bytes.NewReader(body))
	if err != nil {
		return fail(9, name, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.IngestCredential != "" {
		req.Header.Set("Authorization", "Bearer "+opts.IngestCredential)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fail(9, name, fmt.Sprintf("could not reach ingest endpoint %s: %v", opts.IngestURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fail(9, name, fmt.Sprintf("ingest returned HTTP %d (expected 201)", resp.StatusCode))
	}

	var ack struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fail(9, name, fmt.Sprintf("decode ingest response: %v", err))
	}
	if !ack.OK || ack.ID == "" {
		return fail(9, name, fmt.Sprintf("ingest response not acknowledged: ok=%v id=%q", ack.OK, ack.ID))
	}

	return pass(9, name, "ingest boundary accepted a synthetic event")
}
