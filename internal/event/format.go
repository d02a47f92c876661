package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a trace's events as a human-readable text timeline.
func FormatTimeline(traceID string, events []Event) string {
	if len(events) == 0 {
		return fmt.Sprintf("Trace: %s | No events found.\n", traceID)
	}

	var b strings.Builder

	first := events[0].CreatedAt.UTC().Format("2006-01-02 15:04:05")
	last := events[len(events)-1].CreatedAt.UTC().Format("15:04:05")
	b.WriteString(fmt.Sprintf("Trace: %s | %s–%s UTC\n", traceID, first, last))
	b.WriteString(separator + "\n")

	var errCount, terminal int
	for _, e := range events {
		ts := e.CreatedAt.UTC().Format("15:04:05")
		status := fmt.Sprintf("[%-5s]", e.Status)
		errSummary := ""
		if e.Err != nil && e.Err.Message != "" {
			errSummary = "  ERR=" + truncate(e.Err.Message, 60)
		}
		b.WriteString(fmt.Sprintf("%-10s %-8s %-28s %s%s\n",
			ts, status, truncate(e.EventType, 28), truncate(e.Source, 20), errSummary))

		if e.Status == StatusError {
			errCount++
		}
		if e.IsTerminal() {
			terminal++
		}
	}

	b.WriteString(separator + "\n")
	b.WriteString(fmt.Sprintf("Summary: %d event(s), %d error(s), %d terminal\n",
		len(events), errCount, terminal))

	return b.String()
}

// FormatJSON renders events as indented JSON.
func FormatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}

// truncate shortens s to at most max runes, cutting on rune boundaries so
// multi-byte input never yields invalid UTF-8.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
