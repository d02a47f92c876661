package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the channel body for the given format.
func FormatPayload(format string, summary ErrorSummary) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(summary)
	case "pagerduty":
		return formatPagerDuty(summary)
	default:
		return formatGeneric(summary)
	}
}

func formatGeneric(summary ErrorSummary) ([]byte, error) {
	return json.Marshal(summary)
}

func formatSlack(summary ErrorSummary) ([]byte, error) {
	name := summary.EventName
	if name == "" {
		name = summary.EventType
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("securewatch: %s failed", name),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Trace:* %s", summary.TraceID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Source:* %s", summary.Source)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Event:* %s", summary.EventType)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Error:* %s", summary.Message)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(summary ErrorSummary) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("securewatch %s: %s", summary.EventType, summary.Message),
			"severity": "error",
			"source":   summary.Source,
			"custom_details": map[string]any{
				"trace_id":   summary.TraceID,
				"event_id":   summary.EventID,
				"event_name": summary.EventName,
				"message":    summary.Message,
				"code":       summary.Code,
				"meta":       summary.Meta,
				"timestamp":  summary.Timestamp,
			},
		},
	}
	return json.Marshal(payload)
}
