package alert

// ChannelConfig defines one notification destination. A channel is enabled
// by the presence of its configuration; there is no separate toggle.
type ChannelConfig struct {
	Name    string            `yaml:"name"    json:"name"`
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// ErrorSummary is the structured payload dispatched to channels, one per
// errored event found in a sweep window.
type ErrorSummary struct {
	Timestamp string         `json:"timestamp"`
	TraceID   string         `json:"trace_id"`
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	EventName string         `json:"event_name,omitempty"`
	Source    string         `json:"source"`
	Message   string         `json:"message,omitempty"`
	Code      string         `json:"code,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}
