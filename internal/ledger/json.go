package ledger

import (
	"encoding/json"

	"github.com/bholliman55/securewatch-n8n/internal/event"
)

// Opaque structured fields are stored as JSON text columns. Nil maps stay
// NULL so a re-read is byte-identical to what was written.

func marshalMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalErr(e *event.ErrorDetail) (any, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalMap(b []byte, dst *map[string]any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func unmarshalErr(b []byte, dst **event.ErrorDetail) error {
	if len(b) == 0 {
		return nil
	}
	var e event.ErrorDetail
	if err := json.Unmarshal(b, &e); err != nil {
		return err
	}
	*dst = &e
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
