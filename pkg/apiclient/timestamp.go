package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp decodes backend datetimes, which may omit the zone offset. Zone-less values are UTC.
type Timestamp struct {
	time.Time
}

func (timestamp *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		timestamp.Time = time.Time{}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("apiclient.timestamp: %w", err)
	}
	if text == "" {
		timestamp.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, parseErr := time.Parse(layout, text); parseErr == nil {
			timestamp.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("apiclient.timestamp: unrecognized value %q", text)
}

func (timestamp Timestamp) MarshalJSON() ([]byte, error) {
	if timestamp.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(timestamp.UTC().Format(time.RFC3339Nano))
}
