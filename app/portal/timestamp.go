package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Timestamp accepts the backend's ISO timestamps, which are usually naive
// (no zone). Naive values are read in time.Local.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		return nil
	}

	parsed, err := dateparse.ParseIn(raw, time.Local)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

const dateLayout = "2006-01-02"

// Date is a calendar day without time of day.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		return nil
	}

	parsed, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		parsed, err = dateparse.ParseIn(raw, time.Local)
		if err != nil {
			return fmt.Errorf("failed to parse date %q: %w", raw, err)
		}
	}
	d.Time = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}
