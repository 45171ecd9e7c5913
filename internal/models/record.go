package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateTimeLayout is the timestamp layout the collaborator uses for created/updated.
const DateTimeLayout = "2006-01-02 15:04:05.000Z"

// Record holds the bookkeeping fields every collaborator record carries.
type Record struct {
	ID             string   `json:"id"`
	CollectionID   string   `json:"collectionId,omitempty"`
	CollectionName string   `json:"collectionName,omitempty"`
	Created        DateTime `json:"created"`
	Updated        DateTime `json:"updated"`
}

type DateTime struct {
	time.Time
}

func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t.UTC()}
}

func (d DateTime) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DateTimeLayout)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("datetime: %w", err)
	}

	if s == "" {
		d.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{DateTimeLayout, "2006-01-02 15:04:05Z07:00", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}

	return fmt.Errorf("datetime: unsupported format %q", s)
}
