// Package paperless is a small client for the Paperless-ngx REST API. Every
// exported call degrades to an empty result on failure and logs the cause.
package paperless

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is the metadata of an archived document.
type Document struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Created       *Timestamp `json:"created"`
	Correspondent *int       `json:"correspondent"`
	Tags          []int      `json:"tags"`
	Content       string     `json:"content"`
}

// CreatedAt returns the creation date, or nil when the archive has none.
func (d Document) CreatedAt() *time.Time {
	if d.Created == nil || d.Created.IsZero() {
		return nil
	}
	t := d.Created.Time
	return &t
}

// Correspondent is a sender or recipient known to the archive.
type Correspondent struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Tag is an archive tag.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SearchFilters narrow a full text search. Zero values are not sent.
type SearchFilters struct {
	CorrespondentID int
	TagIDs          []int
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	PageSize        int
}

type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// Timestamp accepts both the date-only and the RFC 3339 form Paperless uses
// for "created", depending on its version.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("paperless: unsupported timestamp %q", s)
}
