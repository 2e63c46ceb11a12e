// Package models holds the server-side domain types shared by storage,
// sequencing and delivery.
package models

import "time"

// ContentKind tells renderers how to treat an entry body.
type ContentKind string

const (
	KindPlain    ContentKind = "plain"
	KindMarkdown ContentKind = "markdown"
)

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool {
	return k == KindPlain || k == KindMarkdown
}

// Entry is one committed note. ID and CommittedAt are assigned by the
// sequencer; entries never change after commit.
type Entry struct {
	ID                int64
	Author            string
	Body              string
	Kind              ContentKind
	Attachments       []string
	CommittedAt       time.Time
	ClientSubmittedAt time.Time
	IdempotencyKey    string
}

// Stamp normalizes t to UTC with nanosecond precision and no monotonic
// reading, which is exactly what survives a round trip through storage.
func Stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Unix(0, t.UnixNano()).UTC()
}
