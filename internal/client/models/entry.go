// Package models holds the client-side view of committed entries.
package models

import "time"

// Entry is a committed entry as received from the server and kept in the
// local cache.
type Entry struct {
	ID                int64
	Author            string
	Body              string
	Kind              string
	Attachments       []string
	CommittedAt       time.Time
	ClientSubmittedAt time.Time
}

// Submission is what the client sends to commit a new entry.
type Submission struct {
	Body              string
	Kind              string
	Attachments       []string
	ClientSubmittedAt time.Time
	IdempotencyKey    string
}

// Attachment is a fetched attachment. URL is set when the server's blob
// backend can serve the bytes directly.
type Attachment struct {
	Name    string
	Data    []byte
	URL     string
	EntryID int64
}

// Status is the server's last-update probe.
type Status struct {
	MaxID           int64
	LastCommittedAt time.Time
	LiveSessions    int64
}
