package models

import "time"

// AttachmentRef maps an opaque token to a blob key. EntryID is zero while the
// ref is staged and is set once, inside the owning entry's commit.
type AttachmentRef struct {
	Token     string
	BlobKey   string
	Name      string
	Owner     string
	EntryID   int64
	Position  int
	CreatedAt time.Time
}

// Bound reports whether the ref belongs to a committed entry.
func (r AttachmentRef) Bound() bool {
	return r.EntryID != 0
}
