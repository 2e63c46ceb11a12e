// Package logmeta stores the durable log's high-water marks.
package logmeta

import "context"

const (
	// MaxID is the id of the last committed entry.
	MaxID = "max_id"
	// LastCommittedAt is the committed_at of that entry, in unix nanoseconds.
	LastCommittedAt = "last_committed_at"
)

type Repository interface {
	Get(ctx context.Context, name string) (int64, error)
	Set(ctx context.Context, name string, value int64) error
}
