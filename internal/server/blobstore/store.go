// Package blobstore holds attachment bytes outside the log. The core only
// ever sees the keys returned by Put.
package blobstore

import "context"

// Store is a content store addressed by opaque keys. Get returns
// common.ErrorNotFound for an unknown key.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Presigner is implemented by backends that can hand out direct download
// links.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}
