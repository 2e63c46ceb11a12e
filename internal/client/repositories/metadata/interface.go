package metadata

import (
	"context"
)

// Repository is a small key/value store for client state: the signed-in
// user, tokens and per-device cursors. Get returns common.ErrorNotFound for
// a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	GetInt(ctx context.Context, key string) (int64, error)
	SetInt(ctx context.Context, key string, value int64) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
