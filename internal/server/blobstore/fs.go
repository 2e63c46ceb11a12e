package blobstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// FSStore keeps zstd-compressed blobs in a directory tree. Keys are the
// BLAKE3 digest of the uncompressed bytes, so identical uploads share one
// file.
type FSStore struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &FSStore{dir: dir, enc: enc, dec: dec}, nil
}

// HashKey returns the key Put assigns to data.
func HashKey(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *FSStore) path(key string) (string, error) {
	if len(key) != 64 {
		return "", common.ErrorNotFound
	}
	if _, err := hex.DecodeString(key); err != nil {
		return "", common.ErrorNotFound
	}
	return filepath.Join(s.dir, key[:2], key+".zst"), nil
}

func (s *FSStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := HashKey(data)
	target, _ := s.path(key)
	if _, err := os.Stat(target); err == nil {
		return key, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(s.enc.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("publish blob: %w", err)
	}
	return key, nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}

	data, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", key, err)
	}
	if HashKey(data) != key {
		return nil, fmt.Errorf("blob %s is corrupt", key)
	}
	return data, nil
}

func (s *FSStore) Close() {
	s.enc.Close()
	s.dec.Close()
}
