package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) (*FSStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, dir
}

func TestFSStore_RoundTrip(t *testing.T) {
	s, _ := newFS(t)
	ctx := context.Background()
	data := []byte("attachment body, attachment body, attachment body")

	key, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, HashKey(data), key)
	assert.Len(t, key, 64)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStore_EmptyBlob(t *testing.T) {
	s, _ := newFS(t)
	ctx := context.Background()

	key, err := s.Put(ctx, nil)
	require.NoError(t, err)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFSStore_DedupsIdenticalContent(t *testing.T) {
	s, dir := newFS(t)
	ctx := context.Background()

	k1, err := s.Put(ctx, []byte("same"))
	require.NoError(t, err)
	k2, err := s.Put(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	files, err := os.ReadDir(filepath.Join(dir, k1[:2]))
	require.NoError(t, err)
	assert.Len(t, files, 1, "no temp files may be left behind")
}

func TestFSStore_StoresCompressed(t *testing.T) {
	s, dir := newFS(t)
	data := make([]byte, 64*1024)

	key, err := s.Put(context.Background(), data)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, key[:2], key+".zst"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(data)))
}

func TestFSStore_NotFound(t *testing.T) {
	s, _ := newFS(t)
	ctx := context.Background()

	_, err := s.Get(ctx, HashKey([]byte("never stored")))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFSStore_DetectsCorruption(t *testing.T) {
	s, dir := newFS(t)
	ctx := context.Background()

	key, err := s.Put(ctx, []byte("original"))
	require.NoError(t, err)

	other, err := s.Put(ctx, []byte("different"))
	require.NoError(t, err)
	raw, err := os.ReadFile(filepath.Join(dir, other[:2], other+".zst"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key[:2], key+".zst"), raw, 0o600))

	_, err = s.Get(ctx, key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestFSStore_CanceledContext(t *testing.T) {
	s, _ := newFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
