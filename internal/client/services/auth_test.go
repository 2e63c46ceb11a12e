package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterSignsInAndPersists(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{onTokens: PersistTokens(db, nil)}
	svc := NewAuthService(fc, db)
	ctx := context.Background()

	pw := []byte("secret")
	require.NoError(t, svc.Register(ctx, "alice", pw))
	assert.Equal(t, "alice", fc.lastRegister)
	assert.Equal(t, "secret", fc.lastPassword)
	assert.Equal(t, make([]byte, 6), pw, "password buffer must be wiped")

	repo := metadata.NewSQLiteRepository(db)
	v, err := repo.Get(ctx, keyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-alice", string(v))

	// A fresh client restores the cached pair.
	fc2 := &fakeClient{}
	user, err := NewAuthService(fc2, db).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "acc-alice", fc2.access)
	assert.Equal(t, "ref-alice", fc2.refresh)
}

func TestAuth_RegisterError(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{registerErr: client.ErrInvalidInput}

	err := NewAuthService(fc, db).Register(context.Background(), "alice", []byte("x"))
	assert.ErrorIs(t, err, client.ErrInvalidInput)

	_, err = NewAuthService(fc, db).Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestAuth_LoginFailureLeavesNoState(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{loginErr: client.ErrUnauthorized, onTokens: PersistTokens(db, nil)}
	svc := NewAuthService(fc, db)

	err := svc.Login(context.Background(), "bob", []byte("bad"))
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = svc.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestAuth_Logout(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{onTokens: PersistTokens(db, nil)}
	svc := NewAuthService(fc, db)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "bob", []byte("pw")))
	require.NoError(t, svc.Logout(ctx))
	assert.Empty(t, fc.access)

	_, err := svc.Restore(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestPersistTokens_ReportsErrors(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	var got error
	PersistTokens(db, func(err error) { got = err })("a", "r")
	require.Error(t, got)
	assert.False(t, errors.Is(got, client.ErrUnauthorized))
}
