package logmeta

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSQLRepository(db), mock, db
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+log_meta\s+WHERE\s+name\s*=\s*\$1`).
		WithArgs(MaxID).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(12)))

	v, err := repo.Get(context.Background(), MaxID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
}

func TestGet_Missing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`log_meta`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSet_Upserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+log_meta.*ON\s+CONFLICT\s+\(name\)\s+DO\s+UPDATE`).
		WithArgs(LastCommittedAt, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), LastCommittedAt, 99))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`log_meta`).WillReturnError(errors.New("disk full"))

	err := repo.Set(context.Background(), MaxID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
