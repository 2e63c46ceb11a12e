// Package repomanager vends repositories bound to a DBTX (a pool or an open
// transaction) and runs the embedded schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/cursors"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/entries"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/logmeta"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Entries(db dbx.DBTX) entries.Repository
	Attachments(db dbx.DBTX) attachments.Repository
	LogMeta(db dbx.DBTX) logmeta.Repository
	Cursors(db dbx.DBTX) cursors.Repository
}
