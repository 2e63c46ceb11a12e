// Package durablelog is the append-only, totally ordered record of committed
// entries and the single source of truth for the service.
//
// Every append writes the entry row, its attachment bindings and the
// high-water mark in one transaction. On open the high-water mark is read
// back so recovery never scans the log.
package durablelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/logmeta"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
)

// RefRegistrar binds attachment refs inside the append transaction.
type RefRegistrar interface {
	Register(ctx context.Context, tx dbx.DBTX, ref models.AttachmentRef) error
}

// reconcileTimeout bounds the high-water mark probe after a failed commit.
const reconcileTimeout = 5 * time.Second

type Log struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	registrar RefRegistrar
	logger    logging.Logger

	// appendMu serializes writers; readers only take mu.
	appendMu sync.Mutex
	// stale is set when an append failed and its outcome is unknown.
	stale bool

	mu              sync.RWMutex
	maxID           int64
	lastCommittedAt time.Time
}

// Open recovers the log state from the persisted high-water mark.
func Open(ctx context.Context, db *sql.DB, repos repomanager.RepositoryManager, registrar RefRegistrar, logger logging.Logger) (*Log, error) {
	l := &Log{
		db:        db,
		repos:     repos,
		registrar: registrar,
		logger:    logger.With("module", "durable_log"),
	}

	if err := l.recover(ctx); err != nil {
		return nil, err
	}

	l.logger.Info(ctx, "Durable log opened", "max_id", l.MaxID(), "last_committed_at", l.LastCommittedAt())
	return l, nil
}

func (l *Log) recover(ctx context.Context) error {
	meta := l.repos.LogMeta(l.db)

	maxID, err := getMeta(ctx, meta, logmeta.MaxID)
	if err != nil {
		return fmt.Errorf("%w: read high-water mark: %w", common.ErrStorage, err)
	}
	lastNanos, err := getMeta(ctx, meta, logmeta.LastCommittedAt)
	if err != nil {
		return fmt.Errorf("%w: read last commit time: %w", common.ErrStorage, err)
	}

	stored, err := l.repos.Entries(l.db).MaxID(ctx)
	if err != nil {
		return fmt.Errorf("%w: probe stored entries: %w", common.ErrStorage, err)
	}

	adopted := false
	switch {
	case stored < maxID:
		return fmt.Errorf("%w: high-water mark %d is ahead of stored entries (%d)", common.ErrStorage, maxID, stored)
	case stored > maxID:
		// Rows past the mark can only come from an older schema or a manual
		// import. Adopt them if they continue the sequence without gaps.
		tail, err := l.repos.Entries(l.db).Range(ctx, maxID+1, stored)
		if err != nil {
			return fmt.Errorf("%w: read tail: %w", common.ErrStorage, err)
		}
		if err := checkContiguous(tail, maxID+1, stored); err != nil {
			return err
		}
		l.logger.Warn(ctx, "Adopting entries past the high-water mark", "from", maxID+1, "to", stored)
		maxID = stored
		lastNanos = tail[len(tail)-1].CommittedAt.UnixNano()
		adopted = true
	}

	l.mu.Lock()
	l.maxID = maxID
	if lastNanos > 0 {
		l.lastCommittedAt = time.Unix(0, lastNanos).UTC()
	} else {
		l.lastCommittedAt = time.Time{}
	}
	l.mu.Unlock()

	if adopted {
		return l.persistMark(ctx, l.db)
	}
	return nil
}

func getMeta(ctx context.Context, meta logmeta.Repository, name string) (int64, error) {
	v, err := meta.Get(ctx, name)
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	return v, err
}

// MaxID is the id of the last durable entry, 0 for an empty log.
func (l *Log) MaxID() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxID
}

// LastCommittedAt is the committed_at of the last durable entry.
func (l *Log) LastCommittedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastCommittedAt
}

// Sync re-reads the high-water mark if an earlier append left the log
// stale. Callers that allocate ids from MaxID must call it first.
func (l *Log) Sync(ctx context.Context) error {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()
	_, err := l.syncLocked(ctx)
	return err
}

func (l *Log) syncLocked(ctx context.Context) (bool, error) {
	if !l.stale {
		return false, nil
	}
	before := l.MaxID()
	if err := l.recover(ctx); err != nil {
		return false, err
	}
	l.stale = false
	if after := l.MaxID(); after != before {
		l.logger.Warn(ctx, "Recovered entries from an unconfirmed commit", "from", before+1, "to", after)
	}
	return true, nil
}

// Append durably writes e, which must carry id MaxID()+1. Either the entry,
// its attachment bindings and the new high-water mark all become durable, or
// nothing does and MaxID is unchanged. Storage failures wrap
// common.ErrStorage; rejected attachment bindings wrap common.ErrValidation.
func (l *Log) Append(ctx context.Context, e models.Entry) error {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	synced, err := l.syncLocked(ctx)
	if err != nil {
		return err
	}

	if want := l.MaxID() + 1; e.ID != want {
		if synced {
			// The id was allocated before recovery moved the mark.
			return fmt.Errorf("%w: log advanced to %d during recovery, append id %d is stale", common.ErrStorage, want-1, e.ID)
		}
		return fmt.Errorf("%w: append id %d out of order, expected %d", common.ErrValidation, e.ID, want)
	}

	err = dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := l.repos.Entries(tx).Insert(ctx, e); err != nil {
			return err
		}
		for i, token := range e.Attachments {
			ref := models.AttachmentRef{Token: token, Owner: e.Author, EntryID: e.ID, Position: i}
			if err := l.registrar.Register(ctx, tx, ref); err != nil {
				return err
			}
		}
		meta := l.repos.LogMeta(tx)
		if err := meta.Set(ctx, logmeta.MaxID, e.ID); err != nil {
			return err
		}
		return meta.Set(ctx, logmeta.LastCommittedAt, e.CommittedAt.UnixNano())
	})
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return err
		}
		if !errors.Is(err, dbx.ErrCommit) {
			// Rolled back; nothing is durable.
			return fmt.Errorf("%w: append entry %d: %w", common.ErrStorage, e.ID, err)
		}
		committed, rerr := l.reconcile(ctx, e.ID)
		if rerr != nil {
			l.stale = true
			l.logger.Error(ctx, "Append outcome unknown", "id", e.ID, "error", err, "probe_error", rerr)
			return fmt.Errorf("%w: append entry %d: %w", common.ErrStorage, e.ID, err)
		}
		if !committed {
			return fmt.Errorf("%w: append entry %d: %w", common.ErrStorage, e.ID, err)
		}
		l.logger.Warn(ctx, "Commit reported failure but entry is durable", "id", e.ID, "error", err)
	}

	l.mu.Lock()
	l.maxID = e.ID
	l.lastCommittedAt = e.CommittedAt
	l.mu.Unlock()

	return nil
}

// reconcile reads the persisted high-water mark to learn whether a failed
// append actually committed.
func (l *Log) reconcile(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	mark, err := getMeta(ctx, l.repos.LogMeta(l.db), logmeta.MaxID)
	if err != nil {
		return false, err
	}
	return mark >= id, nil
}

// ReadRange returns entries with fromID <= id <= toID, capped at MaxID, in
// ascending order with no gaps. It never blocks appends.
func (l *Log) ReadRange(ctx context.Context, fromID, toID int64) ([]models.Entry, error) {
	if fromID < 1 {
		fromID = 1
	}
	if maxID := l.MaxID(); toID > maxID {
		toID = maxID
	}
	if fromID > toID {
		return nil, nil
	}

	rows, err := l.repos.Entries(l.db).Range(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("%w: read range %d..%d: %w", common.ErrStorage, fromID, toID, err)
	}
	if err := checkContiguous(rows, fromID, toID); err != nil {
		return nil, err
	}

	tokens, err := l.repos.Attachments(l.db).TokensForRange(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("%w: read attachments %d..%d: %w", common.ErrStorage, fromID, toID, err)
	}
	for i := range rows {
		if t, ok := tokens[rows[i].ID]; ok {
			rows[i].Attachments = t
		}
	}
	return rows, nil
}

func checkContiguous(rows []models.Entry, fromID, toID int64) error {
	if int64(len(rows)) != toID-fromID+1 {
		return fmt.Errorf("%w: expected %d entries in %d..%d, found %d", common.ErrStorage, toID-fromID+1, fromID, toID, len(rows))
	}
	for i, e := range rows {
		if e.ID != fromID+int64(i) {
			return fmt.Errorf("%w: gap at id %d", common.ErrStorage, fromID+int64(i))
		}
	}
	return nil
}

// Checkpoint re-persists the in-memory high-water mark.
func (l *Log) Checkpoint(ctx context.Context) error {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()
	return l.persistMark(ctx, l.db)
}

func (l *Log) persistMark(ctx context.Context, db dbx.DBTX) error {
	l.mu.RLock()
	maxID, last := l.maxID, l.lastCommittedAt
	l.mu.RUnlock()

	var lastNanos int64
	if !last.IsZero() {
		lastNanos = last.UnixNano()
	}

	meta := l.repos.LogMeta(db)
	if err := meta.Set(ctx, logmeta.MaxID, maxID); err != nil {
		return fmt.Errorf("%w: checkpoint: %w", common.ErrStorage, err)
	}
	if err := meta.Set(ctx, logmeta.LastCommittedAt, lastNanos); err != nil {
		return fmt.Errorf("%w: checkpoint: %w", common.ErrStorage, err)
	}
	return nil
}

// Close checkpoints the log. The database handle stays open; it belongs to
// the caller.
func (l *Log) Close(ctx context.Context) error {
	if err := l.Checkpoint(ctx); err != nil {
		return err
	}
	l.logger.Info(ctx, "Durable log closed", "max_id", l.MaxID())
	return nil
}
