// Package dbxtest wraps a registered database/sql driver so tests can make a
// COMMIT fail after it landed, or lose it, and take the database offline.
package dbxtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync/atomic"
)

// Fault selects what the next COMMIT does.
type Fault int32

const (
	FaultNone Fault = iota
	// FaultCommitLands commits and then reports an error, like a lost ack.
	FaultCommitLands
	// FaultCommitLost rolls back and reports an error.
	FaultCommitLost
)

// ErrCommitReset is what a faulty COMMIT returns.
var ErrCommitReset = errors.New("connection reset by peer")

// ErrOffline is returned for every statement while the database is down.
var ErrOffline = errors.New("connection refused")

type Faults struct {
	next     atomic.Int32
	downNext atomic.Bool
	down     atomic.Bool
}

// FailNextCommit arms a single commit fault. With goDown set the database
// also goes offline right after that commit.
func (f *Faults) FailNextCommit(kind Fault, goDown bool) {
	f.downNext.Store(goDown)
	f.next.Store(int32(kind))
}

// SetDown takes the database offline or brings it back.
func (f *Faults) SetDown(down bool) { f.down.Store(down) }

// Open returns a *sql.DB over driverName whose connections honour f.
// Statements go through Prepare, so offline mode covers every query.
func Open(driverName, dsn string) (*sql.DB, *Faults, error) {
	probe, err := sql.Open(driverName, "")
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	base := probe.Driver()
	_ = probe.Close()

	f := &Faults{}
	return sql.OpenDB(connector{base: base, dsn: dsn, f: f}), f, nil
}

type connector struct {
	base driver.Driver
	dsn  string
	f    *Faults
}

func (c connector) Connect(context.Context) (driver.Conn, error) {
	raw, err := c.base.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: raw, f: c.f}, nil
}

func (c connector) Driver() driver.Driver { return c.base }

type conn struct {
	driver.Conn
	f *Faults
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	if c.f.down.Load() {
		return nil, ErrOffline
	}
	return c.Conn.Prepare(query)
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.f.down.Load() {
		return nil, ErrOffline
	}
	var (
		tx  driver.Tx
		err error
	)
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		tx, err = b.BeginTx(ctx, opts)
	} else {
		tx, err = c.Conn.Begin() //nolint:staticcheck
	}
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, f: c.f}, nil
}

type faultyTx struct {
	driver.Tx
	f *Faults
}

func (t *faultyTx) Commit() error {
	switch Fault(t.f.next.Swap(int32(FaultNone))) {
	case FaultCommitLands:
		if err := t.Tx.Commit(); err != nil {
			return err
		}
	case FaultCommitLost:
		if err := t.Tx.Rollback(); err != nil {
			return err
		}
	default:
		return t.Tx.Commit()
	}
	if t.f.downNext.Swap(false) {
		t.f.down.Store(true)
	}
	return ErrCommitReset
}
