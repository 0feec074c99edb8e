package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"jetstay/internal/domain"
)

// MySQL server error numbers the booking path cares about.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateKey    = 1062
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valDate(r *domain.DateRange, end bool) any {
	if r == nil {
		return nil
	}
	if end {
		return r.End
	}
	return r.Start
}

// querier is what both *sql.DB and *sql.Tx offer for reads.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	db       *sql.DB
	lockWait time.Duration
}

// New returns a Repo. lockWait bounds how long a booking waits for an
// inventory row lock; zero leaves the server default in place.
func New(db *sql.DB, lockWait time.Duration) *Repo {
	return &Repo{db: db, lockWait: lockWait}
}

// Pool holds connection pool limits for Open.
type Pool struct {
	MaxOpen  int
	MaxIdle  int
	Lifetime time.Duration
}

// Open connects to dsn, applies the pool limits and pings within 10s.
func Open(ctx context.Context, dsn string, p Pool) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.Lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// WithinTx runs fn in a READ COMMITTED transaction. Each locking read then
// sees rows committed before its lock was granted, which a REPEATABLE READ
// snapshot taken at the first lock would not.
func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.ReservationTx) error) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "commit", Err: err}
	}
	committed = true
	return nil
}

// beginTx opens a READ COMMITTED transaction with the repo's lock wait.
// Every locking transaction goes through here: the session variable
// outlives the tx on its pooled connection, so each tx sets its own.
func (r *Repo) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "begin", Err: err}
	}
	if r.lockWait > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", lockWaitSeconds(r.lockWait))); err != nil {
			_ = tx.Rollback()
			return nil, &domain.PersistenceError{Op: "set lock wait", Err: err}
		}
	}
	return tx, nil
}

// lockWaitSeconds rounds d up to whole seconds, at least 1.
func lockWaitSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// isLockFailure reports lock wait timeouts, deadlock victims and a context
// deadline hit while blocked on a lock.
func isLockFailure(err error) bool {
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errLockWaitTimeout || me.Number == errDeadlock
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func isDuplicate(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateKey
}

// wrap maps driver errors for statements that run after the unit locks
// are held. A deadlock there is still retryable.
func wrap(op string, ref domain.UnitRef, err error) error {
	if err == nil {
		return nil
	}
	if isLockFailure(err) {
		return &domain.TransientLockError{Unit: ref, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
