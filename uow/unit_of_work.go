/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package uow

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tomoncle/datamap/database"
	"github.com/tomoncle/datamap/fault"
)

// Outcome is the adjudicated result of a closed unit of work.
type Outcome int

const (
	Pending Outcome = iota
	Committed
	RolledBack
	// Released means the unit of work had no transaction to adjudicate.
	Released
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	case Released:
		return "released"
	default:
		return "pending"
	}
}

// Querier runs raw commands. Both *sql.Tx and *sql.Conn implement it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// UnitOfWork owns one connection and an optional transaction. It commits
// on Close only when it was completed and never diverged; otherwise the
// transaction is rolled back.
type UnitOfWork struct {
	id     string
	kind   string
	db     *bun.DB
	conn   bun.Conn
	tx     *bun.Tx
	logger database.Logger

	mutex     sync.Mutex
	contexts  []io.Closer
	completed bool
	diverged  bool
	disposed  bool
	outcome   Outcome
}

// Open takes a connection from db and, when transactional, begins a
// transaction at the given isolation level.
func Open(ctx context.Context, db *bun.DB, kind string, transactional bool, level sql.IsolationLevel) (*UnitOfWork, error) {
	if db == nil {
		return nil, fault.Precondition("db")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	u := &UnitOfWork{
		id:     uuid.NewString(),
		kind:   kind,
		db:     db,
		conn:   conn,
		logger: database.GetLogger(),
	}
	if transactional {
		tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: level})
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		u.tx = &tx
	}
	u.logger.Debug("Unit of work opened", "unit_of_work", u.id, "kind", kind, "transactional", transactional)
	return u, nil
}

func (u *UnitOfWork) ID() string          { return u.id }
func (u *UnitOfWork) Kind() string        { return u.kind }
func (u *UnitOfWork) DB() *bun.DB         { return u.db }
func (u *UnitOfWork) Transactional() bool { return u.tx != nil }

// Complete marks the unit of work successful. It may be called once.
func (u *UnitOfWork) Complete() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.disposed {
		return fault.ErrDisposed
	}
	if u.completed {
		return fault.InvalidOperation("unit of work %s is already completed", u.id)
	}
	u.completed = true
	return nil
}

// Divergent records that an operation detected a concurrency or idempotency
// problem. The transaction will be rolled back even if Complete is called.
func (u *UnitOfWork) Divergent() {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if !u.diverged && !u.disposed {
		u.logger.Warn("Unit of work diverged", "unit_of_work", u.id)
	}
	u.diverged = true
}

func (u *UnitOfWork) Completed() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.completed
}

func (u *UnitOfWork) Diverged() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.diverged
}

func (u *UnitOfWork) Disposed() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.disposed
}

// Outcome returns the adjudicated outcome, or Pending before Close.
func (u *UnitOfWork) Outcome() Outcome {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.outcome
}

// Conn returns the connection.
func (u *UnitOfWork) Conn() (bun.Conn, error) {
	if u.Disposed() {
		return bun.Conn{}, fault.ErrDisposed
	}
	return u.conn, nil
}

// Tx returns the transaction, or nil when the unit of work is not
// transactional.
func (u *UnitOfWork) Tx() (*bun.Tx, error) {
	if u.Disposed() {
		return nil, fault.ErrDisposed
	}
	return u.tx, nil
}

// Session returns the ORM session bound to the transaction, or to the
// connection when there is none.
func (u *UnitOfWork) Session() (bun.IDB, error) {
	if u.Disposed() {
		return nil, fault.ErrDisposed
	}
	if u.tx != nil {
		return *u.tx, nil
	}
	return u.conn, nil
}

// Querier returns the raw handle commands run on. Named and output
// parameters are passed to the driver unchanged.
func (u *UnitOfWork) Querier() (Querier, error) {
	if u.Disposed() {
		return nil, fault.ErrDisposed
	}
	if u.tx != nil {
		return u.tx.Tx, nil
	}
	return u.conn.Conn, nil
}

// Attach registers a context that is closed with the unit of work, before
// the transaction and the connection are released.
func (u *UnitOfWork) Attach(c io.Closer) error {
	if c == nil {
		return fault.Precondition("context")
	}
	u.mutex.Lock()
	defer u.mutex.Unlock()
	if u.disposed {
		return fault.ErrDisposed
	}
	u.contexts = append(u.contexts, c)
	return nil
}

// Close adjudicates and releases the unit of work. Only the first call has
// any effect. Every release step runs even when an earlier one fails.
func (u *UnitOfWork) Close() error {
	u.mutex.Lock()
	if u.disposed {
		u.mutex.Unlock()
		return nil
	}
	u.disposed = true
	commit := u.completed && !u.diverged
	contexts := u.contexts
	u.contexts = nil
	u.mutex.Unlock()

	var errs []error
	outcome := Released
	if u.tx != nil {
		if commit {
			outcome = Committed
			if err := u.tx.Commit(); err != nil {
				outcome = RolledBack
				errs = append(errs, err)
			}
		} else {
			outcome = RolledBack
			if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				errs = append(errs, err)
			}
		}
	}

	for i := len(contexts) - 1; i >= 0; i-- {
		if err := contexts[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if u.tx != nil && outcome != Committed {
		// A failed commit may leave the transaction open.
		if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
	}
	if err := u.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, err)
	}

	u.mutex.Lock()
	u.outcome = outcome
	u.mutex.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		u.logger.Error("Unit of work closed with errors", "unit_of_work", u.id, "outcome", outcome, "error", err)
	} else {
		u.logger.Debug("Unit of work closed", "unit_of_work", u.id, "outcome", outcome)
	}
	return err
}
