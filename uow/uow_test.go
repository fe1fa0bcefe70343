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
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/tomoncle/datamap/fault"
)

const testConnectionString = "sqlserver://sa@localhost?database=test"

func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = sqldb.Close() })
	return db, mock
}

func staticFactory(db *bun.DB) *Factory {
	return NewFactory(ConnectorFunc(func(context.Context, string, string) (*bun.DB, error) {
		return db, nil
	}))
}

var plain = Settings{Kind: "sqlserver", ConnectionString: testConnectionString}

type recordingCloser struct {
	name  string
	log   *[]string
	err   error
	calls int
}

func (c *recordingCloser) Close() error {
	c.calls++
	if c.log != nil {
		*c.log = append(*c.log, c.name)
	}
	return c.err
}

func TestAdjudicationTruthTable(t *testing.T) {
	for _, completed := range []bool{false, true} {
		for _, divergences := range []int{0, 1, 3} {
			t.Run(fmt.Sprintf("completed=%v/divergent=%d", completed, divergences), func(t *testing.T) {
				db, mock := newMockDB(t)
				commit := completed && divergences == 0
				mock.ExpectBegin()
				if commit {
					mock.ExpectCommit()
				} else {
					mock.ExpectRollback()
				}

				u, err := Open(context.Background(), db, "sqlserver", true, sql.LevelDefault)
				require.NoError(t, err)
				for i := 0; i < divergences; i++ {
					u.Divergent()
				}
				if completed {
					require.NoError(t, u.Complete())
				}

				require.NoError(t, u.Close())
				require.NoError(t, u.Close())

				if commit {
					assert.Equal(t, Committed, u.Outcome())
				} else {
					assert.Equal(t, RolledBack, u.Outcome())
				}
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	}
}

func TestCompleteTwiceFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	u, err := Open(context.Background(), db, "sqlserver", true, sql.LevelReadCommitted)
	require.NoError(t, err)
	require.NoError(t, u.Complete())

	err = u.Complete()
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)
	assert.NotErrorIs(t, err, fault.ErrPrecondition)

	require.NoError(t, u.Close())
	assert.Equal(t, Committed, u.Outcome())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessorsAfterClose(t *testing.T) {
	db, _ := newMockDB(t)
	u, err := Open(context.Background(), db, "sqlserver", false, sql.LevelDefault)
	require.NoError(t, err)

	session, err := u.Session()
	require.NoError(t, err)
	assert.IsType(t, bun.Conn{}, session)
	tx, err := u.Tx()
	require.NoError(t, err)
	assert.Nil(t, tx)

	require.NoError(t, u.Close())
	assert.Equal(t, Released, u.Outcome())

	_, err = u.Conn()
	assert.ErrorIs(t, err, fault.ErrDisposed)
	_, err = u.Tx()
	assert.ErrorIs(t, err, fault.ErrDisposed)
	_, err = u.Session()
	assert.ErrorIs(t, err, fault.ErrDisposed)
	_, err = u.Querier()
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)
	assert.ErrorIs(t, u.Complete(), fault.ErrDisposed)
	assert.ErrorIs(t, u.Attach(&recordingCloser{}), fault.ErrDisposed)
}

func TestCloseReleasesContextsAfterAdjudication(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	u, err := Open(context.Background(), db, "sqlserver", true, sql.LevelDefault)
	require.NoError(t, err)

	var order []string
	first := &recordingCloser{name: "first", log: &order, err: errors.New("boom")}
	second := &recordingCloser{name: "second", log: &order}
	require.NoError(t, u.Attach(first))
	require.NoError(t, u.Attach(second))

	err = u.Close()
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, RolledBack, u.Outcome())

	require.NoError(t, u.Close())
	assert.Equal(t, 1, first.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailedCommitRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("deadlock victim"))

	u, err := Open(context.Background(), db, "sqlserver", true, sql.LevelDefault)
	require.NoError(t, err)
	require.NoError(t, u.Complete())

	assert.ErrorContains(t, u.Close(), "deadlock victim")
	assert.Equal(t, RolledBack, u.Outcome())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactoryRejectsBlankConnectionString(t *testing.T) {
	db, _ := newMockDB(t)
	_, err := staticFactory(db).Create(context.Background(), "sqlserver", "  ", true, sql.LevelDefault)
	assert.ErrorIs(t, err, fault.ErrPrecondition)
}

func TestFactoryWrapsConnectorError(t *testing.T) {
	f := NewFactory(ConnectorFunc(func(context.Context, string, string) (*bun.DB, error) {
		return nil, errors.New("unreachable")
	}))
	_, err := f.CreateWith(context.Background(), plain)
	assert.ErrorContains(t, err, "unreachable")
}

func TestAmbientScope(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	f := staticFactory(db)
	ctx := context.Background()

	scope, err := NewAmbientScope(ctx, f, Settings{Kind: "sqlserver", ConnectionString: testConnectionString, Transactional: true})
	require.NoError(t, err)
	assert.Nil(t, Current(ctx))
	assert.Same(t, scope.UnitOfWork(), Current(scope.Context()))

	_, err = NewAmbientScope(scope.Context(), f, plain)
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)

	require.NoError(t, scope.Complete())
	require.NoError(t, scope.Close())
	require.NoError(t, scope.Close())
	assert.Nil(t, Current(scope.Context()))
	assert.True(t, scope.UnitOfWork().Disposed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContextScopePolicies(t *testing.T) {
	db, _ := newMockDB(t)
	f := staticFactory(db)
	ctx := context.Background()

	_, err := NewContextScope(ctx, Required, f, plain)
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)

	none, err := NewContextScope(ctx, RequiresNone, f, plain)
	require.NoError(t, err)
	require.NotNil(t, none.UnitOfWork())
	require.NoError(t, none.Close())
	assert.True(t, none.UnitOfWork().Disposed())

	outer, err := NewAmbientScope(ctx, f, plain)
	require.NoError(t, err)
	defer outer.Close()
	ambient := outer.UnitOfWork()

	_, err = NewContextScope(outer.Context(), RequiresNone, f, plain)
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)

	joined, err := NewContextScope(outer.Context(), Required, f, plain)
	require.NoError(t, err)
	assert.Same(t, ambient, Current(joined.Context()))
	require.NoError(t, joined.Close())
	assert.False(t, ambient.Disposed())

	fresh, err := NewContextScope(outer.Context(), RequiresNew, f, plain)
	require.NoError(t, err)
	assert.NotSame(t, ambient, Current(fresh.Context()))
	require.NoError(t, fresh.Close())
	assert.True(t, fresh.UnitOfWork().Disposed())
	assert.Same(t, ambient, Current(outer.Context()))

	suppressed, err := NewContextScope(outer.Context(), Suppress, f, plain)
	require.NoError(t, err)
	assert.Nil(t, Current(suppressed.Context()))
	nested, err := NewContextScope(suppressed.Context(), RequiresNone, f, plain)
	require.NoError(t, err)
	require.NoError(t, nested.Close())
	require.NoError(t, suppressed.Close())
	assert.Same(t, ambient, Current(outer.Context()))
	assert.False(t, ambient.Disposed())
}

func TestWrapperDefersToCreator(t *testing.T) {
	db, _ := newMockDB(t)
	scope, err := NewAmbientScope(context.Background(), staticFactory(db), plain)
	require.NoError(t, err)

	session := &recordingCloser{}
	w, err := Wrap(scope.Context(), session)
	require.NoError(t, err)
	assert.Same(t, session, w.Value())

	require.NoError(t, w.Close())
	assert.Zero(t, session.calls)

	require.NoError(t, scope.Close())
	assert.Equal(t, 1, session.calls)
	require.NoError(t, w.Close())
	assert.Equal(t, 1, session.calls)
}

func TestWrapperForwardsOutsideCreator(t *testing.T) {
	session := &recordingCloser{}
	w, err := Wrap(context.Background(), session)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, session.calls)
}

func TestWrapperForwardsFromNestedScope(t *testing.T) {
	db, _ := newMockDB(t)
	f := staticFactory(db)
	outer, err := NewAmbientScope(context.Background(), f, plain)
	require.NoError(t, err)

	session := &recordingCloser{}
	w, err := Wrap(outer.Context(), session)
	require.NoError(t, err)

	joined, err := NewContextScope(outer.Context(), Required, f, plain)
	require.NoError(t, err)
	require.NoError(t, w.CloseIn(joined.Context()))
	assert.Zero(t, session.calls)
	require.NoError(t, joined.Close())

	fresh, err := NewContextScope(outer.Context(), RequiresNew, f, plain)
	require.NoError(t, err)
	require.NoError(t, w.CloseIn(fresh.Context()))
	assert.Equal(t, 1, session.calls)
	require.NoError(t, fresh.Close())

	require.NoError(t, outer.Close())
	assert.Equal(t, 1, session.calls)
}

func TestWrapperForwardsFromSuppressedScope(t *testing.T) {
	db, _ := newMockDB(t)
	f := staticFactory(db)
	outer, err := NewAmbientScope(context.Background(), f, plain)
	require.NoError(t, err)

	session := &recordingCloser{}
	w, err := Wrap(outer.Context(), session)
	require.NoError(t, err)

	suppressed, err := NewContextScope(outer.Context(), Suppress, f, plain)
	require.NoError(t, err)
	require.NoError(t, w.CloseIn(suppressed.Context()))
	assert.Equal(t, 1, session.calls)
	require.NoError(t, suppressed.Close())

	require.NoError(t, outer.Close())
	assert.Equal(t, 1, session.calls)
}
