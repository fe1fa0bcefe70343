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

package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/marshal"
	"github.com/tomoncle/datamap/uow"
)

// Row is one result row with its columns in reader order.
type Row struct {
	Columns []string
	Values  []any
}

// Value returns the value of the named column.
func (r Row) Value(name string) (any, error) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], nil
		}
	}
	return nil, fmt.Errorf("column %q not found in result", name)
}

// Map returns the row keyed by column name.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

var _ marshal.Record = Row{}

// Result is the outcome of one command execution. For queries Affected is
// the number of rows read.
type Result struct {
	Rows     []Row
	Affected int64
}

// Event describes one command execution to observers.
type Event struct {
	UnitOfWork string
	Operation  string
	Command    *command.Command
	Args       []any
	StartTime  time.Time
	Duration   time.Duration
	Affected   int64
	Err        error
}

// Observer is notified around every command execution.
type Observer interface {
	BeforeCommand(ctx context.Context, event *Event) context.Context
	AfterCommand(ctx context.Context, event *Event)
}

// Executor runs commands on the ambient unit of work of the context.
type Executor struct {
	observers []Observer
}

// New returns an executor notifying observers in order.
func New(observers ...Observer) *Executor {
	return &Executor{observers: observers}
}

// AddObserver registers an observer.
func (e *Executor) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

func current(ctx context.Context) (*uow.UnitOfWork, uow.Querier, error) {
	u := uow.Current(ctx)
	if u == nil {
		return nil, nil, fault.InvalidOperation("no ambient unit of work")
	}
	q, err := u.Querier()
	if err != nil {
		return nil, nil, err
	}
	return u, q, nil
}

func args(params *marshal.ParameterSet) []any {
	if params == nil {
		return nil
	}
	return params.Args()
}

func (e *Executor) run(ctx context.Context, cmd *command.Command, params *marshal.ParameterSet, fn func(context.Context, uow.Querier, []any) (*Result, error)) (*Result, error) {
	if cmd == nil {
		return nil, fault.Precondition("command")
	}
	if cmd.Text == "" {
		return nil, fault.Precondition("command text")
	}
	u, q, err := current(ctx)
	if err != nil {
		return nil, err
	}

	event := &Event{
		UnitOfWork: u.ID(),
		Operation:  operation(cmd),
		Command:    cmd,
		Args:       args(params),
		StartTime:  time.Now(),
	}
	for _, o := range e.observers {
		ctx = o.BeforeCommand(ctx, event)
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	res, err := fn(runCtx, q, event.Args)

	event.Duration = time.Since(event.StartTime)
	event.Err = err
	if res != nil {
		event.Affected = res.Affected
	}
	for i := len(e.observers) - 1; i >= 0; i-- {
		e.observers[i].AfterCommand(ctx, event)
	}
	return res, err
}

// Query runs cmd and reads every row it returns.
func (e *Executor) Query(ctx context.Context, cmd *command.Command, params *marshal.ParameterSet) (*Result, error) {
	return e.run(ctx, cmd, params, func(ctx context.Context, q uow.Querier, args []any) (*Result, error) {
		list, err := query(ctx, q, cmd, args)
		if err != nil {
			return nil, err
		}
		return &Result{Rows: list, Affected: int64(len(list))}, nil
	})
}

// Exec runs cmd and returns the affected row count. When the command
// carries an identity query, it runs right after on the same connection and
// its rows are returned in the result.
func (e *Executor) Exec(ctx context.Context, cmd *command.Command, params *marshal.ParameterSet) (*Result, error) {
	return e.run(ctx, cmd, params, func(ctx context.Context, q uow.Querier, args []any) (*Result, error) {
		var (
			res sql.Result
			err error
		)
		if cmd.Prepare {
			var stmt *sql.Stmt
			if stmt, err = q.PrepareContext(ctx, cmd.Text); err != nil {
				return nil, err
			}
			defer func() { _ = stmt.Close() }()
			res, err = stmt.ExecContext(ctx, args...)
		} else {
			res, err = q.ExecContext(ctx, cmd.Text, args...)
		}
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		out := &Result{Affected: affected}
		if cmd.IdentityQuery != "" {
			rows, err := q.QueryContext(ctx, cmd.IdentityQuery)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch identity: %w", err)
			}
			if out.Rows, err = readRows(rows); err != nil {
				return nil, fmt.Errorf("failed to fetch identity: %w", err)
			}
		}
		return out, nil
	})
}

func query(ctx context.Context, q uow.Querier, cmd *command.Command, args []any) ([]Row, error) {
	if !cmd.Prepare {
		rows, err := q.QueryContext(ctx, cmd.Text, args...)
		if err != nil {
			return nil, err
		}
		return readRows(rows)
	}
	stmt, err := q.PrepareContext(ctx, cmd.Text)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stmt.Close() }()
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	return readRows(rows)
}

func readRows(rows *sql.Rows) ([]Row, error) {
	defer func() { _ = rows.Close() }()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var list []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		list = append(list, Row{Columns: columns, Values: values})
	}
	return list, rows.Err()
}

// Column describes one result column.
type Column struct {
	Name         string
	DatabaseType string
	Nullable     bool
	HasNullable  bool
}

// Describe runs the never-matching form of a select and returns the result
// shape without reading data.
func (e *Executor) Describe(ctx context.Context, cmd *command.Command) ([]Column, error) {
	var columns []Column
	_, err := e.run(ctx, cmd, nil, func(ctx context.Context, q uow.Querier, args []any) (*Result, error) {
		rows, err := q.QueryContext(ctx, cmd.Text, args...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()
		types, err := rows.ColumnTypes()
		if err != nil {
			return nil, err
		}
		for _, ct := range types {
			nullable, ok := ct.Nullable()
			columns = append(columns, Column{
				Name:         ct.Name(),
				DatabaseType: ct.DatabaseTypeName(),
				Nullable:     nullable,
				HasNullable:  ok,
			})
		}
		return &Result{}, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}
