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
	"fmt"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/fault"
	"github.com/tomoncle/datamap/marshal"
	"github.com/tomoncle/datamap/uow"
)

type policy int

const (
	unbounded policy = iota
	exact
	threshold
)

// Expectation classifies the row count of an execution.
type Expectation struct {
	policy policy
	count  int64
}

// Exactly requires the count to equal n.
func Exactly(n int64) Expectation { return Expectation{policy: exact, count: n} }

// MoreThan requires the count to exceed n.
func MoreThan(n int64) Expectation { return Expectation{policy: threshold, count: n} }

// Unbounded accepts any count.
func Unbounded() Expectation { return Expectation{} }

func (x Expectation) String() string {
	switch x.policy {
	case exact:
		return fmt.Sprintf("exactly %d", x.count)
	case threshold:
		return fmt.Sprintf("more than %d", x.count)
	default:
		return "any"
	}
}

// Check compares actual against the expectation. On a mismatch the unit of
// work is marked divergent and an *fault.IdempotencyError (exact) or
// *fault.ConcurrencyError (threshold) is returned.
func (x Expectation) Check(u *uow.UnitOfWork, cmd *command.Command, actual int64) error {
	var err error
	switch x.policy {
	case exact:
		if actual != x.count {
			err = &fault.IdempotencyError{Command: cmd.String(), Expected: x.count, Actual: actual}
		}
	case threshold:
		if actual <= x.count {
			err = &fault.ConcurrencyError{Command: cmd.String(), Threshold: x.count, Actual: actual}
		}
	}
	if err != nil && u != nil {
		u.Divergent()
	}
	return err
}

// Fetch runs a query, checks its row count and maps every row into a new T.
// Rows are mapped only once the count is accepted.
func Fetch[T any](ctx context.Context, e *Executor, cmd *command.Command, params *marshal.ParameterSet, expect Expectation) ([]*T, error) {
	res, err := e.Query(ctx, cmd, params)
	if err != nil {
		return nil, err
	}
	if err := expect.Check(uow.Current(ctx), cmd, res.Affected); err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(res.Rows))
	for _, row := range res.Rows {
		v := new(T)
		if err := marshal.RecordToObject(row, cmd, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FetchInto runs a query that must return exactly one row and fills target
// from it.
func FetchInto(ctx context.Context, e *Executor, cmd *command.Command, params *marshal.ParameterSet, target any) error {
	if target == nil {
		return fault.Precondition("target")
	}
	res, err := e.Query(ctx, cmd, params)
	if err != nil {
		return err
	}
	if err := Exactly(1).Check(uow.Current(ctx), cmd, res.Affected); err != nil {
		return err
	}
	return marshal.RecordToObject(res.Rows[0], cmd, target)
}

// Persist runs a create, update or delete command that must affect more
// than threshold rows. A lost race is reported as false with a nil error;
// the unit of work is marked divergent either way. Output parameters and
// fetched identities are copied into target.
func Persist(ctx context.Context, e *Executor, cmd *command.Command, params *marshal.ParameterSet, threshold int64, target any) (bool, error) {
	err := MustPersist(ctx, e, cmd, params, threshold, target)
	if fault.IsConcurrency(err) {
		return false, nil
	}
	return err == nil, err
}

// MustPersist is Persist reporting a lost race as *fault.ConcurrencyError.
func MustPersist(ctx context.Context, e *Executor, cmd *command.Command, params *marshal.ParameterSet, threshold int64, target any) error {
	res, err := e.Exec(ctx, cmd, params)
	if err != nil {
		return err
	}
	if err := MoreThan(threshold).Check(uow.Current(ctx), cmd, res.Affected); err != nil {
		return err
	}
	if len(cmd.Outputs()) > 0 {
		if params == nil {
			params = marshal.NewParameterSet()
		}
		if err := marshal.OutputParametersToObject(cmd, params, target); err != nil {
			return err
		}
	}
	if cmd.IdentityQuery != "" && target != nil {
		if err := Exactly(1).Check(uow.Current(ctx), cmd, int64(len(res.Rows))); err != nil {
			return err
		}
		if err := marshal.RecordToObject(res.Rows[0], cmd, target); err != nil {
			return err
		}
	}
	return nil
}
