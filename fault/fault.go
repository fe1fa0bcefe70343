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

package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error produced by this module wraps exactly one of them.
var (
	// ErrPrecondition reports a missing or blank required argument.
	ErrPrecondition = errors.New("datamap: precondition violation")

	// ErrMappingIntegrity reports a mismatch between a mapping declaration and
	// the mapped type, query or result shape.
	ErrMappingIntegrity = errors.New("datamap: mapping integrity violation")

	// ErrInvalidOperation reports an API used in the wrong order or state.
	ErrInvalidOperation = errors.New("datamap: invalid operation")

	// ErrDisposed is returned by accessors of a closed unit of work.
	ErrDisposed = fmt.Errorf("%w: object is disposed", ErrInvalidOperation)

	// ErrIdempotency reports a read/fill/query whose row count differs from
	// the expected count.
	ErrIdempotency = errors.New("datamap: idempotency failure")

	// ErrConcurrency reports a create/update/delete that affected too few rows.
	ErrConcurrency = errors.New("datamap: concurrency failure")
)

// Precondition returns an ErrPrecondition naming the offending argument.
func Precondition(argument string) error {
	return fmt.Errorf("%w: %s must not be nil or blank", ErrPrecondition, argument)
}

// InvalidOperation returns an ErrInvalidOperation with a formatted reason.
func InvalidOperation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}

// MappingError describes a mapping integrity violation for a type member.
type MappingError struct {
	Type   string
	Member string
	Reason string
	Err    error
}

// NewMappingError returns a MappingError for the given type and member.
func NewMappingError(typ, member, reason string) *MappingError {
	return &MappingError{Type: typ, Member: member, Reason: reason}
}

// Error returns the error string.
func (e *MappingError) Error() string {
	msg := fmt.Sprintf("datamap: mapping %s", e.Type)
	if e.Member != "" {
		msg += "." + e.Member
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrMappingIntegrity.
func (e *MappingError) Is(target error) bool {
	return target == ErrMappingIntegrity
}

// Unwrap returns the underlying cause, if any.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// IdempotencyError reports an exact-count mismatch.
type IdempotencyError struct {
	Command  string
	Expected int64
	Actual   int64
}

// Error returns the error string.
func (e *IdempotencyError) Error() string {
	return fmt.Sprintf("datamap: idempotency failure on %q: expected %d rows, got %d", e.Command, e.Expected, e.Actual)
}

// Is reports whether target is ErrIdempotency.
func (e *IdempotencyError) Is(target error) bool {
	return target == ErrIdempotency
}

// ConcurrencyError reports an affected-row count at or below the threshold.
type ConcurrencyError struct {
	Command   string
	Threshold int64
	Actual    int64
}

// Error returns the error string.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("datamap: concurrency failure on %q: expected more than %d rows, got %d", e.Command, e.Threshold, e.Actual)
}

// Is reports whether target is ErrConcurrency.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

// IsMappingError reports whether err is a mapping integrity violation.
func IsMappingError(err error) bool {
	return err != nil && errors.Is(err, ErrMappingIntegrity)
}

// IsConcurrency reports whether err is a concurrency failure.
func IsConcurrency(err error) bool {
	return err != nil && errors.Is(err, ErrConcurrency)
}
