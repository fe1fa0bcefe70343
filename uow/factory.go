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
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/tomoncle/datamap/fault"
)

// Connector opens, or returns the pooled, database for a connection string.
type Connector interface {
	Open(ctx context.Context, kind, connectionString string) (*bun.DB, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, kind, connectionString string) (*bun.DB, error)

func (f ConnectorFunc) Open(ctx context.Context, kind, connectionString string) (*bun.DB, error) {
	return f(ctx, kind, connectionString)
}

// Settings selects the connection and transaction of new units of work.
type Settings struct {
	Kind             string
	ConnectionString string
	Transactional    bool
	IsolationLevel   sql.IsolationLevel
}

// Factory creates units of work over the databases of a Connector.
type Factory struct {
	connector Connector
}

// NewFactory returns a factory over connector.
func NewFactory(connector Connector) *Factory {
	return &Factory{connector: connector}
}

// Create opens a unit of work. It fails when connectionString is blank.
func (f *Factory) Create(ctx context.Context, kind, connectionString string, transactional bool, level sql.IsolationLevel) (*UnitOfWork, error) {
	if strings.TrimSpace(connectionString) == "" {
		return nil, fault.Precondition("connection string")
	}
	if f == nil || f.connector == nil {
		return nil, fault.Precondition("connector")
	}
	db, err := f.connector.Open(ctx, kind, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", kind, err)
	}
	u, err := Open(ctx, db, kind, transactional, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit of work: %w", err)
	}
	return u, nil
}

// CreateWith opens a unit of work from settings.
func (f *Factory) CreateWith(ctx context.Context, s Settings) (*UnitOfWork, error) {
	return f.Create(ctx, s.Kind, s.ConnectionString, s.Transactional, s.IsolationLevel)
}
