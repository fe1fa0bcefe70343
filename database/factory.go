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

package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory keeps one database manager per connection string and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	mu       sync.Mutex
	managers map[string]AbstractDatabaseManager
	template *ConnectionConfig
	logger   Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		managers: make(map[string]AbstractDatabaseManager),
		logger:   GetLogger(),
	}
}

// SetTemplate sets the pool settings applied to connections opened by
// connection string alone.
func (f *BaseDatabaseFactory) SetTemplate(cfg *ConnectionConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.template = cfg
}

// CreateFromConfig constructs and registers a database manager from the
// given connection configuration, applying environment overrides first.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	f.overrideFromEnv(cfg)
	return f.register(cfg)
}

func (f *BaseDatabaseFactory) register(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if _, ok := LookupBackend(cfg.Kind); !ok {
		return nil, fmt.Errorf("unsupported database kind: %s, supported kinds: %v", cfg.Kind, SupportedKinds())
	}
	if strings.TrimSpace(cfg.ConnectionString) == "" {
		return nil, fmt.Errorf("connection string cannot be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := managerKey(cfg.Kind, cfg.ConnectionString)
	if m, ok := f.managers[key]; ok {
		return m, nil
	}
	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.managers[key] = manager
	return manager, nil
}

// Open returns the pooled database for connectionString, connecting it on
// first use.
func (f *BaseDatabaseFactory) Open(ctx context.Context, kind, connectionString string) (*bun.DB, error) {
	f.mu.Lock()
	m, ok := f.managers[managerKey(kind, connectionString)]
	template := f.template
	f.mu.Unlock()

	if !ok {
		cfg := DefaultConnectionConfig()
		if template != nil {
			c := *template
			cfg = &c
		}
		cfg.Kind = kind
		cfg.ConnectionString = connectionString
		var err error
		if m, err = f.register(cfg); err != nil {
			return nil, err
		}
	}

	if db := m.GetDB(); db != nil {
		return db, nil
	}
	if err := m.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return m.GetDB(), nil
}

func managerKey(kind, connectionString string) string {
	return strings.ToLower(kind) + "|" + connectionString
}

// overrideFromEnv overrides configuration values from environment variables.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	if kind := os.Getenv("DATAMAP_KIND"); kind != "" {
		cfg.Kind = kind
	}
	if cs := os.Getenv("DATAMAP_CONNECTION_STRING"); cs != "" {
		cfg.ConnectionString = cs
	}
	// Connection pool config
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			cfg.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}

	// Reconnect config
	if enableReconnect := os.Getenv("DB_ENABLE_RECONNECT"); enableReconnect != "" {
		cfg.EnableReconnect = enableReconnect == "true"
	}
	if reconnectInterval := os.Getenv("DB_RECONNECT_INTERVAL"); reconnectInterval != "" {
		if val, err := strconv.Atoi(reconnectInterval); err == nil {
			cfg.ReconnectInterval = time.Duration(val) * time.Second
		}
	}

	// Logging config
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		cfg.EnableQueryLog = enableQueryLog == "true"
	}
}

// GetManager returns the manager registered for connectionString.
func (f *BaseDatabaseFactory) GetManager(kind, connectionString string) AbstractDatabaseManager {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.managers[managerKey(kind, connectionString)]
}

// SetLogger sets the logger on the factory and every registered manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger = logger
	for _, m := range f.managers {
		m.SetLogger(logger)
	}
}

// Close disconnects every registered manager.
func (f *BaseDatabaseFactory) Close() error {
	f.mu.Lock()
	managers := f.managers
	f.managers = make(map[string]AbstractDatabaseManager)
	f.mu.Unlock()

	var firstErr error
	for _, m := range managers {
		if err := m.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetHealthStatus checks every registered manager, keyed by kind and
// connection string.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) map[string]*HealthStatus {
	f.mu.Lock()
	managers := make(map[string]AbstractDatabaseManager, len(f.managers))
	for k, m := range f.managers {
		managers[k] = m
	}
	f.mu.Unlock()

	out := make(map[string]*HealthStatus, len(managers))
	for k, m := range managers {
		out[k] = m.HealthCheck(ctx)
	}
	return out
}

// GetStats sums the connection statistics of every registered manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := &DBStats{}
	for _, m := range f.managers {
		s := m.GetStats()
		total.MaxOpenConns += s.MaxOpenConns
		total.OpenConns += s.OpenConns
		total.InUse += s.InUse
		total.Idle += s.Idle
		total.WaitCount += s.WaitCount
		total.WaitDuration += s.WaitDuration
		total.MaxIdleClosed += s.MaxIdleClosed
		total.MaxIdleTimeClosed += s.MaxIdleTimeClosed
		total.MaxLifetimeClosed += s.MaxLifetimeClosed
	}
	return total
}
