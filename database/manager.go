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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	defaultConnectTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
	notConnected          = "database not connected"
)

// poolManager owns the bun pool of one connection config. A monitor pings
// the pool every HealthCheckInterval and swaps in a fresh pool when the
// check fails and EnableReconnect is set.
type poolManager struct {
	config *ConnectionConfig

	mu      sync.RWMutex
	db      *bun.DB
	logger  Logger
	status  HealthStatus
	monitor context.CancelFunc
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by bun. If
// config is nil, a default configuration is used.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &poolManager{config: config, logger: GetLogger()}
}

func (m *poolManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}
	db, err := m.open(ctx, m.logger)
	if err != nil {
		m.status.LastError = err.Error()
		return err
	}
	m.install(db)
	if m.config.HealthCheckInterval > 0 && m.monitor == nil {
		monitorCtx, cancel := context.WithCancel(context.Background())
		m.monitor = cancel
		go m.watch(monitorCtx)
	}
	m.logger.Info("Database connected", "kind", m.config.Kind, "dsn", Redact(m.config.ConnectionString))
	return nil
}

// open creates, tunes and pings a new pool.
func (m *poolManager) open(ctx context.Context, logger Logger) (*bun.DB, error) {
	cfg := m.config
	if strings.TrimSpace(cfg.ConnectionString) == "" {
		return nil, fmt.Errorf("connection string cannot be empty")
	}
	backend, ok := LookupBackend(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("unsupported database kind: %s, supported kinds: %v", cfg.Kind, SupportedKinds())
	}
	sqlDB, err := sql.Open(backend.DriverName, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Kind, err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, backend.Dialect())
	if cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{threshold: cfg.SlowQueryTime, logger: logger})
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	return db, nil
}

// install makes db the current pool. The caller holds m.mu.
func (m *poolManager) install(db *bun.DB) {
	m.db = db
	m.status = HealthStatus{Healthy: true, Connected: true, LastCheckTime: time.Now()}
}

func (m *poolManager) Disconnect() error {
	m.mu.Lock()
	db, stop := m.db, m.monitor
	m.db, m.monitor = nil, nil
	m.status.Healthy, m.status.Connected = false, false
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		m.log().Error("Failed to close database", "kind", m.config.Kind, "error", err)
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.log().Info("Database closed", "kind", m.config.Kind, "dsn", Redact(m.config.ConnectionString))
	return nil
}

// Reconnect opens a fresh pool and retires the current one. Pools already
// handed out keep working until they are retired.
func (m *poolManager) Reconnect(ctx context.Context) error {
	db, err := m.open(ctx, m.log())
	if err != nil {
		return err
	}
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		_ = db.Close()
		return ctx.Err()
	}
	old := m.db
	m.install(db)
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.log().Warn("Failed to close retired pool", "kind", m.config.Kind, "error", err)
		}
	}
	m.log().Info("Database reconnected", "kind", m.config.Kind, "dsn", Redact(m.config.ConnectionString))
	return nil
}

func (m *poolManager) watch(ctx context.Context) {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	tries := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if m.HealthCheck(ctx).Healthy {
			tries = 0
			continue
		}
		if !m.config.EnableReconnect || tries >= m.config.MaxReconnectTries {
			continue
		}
		tries++
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.ReconnectInterval):
		}
		if err := m.Reconnect(ctx); err != nil {
			m.log().Error("Reconnect failed", "kind", m.config.Kind, "try", tries, "error", err)
			continue
		}
		tries = 0
	}
}

func (m *poolManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return errors.New(notConnected)
	}
	return db.PingContext(ctx)
}

func (m *poolManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *poolManager) GetSQLDB() *sql.DB {
	if db := m.GetDB(); db != nil {
		return db.DB
	}
	return nil
}

// HealthCheck pings the pool without holding the manager lock, then records
// the result.
func (m *poolManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := HealthStatus{LastCheckTime: start}

	db := m.GetDB()
	if db == nil {
		status.LastError = notConnected
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		status.ResponseTime = time.Since(start)
		status.Healthy = err == nil
		status.Connected = err == nil
		if err != nil {
			status.LastError = err.Error()
			m.log().Warn("Database health check failed", "kind", m.config.Kind, "error", err)
		}
		s := db.DB.Stats()
		status.ActiveConns = s.InUse
		status.IdleConns = s.Idle
		status.MaxOpenConns = s.MaxOpenConnections
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return &status
}

func (m *poolManager) GetStats() *DBStats {
	sqlDB := m.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (m *poolManager) log() Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

func (m *poolManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// slowQueryHook warns about ORM session queries slower than threshold.
type slowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	if elapsed <= h.threshold {
		return
	}
	h.logger.Warn("Slow query",
		"operation", event.Operation(),
		"duration", elapsed,
		"threshold", h.threshold,
		"query", event.Query,
		"error", event.Err,
	)
}
