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
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uptrace/bun"
)

// AbstractDatabaseManager defines the operations for managing one pooled
// database and reporting its health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Kind                string        `yaml:"kind"` // sqlserver、mysql、postgres、sqlite
	ConnectionString    string        `yaml:"connection_string"`
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxOpenConns        int           `yaml:"max_open_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	EnableReconnect     bool          `yaml:"enable_reconnect"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	EnableQueryLog      bool          `yaml:"enable_query_log"`
	SlowQueryTime       time.Duration `yaml:"slow_query_time"`
}

// CompilerConfig controls generated SQL.
type CompilerConfig struct {
	BatchIdentityFetch bool `yaml:"batch_identity_fetch"`
}

// UnitOfWorkConfig controls the transactions of new units of work.
type UnitOfWorkConfig struct {
	Transactional  bool   `yaml:"transactional"`
	IsolationLevel string `yaml:"isolation_level"`
}

// Isolation parses IsolationLevel. Blank selects the driver default.
func (c UnitOfWorkConfig) Isolation() (sql.IsolationLevel, error) {
	return ParseIsolationLevel(c.IsolationLevel)
}

// Config aggregates named connections, compiler and unit of work settings.
type Config struct {
	Connections       map[string]*ConnectionConfig `yaml:"connections"`
	DefaultConnection string                       `yaml:"default_connection"`
	Compiler          CompilerConfig               `yaml:"compiler"`
	UnitOfWork        UnitOfWorkConfig             `yaml:"unit_of_work"`
}

// Connection returns the named connection, or the default one when name is
// blank.
func (c *Config) Connection(name string) (*ConnectionConfig, error) {
	if name == "" {
		name = c.DefaultConnection
	}
	if name == "" && len(c.Connections) == 1 {
		for _, cc := range c.Connections {
			return cc, nil
		}
	}
	cc, ok := c.Connections[name]
	if !ok || cc == nil {
		return nil, fmt.Errorf("connection %q is not configured", name)
	}
	return cc, nil
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Kind:                KindSQLServer,
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration. Every connection starts from
// DefaultConnectionConfig, so omitted settings keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	var raw struct {
		Connections       map[string]yaml.Node `yaml:"connections"`
		DefaultConnection string               `yaml:"default_connection"`
		Compiler          CompilerConfig       `yaml:"compiler"`
		UnitOfWork        UnitOfWorkConfig     `yaml:"unit_of_work"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg := &Config{
		Connections:       make(map[string]*ConnectionConfig, len(raw.Connections)),
		DefaultConnection: raw.DefaultConnection,
		Compiler:          raw.Compiler,
		UnitOfWork:        raw.UnitOfWork,
	}
	for name, node := range raw.Connections {
		cc := DefaultConnectionConfig()
		if err := node.Decode(cc); err != nil {
			return nil, fmt.Errorf("failed to parse connection %q: %w", name, err)
		}
		cfg.Connections[name] = cc
	}
	if _, err := cfg.UnitOfWork.Isolation(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseIsolationLevel maps names such as "read_committed" or "snapshot" to
// sql.IsolationLevel.
func ParseIsolationLevel(s string) (sql.IsolationLevel, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_") {
	case "", "default":
		return sql.LevelDefault, nil
	case "read_uncommitted":
		return sql.LevelReadUncommitted, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "write_committed":
		return sql.LevelWriteCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "snapshot":
		return sql.LevelSnapshot, nil
	case "serializable":
		return sql.LevelSerializable, nil
	case "linearizable":
		return sql.LevelLinearizable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unsupported isolation level: %s", s)
	}
}
