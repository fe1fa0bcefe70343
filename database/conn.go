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
	"sort"

	"github.com/uptrace/bun"
)

var (
	globalFactory *BaseDatabaseFactory
	globalConfig  *Config
	DB            *bun.DB
)

// GetDB returns the database of the default connection.
func GetDB() *bun.DB {
	return DB
}

// GetDatabaseFactory returns the global database factory.
func GetDatabaseFactory() *BaseDatabaseFactory {
	return globalFactory
}

// GetConfig returns the configuration passed to InitDB.
func GetConfig() *Config {
	return globalConfig
}

// InitDB registers every configured connection and connects the default one.
func InitDB(cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	def, err := cfg.Connection("")
	if err != nil {
		return nil, err
	}

	factory := NewDatabaseFactory()
	factory.SetTemplate(def)

	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := factory.CreateFromConfig(cfg.Connections[name]); err != nil {
			return nil, fmt.Errorf("failed to create database manager %q: %w", name, err)
		}
	}

	manager := factory.GetManager(def.Kind, def.ConnectionString)
	if manager == nil {
		return nil, fmt.Errorf("default connection is not registered")
	}
	if err := manager.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	factory.logger.Info("Database initialization completed!")

	globalConfig = cfg
	globalFactory = factory
	DB = manager.GetDB()
	return DB, nil
}

// CloseDB closes every database opened through the global factory.
func CloseDB() error {
	if globalFactory != nil {
		err := globalFactory.Close()
		DB = nil
		return err
	}
	return nil
}

// GetHealthStatus returns the health of every registered connection.
func GetHealthStatus(ctx context.Context) map[string]*HealthStatus {
	if globalFactory != nil {
		return globalFactory.GetHealthStatus(ctx)
	}
	return map[string]*HealthStatus{}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if globalFactory != nil {
		return globalFactory.GetStats()
	}
	return &DBStats{}
}
