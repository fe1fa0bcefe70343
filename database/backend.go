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
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/uptrace/bun/dialect/mssqldialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// Supported connection kinds.
const (
	KindSQLServer = "sqlserver"
	KindMySQL     = "mysql"
	KindPostgres  = "postgres"
	KindSQLite    = "sqlite"
)

// Backend pairs a database/sql driver name with its bun dialect.
type Backend struct {
	DriverName string
	Dialect    func() schema.Dialect
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{
		KindSQLServer: {DriverName: "sqlserver", Dialect: func() schema.Dialect { return mssqldialect.New() }},
		"mssql":       {DriverName: "sqlserver", Dialect: func() schema.Dialect { return mssqldialect.New() }},
		KindMySQL:     {DriverName: "mysql", Dialect: func() schema.Dialect { return mysqldialect.New() }},
		KindPostgres:  {DriverName: "postgres", Dialect: func() schema.Dialect { return pgdialect.New() }},
		"postgresql":  {DriverName: "postgres", Dialect: func() schema.Dialect { return pgdialect.New() }},
		KindSQLite:    {DriverName: sqliteshim.ShimName, Dialect: func() schema.Dialect { return sqlitedialect.New() }},
		"sqlite3":     {DriverName: sqliteshim.ShimName, Dialect: func() schema.Dialect { return sqlitedialect.New() }},
	}
)

// RegisterBackend makes a connection kind available, replacing any backend
// registered under the same kind.
func RegisterBackend(kind string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(kind)] = b
}

// LookupBackend returns the backend of kind.
func LookupBackend(kind string) (Backend, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[strings.ToLower(kind)]
	return b, ok
}

// SupportedKinds lists the registered connection kinds.
func SupportedKinds() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	kinds := make([]string, 0, len(backends))
	for k := range backends {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

var passwordPair = regexp.MustCompile(`(?i)((?:password|pwd)\s*=\s*)[^;]*`)

// Redact hides the password of a URL or key/value connection string.
func Redact(connectionString string) string {
	if u, err := url.Parse(connectionString); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
		return connectionString
	}
	return passwordPair.ReplaceAllString(connectionString, "${1}xxxxx")
}
