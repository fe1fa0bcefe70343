// Package database opens and pools the connections units of work run on.
// It covers YAML configuration, backend registration for SQL Server, MySQL,
// PostgreSQL and SQLite, health checks, reconnects, logging, and driver
// error classification, all built on top of Bun.
package database
