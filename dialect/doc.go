// Package dialect provides the database abstraction the engine runs
// on: dialect name constants and the Driver, Tx and ExecQuerier
// interfaces every connection variant implements.
//
// # Supported Dialects
//
//   - SQLite: local SQLite database
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - Remote: SQL over HTTP (SQLite syntax, remote execution)
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/syssam/quill/dialect"
//	    "github.com/syssam/quill/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver binding, predicates and the
//     per-dialect SQL generator
//   - dialect/sql/schema: schema creation and migration
//   - dialect/remote: the SQL-over-HTTP driver
package dialect
