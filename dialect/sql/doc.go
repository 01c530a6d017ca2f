// Package sql binds the engine to database/sql connections and renders
// model operations into dialect-specific SQL.
//
// It has three layers. Driver wraps a database/sql connection behind
// the dialect.Driver interface, keeping the Conn.Exec/Query calling
// convention where the caller passes the result destination. Predicate
// trees express filters as plain immutable values that are only bound
// to a model when a statement is rendered. Builder turns a model
// descriptor plus predicates or assignments into one SQL statement and
// its ordered parameter list for the active dialect.
//
// StatsDriver and DebugDriver wrap any dialect.Driver with statement
// statistics and logging.
package sql
