package dialect

import "context"

// Supported dialect names. Drivers report one of these and the SQL
// generator keys its behavior off them.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
	// Remote is the SQL-over-HTTP dialect. It speaks SQLite syntax and
	// executes statements through an HTTP endpoint instead of a local
	// database/sql driver.
	Remote = "remote"
)

// ExecQuerier wraps the Exec and Query operations all connections
// provide. For Exec, v is expected to be nil or *sql.Result; for
// Query, v is expected to be *sql.Rows.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal interface the engine needs from a database
// connection.
type Driver interface {
	ExecQuerier

	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)

	// Close closes the underlying connection.
	Close() error

	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transaction commit and rollback around an ExecQuerier.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx that executes statements through d and treats
// commit and rollback as no-ops. Drivers without transaction support
// (the remote dialect) use it to satisfy the Driver interface.
func NopTx(d Driver) Tx {
	return nopTx{d}
}
